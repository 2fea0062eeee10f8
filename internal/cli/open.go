package cli

import (
	"context"
	"time"

	"github.com/raphaelgruber/convo/internal/memstore"
	"github.com/raphaelgruber/convo/internal/view"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open <conversation-id>",
	Short: "Open a conversation interactively",
	Long: `Open a conversation in a terminal view.

The thread is loaded once, then new messages are appended as they arrive.
Type a message and press enter to post it; esc or ctrl+c quits.

Examples:
  convo open 42
  convo open 42 --server https://chat.example.com/graphql`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{interactiveAnnotation: "true"},
	RunE:        runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	return view.Run(cmd.Context(), apiClient, args[0], logger)
}

var demoEchoDelay time.Duration

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Open a sample conversation backed by memory",
	Long: `Open the conversation view against an in-memory backend seeded with a
sample conversation. Every message you post gets an answer, which arrives
through the live feed.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{interactiveAnnotation: "true"},
	RunE:        runDemo,
}

func init() {
	demoCmd.Flags().DurationVar(&demoEchoDelay, "reply-delay", 800*time.Millisecond, "delay before the sample user answers")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store := memstore.New(cfg.UserName, logger)
	conv, bot := store.SeedDemo()
	logger.Debug("demo seeded", "conversation_id", conv.ID, "author", store.Author().ID, "bot", bot.ID)

	echoCtx, stopEcho := context.WithCancel(ctx)
	defer stopEcho()
	go func() {
		if err := store.Echo(echoCtx, conv.ID, bot, demoEchoDelay); err != nil {
			logger.Error("demo responder stopped", "error", err)
		}
	}()

	return view.Run(ctx, store, conv.ID, logger)
}
