package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/convo/internal/chat"
	"github.com/raphaelgruber/convo/internal/client"
	"github.com/raphaelgruber/convo/internal/view"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a conversation",
	Long: `Load a conversation once and print its title and messages in order.

Examples:
  convo show 42
  convo show 42 -v`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <body>",
	Short: "Post a message to a conversation",
	Long: `Post a message and print the ID the server assigned to it.
The body is sent as given, including an empty string.

Examples:
  convo send 42 "on my way"`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

var tailCmd = &cobra.Command{
	Use:   "tail <conversation-id>",
	Short: "Print new messages as they arrive",
	Long: `Follow the live feed of a conversation and print each new message.
Runs until interrupted or until the server ends the feed.

Examples:
  convo tail 42`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func runShow(cmd *cobra.Command, args []string) error {
	conv, err := apiClient.Conversation(cmd.Context(), args[0])
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("conversation %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	out := cmd.OutOrStdout()
	theme := view.DefaultTheme
	fmt.Fprintln(out, theme.RenderHeader(conv.Title, 0))
	fmt.Fprintln(out, theme.RenderThread(conv.Messages, 0, 0))
	if verbose {
		fmt.Fprintf(out, "\n%d messages\n", len(conv.Messages))
		for _, u := range participants(conv.Messages) {
			fmt.Fprintf(out, "  %s %s\n", u.Name, u.AvatarURL(avatarSize))
		}
	}
	return nil
}

// avatarSize is the pixel size requested for avatar URLs.
const avatarSize = 64

// participants returns the message authors in order of first appearance.
func participants(messages []chat.Message) []chat.User {
	seen := make(map[string]bool)
	var users []chat.User
	for _, msg := range messages {
		if seen[msg.User.ID] {
			continue
		}
		seen[msg.User.ID] = true
		users = append(users, msg.User)
	}
	return users
}

func runSend(cmd *cobra.Command, args []string) error {
	id, err := apiClient.CreateMessage(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := apiClient.SubscribeMessages(ctx, args[0])
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	out := cmd.OutOrStdout()
	theme := view.DefaultTheme
	for ev := range events {
		switch {
		case ev.Err != nil:
			return fmt.Errorf("live feed: %w", ev.Err)
		case ev.Message == nil:
			continue
		default:
			fmt.Fprintln(out, theme.FormatMessage(*ev.Message))
		}
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
