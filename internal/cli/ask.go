package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/routing"
)

// printSender writes replies to a terminal instead of WhatsApp.
type printSender struct {
	w io.Writer
}

func (p printSender) Send(_ context.Context, msg domain.OutboundMessage) error {
	_, err := fmt.Fprintln(p.w, msg.Body)
	return err
}

func newAskCmd() *cobra.Command {
	var (
		chatID string
		name   string
		group  string
	)

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Run one message through the bot and print the reply",
		Long: "ask feeds a message through the same pipeline as WhatsApp traffic, using the " +
			"configured store and inference provider, and prints the reply. History and " +
			"memories are read and written under --chat.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := checkConfig(&cfg); err != nil {
				return err
			}

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			msg := domain.InboundMessage{
				ID:        uuid.NewString(),
				From:      chatID,
				FromName:  name,
				ChatID:    chatID,
				ChatType:  domain.ChatTypeDM,
				Content:   domain.Content{Conversation: strings.Join(args, " ")},
				Timestamp: time.Now().UTC(),
			}
			if group != "" {
				msg.ChatID = group
				msg.ChatType = domain.ChatTypeGroup
			}

			router := routing.NewRouter(cfg.Routing, a.conversations, a.runner, printSender{w: cmd.OutOrStdout()}, a.dedupe, log)
			router.HandleInbound(cmd.Context(), msg)

			if stats := router.Stats(); stats.Replied == 0 {
				return fmt.Errorf("no reply (ignored=%d, send failures=%d)", stats.Ignored, stats.SendFailures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&chatID, "chat", "cli@s.whatsapp.net", "sender ID; history is kept per sender")
	cmd.Flags().StringVar(&name, "name", "", "sender display name")
	cmd.Flags().StringVar(&group, "group", "", "ask as a group message in this group ID (needs the trigger prefix)")
	return cmd
}
