package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/barber-booking-bot/internal/app/bootstrap"
	"github.com/wolfman30/barber-booking-bot/internal/conversation"
	"github.com/wolfman30/barber-booking-bot/internal/session"
)

func newChatCmd(c *cli) *cobra.Command {
	var (
		backend string
		chatID  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the booking dialogue from the terminal",
		Long:  "chat runs the dialogue in process, one line per message. Bookings go to the in-memory calendar unless --calendar=google is given. Type /salir to quit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := c.appointments(ctx, backend)
			if err != nil {
				return err
			}
			extractor, closeNLU, err := bootstrap.BuildExtractor(ctx, c.cfg, svc.Catalog(), bootstrap.NewAWSLoader(c.cfg), nil, c.logger)
			if err != nil {
				return err
			}
			defer closeNLU()

			machine := conversation.NewMachine(session.NewMemoryStore(c.cfg.SessionTTL), svc,
				conversation.WithExtractor(extractor),
				conversation.WithGate(bootstrap.Gate(c.cfg)),
				conversation.WithBusinessName(c.cfg.BusinessName),
				conversation.WithMachineLogger(c.logger),
			)
			sessionID := conversation.SessionKey(conversation.ChannelCLI, chatID)

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprint(out, "> ")
			for scanner.Scan() {
				text := strings.TrimSpace(scanner.Text())
				if text == "/salir" || text == "/quit" {
					return nil
				}
				if text == "" {
					fmt.Fprint(out, "> ")
					continue
				}
				replies, err := machine.Handle(ctx, sessionID, text)
				if err != nil {
					return err
				}
				for _, r := range replies {
					fmt.Fprintln(out, r)
					fmt.Fprintln(out)
				}
				fmt.Fprint(out, "> ")
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&backend, "calendar", "memory", "Calendar backend (memory|google)")
	cmd.Flags().StringVar(&chatID, "as", "local", "Chat id of the simulated customer")

	return cmd
}
