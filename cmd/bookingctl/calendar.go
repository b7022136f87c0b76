package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/barber-booking-bot/internal/calendar"
)

func newCalendarCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Manage the Google Calendar connection",
	}
	cmd.AddCommand(newCalendarAuthCmd(c))
	return cmd
}

func newCalendarAuthCmd(c *cli) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize the shop's Google account and save the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			oauthCfg, err := calendar.OAuthConfig(c.cfg.GoogleCredentialsFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if code == "" {
				fmt.Fprintln(out, "Abre este enlace, autoriza la cuenta y pega el código:")
				fmt.Fprintln(out, calendar.AuthURL(oauthCfg))
				fmt.Fprint(out, "código: ")
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if !scanner.Scan() {
					if err := scanner.Err(); err != nil {
						return err
					}
					return errors.New("no authorization code given")
				}
				code = strings.TrimSpace(scanner.Text())
			}
			if code == "" {
				return errors.New("no authorization code given")
			}
			if _, err := calendar.ExchangeCode(cmd.Context(), oauthCfg, code, c.cfg.GoogleTokenFile); err != nil {
				return err
			}
			fmt.Fprintf(out, "token guardado en %s\n", c.cfg.GoogleTokenFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code (prompted when empty)")

	return cmd
}
