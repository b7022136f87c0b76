// Command bookingctl is the operator tool for the booking bot: it checks
// availability, chats with the dialogue locally, issues admin tokens and
// authorizes the Google Calendar account.
package main

import (
	"fmt"
	"os"

	appconfig "github.com/wolfman30/barber-booking-bot/internal/config"
)

func main() {
	if err := appconfig.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}
	if err := newRootCmd(appconfig.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}
