package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/wolfman30/barber-booking-bot/internal/app/bootstrap"
	"github.com/wolfman30/barber-booking-bot/internal/appointments"
	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	appconfig "github.com/wolfman30/barber-booking-bot/internal/config"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

type cli struct {
	cfg    *appconfig.Config
	logger *logging.Logger
}

func newRootCmd(cfg *appconfig.Config) *cobra.Command {
	c := &cli{cfg: cfg, logger: logging.NewWithWriter(cfg.LogLevel, io.Discard)}

	rootCmd := &cobra.Command{
		Use:           "bookingctl",
		Short:         "Operator tool for the barbershop booking bot",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				c.logger = logging.NewWithWriter("debug", cmd.ErrOrStderr())
			}
		},
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "Log to stderr")

	rootCmd.AddCommand(
		newSlotsCmd(c),
		newChatCmd(c),
		newTokenCmd(c),
		newCatalogCmd(c),
		newCalendarCmd(c),
	)
	return rootCmd
}

func (c *cli) catalog() (*catalog.Catalog, error) {
	return bootstrap.BuildCatalog(c.cfg)
}

// appointments builds the lifecycle service on the named calendar backend.
func (c *cli) appointments(ctx context.Context, backend string) (*appointments.Service, error) {
	cat, err := c.catalog()
	if err != nil {
		return nil, err
	}
	cfg := *c.cfg
	if backend != "" {
		cfg.CalendarBackend = backend
	}
	repo, err := bootstrap.BuildCalendar(ctx, &cfg, cat, nil, c.logger)
	if err != nil {
		return nil, err
	}
	engine := schedule.NewEngine(schedule.DefaultHours(), cfg.MinAdvanceHours, cfg.Location())
	return appointments.NewService(repo, cat, engine,
		appointments.WithSearchWindow(cfg.SearchWindow),
		appointments.WithLogger(c.logger),
	), nil
}
