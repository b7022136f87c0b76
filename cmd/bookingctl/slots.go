package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	"github.com/wolfman30/barber-booking-bot/internal/schedule"
)

func newSlotsCmd(c *cli) *cobra.Command {
	var (
		staffRaw   string
		serviceRaw string
		dateRaw    string
		classRaw   string
		backend    string
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List free start times for a barber, service and day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.appointments(cmd.Context(), backend)
			if err != nil {
				return err
			}
			cat := svc.Catalog()
			staff, ok := findStaff(cat, staffRaw)
			if !ok {
				return fmt.Errorf("unknown staff %q", staffRaw)
			}
			service, ok := findService(cat, serviceRaw)
			if !ok {
				return fmt.Errorf("unknown service %q", serviceRaw)
			}
			class, ok := schedule.ParseClass(strings.ToLower(classRaw))
			if !ok {
				return fmt.Errorf("class must be general or extra")
			}

			now := time.Now()
			date := svc.Engine().Today(now)
			if dateRaw != "" {
				if date, err = schedule.ParseDate(dateRaw); err != nil {
					return fmt.Errorf("date must be DD/MM/YYYY: %w", err)
				}
			}

			list, err := svc.Slots(cmd.Context(), staff, service, date, class, nil, now)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s · %s · %s (%s)\n", staff.Name, service.Name, list.Date, list.Class)
			if list.Empty() {
				fmt.Fprintf(out, "sin horarios disponibles (%s)\n", list.Reason)
				return nil
			}
			fmt.Fprintln(out, strings.Join(list.Strings(), "  "))
			return nil
		},
	}

	cmd.Flags().StringVar(&staffRaw, "staff", "", "Barber id or name")
	cmd.Flags().StringVar(&serviceRaw, "service", "", "Service id or name")
	cmd.Flags().StringVar(&dateRaw, "date", "", "Day as DD/MM/YYYY (default today)")
	cmd.Flags().StringVar(&classRaw, "class", "general", "Schedule class (general|extra)")
	cmd.Flags().StringVar(&backend, "calendar", "", "Calendar backend override (google|memory)")
	_ = cmd.MarkFlagRequired("staff")
	_ = cmd.MarkFlagRequired("service")

	return cmd
}

func findStaff(cat *catalog.Catalog, raw string) (catalog.StaffMember, bool) {
	if id, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return cat.StaffByID(id)
	}
	return cat.MatchStaff(raw)
}

func findService(cat *catalog.Catalog, raw string) (catalog.Service, bool) {
	if id, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return cat.ServiceByID(id)
	}
	return cat.MatchService(raw)
}
