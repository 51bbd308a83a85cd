package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/practitioner-schedule/internal/app"
	"github.com/hackgods/practitioner-schedule/internal/config"
	"github.com/hackgods/practitioner-schedule/internal/logging"
	"github.com/hackgods/practitioner-schedule/internal/schedule"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "schedulectl",
		Short: "Inspect and maintain practitioner schedules",
	}

	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(windowCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(propagateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// previewCmd partitions a range without touching storage.
func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the slots a session range would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			granularity, _ := cmd.Flags().GetInt("granularity")

			start, err := schedule.ParseTimeOfDay(startStr)
			if err != nil {
				return err
			}
			end, err := schedule.ParseTimeOfDay(endStr)
			if err != nil {
				return err
			}

			slots, err := schedule.Partition(start, end, granularity)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSTART\tEND\tSTATUS")
			for i, sl := range slots {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, sl.Start, sl.End, sl.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("start", "09:00", "Session start (HH:MM)")
	cmd.Flags().String("end", "10:00", "Session end (HH:MM)")
	cmd.Flags().Int("granularity", 10, "Slot width in minutes")
	return cmd
}

func windowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Print the dates a finalized day propagates to",
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor, err := anchorFlag(cmd)
			if err != nil {
				return err
			}
			for _, d := range schedule.Window(anchor) {
				fmt.Fprintln(cmd.OutOrStdout(), schedule.FormatDate(d))
			}
			return nil
		},
	}
	cmd.Flags().String("date", "", "Anchor date (YYYY-MM-DD), defaults to today")
	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored schedule day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *schedule.Service, key schedule.DayKey) error {
				day, err := svc.OpenDay(ctx, key)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				st := day.Stats()
				fmt.Fprintf(out, "%s  practitioner=%s location=%s\n", schedule.FormatDate(day.Date), day.PractitionerID, day.LocationID)
				fmt.Fprintf(out, "sessions=%d slots=%d available=%d queue=%d\n\n", st.Sessions, st.TotalSlots, st.AvailableSlots, st.WaitingQueue)

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SESSION\tRANGE\tSTATE\tSLOTS")
				for _, sess := range day.Sessions() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", sess.ID, sess.Range(), sess.State, len(sess.Slots))
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				fmt.Fprintln(out, "\nwaiting queue:")
				tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for entry := range day.WaitingQueue() {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", entry.Slot.Range(), entry.Slot.Status, entry.SessionID)
				}
				return tw.Flush()
			})
		},
	}
	dayFlags(cmd)
	return cmd
}

// propagateCmd replays a stored day over its window, for resyncing after a
// deletion or retrying a run that stopped partway.
func propagateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Re-propagate a stored schedule day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *schedule.Service, key schedule.DayKey) error {
				res, err := svc.Propagate(ctx, key)
				if res != nil {
					for _, d := range res.Succeeded {
						fmt.Fprintf(cmd.OutOrStdout(), "saved   %s\n", schedule.FormatDate(d))
					}
					if res.FailedDate != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", schedule.FormatDate(*res.FailedDate))
					}
				}
				return err
			})
		},
	}
	dayFlags(cmd)
	return cmd
}

func dayFlags(cmd *cobra.Command) {
	cmd.Flags().String("practitioner", "", "Practitioner ID")
	cmd.Flags().String("location", "", "Location ID")
	cmd.Flags().String("date", "", "Schedule date (YYYY-MM-DD), defaults to today")
	_ = cmd.MarkFlagRequired("practitioner")
	_ = cmd.MarkFlagRequired("location")
}

func anchorFlag(cmd *cobra.Command) (time.Time, error) {
	s, _ := cmd.Flags().GetString("date")
	if s == "" {
		return schedule.DateOf(time.Now()), nil
	}
	return schedule.ParseDate(s)
}

func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *schedule.Service, key schedule.DayKey) error) error {
	practitionerID, _ := cmd.Flags().GetString("practitioner")
	locationID, _ := cmd.Flags().GetString("location")
	date, err := anchorFlag(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New("schedulectl", cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a.Service, schedule.DayKey{PractitionerID: practitionerID, LocationID: locationID, Date: date})
}
