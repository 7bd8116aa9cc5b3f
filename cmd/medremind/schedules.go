package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/medremind/internal/model"
	"github.com/sandeepkv93/medremind/internal/surface"
)

func schedulesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Inspect and maintain the notification schedules",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				fmt.Fprintln(cmd.OutOrStdout(), renderSchedules(s.Schedules(ctx)))
				return nil
			})
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Run a scheduler pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				res, err := s.Check(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "via %s: %d schedule(s), reminder shown: %t, skipped: %t\n",
					s.Mode(), res.Schedules, res.NotificationShown, res.Skipped)
				return nil
			})
		},
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Re-arm a schedule for every untaken medicine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				return s.Sync(ctx)
			})
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete every schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				n, err := s.RemoveAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d schedule(s)\n", n)
				return nil
			})
		},
	}

	cmd.AddCommand(list, check, sync, clear)
	return cmd
}

func debugCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Diagnostics",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Ask the scheduler whether it is alive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				res, err := s.Ping(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (schedules=%d version=%s)\n", s.Mode(), res.Message, res.Schedules, res.Version)
				return nil
			})
		},
	})
	return cmd
}

func renderSchedules(scheds []model.Schedule) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "TIME", "DAILY", "NEXT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, s := range scheds {
		t.Row(s.ID, s.Name, s.Time, strconv.FormatBool(s.Daily), s.NextNotification.Local().Format(time.DateTime))
	}
	return t.String()
}
