package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/medremind/internal/model"
	"github.com/sandeepkv93/medremind/internal/surface"
)

func medCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "med",
		Short: "Manage the medicine list",
	}

	var daily bool
	add := &cobra.Command{
		Use:   "add <name> <HH:MM>",
		Short: "Add a medicine and arm its reminder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				med, err := s.Add(ctx, args[0], args[1], daily)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) at %s\n", med.Name, med.ID, med.Time)
				return nil
			})
		},
	}
	add.Flags().BoolVar(&daily, "daily", false, "Repeat every day")

	list := &cobra.Command{
		Use:   "list",
		Short: "List medicines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				meds, err := s.Medicines()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderMedicines(meds))
				return nil
			})
		},
	}

	take := &cobra.Command{
		Use:   "take <id-or-tag>",
		Short: "Mark a dose as taken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				med, err := s.Take(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s marked as taken\n", med.Name)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a medicine and its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				return s.Remove(ctx, args[0])
			})
		},
	}

	test := &cobra.Command{
		Use:   "test <id>",
		Short: "Show a reminder for a medicine right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSurface(cmd, flags, func(ctx context.Context, s *surface.Surface) error {
				return s.Test(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(add, list, take, remove, test)
	return cmd
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func renderMedicines(meds []model.Medicine) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "TIME", "DAILY", "TAKEN").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, m := range meds {
		t.Row(m.ID, m.Name, m.Time, strconv.FormatBool(m.Daily), strconv.FormatBool(m.Taken))
	}
	return t.String()
}
