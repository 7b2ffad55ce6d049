package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/askesis/askesis/internal/bitlog"
	"github.com/askesis/askesis/internal/model"
)

var habitCmd = &cobra.Command{
	Use:   "habit",
	Short: "Manage habits",
}

var habitAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new habit (or resurrect a matching deleted or ended habit)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		times, err := parseTimes(cmd)
		if err != nil {
			return err
		}
		since, _ := cmd.Flags().GetString("since")
		date, err := resolveDateFlag(since)
		if err != nil {
			return err
		}

		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())

		schedule := model.HabitSchedule{
			Name:      args[0],
			Times:     times,
			Frequency: model.Daily(),
			Goal:      model.CheckGoal(),
		}
		id, err := a.actions.SaveHabitFromModal(cmd.Context(), nil, schedule, date)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, id)
		return nil
	},
}

var habitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits; deleted (tombstoned) habits only with --all",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())

		for _, h := range a.actions.State().Habits {
			if !all && h.IsTombstone() {
				continue
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\n", h.ID, h.LastScheduleName())
		}
		return nil
	},
}

var habitToggleCmd = &cobra.Command{
	Use:   "toggle <habit-id> <date> <time>",
	Short: "Advance a habit's status one step for the given date and time",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTime(args[2])
		if err != nil {
			return err
		}
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())

		return a.actions.ToggleHabitStatus(cmd.Context(), args[0], model.Date(args[1]), t)
	},
}

var habitEndCmd = &cobra.Command{
	Use:   "end <habit-id> <date>",
	Short: "Close a habit's current schedule without deleting its history",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())
		return a.actions.RequestHabitEndingFromModal(cmd.Context(), args[0], model.Date(args[1]))
	},
}

var habitDeleteCmd = &cobra.Command{
	Use:   "delete <habit-id>",
	Short: "Permanently delete a habit (tombstone + purge logs)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())

		if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintf(os.Stdout, "permanently delete habit %s and purge its history? [y/N] ", args[0])
			var reply string
			fmt.Fscanln(os.Stdin, &reply)
			if !strings.EqualFold(reply, "y") && !strings.EqualFold(reply, "yes") {
				fmt.Fprintln(os.Stdout, "aborted")
				return nil
			}
		}

		return a.actions.RequestHabitPermanentDeletion(cmd.Context(), args[0])
	},
}

var habitGraduateCmd = &cobra.Command{
	Use:   "graduate <habit-id> <date>",
	Short: "Mark a habit graduated as of date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())
		return a.actions.GraduateHabit(cmd.Context(), args[0], model.Date(args[1]))
	},
}

func parseTimes(cmd *cobra.Command) ([]bitlog.Time, error) {
	raw, _ := cmd.Flags().GetStringSlice("time")
	if len(raw) == 0 {
		raw = []string{"morning"}
	}
	times := make([]bitlog.Time, 0, len(raw))
	for _, r := range raw {
		t, err := parseTime(r)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, nil
}

func parseTime(s string) (bitlog.Time, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "morning":
		return bitlog.Morning, nil
	case "afternoon":
		return bitlog.Afternoon, nil
	case "evening":
		return bitlog.Evening, nil
	default:
		return 0, fmt.Errorf("askesis: unknown time %q (want morning, afternoon, or evening)", s)
	}
}

func resolveDateFlag(raw string) (model.Date, error) {
	if raw == "" {
		return todayDate(), nil
	}
	return parseNaturalDate(raw)
}

func init() {
	habitAddCmd.Flags().StringSlice("time", nil, "scheduled time(s): morning, afternoon, evening")
	habitAddCmd.Flags().String("since", "", "effective date (natural language, e.g. \"today\", \"last monday\"); defaults to today")
	habitListCmd.Flags().Bool("all", false, "include deleted (tombstoned) habits")

	habitCmd.AddCommand(habitAddCmd, habitListCmd, habitToggleCmd, habitEndCmd, habitDeleteCmd, habitGraduateCmd)
	rootCmd.AddCommand(habitCmd)
}
