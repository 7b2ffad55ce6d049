package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/askesis/askesis/internal/bitlog"
)

var bitlogCmd = &cobra.Command{
	Use:   "bitlog",
	Short: "Inspect the packed per-month completion logs directly",
}

var bitlogDumpCmd = &cobra.Command{
	Use:   "dump <habit-id> <yyyy-mm>",
	Short: "Print every recorded (day, time, status) triple for a habit's month",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		habitID, month := args[0], args[1]

		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())

		key := bitlog.Key(habitID, month)
		raw := a.actions.State().MonthlyLogs.Raw(key)
		if raw == nil {
			fmt.Fprintf(os.Stdout, "%s: no entries\n", key)
			return nil
		}

		for day := 1; day <= 31; day++ {
			date := fmt.Sprintf("%s-%02d", month, day)
			for _, t := range bitlog.AllTimes {
				status, err := a.actions.State().MonthlyLogs.GetStatus(habitID, date, t)
				if err != nil || status == bitlog.StatusNull {
					continue
				}
				fmt.Fprintf(os.Stdout, "%s %-9s %s\n", date, t, status)
			}
		}
		return nil
	},
}

func init() {
	bitlogCmd.AddCommand(bitlogDumpCmd)
	rootCmd.AddCommand(bitlogCmd)
}
