package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dntrply/MedicationReminder-sub002/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check tools, directories, and model residency",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		report := diagnostics.NewChecker().Run(cfg, newManager(cfg))
		for _, item := range report.Items {
			mark := "ok  "
			if item.Status == diagnostics.StatusFail {
				mark = "FAIL"
			}
			fmt.Printf("  [%s] %-20s %s\n", mark, item.Name, item.Message)
			if item.Hint != "" && item.Status == diagnostics.StatusFail {
				fmt.Printf("         hint: %s\n", item.Hint)
			}
		}

		if report.HasFailures {
			return fmt.Errorf("environment checks failed")
		}
		fmt.Println("All checks passed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
