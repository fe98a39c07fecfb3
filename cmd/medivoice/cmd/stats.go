package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dntrply/MedicationReminder-sub002/internal/stats"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Inspect transcription statistics",
}

var statsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transcription attempts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := stats.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(cmd.Context(), statsLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No transcription attempts recorded.")
			return nil
		}

		for _, st := range records {
			line := fmt.Sprintf("%s  %-7s  %-12s  %5.1fs audio", st.StartTime.Format("2006-01-02 15:04:05"), st.Status, st.EngineID, st.AudioDurationSeconds)
			switch st.Status {
			case stats.StatusSuccess:
				line += fmt.Sprintf("  %4d chars  lang=%s  %.2fx", st.TranscriptionLength, st.DetectedLanguage, st.SpeedRatio)
			case stats.StatusFailed:
				line += "  " + st.ErrorMessage
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	statsListCmd.Flags().IntVar(&statsLimit, "limit", 20, "maximum records to list")
	statsCmd.AddCommand(statsListCmd)
	rootCmd.AddCommand(statsCmd)
}
