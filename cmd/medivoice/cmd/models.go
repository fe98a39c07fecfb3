package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dntrply/MedicationReminder-sub002/internal/device"
	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
	"github.com/dntrply/MedicationReminder-sub002/internal/models"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage model artifacts",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known model artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manager := newManager(cfg)

		for _, a := range models.Catalog() {
			state := "absent"
			if manager.Present(a.ID) {
				state = "present"
			}
			fmt.Printf("  %-14s %-18s %-8s %s\n", a.ID, a.FileName, a.SizeLabel, state)
		}
		return nil
	},
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download [id]",
	Short: "Download a model artifact",
	Long: `Downloads a model artifact from its well-known URL.

The transfer only starts on an unmetered network with at least the
configured free-storage headroom; the downloaded file is discarded
unless its size verifies against the catalog.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := "whisper-tiny"
		if len(args) == 1 {
			id = args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manager := newManager(cfg)

		collector := device.NewCollector(cfg.ModelsDir, nil)
		snap, err := collector.Snapshot()
		if err != nil {
			return err
		}

		switch manager.CanDownload(id, snap) {
		case domain.AlreadyPresent:
			fmt.Printf("Model %s already present: %s\n", id, manager.ModelFile(id))
			return nil
		case domain.NoWifi:
			return fmt.Errorf("network is metered, refusing to download")
		case domain.InsufficientStorage:
			return fmt.Errorf("insufficient free storage (floor: %d MB)", cfg.Download.MinFreeStorageMB)
		}

		fmt.Printf("Downloading %s...\n", id)
		err = manager.Download(cmd.Context(), id, snap, func(written, total int64) {
			if total > 0 {
				fmt.Printf("\r  %.1f MB / %.1f MB (%.0f%%)",
					float64(written)/(1024*1024),
					float64(total)/(1024*1024),
					float64(written)/float64(total)*100)
			} else {
				fmt.Printf("\r  %.1f MB downloaded", float64(written)/(1024*1024))
			}
		})
		fmt.Println()
		if err != nil {
			return err
		}

		fmt.Printf("Installed: %s\n", manager.ModelFile(id))
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDownloadCmd)
	rootCmd.AddCommand(modelsCmd)
}
