// Package cmd implements the medivoice CLI.
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dntrply/MedicationReminder-sub002/internal/audio"
	"github.com/dntrply/MedicationReminder-sub002/internal/config"
	"github.com/dntrply/MedicationReminder-sub002/internal/models"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "medivoice",
	Short: "On-device voice note transcription",
	Long: `medivoice transcribes recorded voice notes on-device.

Clips are decoded to 16 kHz mono PCM, transcribed by a local compact
whisper model, and the transcript plus detected language is written
back to the owning voice note. Model artifacts download only on
unmetered networks with storage headroom.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ~/.config/medivoice/config.yaml)")
}

// loadConfig loads the config from the --config path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, cfg.Validate()
	}

	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// newManager builds the artifact manager from config.
func newManager(cfg *config.Config) *models.Manager {
	return models.NewManager(cfg.ModelsDir, models.Policy{
		MinFreeStorageBytes: cfg.Download.MinFreeStorageMB * 1024 * 1024,
		MaxAttempts:         cfg.Download.MaxAttempts,
		Timeout:             cfg.Download.Timeout,
	})
}

// newCodec builds the audio codec from config.
func newCodec(cfg *config.Config) *audio.Codec {
	return audio.NewCodec(cfg.Engine.FFmpegBin, cfg.Engine.FFprobeBin)
}
