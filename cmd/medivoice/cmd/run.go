package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dntrply/MedicationReminder-sub002/internal/device"
	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
	"github.com/dntrply/MedicationReminder-sub002/internal/engine"
	"github.com/dntrply/MedicationReminder-sub002/internal/job"
	"github.com/dntrply/MedicationReminder-sub002/internal/notes"
	"github.com/dntrply/MedicationReminder-sub002/internal/stats"

	_ "github.com/mattn/go-sqlite3"
)

var (
	runEntityID string
	runConsent  bool
)

var runCmd = &cobra.Command{
	Use:   "run <audio-file>",
	Short: "Transcribe a recorded voice note",
	Long: `Schedules and executes one transcription attempt for a clip.

Without --entity a new voice note is registered for the clip first.
With --consent=false nothing happens at all; that is the feature's
disabled state, not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runEntityID, "entity", "", "id of the voice note owning this clip (default: register a new note)")
	runCmd.Flags().BoolVar(&runConsent, "consent", true, "user consent for on-device audio processing")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	audioPath := args[0]
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	store, err := stats.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	repo, err := notes.NewRepo(db)
	if err != nil {
		return err
	}

	entityID := runEntityID
	if entityID == "" {
		note, err := repo.Create(ctx, audioPath)
		if err != nil {
			return err
		}
		entityID = note.ID
		fmt.Printf("Registered voice note %s\n", entityID)
	}

	manager := newManager(cfg)
	codec := newCodec(cfg)
	collector := device.NewCollector(cfg.ModelsDir, nil)

	j := job.New(store, repo, codec, manager, func(snap domain.DeviceSnapshot) engine.Engine {
		return engine.Select(snap, cfg.Engine, manager)
	}, collector)

	scheduler := job.NewScheduler(store, codec, inlineRunner{ctx: ctx}, j)
	if err := scheduler.Schedule(ctx, entityID, audioPath, runConsent); err != nil {
		return err
	}
	if !runConsent {
		fmt.Println("Consent not granted; nothing to do.")
		return nil
	}

	st, err := store.FindPendingFor(ctx, entityID, audioPath)
	if err == nil && st == nil {
		printLatest(ctx, store, entityID, audioPath)
	}
	return nil
}

// inlineRunner executes tasks synchronously. The CLI host is assumed
// plugged in; the background pool with real constraint deferral serves
// embedded hosts.
type inlineRunner struct {
	ctx context.Context
}

func (r inlineRunner) Submit(_ string, task job.Task, _ job.Constraints) {
	task(r.ctx)
}

// printLatest shows the terminal record for the pair just processed.
func printLatest(ctx context.Context, store *stats.SQLiteStore, entityID, audioPath string) {
	records, err := store.List(ctx, 50)
	if err != nil {
		return
	}
	for _, st := range records {
		if st.EntityID != entityID || st.AudioPath != audioPath {
			continue
		}
		switch st.Status {
		case stats.StatusSuccess:
			fmt.Printf("Transcribed in %s (%s, lang=%s):\n%s\n",
				time.Duration(st.DurationMs)*time.Millisecond, st.EngineID, st.DetectedLanguage, st.TranscriptionText)
		case stats.StatusFailed:
			fmt.Printf("Transcription failed: %s\n", st.ErrorMessage)
		}
		return
	}
}
