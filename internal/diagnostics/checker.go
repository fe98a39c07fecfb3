// Package diagnostics validates the environment the pipeline depends
// on: external tools, the model directory, and the database location.
package diagnostics

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dntrply/MedicationReminder-sub002/internal/config"
	"github.com/dntrply/MedicationReminder-sub002/internal/models"
)

// Status is the result of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Item is one named check result.
type Item struct {
	ID      string
	Name    string
	Status  Status
	Message string
	Hint    string
}

// Report combines all check results.
type Report struct {
	GeneratedAt time.Time
	HasFailures bool
	Items       []Item
}

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(cfg *config.Config, manager *models.Manager) Report {
	items := []Item{
		c.checkTool(cfg.Engine.FFmpegBin),
		c.checkTool(cfg.Engine.FFprobeBin),
		c.checkTool(cfg.Engine.WhisperBin),
		c.checkWritableDir("models_dir", "Models directory", cfg.ModelsDir),
		c.checkWritableDir("database_dir", "Database directory", filepath.Dir(cfg.DatabasePath)),
		checkModel(manager),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == StatusFail {
			hasFailures = true
			break
		}
	}

	return Report{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(name string) Item {
	path, err := c.lookPath(name)
	if err != nil {
		return Item{
			ID:      "tool_" + name,
			Name:    name,
			Status:  StatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    "Install it and ensure the binary is available on PATH.",
		}
	}

	return Item{
		ID:      "tool_" + name,
		Name:    name,
		Status:  StatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkWritableDir validates a directory exists (creating it if
// needed) and accepts writes.
func (c *Checker) checkWritableDir(id, name, dir string) Item {
	item := Item{ID: id, Name: name}

	if strings.TrimSpace(dir) == "" {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("%s is empty.", name)
		item.Hint = "Set a valid path in the config file."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = StatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkModel reports whether the whisper-tiny artifact is resident.
func checkModel(manager *models.Manager) Item {
	item := Item{ID: "model_whisper_tiny", Name: "whisper-tiny model"}

	if manager.Present("whisper-tiny") {
		item.Status = StatusPass
		item.Message = fmt.Sprintf("Model resident: %s", manager.ModelFile("whisper-tiny"))
		return item
	}

	item.Status = StatusFail
	item.Message = "Model artifact not downloaded."
	item.Hint = "Run 'medivoice models download' on an unmetered connection."
	return item
}
