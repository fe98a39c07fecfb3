package main

import (
	"os"

	"github.com/dntrply/MedicationReminder-sub002/cmd/medivoice/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
