package tui

import (
	"fmt"
	"slices"

	"github.com/pithecene-io/runnel/cli/reader"
)

// View types accepted by Run.
const (
	ViewTranscript = "inspect_transcript"
	ViewStats      = "inspect_stats"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI or the payload has
// the wrong type.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	switch viewType {
	case ViewTranscript:
		resp, ok := data.(*reader.TranscriptResponse)
		if !ok {
			return fmt.Errorf("invalid data type %T for %s", data, viewType)
		}
		return RunTranscriptTUI(resp)
	case ViewStats:
		resp, ok := data.(*reader.StatsResponse)
		if !ok {
			return fmt.Errorf("invalid data type %T for %s", data, viewType)
		}
		return RunStatsTUI(resp)
	}

	return fmt.Errorf("unknown view type: %s", viewType)
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only inspect subcommands support TUI.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewTranscript, ViewStats}
}
