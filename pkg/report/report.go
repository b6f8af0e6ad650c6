// Package report renders simulation results for people and for tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/boristopalov/cleaner/pkg/core"
	"gopkg.in/yaml.v3"
)

const (
	// maxListed is the longest action sequence printed in full.
	maxListed = 50
	// edgeListed actions are kept at each end of a truncated sequence.
	edgeListed = 25
)

var banner = strings.Repeat("=", 60)

// Write renders results to w as "text", "json" or "yaml".
func Write(w io.Writer, results core.Results, format string) error {
	switch format {
	case "", "text":
		return writeText(w, results)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown output format: %s", format)
}

// WriteStart prints the run header shown before the simulation starts.
func WriteStart(w io.Writer, rooms, steps int, initial []int, energy float64) error {
	_, err := fmt.Fprintf(w, "Starting simulation with %d rooms and max %d steps\nInitial dirtiness: %s\nInitial energy: %.1f\n",
		rooms, steps, FormatLevels(initial), energy)
	return err
}

func writeText(w io.Writer, r core.Results) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\nSIMULATION RESULTS\n%s\n", banner, banner)
	fmt.Fprintf(&b, "Final room states (0=clean, 1-5=dirty): %s\n", FormatLevels(r.FinalRoomStates))
	fmt.Fprintf(&b, "Number of rooms cleaned: %d\n", r.RoomsCleaned)
	fmt.Fprintf(&b, "Total energy consumed: %.1f\n", r.TotalEnergyConsumed)
	fmt.Fprintf(&b, "Final remaining energy: %.1f\n", r.FinalRemainingEnergy)
	fmt.Fprintf(&b, "Steps executed: %d\n", r.StepsExecuted)
	fmt.Fprintf(&b, "Termination reason: %s\n", r.TerminationReason)
	fmt.Fprintf(&b, "\nAction sequence (%d actions):\n%s\n", len(r.ActionSequence), FormatSequence(r.ActionLabels()))

	_, err := io.WriteString(w, b.String())
	return err
}

// FormatSequence joins labels with " -> ". Sequences longer than 50 keep
// only the first and last 25 entries around an ellipsis.
func FormatSequence(labels []string) string {
	if len(labels) <= maxListed {
		return strings.Join(labels, " -> ")
	}
	return strings.Join(labels[:edgeListed], " -> ") + " -> ... -> " + strings.Join(labels[len(labels)-edgeListed:], " -> ")
}

// FormatLevels renders dirtiness levels as [1, 0, 3].
func FormatLevels(levels []int) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = strconv.Itoa(l)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
