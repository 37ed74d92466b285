// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/boot-release/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// shortSHA is how many hex digits of a checksum are shown
	shortSHA = 12
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintPlatforms outputs the platform descriptor table
func (p *Printer) PrintPlatforms(platforms []types.PlatformDescriptor) {
	if len(platforms) == 0 {
		return
	}

	var sb strings.Builder
	for _, d := range platforms {
		sb.WriteString(fmt.Sprintf("%-14s %-9s -> %s\n", d.PlatformID, d.RawArtifactName, d.PublishedAssetName))
		if d.Target != "" {
			sb.WriteString(fmt.Sprintf("  target: %s\n", d.Target))
		}
	}

	p.printBox(fmt.Sprintf("TARGET PLATFORMS (%d)", len(platforms)), sb.String())
}

// PrintMatch outputs whether a reference triggers a run
func (p *Printer) PrintMatch(reference, pattern string, matched bool) {
	verdict := "skip"
	if matched {
		verdict = "release"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Reference: %s\n", reference))
	sb.WriteString(fmt.Sprintf("Pattern:   %s\n", pattern))
	sb.WriteString(fmt.Sprintf("Decision:  %s\n", verdict))

	p.printBox("TRIGGER", sb.String())
}

// PrintRunSummary outputs the terminal status of every platform and, on
// success, the release identifier and attached artifacts
func (p *Printer) PrintRunSummary(summary *types.RunSummary) {
	if summary == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Run:       %s\n", summary.RunID))
	sb.WriteString(fmt.Sprintf("Reference: %s\n", summary.Reference))
	if summary.Skipped {
		sb.WriteString("State:     skipped (reference does not match)\n")
		p.printBox("RELEASE RUN", sb.String())
		return
	}

	state := string(summary.State)
	if summary.FailureStage != "" {
		state = fmt.Sprintf("%s (%s stage)", state, summary.FailureStage)
	}
	sb.WriteString(fmt.Sprintf("State:     %s\n", state))
	if !summary.FinishedAt.IsZero() && !summary.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Duration:  %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond)))
	}
	sb.WriteString("\n")

	if len(summary.Jobs) > 0 {
		sb.WriteString("Builds:\n")
		for _, j := range summary.Jobs {
			icon := "✓"
			if j.Status != types.JobSucceeded {
				icon = "✗"
			}
			sb.WriteString(fmt.Sprintf("  %s %-14s %s\n", icon, j.Descriptor.PlatformID, j.Status))
			if j.Error != "" {
				sb.WriteString(fmt.Sprintf("      %s\n", j.Error))
			}
		}
		sb.WriteString("\n")
	}

	if len(summary.Artifacts) > 0 {
		sb.WriteString("Artifacts:\n")
		for _, a := range summary.Artifacts {
			sum := a.SHA256
			if len(sum) > shortSHA {
				sum = sum[:shortSHA]
			}
			sb.WriteString(fmt.Sprintf("  %-24s %8d  %s\n", a.Key, a.Size, sum))
		}
		sb.WriteString("\n")
	}

	if summary.Release != nil {
		r := summary.Release
		sb.WriteString(fmt.Sprintf("Release:   %s (id %d)\n", r.Tag, r.ID))
		if r.URL != "" {
			sb.WriteString(fmt.Sprintf("URL:       %s\n", r.URL))
		}
		sb.WriteString("Attached:\n")
		for _, name := range r.AttachedArtifacts {
			sb.WriteString(fmt.Sprintf("  • %s\n", name))
		}
	}

	if len(summary.UploadFailures) > 0 {
		sb.WriteString("Upload failures:\n")
		for _, f := range summary.UploadFailures {
			sb.WriteString(fmt.Sprintf("  ✗ %s: %s\n", f.Key, f.Error))
		}
	}

	p.printBox("RELEASE RUN", sb.String())
}
