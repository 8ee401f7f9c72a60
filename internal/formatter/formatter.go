// package formatter renders a run report to various formats (plain text, Markdown, JSON, CSV)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/shared"
)

// Format is a report output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
)

// ParseFormat accepts a format name or common alias.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, name)
	}
}

// Render converts a report to the given format.
func Render(report *models.RunReport, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return ReportToText(report)
	case FormatMarkdown:
		return ReportToMarkdown(report)
	case FormatJSON:
		return ReportToJSON(report)
	case FormatCSV:
		return UnresolvedToCSV(report)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, format)
	}
}

// ReportToText converts a report to plain text.
func ReportToText(report *models.RunReport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Run: %s\n", report.RunID)
	fmt.Fprintf(&buf, "Source: %s\n", report.Source)
	if report.DryRun {
		buf.WriteString("Mode: dry run\n")
	}
	fmt.Fprintf(&buf, "Rows: %d  Resolved: %d  Skipped: %d  Duplicates: %d\n\n",
		report.Rows, report.Resolved, report.Skipped(), report.Duplicates)

	for _, p := range report.Playlists {
		fmt.Fprintf(&buf, "%s: %s\n", p.Destination, playlistStatus(p, report.DryRun))
	}

	if len(report.Unresolved) > 0 {
		buf.WriteString("\nSkipped rows:\n")
		for _, u := range report.Unresolved {
			fmt.Fprintf(&buf, "  %s\n", u)
		}
	}

	return buf.Bytes(), nil
}

// ReportToMarkdown converts a report to Markdown with a table of destinations.
func ReportToMarkdown(report *models.RunReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Playlist update\n\n")
	fmt.Fprintf(&buf, "**Run**: `%s`\n", report.RunID)
	fmt.Fprintf(&buf, "**Source**: %s\n", report.Source)
	if report.DryRun {
		buf.WriteString("**Mode**: dry run\n")
	}
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "| Rows | Resolved | Skipped | Duplicates |\n|---|---|---|---|\n| %d | %d | %d | %d |\n\n",
		report.Rows, report.Resolved, report.Skipped(), report.Duplicates)

	buf.WriteString("## Playlists\n\n")
	buf.WriteString("| Playlist | Max per artist | Selected | Written | Status |\n|---|---|---|---|---|\n")
	for _, p := range report.Playlists {
		fmt.Fprintf(&buf, "| %s | %d | %d | %d | %s |\n",
			escapeCell(p.Destination.String()), p.Destination.MaxPerArtist, p.Selected, p.Written,
			escapeCell(playlistStatus(p, report.DryRun)))
	}

	if len(report.Unresolved) > 0 {
		buf.WriteString("\n## Skipped rows\n\n")
		for _, u := range report.Unresolved {
			fmt.Fprintf(&buf, "- line %d: %s\n", u.Line, u.Reason)
		}
	}

	return buf.Bytes(), nil
}

type jsonPlaylist struct {
	Name         string `json:"name,omitempty"`
	ID           string `json:"id"`
	MaxPerArtist int    `json:"max_per_artist"`
	Selected     int    `json:"selected"`
	Written      int    `json:"written"`
	Batches      int    `json:"batches"`
	Error        string `json:"error,omitempty"`
}

type jsonUnresolved struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type jsonReport struct {
	RunID      string           `json:"run_id"`
	Source     string           `json:"source"`
	DryRun     bool             `json:"dry_run"`
	Rows       int              `json:"rows"`
	Resolved   int              `json:"resolved"`
	Skipped    int              `json:"skipped"`
	Duplicates int              `json:"duplicates"`
	Playlists  []jsonPlaylist   `json:"playlists"`
	Unresolved []jsonUnresolved `json:"unresolved,omitempty"`
}

// ReportToJSON converts a report to indented JSON.
func ReportToJSON(report *models.RunReport) ([]byte, error) {
	out := jsonReport{
		RunID:      report.RunID,
		Source:     report.Source,
		DryRun:     report.DryRun,
		Rows:       report.Rows,
		Resolved:   report.Resolved,
		Skipped:    report.Skipped(),
		Duplicates: report.Duplicates,
		Playlists:  make([]jsonPlaylist, 0, len(report.Playlists)),
	}
	for _, p := range report.Playlists {
		jp := jsonPlaylist{
			Name:         p.Destination.Name,
			ID:           p.Destination.ID,
			MaxPerArtist: p.Destination.MaxPerArtist,
			Selected:     p.Selected,
			Written:      p.Written,
			Batches:      p.Batches,
		}
		if p.Err != nil {
			jp.Error = p.Err.Error()
		}
		out.Playlists = append(out.Playlists, jp)
	}
	for _, u := range report.Unresolved {
		out.Unresolved = append(out.Unresolved, jsonUnresolved{Line: u.Line, Reason: u.Reason})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// UnresolvedToCSV lists skipped rows with columns: Line, Reason, Title, Artist
func UnresolvedToCSV(report *models.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Line", "Reason", "Title", "Artist"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, u := range report.Unresolved {
		record := []string{
			strconv.Itoa(u.Line),
			u.Reason,
			u.Row.Get("title", "name"),
			u.Row.Get("artist", "artists"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteReport renders a report and writes it to path.
func WriteReport(report *models.RunReport, path string, format Format) error {
	data, err := Render(report, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

func playlistStatus(p models.PlaylistResult, dryRun bool) string {
	switch {
	case p.Err != nil:
		return fmt.Sprintf("failed after %d/%d tracks: %v", p.Written, p.Selected, p.Err)
	case dryRun:
		return fmt.Sprintf("%d tracks selected (not written)", p.Selected)
	default:
		return fmt.Sprintf("%d tracks written in %d batches", p.Written, p.Batches)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
