package main

import (
	"context"
	"fmt"

	"github.com/upstreamhub/csv2spotify/internal/shared"
	"github.com/upstreamhub/csv2spotify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Inspect loads the CSV and prints the route each row would take. No Spotify credentials are needed.
func (r *Runner) Inspect(ctx context.Context, cmd *cli.Command) error {
	source := r.config.CSV.Path
	if source == "" {
		return fmt.Errorf("%w: no CSV source configured", shared.ErrMissingArgument)
	}

	rows, err := r.rowLoader(r.logger).Load(ctx, source)
	if err != nil {
		return err
	}

	inspections, summary := tasks.Inspect(rows)

	if err := r.writePlain("%s\n", r.painter.Title(fmt.Sprintf("Routing for %s", source))); err != nil {
		return err
	}
	for _, ri := range inspections {
		route := "search"
		switch {
		case ri.ID != "":
			route = "id " + ri.ID
		case ri.Unresolvable():
			route = r.painter.Warn("skip")
		}

		cjk := ""
		if ri.CJK {
			cjk = " [CJK]"
		}
		if err := r.writePlain("%4d  %-30s  %s%s\n", ri.Line, displayTitle(ri), route, cjk); err != nil {
			return err
		}
	}

	return r.writePlainln("Rows: %d  By id: %d  By search: %d  Unresolvable: %d  CJK titles: %d",
		summary.Rows, summary.Identifiers, summary.Searches, summary.Unresolvable, summary.CJK)
}

func displayTitle(ri tasks.RowInspection) string {
	title := ri.Title
	if title == "" {
		title = "(no title)"
	}
	if ri.Artist != "" {
		title = ri.Artist + " - " + title
	}
	if r := []rune(title); len(r) > 30 {
		title = string(r[:29]) + "…"
	}
	return title
}
