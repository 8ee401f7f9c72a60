package tasks

import (
	"unicode"

	"github.com/upstreamhub/csv2spotify/internal/models"
)

// RowInspection describes how a row would be routed, without any network calls.
type RowInspection struct {
	Line   int
	Title  string
	Artist string
	ID     string // empty when the row would need a catalog search
	CJK    bool   // title contains Han, Kana or Hangul characters
}

// NeedsSearch reports whether the row would be resolved by catalog search.
func (r RowInspection) NeedsSearch() bool {
	return r.ID == "" && r.Title != ""
}

// Unresolvable reports whether the row carries neither an identifier nor a title.
func (r RowInspection) Unresolvable() bool {
	return r.ID == "" && r.Title == ""
}

// InspectionSummary counts rows by route.
type InspectionSummary struct {
	Rows         int
	Identifiers  int
	Searches     int
	Unresolvable int
	CJK          int
}

// Inspect classifies rows offline.
func Inspect(rows []models.Row) ([]RowInspection, InspectionSummary) {
	out := make([]RowInspection, len(rows))
	summary := InspectionSummary{Rows: len(rows)}

	for i, row := range rows {
		id, _ := ExtractID(row)
		ri := RowInspection{
			Line:   row.Line,
			Title:  row.Get(TitleColumns...),
			Artist: row.Get(ArtistColumns...),
			ID:     id,
		}
		ri.CJK = ContainsCJK(ri.Title)
		out[i] = ri

		switch {
		case ri.ID != "":
			summary.Identifiers++
		case ri.NeedsSearch():
			summary.Searches++
		default:
			summary.Unresolvable++
		}
		if ri.CJK {
			summary.CJK++
		}
	}
	return out, summary
}

// ContainsCJK reports whether s contains Chinese, Japanese or Korean script.
func ContainsCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}
