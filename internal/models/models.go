package models

import (
	"fmt"
	"strings"
)

// Row is one CSV record. Keys are trimmed, lower-cased column names.
type Row struct {
	Line   int // 1-based data line, excluding the header
	Fields map[string]string
}

// Get returns the first non-empty value among keys.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.Fields[k]); v != "" {
			return v
		}
	}
	return ""
}

// Source records how a track id was obtained.
type Source string

const (
	SourceIdentifier Source = "identifier" // taken from a URI, URL or id column
	SourceSearch     Source = "search"     // top catalog search match
)

// ResolvedTrack is a row resolved to a catalog track.
type ResolvedTrack struct {
	ID     string
	Title  string
	Artist string // primary artist as reported by the catalog
	Line   int
	Source Source
}

// URI returns the spotify:track:{id} form used by playlist writes.
func (t ResolvedTrack) URI() string {
	return "spotify:track:" + t.ID
}

// ArtistKey is the normalized artist name used for quota counting.
func (t ResolvedTrack) ArtistKey() string {
	return strings.ToLower(strings.Join(strings.Fields(t.Artist), " "))
}

// Unresolved is a row that was skipped.
type Unresolved struct {
	Line   int
	Reason string
	Row    Row
}

func (u Unresolved) String() string {
	return fmt.Sprintf("line %d: %s", u.Line, u.Reason)
}

// Destination is a playlist to be replaced and its per-artist cap.
type Destination struct {
	Name         string
	ID           string
	MaxPerArtist int
}

func (d Destination) String() string {
	if d.Name == "" {
		return d.ID
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.ID)
}

// Selection is the ordered list of tracks accepted for one destination.
type Selection struct {
	Destination Destination
	Tracks      []ResolvedTrack
}

// URIs returns the track URIs in order.
func (s Selection) URIs() []string {
	uris := make([]string, len(s.Tracks))
	for i, t := range s.Tracks {
		uris[i] = t.URI()
	}
	return uris
}

// PlaylistResult is the outcome of writing one destination.
type PlaylistResult struct {
	Destination Destination
	Selected    int // tracks accepted by the quota selector
	Written     int // tracks appended to the remote playlist
	Batches     int // append requests issued
	Err         error
}

// RunReport summarizes a run.
type RunReport struct {
	RunID      string
	Source     string
	Rows       int
	Resolved   int
	Duplicates int
	Unresolved []Unresolved
	Playlists  []PlaylistResult
	DryRun     bool
}

// Skipped returns the number of rows that could not be resolved.
func (r RunReport) Skipped() int {
	return len(r.Unresolved)
}
