package tasks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/upstreamhub/csv2spotify/internal/models"
	"github.com/upstreamhub/csv2spotify/internal/services"
	"github.com/upstreamhub/csv2spotify/internal/shared"
	"golang.org/x/time/rate"
)

var (
	uriPattern = regexp.MustCompile(`spotify:track:([A-Za-z0-9]{22})\b`)
	urlPattern = regexp.MustCompile(`open\.spotify\.com/(?:intl-[A-Za-z-]+/)?track/([A-Za-z0-9]{22})\b`)
	idPattern  = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
)

// Column names checked, in order, for identifiers and search terms.
var (
	URIColumns    = []string{"spotify_uri", "uri", "track_uri"}
	URLColumns    = []string{"spotify_url", "url", "track_url"}
	IDColumns     = []string{"id", "track_id"}
	TitleColumns  = []string{"title", "name"}
	ArtistColumns = []string{"artist", "artists"}
)

// ParseTrackID extracts a track id from a spotify:track URI or an open.spotify.com track URL.
func ParseTrackID(value string) (string, bool) {
	if m := uriPattern.FindStringSubmatch(value); m != nil {
		return m[1], true
	}
	if m := urlPattern.FindStringSubmatch(value); m != nil {
		return m[1], true
	}
	return "", false
}

// ExtractID returns the track id carried by a row, if any.
//
// Well-known URI and URL columns are checked first, then every other value in column order. A bare 22 character id
// is accepted only from a URI, URL or id column.
func ExtractID(row models.Row) (string, bool) {
	known := make(map[string]bool)
	for _, col := range append(append([]string{}, URIColumns...), URLColumns...) {
		known[col] = true
		if id, ok := ParseTrackID(row.Fields[col]); ok {
			return id, true
		}
		if v := row.Get(col); idPattern.MatchString(v) {
			return v, true
		}
	}

	keys := make([]string, 0, len(row.Fields))
	for k := range row.Fields {
		if !known[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if id, ok := ParseTrackID(row.Fields[k]); ok {
			return id, true
		}
	}

	for _, col := range IDColumns {
		if v := row.Get(col); idPattern.MatchString(v) {
			return v, true
		}
	}
	return "", false
}

// ResolverOpts configures a [Resolver].
type ResolverOpts struct {
	SearchRate float64 // catalog searches per second; <= 0 disables pacing
	Logger     *log.Logger
}

// Resolver maps CSV rows to catalog tracks.
type Resolver struct {
	catalog services.Catalog
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewResolver creates a Resolver backed by catalog.
func NewResolver(catalog services.Catalog, opts ResolverOpts) *Resolver {
	limit := rate.Inf
	if opts.SearchRate > 0 {
		limit = rate.Limit(opts.SearchRate)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Resolver{
		catalog: catalog,
		limiter: rate.NewLimiter(limit, 1),
		logger:  opts.Logger,
	}
}

// Resolve resolves rows in order.
//
// Rows that cannot be resolved are returned as [models.Unresolved]. The returned error is non-nil only for failures
// that must stop the run: a rejected credential, a failed artist lookup or a cancelled context.
func (r *Resolver) Resolve(ctx context.Context, rows []models.Row, progress chan<- ProgressUpdate) ([]models.ResolvedTrack, []models.Unresolved, error) {
	var (
		tracks     []models.ResolvedTrack
		unresolved []models.Unresolved
	)

	for i, row := range rows {
		sendProgress(progress, resolveUpdate(i+1, len(rows), row))

		track, err := r.resolveRow(ctx, row)
		if err == nil {
			tracks = append(tracks, *track)
			continue
		}
		if isFatal(ctx, err) {
			return nil, nil, err
		}

		u := models.Unresolved{Line: row.Line, Reason: err.Error(), Row: row}
		r.logger.Warn("skipping row", "line", row.Line, "reason", u.Reason)
		unresolved = append(unresolved, u)
	}

	tracks, missing, err := r.enrich(ctx, tracks, progress)
	if err != nil {
		return nil, nil, err
	}
	byLine := make(map[int]models.Row, len(rows))
	for _, row := range rows {
		byLine[row.Line] = row
	}
	for _, u := range missing {
		u.Row = byLine[u.Line]
		unresolved = append(unresolved, u)
	}
	sort.SliceStable(unresolved, func(i, j int) bool { return unresolved[i].Line < unresolved[j].Line })

	return tracks, unresolved, nil
}

func (r *Resolver) resolveRow(ctx context.Context, row models.Row) (*models.ResolvedTrack, error) {
	title := row.Get(TitleColumns...)
	artist := row.Get(ArtistColumns...)

	if id, ok := ExtractID(row); ok {
		return &models.ResolvedTrack{
			ID:     id,
			Title:  title,
			Artist: artist,
			Line:   row.Line,
			Source: models.SourceIdentifier,
		}, nil
	}

	if title == "" {
		return nil, fmt.Errorf("%w: no track identifier or title", shared.ErrUnresolvable)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	track, err := r.catalog.SearchTrack(ctx, title, artist)
	if err != nil {
		if services.IsAuthError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: search %q by %q: %v", shared.ErrUnresolvable, title, artist, err)
	}

	track.Line = row.Line
	track.Source = models.SourceSearch
	r.logger.Debug("resolved by search", "line", row.Line, "id", track.ID, "artist", track.Artist)
	return track, nil
}

// enrich replaces the artist of identifier-resolved tracks with the catalog's primary artist.
func (r *Resolver) enrich(ctx context.Context, tracks []models.ResolvedTrack, progress chan<- ProgressUpdate) ([]models.ResolvedTrack, []models.Unresolved, error) {
	var pending []int
	for i, t := range tracks {
		if t.Source == models.SourceIdentifier {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return tracks, nil, nil
	}

	missing := make(map[int]bool)
	batches := (len(pending) + services.MaxTracksPerLookup - 1) / services.MaxTracksPerLookup
	for b := 0; b < batches; b++ {
		chunk := pending[b*services.MaxTracksPerLookup : min((b+1)*services.MaxTracksPerLookup, len(pending))]
		sendProgress(progress, enrichUpdate(b+1, batches, len(chunk)))

		ids := make([]string, len(chunk))
		for i, idx := range chunk {
			ids[i] = tracks[idx].ID
		}

		found, err := r.catalog.Tracks(ctx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("artist lookup failed: %w", err)
		}

		for i, idx := range chunk {
			if i >= len(found) || found[i] == nil {
				missing[idx] = true
				continue
			}
			tracks[idx].Artist = found[i].Artist
			if found[i].Title != "" {
				tracks[idx].Title = found[i].Title
			}
		}
	}

	if len(missing) == 0 {
		return tracks, nil, nil
	}

	kept := make([]models.ResolvedTrack, 0, len(tracks)-len(missing))
	var dropped []models.Unresolved
	for i, t := range tracks {
		if !missing[i] {
			kept = append(kept, t)
			continue
		}
		u := models.Unresolved{
			Line:   t.Line,
			Reason: fmt.Sprintf("%v: track %s not found in catalog", shared.ErrUnresolvable, t.ID),
		}
		r.logger.Warn("skipping row", "line", t.Line, "reason", u.Reason)
		dropped = append(dropped, u)
	}
	return kept, dropped, nil
}

func isFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return services.IsAuthError(err)
}
