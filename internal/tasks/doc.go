// Package tasks runs a playlist update: load the CSV, resolve rows to tracks, apply per-artist quotas and replace
// the destination playlists.
//
// # Pipeline
//
// [PlaylistEngine.Run] executes strictly in order:
//
//  1. Load rows through a [RowLoader]
//  2. Resolve rows with [Resolver] ([ExtractID] first, catalog search otherwise)
//  3. Look up the primary artist of identifier-resolved tracks, 50 ids per request
//  4. Optionally [Dedupe], then [Select] per destination and optionally [Shuffle]
//  5. Replace each destination with [Writer]: one clear, then appends of at most 100 URIs
//
// Unresolvable rows are skipped and reported. A rejected credential, a failed artist lookup or a failed write
// stops the run. Destinations after a failed one are not attempted.
//
// # Progress Reporting
//
// Progress updates are sent on an optional channel with select/default so reporting never blocks the run.
package tasks
