// Package models defines the transient entities that flow through a single csv2spotify run.
//
// Nothing here is persisted; every value is created and discarded within one invocation:
//   - [Row] : one CSV record keyed by lower-cased column name
//   - [ResolvedTrack] : a catalog track id with its primary artist
//   - [Unresolved] : a skipped row and the reason it could not be resolved
//   - [Destination] : a target playlist and its per-artist cap
//   - [Selection] : the ordered tracks accepted for one destination
//   - [RunReport] : counts reported at the end of a run
package models
