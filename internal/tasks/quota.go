package tasks

import (
	"math/rand/v2"

	"github.com/upstreamhub/csv2spotify/internal/models"
)

// Select returns the tracks whose artist has appeared fewer than k times so far, in input order.
//
// Artists are compared on [models.ResolvedTrack.ArtistKey]. A cap below 1 selects nothing. Select is idempotent:
// applying it to its own output returns the same list.
func Select(tracks []models.ResolvedTrack, k int) []models.ResolvedTrack {
	if k < 1 {
		return []models.ResolvedTrack{}
	}

	counts := make(map[string]int)
	out := make([]models.ResolvedTrack, 0, len(tracks))
	for _, t := range tracks {
		key := t.ArtistKey()
		if counts[key] >= k {
			continue
		}
		counts[key]++
		out = append(out, t)
	}
	return out
}

// Dedupe drops repeated track ids, keeping the first occurrence. It returns the number of tracks removed.
func Dedupe(tracks []models.ResolvedTrack) ([]models.ResolvedTrack, int) {
	seen := make(map[string]bool, len(tracks))
	out := make([]models.ResolvedTrack, 0, len(tracks))
	for _, t := range tracks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out, len(tracks) - len(out)
}

// Shuffle returns a shuffled copy of tracks. A nil rnd uses the global source.
func Shuffle(tracks []models.ResolvedTrack, rnd *rand.Rand) []models.ResolvedTrack {
	out := make([]models.ResolvedTrack, len(tracks))
	copy(out, tracks)

	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if rnd == nil {
		rand.Shuffle(len(out), swap)
	} else {
		rnd.Shuffle(len(out), swap)
	}
	return out
}
