// Package rating implements the streak and peak bookkeeping applied after
// every recorded match outcome. The rating-delta formula itself lives with
// the caller; this package only tracks the results.
package rating

// DefaultRating is the rating assumed for a player with no stored value.
const DefaultRating = 1000.0

// Stats is the streak and counter state carried by one rating row,
// tenant-global or per-mode pool alike.
type Stats struct {
	Wins           int
	Losses         int
	TotalMatches   int
	CurrentStreak  int
	BestWinStreak  int
	BestLossStreak int
}

// ApplyOutcome returns the stats after one win or loss. A win extends a
// non-negative streak or starts a new one at 1; a loss extends a
// non-positive streak or starts a new one at -1. Best-streak watermarks
// only ever grow.
func ApplyOutcome(s Stats, won bool) Stats {
	if won {
		s.Wins++
		if s.CurrentStreak >= 0 {
			s.CurrentStreak++
		} else {
			s.CurrentStreak = 1
		}
		if s.CurrentStreak > s.BestWinStreak {
			s.BestWinStreak = s.CurrentStreak
		}
	} else {
		s.Losses++
		if s.CurrentStreak <= 0 {
			s.CurrentStreak--
		} else {
			s.CurrentStreak = -1
		}
		if -s.CurrentStreak > s.BestLossStreak {
			s.BestLossStreak = -s.CurrentStreak
		}
	}
	s.TotalMatches++
	return s
}

// NextPeak returns the peak rating after submitting newRating. When no peak
// exists yet the new rating becomes the peak; afterwards the peak is a
// non-decreasing watermark.
func NextPeak(peak *float64, newRating float64) float64 {
	if peak == nil || newRating > *peak {
		return newRating
	}
	return *peak
}
