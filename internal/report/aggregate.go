// Package report computes per-item duration totals for a time range.
package report

import (
	"time"

	"kiroku/internal/period"
	"kiroku/internal/store"
)

// Summary is the result of aggregating sessions over a range.
//
// TopItemID is the item with the largest total; ties go to the item first
// encountered in the input session order, nothing more specific.
type Summary struct {
	SecondsByItem map[string]int64
	ItemOrder     []string // item ids in first-encountered order
	TotalSeconds  int64
	SessionCount  int
	TopItemID     string
}

// Aggregate intersects each session with r and sums the whole seconds of
// overlap per item. A nil EndAt is treated as ending at now, so repeated
// calls against a live session are monotonically non-decreasing. Sessions
// with an empty or non-positive overlap contribute nothing and are not
// counted. A positive overlap shorter than one second floors to zero and
// is likewise excluded from SessionCount; persisted timestamps are whole
// seconds, so this only matters for synthetic input. Aggregate is pure
// and never fails on malformed data.
func Aggregate(sessions []store.Session, r period.Range, now time.Time) Summary {
	sum := Summary{SecondsByItem: make(map[string]int64)}

	for _, sess := range sessions {
		start := sess.StartAt
		end := now
		if sess.EndAt != nil {
			end = *sess.EndAt
		}

		if !r.Unbounded {
			if start.Before(r.Start) {
				start = r.Start
			}
			if end.After(r.End) {
				end = r.End
			}
		}
		if !end.After(start) {
			continue
		}

		secs := int64(end.Sub(start) / time.Second)
		if secs <= 0 {
			continue
		}

		if _, seen := sum.SecondsByItem[sess.ItemID]; !seen {
			sum.ItemOrder = append(sum.ItemOrder, sess.ItemID)
		}
		sum.SecondsByItem[sess.ItemID] += secs
		sum.TotalSeconds += secs
		sum.SessionCount++
	}

	var top string
	var max int64
	for _, itemID := range sum.ItemOrder {
		if secs := sum.SecondsByItem[itemID]; secs > max {
			max = secs
			top = itemID
		}
	}
	sum.TopItemID = top

	return sum
}
