package backup

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"kiroku/internal/report"
	"kiroku/internal/store"
)

// ToCSV writes sessions to a CSV file at path, one row per session.
// Sessions referencing a missing item get the "Unknown" label.
func ToCSV(sessions []store.Session, items map[string]*store.Item, path string, now time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"ID", "Item", "Start", "End", "Duration (s)", "Duration", "Note"}); err != nil {
		return err
	}

	for _, sess := range sessions {
		itemName := "Unknown"
		if item, ok := items[sess.ItemID]; ok {
			itemName = item.Name
		}
		endStr := ""
		end := now
		if sess.EndAt != nil {
			end = *sess.EndAt
			endStr = end.Local().Format(time.RFC3339)
		}
		secs := int64(end.Sub(sess.StartAt) / time.Second)
		if secs < 0 {
			secs = 0
		}

		row := []string{
			sess.ID,
			itemName,
			sess.StartAt.Local().Format(time.RFC3339),
			endStr,
			fmt.Sprintf("%d", secs),
			report.FormatClock(secs),
			sess.Note,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}
