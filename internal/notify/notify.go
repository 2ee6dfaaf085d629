// Package notify shows desktop notifications on session start/stop.
// Failures are swallowed: a missing notification daemon must never affect
// tracking.
package notify

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
)

// Desktop sends session events to the host's notification service.
// It satisfies timer.Notifier.
type Desktop struct{}

func New() *Desktop {
	beeep.AppName = "kiroku"
	return &Desktop{}
}

func (d *Desktop) SessionEvent(action, itemName string, startTime time.Time) {
	var title, body string
	switch action {
	case "start":
		title = "Timer started"
		body = fmt.Sprintf("%s, since %s", itemName, startTime.Local().Format("15:04"))
	case "stop":
		title = "Timer stopped"
		body = itemName
	default:
		return
	}
	_ = beeep.Notify(title, body, "")
}
