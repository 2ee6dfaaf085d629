// Package timer is the state machine between item-selection events and
// session store mutations. All session starts and stops flow through it,
// which is what keeps the single-open-session invariant enforced in one
// place.
package timer

import (
	"fmt"
	"time"

	"kiroku/internal/clock"
	"kiroku/internal/store"
)

// State is the controller's view of the timer.
type State int

const (
	Idle State = iota
	Running
	PendingSwitch
)

// Outcome tells the caller what a SelectItem call did.
type Outcome int

const (
	// Started means a new session was opened.
	Started Outcome = iota
	// Stopped means the running session was closed (toggle).
	Stopped
	// ConfirmRequired means a switch proposal is pending; nothing was
	// written. Call ConfirmSwitch or CancelSwitch next.
	ConfirmRequired
)

// Switch is a pending proposal to replace the running session's item.
type Switch struct {
	FromItemID string
	ToItemID   string
}

// Notifier receives session start/stop events for an external presentation
// layer. Implementations must not affect correctness; errors are ignored.
type Notifier interface {
	SessionEvent(action string, itemName string, startTime time.Time)
}

// Controller drives the timer. It holds no persistent state of its own:
// the running session lives in the store, and the only transient state is
// an unconfirmed switch proposal.
type Controller struct {
	store    *store.Store
	clock    clock.Clock
	notifier Notifier

	running *store.Session
	pending *Switch
}

// New creates a controller synced against the store's actual running
// session. notifier may be nil.
func New(s *store.Store, c clock.Clock, notifier Notifier) (*Controller, error) {
	ctl := &Controller{store: s, clock: c, notifier: notifier}
	if err := ctl.Resync(); err != nil {
		return nil, err
	}
	return ctl, nil
}

// State returns the current machine state.
func (c *Controller) State() State {
	switch {
	case c.pending != nil:
		return PendingSwitch
	case c.running != nil:
		return Running
	default:
		return Idle
	}
}

// RunningSession returns the session the controller believes is open.
func (c *Controller) RunningSession() *store.Session {
	return c.running
}

// Pending returns the unconfirmed switch proposal, if any.
func (c *Controller) Pending() *Switch {
	return c.pending
}

// Elapsed returns how long the running session has been open.
func (c *Controller) Elapsed() time.Duration {
	if c.running == nil {
		return 0
	}
	return c.clock.Now().Sub(c.running.StartAt)
}

// SelectItem is the single external event driving the machine:
//   - Idle: start a session on the item.
//   - Running the same item: stop it (toggle).
//   - Running a different item: propose a switch, store untouched.
//
// A pending switch is discarded first, matching a user clicking around
// instead of answering the dialog.
func (c *Controller) SelectItem(itemID string) (Outcome, error) {
	c.pending = nil

	if c.running == nil {
		if err := c.start(itemID); err != nil {
			return 0, err
		}
		return Started, nil
	}

	if c.running.ItemID == itemID {
		if err := c.stop(); err != nil {
			return 0, err
		}
		return Stopped, nil
	}

	c.pending = &Switch{FromItemID: c.running.ItemID, ToItemID: itemID}
	return ConfirmRequired, nil
}

// ConfirmSwitch stops the current session and starts the proposed one.
// The two store calls are sequential, not transactional: if the start
// fails after the stop succeeded, the machine lands in Idle with the old
// session closed, and the state is resynced from the store rather than
// trusted.
func (c *Controller) ConfirmSwitch() error {
	if c.pending == nil {
		return fmt.Errorf("confirm switch: no switch pending")
	}
	to := c.pending.ToItemID
	c.pending = nil

	if err := c.stop(); err != nil {
		c.Resync()
		return err
	}
	if err := c.start(to); err != nil {
		c.Resync()
		return err
	}
	return nil
}

// CancelSwitch discards the pending proposal; the running session is
// untouched.
func (c *Controller) CancelSwitch() {
	c.pending = nil
}

// Resync replaces the controller's believed state with the store's actual
// running session. It is the recovery path after any store error.
func (c *Controller) Resync() error {
	running, err := c.store.GetRunning()
	if err != nil {
		return fmt.Errorf("resync timer: %w", err)
	}
	c.running = running
	return nil
}

func (c *Controller) start(itemID string) error {
	sess, err := c.store.StartSession(itemID)
	if err != nil {
		c.Resync()
		return err
	}
	c.running = sess
	c.notify("start", itemID, sess.StartAt)
	return nil
}

func (c *Controller) stop() error {
	sess := c.running
	if sess == nil {
		return nil
	}
	if _, err := c.store.StopSession(sess.ID); err != nil {
		c.Resync()
		return err
	}
	c.running = nil
	c.notify("stop", sess.ItemID, sess.StartAt)
	return nil
}

func (c *Controller) notify(action, itemID string, startTime time.Time) {
	if c.notifier == nil {
		return
	}
	name := "unknown"
	if item, err := c.store.GetItem(itemID); err == nil {
		name = item.Name
	}
	c.notifier.SessionEvent(action, name, startTime)
}
