// Package blocker suspends window input while a blocking remote operation
// runs.
package blocker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrAlreadyBlocked is returned when a different owner holds the block.
	ErrAlreadyBlocked = errors.New("input already blocked")

	// ErrForceReleased is the cancellation cause seen by an operation whose
	// block was released from outside, for example by closing its session.
	ErrForceReleased = errors.New("input block force-released")
)

// Overlay shows and hides the blocking overlay. Calls are serialized and
// made with the blocker's lock held, so implementations must not call back
// into the Blocker.
type Overlay interface {
	ShowBlocking(message string)
	HideBlocking()
}

// Owner identifies the operation holding the block.
type Owner struct {
	Name      string
	SessionID int
}

func (o Owner) String() string {
	if o.SessionID == 0 {
		return o.Name
	}

	return fmt.Sprintf("%s (session %d)", o.Name, o.SessionID)
}

// State is the blocker state.
type State int

// Blocker states.
const (
	Idle State = iota
	Blocked
)

func (s State) String() string {
	if s == Blocked {
		return "blocked"
	}

	return "idle"
}

// Blocker is the input blocker for one window.
type Blocker struct {
	overlay Overlay
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	owner   Owner
	message string
	cancel  context.CancelCauseFunc
	epoch   uint64
}

// New returns an idle blocker driving overlay. A nil overlay is allowed.
func New(overlay Overlay, logger *slog.Logger) *Blocker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Blocker{overlay: overlay, logger: logger}
}

// Block suspends input on behalf of owner. Blocking again with the same
// owner is a no-op.
func (b *Blocker) Block(owner Owner, message string) error {
	_, err := b.acquire(owner, message, nil)
	return err
}

// acquire returns the epoch of a new block, or 0 when owner already held it.
func (b *Blocker) acquire(owner Owner, message string, cancel context.CancelCauseFunc) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Blocked {
		if b.owner == owner {
			return 0, nil
		}

		return 0, fmt.Errorf("%w by %s", ErrAlreadyBlocked, b.owner)
	}

	b.epoch++
	b.state = Blocked
	b.owner = owner
	b.message = message
	b.cancel = cancel

	if b.overlay != nil {
		b.overlay.ShowBlocking(message)
	}

	b.logger.Debug("input blocked", slog.String("owner", owner.String()), slog.String("message", message))

	return b.epoch, nil
}

// Release lifts the block if owner holds it. It reports whether the state
// changed.
func (b *Blocker) Release(owner Owner) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Blocked {
		return false
	}

	if b.owner != owner {
		b.logger.Debug("ignoring release from non-owner",
			slog.String("owner", b.owner.String()),
			slog.String("caller", owner.String()),
		)

		return false
	}

	b.releaseLocked(nil)

	return true
}

// ReleaseSession lifts a block held by any operation of the given session.
// The operation's context, if it used Run, is canceled. Session ids start at
// 1; blocks not tied to a session are never released here.
func (b *Blocker) ReleaseSession(sessionID int) bool {
	if sessionID <= 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Blocked || b.owner.SessionID != sessionID {
		return false
	}

	b.releaseLocked(ErrForceReleased)

	return true
}

// ForceRelease lifts any block.
func (b *Blocker) ForceRelease() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Blocked {
		return false
	}

	b.releaseLocked(ErrForceReleased)

	return true
}

// releaseEpoch lifts the block only if it is still the one taken at epoch.
func (b *Blocker) releaseEpoch(epoch uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Blocked && b.epoch == epoch {
		b.releaseLocked(nil)
	}
}

func (b *Blocker) releaseLocked(cause error) {
	if cause != nil {
		b.logger.Info("input block force-released", slog.String("owner", b.owner.String()))

		if b.cancel != nil {
			b.cancel(cause)
		}
	}

	b.state = Idle
	b.owner = Owner{}
	b.message = ""
	b.cancel = nil

	if b.overlay != nil {
		b.overlay.HideBlocking()
	}
}

// State returns the current state.
func (b *Blocker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// Owner returns the current owner and message. ok is false when idle.
func (b *Blocker) Owner() (owner Owner, message string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.owner, b.message, b.state == Blocked
}

// Run blocks input, calls fn and releases the block however fn exits,
// including by panic. fn's context is canceled when ctx is done or the block
// is force-released; context.Cause reports ErrForceReleased in the latter
// case. When owner already holds the block, Run leaves it held on return.
func (b *Blocker) Run(ctx context.Context, owner Owner, message string, fn func(context.Context) error) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	epoch, err := b.acquire(owner, message, cancel)
	if err != nil {
		return err
	}

	if epoch != 0 {
		defer b.releaseEpoch(epoch)
	}

	if err := fn(runCtx); err != nil {
		if cause := context.Cause(runCtx); errors.Is(cause, ErrForceReleased) {
			return errors.Join(err, cause)
		}

		return err
	}

	return nil
}
