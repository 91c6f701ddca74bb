// Package marking implements the in/out marking state machine that turns two
// position reads into a clip.
package marking

import (
	"errors"
	"fmt"

	"clip-tracker/internal/models"
	"clip-tracker/internal/player"

	"github.com/google/uuid"
)

var (
	ErrAlreadyRecording = errors.New("marking already in progress")
	ErrNotRecording     = errors.New("no marking in progress")
)

// State is the machine's state tag.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return models.MarkingRecording
	}
	return models.MarkingIdle
}

// PositionReader is the part of player.Handle the machine needs.
type PositionReader interface {
	CurrentPosition() (float64, error)
}

// Machine is not safe for concurrent use; the owning session serializes it.
type Machine struct {
	state        State
	pendingStart float64
	newID        func() string
}

func New() *Machine {
	return &Machine{newID: uuid.NewString}
}

// NewWithIDs uses newID to mint clip ids.
func NewWithIDs(newID func() string) *Machine {
	return &Machine{newID: newID}
}

func (m *Machine) State() State {
	return m.state
}

// PendingStart returns the recorded start time and whether one is pending.
func (m *Machine) PendingStart() (float64, bool) {
	if m.state != Recording {
		return 0, false
	}
	return m.pendingStart, true
}

// Start records the current position as the pending start. It requires the
// machine to be Idle and the player to be ready.
func (m *Machine) Start(pos PositionReader, ready bool) error {
	if m.state != Idle {
		return ErrAlreadyRecording
	}
	if !ready || pos == nil {
		return player.ErrUnavailable
	}

	start, err := pos.CurrentPosition()
	if err != nil {
		return fmt.Errorf("start marking: %w", unavailable(err))
	}
	if start < 0 {
		start = 0
	}

	m.pendingStart = start
	m.state = Recording
	return nil
}

// End reads the current position and closes the pending mark. created is
// false when the end is not after the start; the mark is then discarded and
// the machine still returns to Idle. On a read failure the machine stays in
// Recording with the pending start intact.
func (m *Machine) End(pos PositionReader) (clip models.Clip, created bool, err error) {
	if m.state != Recording {
		return models.Clip{}, false, ErrNotRecording
	}
	if pos == nil {
		return models.Clip{}, false, player.ErrUnavailable
	}

	end, err := pos.CurrentPosition()
	if err != nil {
		return models.Clip{}, false, fmt.Errorf("end marking: %w", unavailable(err))
	}

	start := m.pendingStart
	m.Reset()

	if end <= start {
		return models.Clip{}, false, nil
	}

	return models.Clip{
		ID:        m.newID(),
		StartTime: start,
		EndTime:   end,
	}, true, nil
}

// Reset forces the machine back to Idle and drops any pending start.
func (m *Machine) Reset() {
	m.state = Idle
	m.pendingStart = 0
}

// unavailable folds any adapter failure into player.ErrUnavailable.
func unavailable(err error) error {
	if errors.Is(err, player.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", player.ErrUnavailable, err)
}
