// Package tick is a reference fixed-rate consumer for the bridge queues.
// Each tick drains both queues and reduces them to one Input for the game.
package tick

import (
	"context"
	"log"
	"time"

	"github.com/crystal-mush/sensorbridge/pkg/bridge"
)

// DefaultHold is how long a movement stays active without a refresh.
const DefaultHold = 200 * time.Millisecond

// Source is the drain side of the bridge.
type Source interface {
	DrainActions() []bridge.ActionEvent
	DrainSimultaneous() []bridge.SimultaneousActions
}

// Input is the reduced control state for one tick.
type Input struct {
	Movement    bridge.GameAction
	HasMovement bool
	Shoot       bool
}

// Frame is what one tick drained, plus the reduced Input.
type Frame struct {
	Tick   uint64
	Latest map[string]bridge.SimultaneousActions
	Events []bridge.ActionEvent
	Input  Input
}

// Loop drains a Source at Rate ticks per second.
type Loop struct {
	Source Source
	Rate   int
	Hold   time.Duration
	Apply  func(Frame)
	Logger *log.Logger

	tick       uint64
	movement   bridge.GameAction
	moving     bool
	lastMoveAt time.Time
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	rate := l.Rate
	if rate <= 0 {
		rate = 60
	}
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	logger.Printf("Tick loop started at %d ticks/second", rate)
	for {
		select {
		case <-ctx.Done():
			logger.Println("Tick loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			f := l.Step(now)
			if l.Apply != nil {
				l.Apply(f)
			}
		}
	}
}

// Step runs one tick at now. Snapshots are reduced to the latest per
// connection and refresh the held movement; the hold then expires; discrete
// events are applied last, so an Idle event always ends movement.
func (l *Loop) Step(now time.Time) Frame {
	hold := l.Hold
	if hold <= 0 {
		hold = DefaultHold
	}
	l.tick++
	f := Frame{Tick: l.tick, Latest: make(map[string]bridge.SimultaneousActions)}

	for _, s := range l.Source.DrainSimultaneous() {
		f.Latest[s.ConnectionID] = s
	}
	for _, s := range f.Latest {
		if s.Movement != nil && (*s.Movement == bridge.MoveLeft || *s.Movement == bridge.MoveRight) {
			l.refresh(*s.Movement, now)
		}
		if s.Shooting {
			f.Input.Shoot = true
		}
	}

	if l.moving && now.Sub(l.lastMoveAt) > hold {
		l.moving = false
	}

	f.Events = l.Source.DrainActions()
	for _, ev := range f.Events {
		switch ev.Action {
		case bridge.MoveLeft, bridge.MoveRight:
			l.refresh(ev.Action, now)
		case bridge.Shoot:
			f.Input.Shoot = true
		case bridge.Idle:
			l.moving = false
		}
	}

	f.Input.Movement, f.Input.HasMovement = l.movement, l.moving
	if !l.moving {
		f.Input.Movement = bridge.Idle
	}
	return f
}

func (l *Loop) refresh(a bridge.GameAction, now time.Time) {
	l.movement, l.moving, l.lastMoveAt = a, true, now
}
