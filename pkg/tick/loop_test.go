package tick

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crystal-mush/sensorbridge/pkg/bridge"
)

type fakeSource struct {
	mu      sync.Mutex
	actions []bridge.ActionEvent
	snaps   []bridge.SimultaneousActions
}

func (f *fakeSource) DrainActions() []bridge.ActionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.actions
	f.actions = nil
	return out
}

func (f *fakeSource) DrainSimultaneous() []bridge.SimultaneousActions {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.snaps
	f.snaps = nil
	return out
}

func (f *fakeSource) push(ev *bridge.ActionEvent, s *bridge.SimultaneousActions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev != nil {
		f.actions = append(f.actions, *ev)
	}
	if s != nil {
		f.snaps = append(f.snaps, *s)
	}
}

func moving(id string, a bridge.GameAction, p float64) *bridge.SimultaneousActions {
	return &bridge.SimultaneousActions{ConnectionID: id, Movement: &a, MovementPressure: p}
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestStepMovementHold(t *testing.T) {
	src := &fakeSource{}
	l := &Loop{Source: src}

	src.push(&bridge.ActionEvent{ConnectionID: "C1", Action: bridge.MoveLeft, Pressure: 300}, moving("C1", bridge.MoveLeft, 300))
	f := l.Step(t0)
	if !f.Input.HasMovement || f.Input.Movement != bridge.MoveLeft {
		t.Fatalf("tick 1 input = %+v, want MoveLeft", f.Input)
	}
	if len(f.Events) != 1 || len(f.Latest) != 1 {
		t.Errorf("tick 1 drained %d events, %d snapshots", len(f.Events), len(f.Latest))
	}

	// No refresh, still within the hold.
	f = l.Step(t0.Add(150 * time.Millisecond))
	if !f.Input.HasMovement {
		t.Fatal("movement should be held for 200ms")
	}

	f = l.Step(t0.Add(201 * time.Millisecond))
	if f.Input.HasMovement || f.Input.Movement != bridge.Idle {
		t.Fatalf("movement should expire after the hold, got %+v", f.Input)
	}
	if f.Tick != 3 {
		t.Errorf("Tick = %d, want 3", f.Tick)
	}
}

func TestStepIdleEndsMovement(t *testing.T) {
	src := &fakeSource{}
	l := &Loop{Source: src, Hold: time.Second}

	src.push(nil, moving("C1", bridge.MoveRight, 400))
	if f := l.Step(t0); f.Input.Movement != bridge.MoveRight {
		t.Fatalf("input = %+v, want MoveRight", f.Input)
	}

	src.push(&bridge.ActionEvent{ConnectionID: "C1", Action: bridge.Idle}, &bridge.SimultaneousActions{ConnectionID: "C1"})
	if f := l.Step(t0.Add(10 * time.Millisecond)); f.Input.HasMovement {
		t.Fatalf("Idle event should end movement, got %+v", f.Input)
	}
}

func TestStepLatestSnapshotPerConnection(t *testing.T) {
	src := &fakeSource{}
	l := &Loop{Source: src}

	src.push(nil, moving("C1", bridge.MoveLeft, 300))
	src.push(nil, &bridge.SimultaneousActions{ConnectionID: "C2", Shooting: true, ShootPressure: 500})
	src.push(nil, moving("C1", bridge.MoveRight, 350))

	f := l.Step(t0)
	if len(f.Latest) != 2 {
		t.Fatalf("Latest has %d entries, want 2", len(f.Latest))
	}
	if m := f.Latest["C1"].Movement; m == nil || *m != bridge.MoveRight {
		t.Errorf("C1 latest movement = %v, want MoveRight", m)
	}
	if !f.Input.Shoot {
		t.Error("a shooting snapshot should set Shoot")
	}
	if f.Input.Movement != bridge.MoveRight {
		t.Errorf("movement = %v, want MoveRight", f.Input.Movement)
	}

	// Shoot is per tick, not held.
	if f = l.Step(t0.Add(time.Millisecond)); f.Input.Shoot {
		t.Error("Shoot should not carry into the next tick")
	}
}

func TestRunAppliesFramesUntilCancelled(t *testing.T) {
	src := &fakeSource{}
	src.push(&bridge.ActionEvent{ConnectionID: "C1", Action: bridge.Shoot, Pressure: 600}, nil)

	frames := make(chan Frame, 64)
	l := &Loop{Source: src, Rate: 200, Apply: func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for shot := false; !shot; {
		select {
		case f := <-frames:
			shot = f.Input.Shoot
		case <-deadline:
			t.Fatal("no frame with Shoot applied")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
