// Package bridge turns pressure-sensor telemetry from remote controllers
// into game commands. Controllers stream JSON frames over a WebSocket; each
// frame is gated against a shared pressure threshold, folded into the
// connection's gesture state, and published on two bounded drop-oldest
// queues that a fixed-tick consumer drains once per frame.
package bridge

import (
	"fmt"
	"time"
)

// GameAction is a command the game can apply.
type GameAction int

const (
	MoveLeft GameAction = iota
	MoveRight
	Shoot
	Idle
)

var actionNames = [...]string{
	MoveLeft:  "move_left",
	MoveRight: "move_right",
	Shoot:     "shoot",
	Idle:      "idle",
}

func (a GameAction) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("GameAction(%d)", int(a))
}

// MarshalText encodes the action by name so JSON output stays readable.
func (a GameAction) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(actionNames) {
		return nil, fmt.Errorf("unknown game action %d", int(a))
	}
	return []byte(actionNames[a]), nil
}

// UnmarshalText is the inverse of MarshalText.
func (a *GameAction) UnmarshalText(text []byte) error {
	for i, name := range actionNames {
		if name == string(text) {
			*a = GameAction(i)
			return nil
		}
	}
	return fmt.Errorf("unknown game action %q", text)
}

// ActionEvent is one discrete command, applied once by the consumer.
type ActionEvent struct {
	ConnectionID string     `json:"connection_id"`
	Action       GameAction `json:"action"`
	Pressure     float64    `json:"pressure"`
	Timestamp    time.Time  `json:"timestamp"`
}

// ConnectionState is the live gesture state of one controller.
// The zero value is the default (no movement, not shooting).
type ConnectionState struct {
	Movement         GameAction // valid only when HasMovement
	HasMovement      bool
	Shooting         bool
	MovementPressure float64
	ShootPressure    float64
}

// SimultaneousActions is a point-in-time snapshot of one controller's
// gesture state. Consumers read it as "current state", not as a command.
type SimultaneousActions struct {
	ConnectionID     string      `json:"connection_id"`
	Movement         *GameAction `json:"movement"`
	Shooting         bool        `json:"shooting"`
	MovementPressure float64     `json:"movement_pressure"`
	ShootPressure    float64     `json:"shoot_pressure"`
	Timestamp        time.Time   `json:"timestamp"`
}

// snapshot builds a SimultaneousActions from a state copy.
func snapshot(id string, st ConnectionState, at time.Time) SimultaneousActions {
	s := SimultaneousActions{
		ConnectionID:     id,
		Shooting:         st.Shooting,
		MovementPressure: st.MovementPressure,
		ShootPressure:    st.ShootPressure,
		Timestamp:        at,
	}
	if st.HasMovement {
		m := st.Movement
		s.Movement = &m
	}
	return s
}
