package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// frame is one controller message.
type frame struct {
	Action   string   `json:"action"`
	Pressure *float64 `json:"pressure,omitempty"`
}

func (f frame) String() string {
	if f.Pressure == nil {
		return f.Action
	}
	return fmt.Sprintf("%s:%.0f", f.Action, *f.Pressure)
}

func pressure(v float64) *float64 { return &v }

// parseScript parses "peakleft:300,peakshoot:550,stop" into frames. A peak
// without a pressure is rejected; stop tags take none.
func parseScript(s string) ([]frame, error) {
	var out []frame
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		action, value, hasValue := strings.Cut(item, ":")
		f := frame{Action: action}
		if hasValue {
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("bad pressure in %q: %w", item, err)
			}
			f.Pressure = pressure(v)
		} else if strings.HasPrefix(action, "peak") {
			return nil, fmt.Errorf("%q needs a pressure, e.g. %s:300", item, action)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty script")
	}
	return out, nil
}

// checkFlags rejects a frame rate or pressure bound the sender cannot use.
func checkFlags(rate, maxPressure float64) error {
	if !(rate > 0) {
		return fmt.Errorf("rate must be positive, got %v", rate)
	}
	if !(maxPressure >= 0) {
		return fmt.Errorf("max must not be negative, got %v", maxPressure)
	}
	return nil
}

// randomFrames mimics a squeezed sensor: mostly peaks around the working
// range, with stops mixed in so movement and shooting get released.
type randomFrames struct {
	rng *rand.Rand
	max float64
}

func newRandomFrames(seed uint64, max float64) *randomFrames {
	return &randomFrames{rng: rand.New(rand.NewPCG(seed, seed^0x5eed)), max: max}
}

var peakTags = []string{"peakleft", "peakright", "peakshoot"}
var stopTags = []string{"stop", "stopmovement", "stopshooting"}

func (r *randomFrames) next() frame {
	if r.rng.IntN(5) == 0 {
		return frame{Action: stopTags[r.rng.IntN(len(stopTags))]}
	}
	return frame{
		Action:   peakTags[r.rng.IntN(len(peakTags))],
		Pressure: pressure(float64(r.rng.IntN(int(r.max) + 1))),
	}
}
