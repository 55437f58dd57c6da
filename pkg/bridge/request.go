package bridge

import "encoding/json"

// Action tags a controller may send.
const (
	TagPeakLeft     = "peakleft"
	TagPeakRight    = "peakright"
	TagPeakShoot    = "peakshoot"
	TagStop         = "stop"
	TagStopMovement = "stopmovement"
	TagStopShooting = "stopshooting"
)

// Request is one decoded controller frame.
type Request struct {
	Action      string
	Pressure    float64
	HasPressure bool
}

// wireRequest mirrors the inbound JSON. Value is the magnitude field used by
// the first controller firmware, read only when pressure is absent.
type wireRequest struct {
	Action   *string  `json:"action"`
	Pressure *float64 `json:"pressure"`
	Value    *float64 `json:"value"`
}

// DecodeRequest parses one text frame. It reports false for malformed JSON
// or a frame without a string action; callers drop those silently.
func DecodeRequest(payload []byte) (Request, bool) {
	var w wireRequest
	if err := json.Unmarshal(payload, &w); err != nil {
		return Request{}, false
	}
	if w.Action == nil {
		return Request{}, false
	}
	req := Request{Action: *w.Action}
	switch {
	case w.Pressure != nil:
		req.Pressure, req.HasPressure = *w.Pressure, true
	case w.Value != nil:
		req.Pressure, req.HasPressure = *w.Value, true
	}
	return req, true
}

// Known reports whether the tag is one the state store acts on.
func (r Request) Known() bool {
	switch r.Action {
	case TagPeakLeft, TagPeakRight, TagPeakShoot, TagStop, TagStopMovement, TagStopShooting:
		return true
	}
	return false
}

// IsStop reports whether the tag releases movement or shooting.
func (r Request) IsStop() bool {
	switch r.Action {
	case TagStop, TagStopMovement, TagStopShooting:
		return true
	}
	return false
}
