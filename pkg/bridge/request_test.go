package bridge

import "testing"

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ok      bool
		want    Request
	}{
		{"peak with pressure", `{"action":"peakleft","pressure":600}`, true, Request{Action: "peakleft", Pressure: 600, HasPressure: true}},
		{"stop without pressure", `{"action":"stop"}`, true, Request{Action: "stop"}},
		{"legacy value field", `{"action":"peakshoot","value":712}`, true, Request{Action: "peakshoot", Pressure: 712, HasPressure: true}},
		{"pressure wins over value", `{"action":"peakright","pressure":300,"value":900}`, true, Request{Action: "peakright", Pressure: 300, HasPressure: true}},
		{"extra fields ignored", `{"action":"stopmovement","sensor":"A0","seq":4}`, true, Request{Action: "stopmovement"}},
		{"unknown tag still decodes", `{"action":"jump","pressure":999}`, true, Request{Action: "jump", Pressure: 999, HasPressure: true}},
		{"missing action", `{"pressure":600}`, false, Request{}},
		{"action not a string", `{"action":5}`, false, Request{}},
		{"pressure not a number", `{"action":"peakleft","pressure":"high"}`, false, Request{}},
		{"not json", `peakleft 600`, false, Request{}},
		{"empty", ``, false, Request{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeRequest([]byte(tt.payload))
			if ok != tt.ok {
				t.Fatalf("DecodeRequest(%q) ok = %v, want %v", tt.payload, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("DecodeRequest(%q) = %+v, want %+v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestRequestKnown(t *testing.T) {
	for _, tag := range []string{TagPeakLeft, TagPeakRight, TagPeakShoot, TagStop, TagStopMovement, TagStopShooting} {
		if !(Request{Action: tag}).Known() {
			t.Errorf("%q should be known", tag)
		}
	}
	if (Request{Action: "PEAKLEFT"}).Known() {
		t.Error("tags are case sensitive")
	}
}

func TestRequestIsStop(t *testing.T) {
	for _, tag := range []string{TagStop, TagStopMovement, TagStopShooting} {
		if !(Request{Action: tag}).IsStop() {
			t.Errorf("%s should be a stop tag", tag)
		}
	}
	for _, tag := range []string{TagPeakLeft, TagPeakRight, TagPeakShoot, "stopall"} {
		if (Request{Action: tag}).IsStop() {
			t.Errorf("%s should not be a stop tag", tag)
		}
	}
}
