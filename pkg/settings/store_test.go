package settings

import (
	"path/filepath"
	"testing"
)

func TestThresholdRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Threshold(); err != nil || ok {
		t.Fatalf("fresh store Threshold() ok=%v err=%v, want nothing saved", ok, err)
	}
	if err := s.SaveThreshold(350); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveThreshold(425.5); err != nil {
		t.Fatal(err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	v, ok, err := s.Threshold()
	if err != nil || !ok || v != 425.5 {
		t.Fatalf("Threshold() = %v, %v, %v; want 425.5, true, nil", v, ok, err)
	}
}

func TestOpenBadPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "settings.db")); err == nil {
		t.Fatal("Open in a missing directory should fail")
	}
}
