// Package admin provides the operator HTTP API for sensorbridge: reading and
// tuning the pressure threshold and inspecting queue and connection stats.
package admin

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"

	"github.com/crystal-mush/sensorbridge/pkg/bridge"
)

// Controller is the interface the admin API uses to drive the bridge.
// This keeps the API testable without a live listener.
type Controller interface {
	PressureThreshold() float64
	SetPressureThreshold(v float64)
	AdjustPressureThreshold(delta float64) float64
	Stats() bridge.Stats
}

// Config holds admin API configuration.
type Config struct {
	PasswordHash string // bcrypt hash; empty leaves mutating routes open
	JWTSecret    string
	JWTExpiry    int // seconds

	// OnChange is called after every threshold change made through the API.
	OnChange func(v float64)
}

// Admin is the admin API HTTP handler.
type Admin struct {
	controller Controller
	auth       *authService
	onChange   func(float64)
}

// New creates an Admin bound to controller.
func New(controller Controller, cfg Config) *Admin {
	return &Admin{
		controller: controller,
		auth:       newAuthService(cfg.PasswordHash, cfg.JWTSecret, cfg.JWTExpiry),
		onChange:   cfg.OnChange,
	}
}

// Handler returns the API handler. Routes carry their full /api/v1 paths, so
// it mounts on the bridge mux at "/api/v1/".
func (a *Admin) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", a.handleAuthLogin)

	mux.HandleFunc("GET /api/v1/threshold", a.handleGetThreshold)
	mux.Handle("PUT /api/v1/threshold", a.auth.require(http.HandlerFunc(a.handlePutThreshold)))
	mux.Handle("POST /api/v1/threshold/adjust", a.auth.require(http.HandlerFunc(a.handleAdjustThreshold)))

	mux.HandleFunc("GET /api/v1/stats", a.handleStats)

	return mux
}

type thresholdBody struct {
	PressureThreshold *float64 `json:"pressure_threshold"`
}

type adjustBody struct {
	Delta *float64 `json:"delta"`
}

func (a *Admin) handleGetThreshold(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"pressure_threshold": a.controller.PressureThreshold()})
}

func (a *Admin) handlePutThreshold(w http.ResponseWriter, r *http.Request) {
	var body thresholdBody
	if err := readJSON(r, &body); err != nil || body.PressureThreshold == nil {
		writeError(w, http.StatusBadRequest, "expected {\"pressure_threshold\": <number>}")
		return
	}
	v := *body.PressureThreshold
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		writeError(w, http.StatusBadRequest, "pressure_threshold must be a non-negative number")
		return
	}
	a.controller.SetPressureThreshold(v)
	a.changed(v)
	writeJSON(w, http.StatusOK, map[string]float64{"pressure_threshold": v})
}

func (a *Admin) handleAdjustThreshold(w http.ResponseWriter, r *http.Request) {
	var body adjustBody
	if err := readJSON(r, &body); err != nil || body.Delta == nil {
		writeError(w, http.StatusBadRequest, "expected {\"delta\": <number>}")
		return
	}
	if math.IsNaN(*body.Delta) || math.IsInf(*body.Delta, 0) {
		writeError(w, http.StatusBadRequest, "delta must be finite")
		return
	}
	v := a.controller.AdjustPressureThreshold(*body.Delta)
	a.changed(v)
	writeJSON(w, http.StatusOK, map[string]float64{"pressure_threshold": v})
}

func (a *Admin) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.controller.Stats())
}

func (a *Admin) changed(v float64) {
	log.Printf("admin: pressure threshold set to %.0f", v)
	if a.onChange != nil {
		a.onChange(v)
	}
}

// readJSON decodes a JSON request body.
func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16)).Decode(v)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
