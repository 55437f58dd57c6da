package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/crystal-mush/sensorbridge/pkg/admin"
	"github.com/crystal-mush/sensorbridge/pkg/bridge"
	"github.com/crystal-mush/sensorbridge/pkg/conf"
	"github.com/crystal-mush/sensorbridge/pkg/settings"
	"github.com/crystal-mush/sensorbridge/pkg/tick"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// envInt returns the environment variable as an int if set and valid, otherwise the fallback.
func envInt(envVar string, fallback int) int {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("BRIDGE_CONF", ""), "Path to bridge config file (env: BRIDGE_CONF)")
	host := flag.String("host", envDefault("BRIDGE_HOST", ""), "Bind address, overrides config (env: BRIDGE_HOST)")
	port := flag.Int("port", envInt("BRIDGE_PORT", 0), "TCP port to listen on, overrides config (env: BRIDGE_PORT)")
	threshold := flag.Float64("threshold", -1, "Initial pressure threshold, overrides config and saved settings (env: BRIDGE_THRESHOLD)")
	settingsDB := flag.String("settings", envDefault("BRIDGE_SETTINGS", ""), "Path to bbolt settings database (env: BRIDGE_SETTINGS)")
	tickRate := flag.Int("tick-rate", envInt("BRIDGE_TICK_RATE", 0), "Run the logging tick consumer at N ticks/second (env: BRIDGE_TICK_RATE)")
	verbose := flag.Bool("verbose", os.Getenv("BRIDGE_VERBOSE") == "true", "Log discarded frames (env: BRIDGE_VERBOSE)")
	hashPass := flag.String("hashpass", "", "Print a bcrypt hash for admin_password_hash and exit")
	flag.Parse()

	if *hashPass != "" {
		hash, err := admin.HashPassword(*hashPass)
		if err != nil {
			log.Fatalf("Error hashing password: %v", err)
		}
		fmt.Println(hash)
		fmt.Println("jwt_secret suggestion:", admin.GenerateJWTSecret())
		return
	}

	log.Printf("Welcome to %s", bridge.VersionString())

	if *threshold < 0 {
		if v := os.Getenv("BRIDGE_THRESHOLD"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
				*threshold = f
			}
		}
	}

	// Load config if specified, otherwise use defaults
	var bc *conf.BridgeConf
	if *confFile != "" {
		var err error
		bc, err = conf.LoadBridgeConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		log.Printf("Loaded config from %s", *confFile)
	} else {
		bc = conf.DefaultBridgeConf()
	}

	// Command-line flags override config file values
	if *host != "" {
		bc.Host = *host
	}
	if *port != 0 {
		bc.Port = *port
	}
	if *settingsDB != "" {
		bc.SettingsDB = *settingsDB
	}
	if *tickRate != 0 {
		bc.TickRate = *tickRate
	}
	if *verbose {
		bc.Verbose = true
	}
	if err := bc.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Threshold precedence: flag, then saved operator setting, then config.
	initial := bc.PressureThreshold
	var store *settings.Store
	if bc.SettingsDB != "" {
		var err error
		store, err = settings.Open(bc.SettingsDB)
		if err != nil {
			log.Fatalf("Error opening settings: %v", err)
		}
		defer store.Close()
		if v, ok, err := store.Threshold(); err != nil {
			log.Printf("WARNING: %v", err)
		} else if ok {
			initial = v
			log.Printf("Restored pressure threshold %.0f from %s", v, store.Path())
		}
	}
	if *threshold >= 0 {
		initial = *threshold
	}

	cfg := bridge.DefaultConfig()
	cfg.Host = bc.Host
	cfg.Port = bc.Port
	cfg.PressureThreshold = initial
	cfg.QueueCapacity = bc.QueueCapacity
	cfg.MaxFrameBytes = bc.MaxFrameBytes
	cfg.ReadTimeout = bc.ReadTimeoutDuration()
	cfg.FrameRate = bc.FrameRate
	cfg.FrameBurst = bc.FrameBurst
	cfg.UpgradeRate = bc.UpgradeRate
	cfg.AllowedOrigins = bc.AllowedOrigins
	cfg.Verbose = bc.Verbose

	srv := bridge.New(cfg)

	save := func(v float64) {
		if store == nil {
			return
		}
		if err := store.SaveThreshold(v); err != nil {
			log.Printf("WARNING: %v", err)
		}
	}

	if bc.AdminEnabled {
		a := admin.New(srv, admin.Config{
			PasswordHash: bc.AdminPasswordHash,
			JWTSecret:    bc.JWTSecret,
			JWTExpiry:    bc.JWTExpiry,
			OnChange:     save,
		})
		srv.Handle("/api/v1/", a.Handler())
		if bc.AdminPasswordHash == "" {
			log.Printf("WARNING: admin API enabled without admin_password_hash; threshold changes are unauthenticated")
		}
		log.Printf("Admin API enabled at /api/v1/")
	}

	// Live config reload: only a changed pressure_threshold is applied, so an
	// unrelated edit does not undo a value set through the admin API.
	if *confFile != "" {
		var mu sync.Mutex
		last := bc.PressureThreshold
		w, err := conf.Watch(*confFile, func(nc *conf.BridgeConf) {
			mu.Lock()
			defer mu.Unlock()
			if nc.PressureThreshold == last {
				return
			}
			last = nc.PressureThreshold
			srv.SetPressureThreshold(nc.PressureThreshold)
			save(nc.PressureThreshold)
			log.Printf("Config reload: pressure threshold set to %.0f", nc.PressureThreshold)
		})
		if err != nil {
			log.Printf("WARNING: config watch disabled: %v", err)
		} else {
			defer w.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if bc.TickRate > 0 {
		loop := &tick.Loop{Source: srv, Rate: bc.TickRate, Apply: logFrame}
		go loop.Run(ctx)
	}

	go func() {
		<-ctx.Done()
		log.Printf("Shutting down %s...", bc.Name)
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting %s on port %d (pressure threshold %.0f)...", bc.Name, bc.Port, srv.PressureThreshold())
	if ip := bridge.LocalAddress(); ip != "" {
		log.Printf("Connect your controller to ws://%s/ws", net.JoinHostPort(ip, strconv.Itoa(bc.Port)))
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// logFrame is the Apply hook for the reference consumer. It logs ticks that
// carried input.
func logFrame(f tick.Frame) {
	if len(f.Events) == 0 && len(f.Latest) == 0 {
		return
	}
	log.Printf("tick %d: %d events, %d controllers, movement=%s shoot=%v",
		f.Tick, len(f.Events), len(f.Latest), f.Input.Movement, f.Input.Shoot)
}
