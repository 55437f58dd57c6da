// Command sensorsim plays the part of a pressure-sensor controller: it
// connects to a sensorbridge and streams peak and stop frames.
package main

import (
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

const writeWait = 5 * time.Second

func main() {
	addr := flag.String("addr", envDefault("BRIDGE_ADDR", "localhost:3030"), "Bridge host:port (env: BRIDGE_ADDR)")
	path := flag.String("path", "/ws", "Upgrade path; old firmware used /")
	script := flag.String("script", "", "Comma-separated frames, e.g. peakleft:300,peakshoot:550,stop (default: random)")
	rate := flag.Float64("rate", 20, "Frames per second")
	count := flag.Int("count", 0, "Stop after N frames, 0 = run until interrupted (scripts loop)")
	maxPressure := flag.Float64("max", 1000, "Upper bound for random pressures")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	pingEvery := flag.Duration("ping", 10*time.Second, "Ping interval, 0 = never")
	flag.Parse()

	var frames []frame
	if *script != "" {
		var err error
		frames, err = parseScript(*script)
		if err != nil {
			log.Fatalf("Invalid script: %v", err)
		}
	}
	if err := checkFlags(*rate, *maxPressure); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}
	random := newRandomFrames(*seed, *maxPressure)

	u := url.URL{Scheme: "ws", Host: *addr, Path: *path}
	log.Printf("Connecting to %s", u.String())
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial error: %v", err)
	}
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		log.Printf("<- pong")
		return nil
	})

	// Reader: print the ack and anything else the bridge sends. Pongs reach
	// the handler above from inside ReadMessage.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			log.Printf("<- %s", msg)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *rate))
	defer ticker.Stop()

	var ping <-chan time.Time
	if *pingEvery > 0 {
		pt := time.NewTicker(*pingEvery)
		defer pt.Stop()
		ping = pt.C
	}

	sent := 0
	for {
		select {
		case <-readDone:
			log.Printf("Bridge closed the connection after %d frames", sent)
			return
		case <-interrupt:
			log.Printf("Interrupted after %d frames", sent)
			closeConn(conn, readDone)
			return
		case <-ping:
			if err := conn.WriteControl(websocket.PingMessage, []byte(strconv.Itoa(sent)), time.Now().Add(writeWait)); err != nil {
				log.Printf("Ping error: %v", err)
				return
			}
		case <-ticker.C:
			f := random.next()
			if frames != nil {
				f = frames[sent%len(frames)]
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				log.Printf("Write error: %v", err)
				return
			}
			log.Printf("-> %s", f)
			sent++
			if *count > 0 && sent >= *count {
				closeConn(conn, readDone)
				return
			}
		}
	}
}

// closeConn sends a normal close frame and waits briefly for the bridge to
// close its side.
func closeConn(conn *websocket.Conn, readDone <-chan struct{}) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		return
	}
	select {
	case <-readDone:
	case <-time.After(time.Second):
	}
}
