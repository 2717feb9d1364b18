package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"pulseops/src/logger"
	"pulseops/src/models"
)

// pulsegen drives a running pulse-ops instance with synthetic traffic: it
// posts sentiment pulses at a fixed rate and subscribes to the live feed to
// confirm the events come back out.

var desks = []string{"apac-fx", "emea-rates", "us-credit", "latam-equity"}

// -----------------------------------------------------------------------------

func main() {

	// 1. Parse command line flags
	addr := flag.String("addr", "localhost:8090", "host:port of the pulse-ops server")
	wsPath := flag.String("ws", "/ws/pulse", "websocket path of the live feed")
	rate := flag.Float64("rate", 5, "pulses per second")
	token := flag.String("token", "", "bearer token (empty for anonymous servers)")
	duration := flag.Duration("duration", 0, "how long to run (0 = until interrupted)")
	flag.Parse()

	log := logger.NewLogger(nil, "pulsegen")

	if *rate <= 0 {
		log.Critical("rate must be positive, got %f", *rate)
	}

	var sent, received atomic.Int64

	// 2. Subscribe to the live feed
	conn := dialFeed(log, *addr, *wsPath, *token)
	defer conn.Close()

	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				log.Info("Feed closed: %v", err)
				return
			}

			var event models.MPulseEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				log.Warning("Undecodable frame: %v", err)
				continue
			}

			if n := received.Add(1); n%50 == 0 {
				log.Info("Received %d events, latest hope=%.3f sorrow=%.3f",
					n, event.Composites.Hope, event.Composites.Sorrow)
			}
		}
	}()

	// 3. Produce pulses until interrupted or the duration elapses
	ticker := time.NewTicker(time.Duration(float64(time.Second) / *rate))
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	endpoint := fmt.Sprintf("http://%s/api/pulse", *addr)
	log.Info("Posting %.1f pulses/s to %s", *rate, endpoint)

	step := 0
	for {
		select {
		case <-ticker.C:
			if err := postPulse(endpoint, *token, step); err != nil {
				log.Warning("Post failed: %v", err)
			} else {
				sent.Add(1)
			}
			step++

		case <-quit:
			report(log, sent.Load(), received.Load())
			return

		case <-deadline:
			report(log, sent.Load(), received.Load())
			return
		}
	}
}

// -----------------------------------------------------------------------------

func dialFeed(log *logger.Logger, addr, path, token string) *websocket.Conn {
	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	if token != "" {
		u.RawQuery = url.Values{"access_token": {token}}.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		log.Critical("Cannot subscribe to %s (status %d): %v", u.String(), status, err)
	}

	log.Info("Subscribed to %s", u.String())
	return conn
}

// -----------------------------------------------------------------------------

func postPulse(endpoint, token string, step int) error {
	// The mood swings through a slow cycle so the KPI window shows real
	// movement instead of white noise.
	phase := float64(step) / 40.0
	hope := clamp(0.5+0.35*math.Sin(phase)+0.1*(rand.Float64()-0.5), 0, 1)
	sorrow := clamp(1-hope+0.1*(rand.Float64()-0.5), 0, 1)

	body := map[string]interface{}{
		"composites": models.MComposites{Hope: hope, Sorrow: sorrow},
		"metadata": map[string]interface{}{
			"desk":   desks[rand.Intn(len(desks))],
			"source": "pulsegen",
		},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server answered %s", resp.Status)
	}
	return nil
}

// -----------------------------------------------------------------------------

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// -----------------------------------------------------------------------------

func report(log *logger.Logger, sent, received int64) {
	log.Info("Done: %d posted, %d received on the feed", sent, received)
}
