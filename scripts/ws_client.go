// Package main runs a demo WebSocket client for optimization events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect the stream first so we catch the started event.
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/optimizations/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			}
			if err := c.ReadJSON(&evt); err != nil {
				log.Printf("read: %v", err)
				return
			}
			raw, _ := json.Marshal(evt.Data)
			log.Printf("WS <- %s: %s", evt.Type, raw)
		}
	}()

	// Kick off a small solve.
	body := []byte(`{
	  "orders": [
	    {"id":"o1","address":{"lat":40.71,"lng":-74.00},"items":[{"product_id":"p1","weight_kg":10}],
	     "time_window":{"start":"2025-03-10T09:00:00Z","end":"2025-03-10T18:00:00Z"}},
	    {"id":"o2","address":{"lat":40.72,"lng":-74.01},"items":[{"product_id":"p2","weight_kg":20}],
	     "time_window":{"start":"2025-03-10T09:00:00Z","end":"2025-03-10T18:00:00Z"}}
	  ],
	  "vehicles": [{"id":"v1","capacity_kg":50,"current_location":{"lat":40.70,"lng":-74.00}}],
	  "optimization_type": "genetic_algorithm",
	  "ga": {"generations": 50, "seed": 7}
	}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var optResp struct {
		OptimizationID  string  `json:"optimization_id"`
		TotalDistanceKm float64 `json:"total_distance_km"`
		AlgorithmUsed   string  `json:"algorithm_used"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&optResp); err != nil {
		log.Fatal(err)
	}
	log.Printf("optimization %s via %s, %.1f km", optResp.OptimizationID, optResp.AlgorithmUsed, optResp.TotalDistanceKm)

	// Wait briefly to receive the lifecycle events.
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
