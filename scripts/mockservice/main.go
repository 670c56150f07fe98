// Mockservice is a configurable backend used for gateway testing.
// It answers every path with a JSON echo, exposes a health endpoint,
// and can be flipped into a failing mode at runtime.
//
// Usage:
//
//	go run scripts/mockservice/main.go -port 9001 -name billsApi
//
// POST /toggle flips the service between healthy and failing so the
// gateway's circuit breaker can be exercised without killing the process.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

func main() {
	var (
		port    = flag.Int("port", 9001, "port to listen on")
		name    = flag.String("name", "billsApi", "service name reported in responses")
		failing = flag.Bool("failing", false, "start in failing mode")
		latency = flag.Duration("latency", 0, "artificial delay before each response")
	)
	flag.Parse()

	var broken atomic.Bool
	broken.Store(*failing)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /toggle", func(w http.ResponseWriter, r *http.Request) {
		now := !broken.Load()
		broken.Store(now)
		log.Printf("toggled: failing=%v", now)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"failing":%v}`, now)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("request: method=%s path=%s from=%s", r.Method, r.URL.Path, r.RemoteAddr)

		if *latency > 0 {
			time.Sleep(*latency)
		}
		if broken.Load() {
			http.Error(w, "simulated backend failure", http.StatusInternalServerError)
			return
		}

		resp := map[string]any{
			"service":    *name,
			"id":         uuid.NewString(),
			"method":     r.Method,
			"path":       r.URL.Path,
			"receivedAt": time.Now().UTC().Format(time.RFC3339),
		}
		b, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting %s on %s (failing=%v)", *name, addr, *failing)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
