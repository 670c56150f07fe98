// Breakerdrill drives one gateway route through the full circuit breaker
// lifecycle: healthy traffic, backend failure, open circuit, recovery.
// It expects a mockservice instance as the backend so failures can be
// toggled on and off over HTTP.
//
// Usage:
//
//	go run scripts/breakerdrill/main.go -gateway http://localhost:8080 \
//	    -route /api/bills -service billsApi -backend http://localhost:9001
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	var (
		gatewayURL = flag.String("gateway", "http://localhost:8080", "Gateway URL")
		route      = flag.String("route", "/api/bills", "Routed path to exercise")
		service    = flag.String("service", "billsApi", "Service name behind the route")
		backendURL = flag.String("backend", "http://localhost:9001", "Mockservice URL for toggling failures")
		requests   = flag.Int("requests", 10, "Requests per phase")
		resetWait  = flag.Duration("reset-wait", 30*time.Second, "Breaker reset timeout to wait out before recovery")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println(colorCyan + "━━━ CIRCUIT BREAKER DRILL ━━━" + colorReset)
	fmt.Println()

	// PHASE 1: Healthy traffic through the route.
	fmt.Println(colorBlue + "━━━ PHASE 1: Healthy Traffic ━━━" + colorReset)

	okCount := 0
	for i := 0; i < *requests; i++ {
		status, servedBy, err := sendRequest(client, *gatewayURL+*route)
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		if status == http.StatusOK {
			okCount++
		} else {
			fmt.Printf(colorYellow+"  Request %d: Status=%d ServedBy=%s\n"+colorReset, i+1, status, servedBy)
		}
	}
	if okCount == 0 {
		fmt.Println(colorRed + "  ✗ No successful responses. Are the gateway and mockservice running?" + colorReset)
		os.Exit(1)
	}
	fmt.Printf(colorGreen+"  ✓ %d/%d requests succeeded\n"+colorReset, okCount, *requests)
	fmt.Println()

	// PHASE 2: Break the backend and count attempts until the circuit opens.
	fmt.Println(colorBlue + "━━━ PHASE 2: Backend Failure ━━━" + colorReset)

	if err := toggleBackend(client, *backendURL); err != nil {
		fmt.Printf(colorRed+"  ✗ Could not toggle backend: %v\n"+colorReset, err)
		os.Exit(1)
	}
	fmt.Println("  Backend flipped to failing mode, sending requests...")

	attempts := 0
	for i := 0; i < *requests; i++ {
		status, _, err := sendRequest(client, *gatewayURL+*route)
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		attempts++
		state, failures, err := breakerState(client, *gatewayURL, *service)
		if err == nil && state == "open" {
			fmt.Printf("  Circuit opened after %d failed attempts (status %d, failures %d)\n", attempts, status, failures)
			break
		}
	}

	state, _, err := breakerState(client, *gatewayURL, *service)
	if err != nil {
		fmt.Printf(colorRed+"  ✗ Could not read breaker state: %v\n"+colorReset, err)
		os.Exit(1)
	}
	if state != "open" {
		fmt.Printf(colorYellow+"  ⚠ Breaker is %q after %d attempts, expected open\n"+colorReset, state, attempts)
	} else {
		fmt.Println(colorGreen + "  ✓ Circuit is open, requests now fail fast" + colorReset)
	}
	fmt.Println()

	// PHASE 3: Recovery through a half-open probe.
	fmt.Println(colorBlue + "━━━ PHASE 3: Recovery ━━━" + colorReset)

	if err := toggleBackend(client, *backendURL); err != nil {
		fmt.Printf(colorRed+"  ✗ Could not toggle backend: %v\n"+colorReset, err)
		os.Exit(1)
	}
	fmt.Printf("  Backend healthy again, waiting %v for the reset timeout...\n", *resetWait)
	time.Sleep(*resetWait)

	status, _, err := sendRequest(client, *gatewayURL+*route)
	if err != nil {
		fmt.Printf(colorRed+"  ✗ Probe request failed: %v\n"+colorReset, err)
		os.Exit(1)
	}
	fmt.Printf("  Probe request: status %d\n", status)

	state, failures, err := breakerState(client, *gatewayURL, *service)
	if err != nil {
		fmt.Printf(colorRed+"  ✗ Could not read breaker state: %v\n"+colorReset, err)
		os.Exit(1)
	}
	if state == "closed" && status == http.StatusOK {
		fmt.Println(colorGreen + "  ✓ Probe succeeded and the circuit closed" + colorReset)
	} else {
		fmt.Printf(colorYellow+"  ⚠ Breaker is %q with %d failures after the probe\n"+colorReset, state, failures)
	}
	fmt.Println()

	fmt.Println(colorCyan + "━━━ DRILL COMPLETE ━━━" + colorReset)
	fmt.Println("Check the gateway logs for state transition details.")
}

func sendRequest(client *http.Client, url string) (int, string, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, resp.Header.Get("X-Served-By"), nil
}

func toggleBackend(client *http.Client, backendURL string) error {
	resp, err := client.Post(backendURL+"/toggle", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("toggle returned status %d", resp.StatusCode)
	}
	return nil
}

func breakerState(client *http.Client, gatewayURL, service string) (string, int, error) {
	resp, err := client.Get(fmt.Sprintf("%s/services/%s/health", gatewayURL, service))
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	var health struct {
		CircuitBreaker struct {
			State               string `json:"state"`
			ConsecutiveFailures int    `json:"consecutiveFailures"`
		} `json:"circuitBreaker"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return "", 0, err
	}

	return health.CircuitBreaker.State, health.CircuitBreaker.ConsecutiveFailures, nil
}
