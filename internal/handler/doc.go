// Package handler implements the gateway's HTTP request dispatcher.
// It coordinates route matching, circuit-breaker gating, reverse proxying,
// and outcome reporting.
package handler
