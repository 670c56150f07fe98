// Package registry tracks the gateway's backend services. It owns each
// service's descriptor (base URL, health endpoint, per-call timeout) and
// its polled health status, and runs one background poller per service for
// the lifetime of the process.
//
// Usage:
//
//	reg := registry.NewRegistry(5*time.Second, logger)
//	svc, _ := registry.NewService("billsApi", "http://localhost:9100", "/healthz", 5*time.Second)
//	_ = reg.Register(svc)
//	reg.StartHealthLoop(10 * time.Second)
//	defer reg.Shutdown()
package registry
