package metrics_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/gateway/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
		time.Sleep(10 * time.Millisecond) // Allow goroutine to finish
	})

	Describe("NewCollector", func() {
		It("should create a collector with specified buffer size", func() {
			c := metrics.NewCollector(500, log)
			Expect(c).NotTo(BeNil())
		})
	})

	Describe("EventChannel", func() {
		It("should return a write-only channel", func() {
			ch := collector.EventChannel()
			Expect(ch).NotTo(BeNil())
		})
	})

	Describe("Start and event processing", func() {
		It("should process EventRequestReceived", func() {
			collector.Start(ctx)

			event := metrics.MetricEvent{
				Type:      metrics.EventRequestReceived,
				Timestamp: time.Now(),
				Service:   "billsApi",
			}

			collector.EventChannel() <- event
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Services["billsApi"].Requests).To(Equal(int64(1)))
		})

		It("should process EventCircuitRejected", func() {
			collector.Start(ctx)

			event := metrics.MetricEvent{
				Type:      metrics.EventCircuitRejected,
				Timestamp: time.Now(),
				Service:   "billsApi",
			}

			collector.EventChannel() <- event
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Services["billsApi"].CircuitRejections).To(Equal(int64(1)))
		})

		It("should process EventResponseCompleted", func() {
			collector.Start(ctx)

			event := metrics.MetricEvent{
				Type:       metrics.EventResponseCompleted,
				Timestamp:  time.Now(),
				Service:    "billsApi",
				Duration:   100 * time.Millisecond,
				StatusCode: 200,
				ErrorKind:  "none",
			}

			collector.EventChannel() <- event
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			svc := snap.Services["billsApi"]
			Expect(svc.AvgResponse).To(Equal(100 * time.Millisecond))
			Expect(svc.StatusCodes[200]).To(Equal(int64(1)))
			Expect(svc.Outcomes["none"]).To(Equal(int64(1)))
		})

		It("should process EventClientError", func() {
			collector.Start(ctx)

			event := metrics.MetricEvent{
				Type:      metrics.EventClientError,
				Timestamp: time.Now(),
				Reason:    metrics.ReasonNoRoute,
			}

			collector.EventChannel() <- event
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.ClientErrors[metrics.ReasonNoRoute]).To(Equal(int64(1)))
		})

		It("should process multiple events in sequence", func() {
			collector.Start(ctx)

			events := []metrics.MetricEvent{
				{
					Type:      metrics.EventRequestReceived,
					Timestamp: time.Now(),
					Service:   "billsApi",
				},
				{
					Type:      metrics.EventCircuitRejected,
					Timestamp: time.Now(),
					Service:   "billsApi",
				},
				{
					Type:       metrics.EventResponseCompleted,
					Timestamp:  time.Now(),
					Service:    "billsApi",
					Duration:   50 * time.Millisecond,
					StatusCode: 201,
					ErrorKind:  "none",
				},
			}

			for _, event := range events {
				collector.EventChannel() <- event
			}
			time.Sleep(20 * time.Millisecond)

			snap := collector.Snapshot()
			svc := snap.Services["billsApi"]
			Expect(svc.Requests).To(Equal(int64(1)))
			Expect(svc.CircuitRejections).To(Equal(int64(1)))
			Expect(svc.AvgResponse).To(Equal(50 * time.Millisecond))
			Expect(svc.StatusCodes[201]).To(Equal(int64(1)))
		})

		It("should drain events on context cancellation", func() {
			collector.Start(ctx)

			// Send events before cancellation
			for i := 0; i < 5; i++ {
				collector.EventChannel() <- metrics.MetricEvent{
					Type:      metrics.EventRequestReceived,
					Timestamp: time.Now(),
					Service:   "billsApi",
				}
			}

			cancel()
			time.Sleep(20 * time.Millisecond)

			snap := collector.Snapshot()
			// All events should be processed via drain
			Expect(snap.Services["billsApi"].Requests).To(Equal(int64(5)))
		})
	})

	Describe("Handler", func() {
		It("should serve the current snapshot as JSON", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventRequestReceived,
				Timestamp: time.Now(),
				Service:   "billsApi",
			}
			time.Sleep(10 * time.Millisecond)

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			rec := httptest.NewRecorder()
			collector.Handler()(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.TotalRequests).To(Equal(int64(1)))
		})
	})

	Describe("Snapshot", func() {
		It("should return current metrics snapshot", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventRequestReceived,
				Timestamp: time.Now(),
				Service:   "billsApi",
			}
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.TotalRequests).To(Equal(int64(1)))
			Expect(snap.Uptime).To(BeNumerically(">", 0))
		})
	})
})
