package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/gateway/config"
)

const validConfig = `
server:
  address: ":8080"
  environment: "dev"

health_check:
  interval: "10s"
  probe_timeout: "2s"

breaker:
  failure_threshold: 3
  reset_timeout: "30s"

services:
  - name: "billsApi"
    base_url: "http://localhost:9100"
    health_path: "/healthz"
    timeout: "5s"
  - name: "votesApi"
    base_url: "http://localhost:9200"

routes:
  - path_prefix: "/api/bills"
    service_name: "billsApi"
    rewrite_from: "/api/bills"
    rewrite_to: "/v1/bills"
    description: "bills service"
  - path_prefix: "/api/votes"
    service_name: "votesApi"

logging:
  level: "info"
`

var _ = Describe("Config", func() {
	var (
		tempDir string
		origDir string
	)

	writeConfig := func(content string) {
		configPath := filepath.Join(tempDir, "config.yaml")
		err := os.WriteFile(configPath, []byte(content), 0644)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tempDir)
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())

		viper.Reset()
	})

	AfterEach(func() {
		os.Chdir(origDir)
		os.RemoveAll(tempDir)
		os.Unsetenv("SERVER_ADDRESS")
	})

	Describe("Load", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				writeConfig(validConfig)
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
			})

			It("should parse services", func() {
				cfg, _ := config.Load()
				Expect(cfg.Services).To(HaveLen(2))
				Expect(cfg.Services[0].Name).To(Equal("billsApi"))
				Expect(cfg.Services[0].BaseURL).To(Equal("http://localhost:9100"))
			})

			It("should parse routes in file order", func() {
				cfg, _ := config.Load()
				Expect(cfg.Routes).To(HaveLen(2))
				Expect(cfg.Routes[0].PathPrefix).To(Equal("/api/bills"))
				Expect(cfg.Routes[0].RewriteTo).To(Equal("/v1/bills"))
			})

			It("should apply per-service defaults", func() {
				cfg, _ := config.Load()
				Expect(cfg.Services[1].HealthPath).To(Equal("/healthz"))
				Expect(cfg.Services[1].Timeout).To(Equal("5s"))
			})

			It("should parse breaker tuning", func() {
				cfg, _ := config.Load()
				Expect(cfg.Breaker.FailureThreshold).To(Equal(3))
				Expect(cfg.Breaker.ResetTimeoutDuration()).To(Equal(30 * time.Second))
			})

			It("should expose parsed durations", func() {
				cfg, _ := config.Load()
				Expect(cfg.HealthCheck.IntervalDuration()).To(Equal(10 * time.Second))
				Expect(cfg.HealthCheck.ProbeTimeoutDuration()).To(Equal(2 * time.Second))
				Expect(cfg.Services[0].TimeoutDuration()).To(Equal(5 * time.Second))
				Expect(cfg.Server.ShutdownGraceDuration()).To(Equal(10 * time.Second))
			})
		})

		Context("with environment variables", func() {
			BeforeEach(func() {
				writeConfig(validConfig)
			})

			It("should override file values", func() {
				os.Setenv("SERVER_ADDRESS", ":9999")

				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":9999"))
			})
		})

		Context("with no config file", func() {
			BeforeEach(func() {
				err := os.Chdir(tempDir)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should fail validation because no services are configured", func() {
				_, err := config.Load()
				Expect(err).To(HaveOccurred())
			})
		})

		DescribeTable("rejecting invalid configuration",
			func(mutate string, fragment string) {
				writeConfig(mutate)

				_, err := config.Load()
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(fragment))
			},
			Entry("dangling route reference", `
server:
  address: ":8080"
  environment: "dev"
services:
  - name: "billsApi"
    base_url: "http://localhost:9100"
routes:
  - path_prefix: "/api/bills"
    service_name: "ghostApi"
logging:
  level: "info"
`, "unknown service"),
			Entry("duplicate service names", `
server:
  address: ":8080"
  environment: "dev"
services:
  - name: "billsApi"
    base_url: "http://localhost:9100"
  - name: "billsApi"
    base_url: "http://localhost:9200"
routes:
  - path_prefix: "/api/bills"
    service_name: "billsApi"
logging:
  level: "info"
`, "duplicate service"),
			Entry("duplicate route prefixes", `
server:
  address: ":8080"
  environment: "dev"
services:
  - name: "billsApi"
    base_url: "http://localhost:9100"
routes:
  - path_prefix: "/api/bills"
    service_name: "billsApi"
  - path_prefix: "/api/bills"
    service_name: "billsApi"
logging:
  level: "info"
`, "duplicate route prefix"),
			Entry("invalid service URL scheme", `
server:
  address: ":8080"
  environment: "dev"
services:
  - name: "billsApi"
    base_url: "ftp://localhost:9100"
routes:
  - path_prefix: "/api/bills"
    service_name: "billsApi"
logging:
  level: "info"
`, "http or https"),
			Entry("invalid breaker reset timeout", `
server:
  address: ":8080"
  environment: "dev"
breaker:
  failure_threshold: 3
  reset_timeout: "soon"
services:
  - name: "billsApi"
    base_url: "http://localhost:9100"
routes:
  - path_prefix: "/api/bills"
    service_name: "billsApi"
logging:
  level: "info"
`, "valid duration"),
			Entry("relative route prefix", `
server:
  address: ":8080"
  environment: "dev"
services:
  - name: "billsApi"
    base_url: "http://localhost:9100"
routes:
  - path_prefix: "api/bills"
    service_name: "billsApi"
logging:
  level: "info"
`, "must start with /"),
			Entry("route shadowing a gateway endpoint", `
server:
  address: ":8080"
  environment: "dev"
services:
  - name: "billsApi"
    base_url: "http://localhost:9100"
routes:
  - path_prefix: "/services"
    service_name: "billsApi"
logging:
  level: "info"
`, "shadows"),
			Entry("half-configured rewrite", `
server:
  address: ":8080"
  environment: "dev"
services:
  - name: "billsApi"
    base_url: "http://localhost:9100"
routes:
  - path_prefix: "/api/bills"
    service_name: "billsApi"
    rewrite_from: "/api/bills"
logging:
  level: "info"
`, "rewrite_from and rewrite_to"),
			Entry("unknown environment", `
server:
  address: ":8080"
  environment: "moon"
services:
  - name: "billsApi"
    base_url: "http://localhost:9100"
routes:
  - path_prefix: "/api/bills"
    service_name: "billsApi"
logging:
  level: "info"
`, "must be a valid value"),
		)
	})
})
