// Package config assembles the runtime configuration for the proxy from
// built-in defaults, command line flags, an optional YAML file and
// PROXY_-prefixed environment variables; see Load for which source sets
// which setting.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Strategy selects the load balancing algorithm built by
// loadbalancer.New. Unknown values are rejected at load time rather than silently
// falling back to a default.
type Strategy string

const (
	RoundRobin Strategy = "round-robin"
	Random     Strategy = "random"
)

// IPFilterMode selects how the Allow/Deny lists are interpreted.
type IPFilterMode string

const (
	AllowListMode IPFilterMode = "allow-list"
	DenyListMode  IPFilterMode = "deny-list"
)

// Backend describes one origin server as given in configuration.
type Backend struct {
	ID     string `mapstructure:"id"`
	URL    string `mapstructure:"url"`
	Weight int    `mapstructure:"weight"`
}

// Config is the fully-materialized view of the proxy's runtime knobs.
// Load returns a pointer to a freshly built Config, and consumers share
// that pointer; nothing in the proxy mutates a Config after Load returns.
type Config struct {
	ListenAddr  string
	MetricsAddr string
	ProxyID     string

	ShutdownGrace time.Duration

	Backends []Backend

	Balancer struct {
		Strategy Strategy
	}

	Breaker struct {
		FailureThreshold int
		OpenDuration     time.Duration
		HalfOpenRequests int
	}

	Security struct {
		IP struct {
			Mode  IPFilterMode
			Allow []string
			Deny  []string
		}
		Rate struct {
			Limit    int
			WindowS  int
			CleanEvery time.Duration
		}
		StrictQueryCheck   bool
		AllowedContentTypes []string
	}

	WS struct {
		PingInterval time.Duration
		IdleTimeout  time.Duration
	}

	SSE struct {
		RetryHint         time.Duration
		HeartbeatInterval time.Duration
	}

	Upstream struct {
		DialTimeout   time.Duration
		HeaderTimeout time.Duration
	}
}

func defaults() *Config {
	c := &Config{
		ListenAddr:  ":9090",
		MetricsAddr: ":9911",
		ProxyID:     "originproxy",
	}
	c.ShutdownGrace = 15 * time.Second
	c.Balancer.Strategy = RoundRobin
	c.Breaker.FailureThreshold = 50
	c.Breaker.OpenDuration = 60 * time.Second
	c.Breaker.HalfOpenRequests = 1
	c.Security.IP.Mode = DenyListMode
	c.Security.Rate.Limit = 0 // 0 = disabled
	c.Security.Rate.WindowS = 1
	c.Security.Rate.CleanEvery = 5 * time.Minute
	c.Security.StrictQueryCheck = true
	c.WS.PingInterval = 30 * time.Second
	c.WS.IdleTimeout = 90 * time.Second
	c.SSE.RetryHint = 3 * time.Second
	c.SSE.HeartbeatInterval = 15 * time.Second
	c.Upstream.DialTimeout = 5 * time.Second
	c.Upstream.HeaderTimeout = 10 * time.Second
	return c
}

// Load builds a Config. Listener addresses, balancer strategy, breaker
// failure threshold and open duration, IP filter mode and rate limit and
// window come from command line flags, which default to the built-in
// values; the file and the environment do not set these. The YAML
// document named by --config-file supplies the backends (${VAR}
// references in their URLs are expanded from the environment), the IP
// allow/deny lists and the allowed content types; PROXY_-prefixed
// environment variables (e.g. PROXY_SECURITY_IP_ALLOW) override those
// list keys and are only consulted when a file is given. Every other
// setting keeps its built-in default. Without a file no backends are
// configured and Load returns an error.
func Load(args []string) (*Config, error) {
	cfg := defaults()

	fs := pflag.NewFlagSet("originproxy", pflag.ContinueOnError)
	configFile := fs.String("config-file", "", "path to a YAML configuration file")
	listenAddr := fs.String("listen-addr", cfg.ListenAddr, "inbound listener address")
	metricsAddr := fs.String("metrics-addr", cfg.MetricsAddr, "metrics listener address")
	strategy := fs.String("balancer-strategy", string(cfg.Balancer.Strategy), "round-robin or random")
	failureThreshold := fs.Int("breaker-failure-threshold", cfg.Breaker.FailureThreshold, "consecutive failures before opening the circuit")
	openDuration := fs.Duration("breaker-open-duration", cfg.Breaker.OpenDuration, "minimum dwell time in OPEN before a probe")
	ipMode := fs.String("security-ip-mode", string(cfg.Security.IP.Mode), "allow-list or deny-list")
	rateLimit := fs.Int("security-rate-limit", cfg.Security.Rate.Limit, "requests per window per client IP, 0 disables")
	rateWindow := fs.Int("security-rate-window-s", cfg.Security.Rate.WindowS, "rate limit window size in seconds")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("PROXY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", *configFile, err)
		}
		var backends []Backend
		if err := v.UnmarshalKey("backends", &backends); err != nil {
			return nil, fmt.Errorf("config: decode backends: %w", err)
		}
		for i := range backends {
			backends[i].URL = expandEnv(backends[i].URL)
			if backends[i].Weight <= 0 {
				backends[i].Weight = 1
			}
		}
		cfg.Backends = backends

		cfg.Security.IP.Allow = v.GetStringSlice("security.ip.allow")
		cfg.Security.IP.Deny = v.GetStringSlice("security.ip.deny")
		cfg.Security.AllowedContentTypes = v.GetStringSlice("security.allowed_content_types")
	}

	cfg.ListenAddr = *listenAddr
	cfg.MetricsAddr = *metricsAddr
	cfg.Breaker.FailureThreshold = *failureThreshold
	cfg.Breaker.OpenDuration = *openDuration
	cfg.Security.IP.Mode = IPFilterMode(*ipMode)
	cfg.Security.Rate.Limit = *rateLimit
	cfg.Security.Rate.WindowS = *rateWindow

	switch Strategy(*strategy) {
	case RoundRobin, Random:
		cfg.Balancer.Strategy = Strategy(*strategy)
	default:
		return nil, fmt.Errorf("config: unknown balancer strategy %q", *strategy)
	}

	switch cfg.Security.IP.Mode {
	case AllowListMode, DenyListMode:
	default:
		return nil, fmt.Errorf("config: unknown security.ip.mode %q", cfg.Security.IP.Mode)
	}

	if len(cfg.Backends) == 0 {
		return nil, fmt.Errorf("config: no backends configured")
	}

	return cfg, nil
}

func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}
