package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// SetupHTTPClient builds the HTTP client used to reach the external contact
// service. Pool settings left at zero fall back to defaults, and every request
// is bounded by the configured timeout.
func SetupHTTPClient(cfg *ContactAPIConfig, logger *slog.Logger) (*http.Client, error) {
	if cfg == nil {
		return nil, errors.New("contact api config is nil")
	}
	if logger == nil {
		return nil, errors.New("logger is nil")
	}

	idle, err := time.ParseDuration(effectiveIdleConnTimeout(cfg.Pool.IdleConnTimeout))
	if err != nil {
		return nil, fmt.Errorf("invalid pool.idle_conn_timeout %q: %w", cfg.Pool.IdleConnTimeout, err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          effectiveMaxIdleConns(cfg.Pool.MaxIdleConns),
		MaxIdleConnsPerHost:   effectiveMaxIdleConnsPerHost(cfg.Pool.MaxIdleConnsPerHost),
		IdleConnTimeout:       idle,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.UpstreamTimeout(),
	}

	logger.Info("contact service client configured",
		slog.String("base_url", cfg.BaseURL),
		slog.Duration("timeout", client.Timeout),
		slog.Int("max_idle_conns", transport.MaxIdleConns),
		slog.Int("max_idle_conns_per_host", transport.MaxIdleConnsPerHost),
		slog.Duration("idle_conn_timeout", idle),
	)

	return client, nil
}

func effectiveMaxIdleConns(v int) int {
	if v <= 0 {
		return 10
	}
	return v
}

func effectiveMaxIdleConnsPerHost(v int) int {
	if v <= 0 {
		return 10
	}
	return v
}

func effectiveIdleConnTimeout(v string) string {
	if v == "" {
		return "90s"
	}
	return v
}
