package launch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Path of the liveness endpoint served by the proxied service.
const HealthPath = "/health"

// Checks the service's liveness endpoint once.
//
// Wildcard listen hosts are probed through loopback. A transport error or a
// non-2xx status wraps [ErrUnhealthy].
func Probe(ctx context.Context, cfg *Config, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := "http://" + joinHostPort(probeHost(cfg.TranslateHost), cfg.TranslatePort) + HealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", ErrUnhealthy, url, resp.StatusCode)
	}
	return nil
}

// Maps wildcard listen hosts to their loopback equivalent.
func probeHost(host string) string {
	switch host {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::", "[::]":
		return "::1"
	}
	return host
}
