package metrics

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Transport wraps an http.RoundTripper and records request metrics.
type Transport struct {
	base   http.RoundTripper
	reg    *Registry
	logger *zap.Logger
}

// NewTransport instruments base. A nil base uses http.DefaultTransport.
func NewTransport(reg *Registry, base http.RoundTripper, logger *zap.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{base: base, reg: reg, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.reg.InFlightInc()
	defer t.reg.InFlightDec()

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.reg.RecordRequest(req.Method, req.URL.Host, status, duration.Seconds())

	t.logger.Debug("http request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", status),
		zap.Duration("duration", duration),
		zap.Error(err),
	)

	return resp, err
}

// Client returns an http.Client using an instrumented default transport.
func (r *Registry) Client(timeout time.Duration, logger *zap.Logger) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(r, nil, logger),
	}
}
