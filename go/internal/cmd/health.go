package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy        bool     `json:"healthy"`
	Store          string   `json:"store"`
	StoreConnected bool     `json:"store_connected"`
	Connections    int      `json:"connections"`
	Errors         []string `json:"errors,omitempty"`
}

// pinger is implemented by stores backed by a connection.
type pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	services *Services
	store    string
	timeout  time.Duration
}

func NewHealthChecker(services *Services, store string) *HealthChecker {
	return &HealthChecker{
		services: services,
		store:    store,
		timeout:  2 * time.Second,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:        true,
		Store:          h.store,
		StoreConnected: true,
		Connections:    h.services.Gateway.GetStats().TotalConnections,
	}

	if p, ok := h.services.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			status.Healthy = false
			status.StoreConnected = false
			status.Errors = append(status.Errors, "store: "+err.Error())
		}
	}
	return status
}

// ServeHTTP answers 200 when healthy and 503 otherwise.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
