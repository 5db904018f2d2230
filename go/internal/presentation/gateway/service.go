package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// Service is the presentation gateway: it fans session records out to
// screens over WebSocket and exposes the controller RPC and state endpoints
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	relay             *Relay
	stateHandler      *StateHandler
	controller        *ControllerService
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new gateway service over store. controller may be
// nil for a read-only gateway
func NewService(config Config, store session.Store, controller ControllerApp) *Service {
	relay := NewRelay(store)
	connectionManager := NewConnectionManager(config.ConnectionConfig, relay)
	relay.SetBroadcaster(connectionManager)

	stateProvider := NewSessionStateProvider(store, relay, connectionManager)

	s := &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, store),
		relay:             relay,
		stateHandler:      NewStateHandler(stateProvider),
	}
	if controller != nil {
		s.controller = NewControllerService(controller)
	}
	return s
}

// Start runs the broadcast loop until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting presentation gateway service")

	s.connectionManager.Start(ctx)

	log.Info().Msg("presentation gateway service shutting down")
	return s.Stop()
}

// Stop releases every relayed subscription
func (s *Service) Stop() error {
	s.relay.Close()
	log.Info().Msg("presentation gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket, state and controller routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	if s.controller != nil {
		path, handler := NewControllerServiceHandler(s.controller)
		mux.Handle(path, handler)
	}
	log.Info().Msg("presentation gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
