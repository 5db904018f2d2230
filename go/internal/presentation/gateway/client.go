package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// ClientConfig holds settings for a remote screen connection
type ClientConfig struct {
	GatewayURL string // http(s) base URL of the gateway
	ClientID   string
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// DefaultClientConfig returns default client settings
func DefaultClientConfig(gatewayURL string) ClientConfig {
	return ClientConfig{
		GatewayURL: gatewayURL,
		ClientID:   "screen-" + uuid.New().String()[:8],
		MinBackoff: 500 * time.Millisecond,
		MaxBackoff: 15 * time.Second,
	}
}

// Client subscribes to session records through a gateway's websocket. It
// implements session.Subscriber for readers running outside the gateway.
// Lost connections are redialed with backoff; nothing is delivered while
// disconnected, so readers keep their last state
type Client struct {
	cfg    ClientConfig
	dialer *websocket.Dialer
}

// NewClient creates a gateway client
func NewClient(cfg ClientConfig) *Client {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	return &Client{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Subscribe starts following code in the background. It only fails for an
// invalid gateway URL or session code
func (c *Client) Subscribe(ctx context.Context, code string, onChange func(session.Record)) (session.Unsubscribe, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, session.ErrInvalidSessionCode
	}
	target, err := c.sessionURL(code)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &clientSubscription{
		client:   c,
		target:   target,
		code:     code,
		onChange: onChange,
		finished: make(chan struct{}),
	}
	go s.run(runCtx)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			s.closeConn()
			<-s.finished
		})
	}, nil
}

func (c *Client) sessionURL(code string) (string, error) {
	u, err := url.Parse(c.cfg.GatewayURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported gateway url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/session"

	q := url.Values{}
	q.Set("session_code", code)
	if c.cfg.ClientID != "" {
		q.Set("client_id", c.cfg.ClientID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type clientSubscription struct {
	client   *Client
	target   string
	code     string
	onChange func(session.Record)
	finished chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *clientSubscription) run(ctx context.Context) {
	defer close(s.finished)

	backoff := s.client.cfg.MinBackoff
	for {
		conn, _, err := s.client.dialer.DialContext(ctx, s.target, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().
				Err(err).
				Str("session_code", s.code).
				Dur("retry_in", backoff).
				Msg("failed to connect to gateway")
		} else {
			backoff = s.client.cfg.MinBackoff
			if !s.setConn(ctx, conn) {
				return
			}
			log.Info().Str("session_code", s.code).Msg("connected to gateway")

			s.readLoop(ctx, conn)
			s.closeConn()
			if ctx.Err() != nil {
				return
			}
			log.Warn().
				Str("session_code", s.code).
				Dur("retry_in", backoff).
				Msg("gateway connection lost, keeping last state")
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff *= 2
		if backoff > s.client.cfg.MaxBackoff {
			backoff = s.client.cfg.MaxBackoff
		}
	}
}

func (s *clientSubscription) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Debug().Err(err).Str("session_code", s.code).Msg("gateway read failed")
			}
			return
		}

		var event SessionEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn().Err(err).Str("session_code", s.code).Msg("skipping malformed gateway message")
			continue
		}
		rec, err := event.Record()
		if err != nil {
			log.Warn().Err(err).Str("session_code", s.code).Msg("skipping gateway event")
			continue
		}
		if rec.IsEmpty() || ctx.Err() != nil {
			continue
		}
		s.onChange(rec)
	}
}

// setConn records the live connection, or closes it if the subscription
// has already been released
func (s *clientSubscription) setConn(ctx context.Context, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		conn.Close()
		return false
	}
	s.conn = conn
	return true
}

func (s *clientSubscription) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
