package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// Config holds the connection and bucket settings.
type Config struct {
	URL           string
	Bucket        string
	History       uint8
	TTL           time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Bucket:        "SESSIONS",
		History:       1,
		TTL:           24 * time.Hour,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

var validKey = regexp.MustCompile(`^[-/_=\.a-zA-Z0-9]+$`)

// Store keeps one KeyValue entry per session code. Subscriptions are KV
// watches, so a reconnecting client receives the latest value again.
type Store struct {
	nc  *nats.Conn
	kv  jetstream.KeyValue
	cfg Config
}

// Connect dials NATS and creates the bucket if it does not exist.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	opts := []nats.Option{
		nats.Name("presentation-session-store"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Presentation session records",
		History:     cfg.History,
		TTL:         cfg.TTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}

	log.Info().
		Str("url", cfg.URL).
		Str("bucket", cfg.Bucket).
		Msg("connected to session bucket")

	return &Store{nc: nc, kv: kv, cfg: cfg}, nil
}

// Close drains the NATS connection.
func (s *Store) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}

// Ping reports whether the NATS connection is usable.
func (s *Store) Ping(_ context.Context) error {
	if s.nc == nil || !s.nc.IsConnected() {
		return fmt.Errorf("nats connection is %s", s.status())
	}
	return nil
}

func (s *Store) status() string {
	if s.nc == nil {
		return "closed"
	}
	return s.nc.Status().String()
}

// Get returns the current record for code.
func (s *Store) Get(ctx context.Context, code string) (session.Record, error) {
	key, err := keyFor(code)
	if err != nil {
		return session.Record{}, err
	}

	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return session.Record{}, session.ErrRecordNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("get %s: %w", key, err)
	}
	return decode(entry.Value())
}

// Put writes the whole record as a single KV value.
func (s *Store) Put(ctx context.Context, code string, rec session.Record) error {
	key, err := keyFor(code)
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	rev, err := s.kv.Put(ctx, key, data)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	log.Debug().
		Str("session_code", key).
		Uint64("revision", rev).
		Msg("session record stored")
	return nil
}

// Subscribe watches the key for code. The watch outlives ctx; it ends when
// the returned Unsubscribe is called.
func (s *Store) Subscribe(ctx context.Context, code string, onChange func(session.Record)) (session.Unsubscribe, error) {
	key, err := keyFor(code)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	watcher, err := s.kv.Watch(watchCtx, key)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-watchCtx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				// nil marks the end of the initial values.
				if entry == nil {
					continue
				}
				if entry.Operation() != jetstream.KeyValuePut {
					continue
				}
				rec, err := decode(entry.Value())
				if err != nil {
					log.Warn().
						Err(err).
						Str("session_code", key).
						Uint64("revision", entry.Revision()).
						Msg("skipping undecodable session record")
					continue
				}
				if rec.IsEmpty() {
					continue
				}
				select {
				case <-watchCtx.Done():
					return
				default:
				}
				onChange(rec)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := watcher.Stop(); err != nil {
				log.Debug().Err(err).Str("session_code", key).Msg("watcher stop")
			}
			<-finished
		})
	}, nil
}

func keyFor(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || !validKey.MatchString(code) {
		return "", session.ErrInvalidSessionCode
	}
	return code, nil
}

func decode(data []byte) (session.Record, error) {
	var rec session.Record
	if len(data) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return session.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
