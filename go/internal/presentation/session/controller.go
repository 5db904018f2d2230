package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Controller is the teacher-side writer of session records. It is the only
// role that mutates a record; the core does not arbitrate between writers.
type Controller struct {
	store Store
	clock clockwork.Clock
}

// NewController creates a controller writing to store.
func NewController(store Store, clock clockwork.Clock) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{store: store, clock: clock}
}

// ShowStage moves the session to stage and clears any countdown.
func (c *Controller) ShowStage(ctx context.Context, code string, stage Stage) (Record, error) {
	code, err := validateCode(code)
	if err != nil {
		return Record{}, err
	}
	stage = Stage(strings.TrimSpace(string(stage)))
	if stage == "" {
		return Record{}, ErrInvalidStage
	}

	rec := NewRecord(stage, 0, c.clock.Now())
	if err := c.write(ctx, code, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// StartCountdown (re)starts a countdown on the current stage. When the
// current command already equals seconds a stop is written first, otherwise
// readers would treat the restart as a duplicate.
func (c *Controller) StartCountdown(ctx context.Context, code string, seconds int) (Record, error) {
	code, err := validateCode(code)
	if err != nil {
		return Record{}, err
	}
	if seconds <= 0 {
		return Record{}, ErrInvalidCountdown
	}

	current, err := c.current(ctx, code)
	if err != nil {
		return Record{}, err
	}
	stage := Stage(current.CurrentStage)

	if current.CountdownTime != nil && *current.CountdownTime == seconds {
		if err := c.write(ctx, code, NewRecord(stage, 0, c.clock.Now())); err != nil {
			return Record{}, err
		}
	}

	rec := NewRecord(stage, seconds, c.clock.Now())
	if err := c.write(ctx, code, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// StopCountdown stops any running countdown on the current stage.
func (c *Controller) StopCountdown(ctx context.Context, code string) (Record, error) {
	code, err := validateCode(code)
	if err != nil {
		return Record{}, err
	}

	current, err := c.current(ctx, code)
	if err != nil {
		return Record{}, err
	}

	rec := NewRecord(Stage(current.CurrentStage), 0, c.clock.Now())
	if err := c.write(ctx, code, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// current returns the stored record, defaulting to the locked stage for a
// session nobody has written yet.
func (c *Controller) current(ctx context.Context, code string) (Record, error) {
	rec, err := c.store.Get(ctx, code)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{CurrentStage: string(StageLocked)}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get session record: %w", err)
	}
	if strings.TrimSpace(rec.CurrentStage) == "" {
		rec.CurrentStage = string(StageLocked)
	}
	return rec, nil
}

func (c *Controller) write(ctx context.Context, code string, rec Record) error {
	if err := c.store.Put(ctx, code, rec); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}

	ev := log.Info().
		Str("session_code", code).
		Str("stage", rec.CurrentStage)
	if rec.CountdownTime != nil {
		ev = ev.Int("countdown_time", *rec.CountdownTime)
	}
	ev.Msg("session record written")
	return nil
}

func validateCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrInvalidSessionCode
	}
	return code, nil
}
