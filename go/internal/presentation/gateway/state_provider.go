package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// SessionStateProvider implements StateProvider on top of the session store
type SessionStateProvider struct {
	records RecordGetter
	relay   *Relay
	cm      *ConnectionManager
}

// NewSessionStateProvider creates a new state provider
func NewSessionStateProvider(records RecordGetter, relay *Relay, cm *ConnectionManager) *SessionStateProvider {
	return &SessionStateProvider{
		records: records,
		relay:   relay,
		cm:      cm,
	}
}

// GetSessionState returns the stored record for a session
func (p *SessionStateProvider) GetSessionState(ctx context.Context, code string) (*SessionStateResponse, error) {
	rec, err := p.records.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}

	resp := &SessionStateResponse{
		SessionCode:   code,
		CurrentStage:  rec.CurrentStage,
		CountdownTime: rec.CountdownTime,
		Timestamp:     rec.Timestamp,
		Screens:       p.cm.ConnectionCount(code),
	}
	if rec.Timestamp > 0 {
		at := time.UnixMilli(rec.Timestamp).UTC()
		resp.WrittenAt = &at
	}
	return resp, nil
}

// GetActiveSessions lists the sessions that have screens connected
func (p *SessionStateProvider) GetActiveSessions(ctx context.Context) ([]SessionSummary, error) {
	codes := p.relay.ActiveSessions()
	summaries := make([]SessionSummary, 0, len(codes))
	for _, code := range codes {
		summary := SessionSummary{
			SessionCode: code,
			Screens:     p.cm.ConnectionCount(code),
		}
		rec, err := p.records.Get(ctx, code)
		switch {
		case errors.Is(err, session.ErrRecordNotFound):
		case err != nil:
			return nil, fmt.Errorf("failed to get session record %s: %w", code, err)
		default:
			summary.CurrentStage = rec.CurrentStage
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
