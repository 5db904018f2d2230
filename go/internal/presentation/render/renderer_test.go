package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

func newTestRenderer() *Renderer {
	return NewRenderer(DefaultCatalog(), session.DefaultThresholds())
}

func TestRenderNoSession(t *testing.T) {
	t.Parallel()
	s := newTestRenderer().Render(session.View{Phase: session.PhaseNoSession})
	assert.Equal(t, ScreenNoSession, s.Kind)
	assert.Nil(t, s.Timer)
}

func TestRenderAwaitingFirstCommand(t *testing.T) {
	t.Parallel()
	s := newTestRenderer().Render(session.View{SessionCode: "ABC123", Phase: session.PhaseIdle})
	assert.Equal(t, ScreenAwaiting, s.Kind)
	assert.Equal(t, "ABC123", s.SessionCode)
}

func TestRenderLockedShowsCode(t *testing.T) {
	t.Parallel()
	s := newTestRenderer().Render(session.View{
		SessionCode: "ABC123",
		Phase:       session.PhaseLocked,
		Stage:       session.StageLocked,
	})
	assert.Equal(t, ScreenLocked, s.Kind)
	assert.Contains(t, s.Subtitle, "ABC123")
}

func TestRenderTimedStage(t *testing.T) {
	t.Parallel()
	s := newTestRenderer().Render(session.View{
		SessionCode: "ABC123",
		Phase:       session.PhaseStageActive,
		Stage:       "daw-tutorial",
		Timer:       session.TimerState{RemainingSeconds: 180, InitialSeconds: 300, Running: true},
	})
	assert.Equal(t, ScreenStage, s.Kind)
	assert.Equal(t, KindActivity, s.StageKind)
	require.NotNil(t, s.Timer)
	assert.Equal(t, "3:00", s.Timer.Clock)
	assert.Equal(t, "2:00", s.Timer.Elapsed)
	assert.Equal(t, session.TierCalm, s.Timer.Tier)
	assert.Equal(t, 60, s.Timer.Percent)
	assert.True(t, s.Timer.Running)
}

func TestRenderUntimedStageWithoutCountdown(t *testing.T) {
	t.Parallel()
	s := newTestRenderer().Render(session.View{
		SessionCode: "ABC123",
		Phase:       session.PhaseStageActive,
		Stage:       "summary-1",
	})
	assert.Equal(t, KindSummary, s.StageKind)
	assert.Nil(t, s.Timer)
}

func TestRenderUnknownStageFallback(t *testing.T) {
	t.Parallel()
	s := newTestRenderer().Render(session.View{
		SessionCode: "ABC123",
		Phase:       session.PhaseStageActive,
		Stage:       "mystery-stage",
		Timer:       session.TimerState{RemainingSeconds: 45, InitialSeconds: 60, Running: true},
	})
	assert.Equal(t, ScreenUnknown, s.Kind)
	assert.Equal(t, "Unknown activity", s.Title)
	require.NotNil(t, s.Timer)
	assert.Equal(t, session.TierUrgent, s.Timer.Tier)
}

func TestRenderIsTotalOverCatalog(t *testing.T) {
	t.Parallel()
	r := newTestRenderer()
	for _, def := range r.Catalog().Stages() {
		s := r.Render(session.View{
			SessionCode: "ABC123",
			Phase:       session.PhaseStageActive,
			Stage:       session.Stage(def.ID),
		})
		assert.NotEqual(t, ScreenUnknown, s.Kind, def.ID)
		assert.NotEmpty(t, s.Title, def.ID)
	}
}
