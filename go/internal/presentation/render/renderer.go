package render

import (
	"fmt"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// ScreenKind says which layout a Screen uses.
type ScreenKind string

const (
	ScreenNoSession ScreenKind = "no_session"
	ScreenAwaiting  ScreenKind = "awaiting"
	ScreenLocked    ScreenKind = "locked"
	ScreenStage     ScreenKind = "stage"
	ScreenUnknown   ScreenKind = "unknown"
)

// Screen is everything a presentation surface draws for one view.
type Screen struct {
	Kind        ScreenKind    `json:"kind"`
	StageKind   Kind          `json:"stageKind,omitempty"`
	Stage       session.Stage `json:"stage,omitempty"`
	Title       string        `json:"title"`
	Subtitle    string        `json:"subtitle,omitempty"`
	SessionCode string        `json:"sessionCode,omitempty"`
	Timer       *TimerDisplay `json:"timer,omitempty"`
}

// TimerDisplay is the countdown as drawn.
type TimerDisplay struct {
	Clock    string       `json:"clock"`
	Elapsed  string       `json:"elapsed"`
	Tier     session.Tier `json:"tier"`
	Progress float64      `json:"progress"`
	Percent  int          `json:"percent"`
	Running  bool         `json:"running"`
}

// Renderer maps reader views to screens. Render is total: every view,
// including stages missing from the catalog, yields a screen.
type Renderer struct {
	catalog    *Catalog
	thresholds session.Thresholds
}

func NewRenderer(catalog *Catalog, thresholds session.Thresholds) *Renderer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Renderer{catalog: catalog, thresholds: thresholds}
}

func (r *Renderer) Catalog() *Catalog {
	return r.catalog
}

func (r *Renderer) Render(v session.View) Screen {
	if v.Phase == session.PhaseNoSession || v.SessionCode == "" {
		return Screen{
			Kind:     ScreenNoSession,
			Title:    "No session",
			Subtitle: "Open the presentation with a session code",
		}
	}

	if v.Stage == "" {
		return Screen{
			Kind:        ScreenAwaiting,
			Title:       "Waiting for the lesson to start",
			SessionCode: v.SessionCode,
		}
	}

	def, known := r.catalog.Lookup(v.Stage)

	if v.Stage == session.StageLocked {
		s := Screen{
			Kind:        ScreenLocked,
			StageKind:   KindWaiting,
			Stage:       v.Stage,
			Title:       "Waiting for your teacher",
			Subtitle:    fmt.Sprintf("Session code: %s", v.SessionCode),
			SessionCode: v.SessionCode,
		}
		if known && def.Title != "" {
			s.Title = def.Title
		}
		return s
	}

	if !known {
		s := Screen{
			Kind:        ScreenUnknown,
			Stage:       v.Stage,
			Title:       "Unknown activity",
			Subtitle:    string(v.Stage),
			SessionCode: v.SessionCode,
		}
		if v.Timer.InitialSeconds > 0 {
			s.Timer = r.timer(v.Timer)
		}
		return s
	}

	s := Screen{
		Kind:        ScreenStage,
		StageKind:   def.Kind,
		Stage:       v.Stage,
		Title:       def.Title,
		Subtitle:    def.Subtitle,
		SessionCode: v.SessionCode,
	}
	if def.Timed || v.Timer.InitialSeconds > 0 {
		s.Timer = r.timer(v.Timer)
	}
	return s
}

func (r *Renderer) timer(t session.TimerState) *TimerDisplay {
	return &TimerDisplay{
		Clock:    t.Remaining(),
		Elapsed:  t.Elapsed(),
		Tier:     r.thresholds.Tier(t.RemainingSeconds),
		Progress: t.Progress(),
		Percent:  t.Percent(),
		Running:  t.Running,
	}
}
