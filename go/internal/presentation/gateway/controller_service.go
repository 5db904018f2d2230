package gateway

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

const (
	// ControllerServiceName is the fully-qualified name of the controller service
	ControllerServiceName = "presentation.v1.ControllerService"

	ControllerServiceShowStageProcedure      = "/presentation.v1.ControllerService/ShowStage"
	ControllerServiceStartCountdownProcedure = "/presentation.v1.ControllerService/StartCountdown"
	ControllerServiceStopCountdownProcedure  = "/presentation.v1.ControllerService/StopCountdown"
)

type ShowStageRequest struct {
	SessionCode string `json:"sessionCode"`
	Stage       string `json:"stage"`
}

type StartCountdownRequest struct {
	SessionCode string `json:"sessionCode"`
	Seconds     int    `json:"seconds"`
}

type StopCountdownRequest struct {
	SessionCode string `json:"sessionCode"`
}

// RecordResponse carries the record as written
type RecordResponse struct {
	SessionCode string         `json:"sessionCode"`
	Record      session.Record `json:"record"`
}

// ControllerApp defines what the service layer needs from the controller
type ControllerApp interface {
	ShowStage(ctx context.Context, code string, stage session.Stage) (session.Record, error)
	StartCountdown(ctx context.Context, code string, seconds int) (session.Record, error)
	StopCountdown(ctx context.Context, code string) (session.Record, error)
}

// ControllerService exposes the single writer role over connect
type ControllerService struct {
	app ControllerApp
}

// NewControllerService creates a new controller service
func NewControllerService(app ControllerApp) *ControllerService {
	return &ControllerService{
		app: app,
	}
}

// ShowStage moves a session to a new stage
func (s *ControllerService) ShowStage(ctx context.Context, req *connect.Request[ShowStageRequest]) (*connect.Response[RecordResponse], error) {
	rec, err := s.app.ShowStage(ctx, req.Msg.SessionCode, session.Stage(req.Msg.Stage))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RecordResponse{SessionCode: req.Msg.SessionCode, Record: rec}), nil
}

// StartCountdown starts or restarts a countdown
func (s *ControllerService) StartCountdown(ctx context.Context, req *connect.Request[StartCountdownRequest]) (*connect.Response[RecordResponse], error) {
	rec, err := s.app.StartCountdown(ctx, req.Msg.SessionCode, req.Msg.Seconds)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RecordResponse{SessionCode: req.Msg.SessionCode, Record: rec}), nil
}

// StopCountdown stops a countdown
func (s *ControllerService) StopCountdown(ctx context.Context, req *connect.Request[StopCountdownRequest]) (*connect.Response[RecordResponse], error) {
	rec, err := s.app.StopCountdown(ctx, req.Msg.SessionCode)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RecordResponse{SessionCode: req.Msg.SessionCode, Record: rec}), nil
}

// NewControllerServiceHandler builds an HTTP handler serving every
// controller procedure, and the path to mount it on
func NewControllerServiceHandler(svc *ControllerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	showStage := connect.NewUnaryHandler(ControllerServiceShowStageProcedure, svc.ShowStage, opts...)
	startCountdown := connect.NewUnaryHandler(ControllerServiceStartCountdownProcedure, svc.StartCountdown, opts...)
	stopCountdown := connect.NewUnaryHandler(ControllerServiceStopCountdownProcedure, svc.StopCountdown, opts...)

	return "/" + ControllerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ControllerServiceShowStageProcedure:
			showStage.ServeHTTP(w, r)
		case ControllerServiceStartCountdownProcedure:
			startCountdown.ServeHTTP(w, r)
		case ControllerServiceStopCountdownProcedure:
			stopCountdown.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidSessionCode),
		errors.Is(err, session.ErrInvalidStage),
		errors.Is(err, session.ErrInvalidCountdown):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, session.ErrRecordNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
