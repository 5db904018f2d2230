package gateway

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// ControllerClient calls the controller service of a running gateway
type ControllerClient struct {
	showStage      *connect.Client[ShowStageRequest, RecordResponse]
	startCountdown *connect.Client[StartCountdownRequest, RecordResponse]
	stopCountdown  *connect.Client[StopCountdownRequest, RecordResponse]
}

// NewControllerClient creates a client for the gateway at baseURL
func NewControllerClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ControllerClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)

	return &ControllerClient{
		showStage:      connect.NewClient[ShowStageRequest, RecordResponse](httpClient, baseURL+ControllerServiceShowStageProcedure, opts...),
		startCountdown: connect.NewClient[StartCountdownRequest, RecordResponse](httpClient, baseURL+ControllerServiceStartCountdownProcedure, opts...),
		stopCountdown:  connect.NewClient[StopCountdownRequest, RecordResponse](httpClient, baseURL+ControllerServiceStopCountdownProcedure, opts...),
	}
}

func (c *ControllerClient) ShowStage(ctx context.Context, code string, stage session.Stage) (session.Record, error) {
	resp, err := c.showStage.CallUnary(ctx, connect.NewRequest(&ShowStageRequest{
		SessionCode: code,
		Stage:       string(stage),
	}))
	if err != nil {
		return session.Record{}, err
	}
	return resp.Msg.Record, nil
}

func (c *ControllerClient) StartCountdown(ctx context.Context, code string, seconds int) (session.Record, error) {
	resp, err := c.startCountdown.CallUnary(ctx, connect.NewRequest(&StartCountdownRequest{
		SessionCode: code,
		Seconds:     seconds,
	}))
	if err != nil {
		return session.Record{}, err
	}
	return resp.Msg.Record, nil
}

func (c *ControllerClient) StopCountdown(ctx context.Context, code string) (session.Record, error) {
	resp, err := c.stopCountdown.CallUnary(ctx, connect.NewRequest(&StopCountdownRequest{
		SessionCode: code,
	}))
	if err != nil {
		return session.Record{}, err
	}
	return resp.Msg.Record, nil
}
