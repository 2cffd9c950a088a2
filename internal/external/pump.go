package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"agripal/internal/types"
)

// PumpConfig holds the configuration for creating a PumpClient.
type PumpConfig struct {
	BaseURL string // e.g. http://localhost:3001
	Timeout time.Duration

	Base *BaseClient // resilience wrapper; built from defaults if nil
}

// PumpClient forwards pump commands to the local device-control box on the
// farm network.
type PumpClient struct {
	baseURL string
	base    *BaseClient
}

// NewPumpClient creates a PumpClient.
func NewPumpClient(cfg PumpConfig) *PumpClient {
	base := cfg.Base
	if base == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		base = NewBaseClient(
			&http.Client{Timeout: timeout},
			"pump-control",
			RetryPolicy{MaxRetries: 1, MinWait: 250 * time.Millisecond, MaxWait: 2 * time.Second},
			"agripal/1.0",
		)
	}
	return &PumpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		base:    base,
	}
}

// pumpRequest is the device-control wire format.
type pumpRequest struct {
	FarmID   string `json:"farmId"`
	DeviceID string `json:"deviceId"`
	Action   string `json:"action"`
}

type pumpResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Send forwards a pump command and returns the device's result. A reachable
// device that reports failure comes back as a PumpResult with Success false,
// not as an error; errors mean the device could not be reached or answered
// garbage.
func (p *PumpClient) Send(ctx context.Context, cmd types.PumpCommand) (*types.PumpResult, error) {
	payload, err := json.Marshal(pumpRequest{
		FarmID:   cmd.FarmID,
		DeviceID: cmd.DeviceID,
		Action:   string(cmd.Action),
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode pump command", err)
	}

	url := p.baseURL + "/api/control/pump"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build pump request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDeviceCtrl, "device control request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamDeviceCtrl,
			fmt.Sprintf("device control endpoint returned %d", resp.StatusCode),
			nil,
		)
	}

	var decoded pumpResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDeviceCtrl, "failed to decode device control response", err)
	}

	return &types.PumpResult{
		Success: decoded.Success,
		Error:   decoded.Error,
	}, nil
}
