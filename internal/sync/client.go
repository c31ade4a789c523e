package sync

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SyncClient talks to the external real-time sync engine. The engine owns
// merge and broadcast; this backend only pulls opaque binary state from it
// and pushes permission and lifecycle changes to it.
type SyncClient struct {
	baseURL    string
	httpClient *http.Client
}

type Client interface {
	FetchCanvasState(ctx context.Context, canvasID string) ([]byte, error)
	UpdateUserPermission(ctx context.Context, canvasID string, userID string, role string) error
	RemoveCanvas(ctx context.Context, canvasID string) error
}

func NewSyncClient(baseURL string) *SyncClient {
	return &SyncClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type StateResponse struct {
	Binary string `json:"binary"`
}

// FetchCanvasState pulls the current live state of a canvas session.
func (s *SyncClient) FetchCanvasState(ctx context.Context, canvasID string) ([]byte, error) {
	url := fmt.Sprintf(
		"%s/internal/canvases/%s/state",
		s.baseURL,
		canvasID,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf(
			"sync engine fetch state error: status=%d body=%s",
			resp.StatusCode,
			string(b),
		)
	}

	var payload StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return base64.StdEncoding.DecodeString(payload.Binary)
}

type SyncPermissionRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// UpdateUserPermission tells the engine a collaborator's role changed so
// live sessions stop honoring stale permissions.
func (s *SyncClient) UpdateUserPermission(
	ctx context.Context,
	canvasID string,
	userID string,
	role string,
) error {

	url := fmt.Sprintf(
		"%s/internal/canvases/%s/permission",
		s.baseURL,
		canvasID,
	)

	payload := SyncPermissionRequest{
		UserID: userID,
		Role:   role,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPut,
		url,
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf(
			"sync engine error: status=%d body=%s",
			resp.StatusCode,
			string(b),
		)
	}

	return nil
}

// RemoveCanvas tells the engine to tear down any live session for a deleted
// canvas.
func (s *SyncClient) RemoveCanvas(ctx context.Context, canvasID string) error {
	url := fmt.Sprintf(
		"%s/internal/canvases/%s",
		s.baseURL,
		canvasID,
	)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodDelete,
		url,
		nil,
	)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf(
			"sync engine delete error: status=%d body=%s",
			resp.StatusCode,
			string(b),
		)
	}

	return nil
}
