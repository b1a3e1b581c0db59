// Package shadow implements the device-shadow store client over its HTTP
// API.
package shadow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/config"
	coreshadow "github.com/guirra-diy/smarthome-bridge-go/internal/core/shadow"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/errors"
)

// Client talks to the shadow store's REST endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logrus.Logger
}

// NewClient creates a shadow store client
func NewClient(cfg config.ShadowConfig, log *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.BaseURL,
		log:        log,
	}
}

// shadowDocument is the wire shape of a shadow get/update response.
type shadowDocument struct {
	State struct {
		Reported map[string]interface{} `json:"reported"`
		Desired  map[string]interface{} `json:"desired"`
		Delta    map[string]interface{} `json:"delta"`
	} `json:"state"`
	Metadata struct {
		Reported map[string]struct {
			Timestamp int64 `json:"timestamp"`
		} `json:"reported"`
	} `json:"metadata"`
	Timestamp int64 `json:"timestamp"`
}

// GetState fetches the shadow document for a device.
func (c *Client) GetState(ctx context.Context, deviceID string) (*coreshadow.State, error) {
	url := fmt.Sprintf("%s/things/%s/shadow", c.baseURL, deviceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrap(errors.ErrUpstreamUnavailable,
			fmt.Errorf("shadow get returned status %d", resp.StatusCode))
	}

	var doc shadowDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode shadow document: %w", err)
	}

	reportedAt := make(map[string]time.Time, len(doc.Metadata.Reported))
	for property, meta := range doc.Metadata.Reported {
		reportedAt[property] = time.Unix(meta.Timestamp, 0)
	}

	return &coreshadow.State{
		Reported:   doc.State.Reported,
		Delta:      doc.State.Delta,
		ReportedAt: reportedAt,
		ObservedAt: time.Unix(doc.Timestamp, 0),
	}, nil
}

// UpdateDesired patches the desired state of a device and returns the
// desired values echoed back by the store.
func (c *Client) UpdateDesired(ctx context.Context, deviceID string, desired map[string]interface{}) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/things/%s/shadow", c.baseURL, deviceID)

	body, err := json.Marshal(map[string]interface{}{
		"state": map[string]interface{}{
			"desired": desired,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shadow update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrap(errors.ErrUpstreamUnavailable,
			fmt.Errorf("shadow update returned status %d", resp.StatusCode))
	}

	var doc shadowDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode shadow update response: %w", err)
	}

	return doc.State.Desired, nil
}
