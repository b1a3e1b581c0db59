package alexa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/config"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/errors"
)

// Gateway sends proactive reports to the Alexa event gateway.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	log        *logrus.Logger
}

// NewGateway creates an event gateway client
func NewGateway(cfg config.AlexaConfig, log *logrus.Logger) *Gateway {
	return &Gateway{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.GatewayURL,
		log:        log,
	}
}

// SendEvent posts a report to /v3/events with the user's bearer credential.
// Callers obtain accessToken from the credential manager immediately before
// this call; the gateway never caches credentials itself.
func (g *Gateway) SendEvent(ctx context.Context, accessToken string, report *Response) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v3/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(respBody),
		}).Error("Event gateway rejected report")
		return errors.Wrap(errors.ErrUpstreamUnavailable,
			fmt.Errorf("event gateway returned status %d", resp.StatusCode))
	}

	g.log.WithFields(logrus.Fields{
		"name":   report.Event.Header.Name,
		"status": resp.StatusCode,
	}).Debug("Report accepted by event gateway")

	return nil
}
