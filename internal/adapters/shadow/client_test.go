package shadow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guirra-diy/smarthome-bridge-go/internal/config"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/errors"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestGetState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/things/lamp-1/shadow", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"state": {
				"reported": {"power": "ON"},
				"desired": {},
				"delta": {"brightness": 50}
			},
			"metadata": {
				"reported": {"power": {"timestamp": 1764590400}}
			},
			"timestamp": 1764590460
		}`))
	}))
	defer server.Close()

	client := NewClient(config.ShadowConfig{BaseURL: server.URL}, testLogger())

	state, err := client.GetState(context.Background(), "lamp-1")
	require.NoError(t, err)

	assert.Equal(t, "ON", state.Reported["power"])
	assert.Equal(t, float64(50), state.Delta["brightness"])
	assert.Equal(t, time.Unix(1764590400, 0), state.ReportedAt["power"])
	assert.Equal(t, time.Unix(1764590460, 0), state.ObservedAt)
}

func TestGetStateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "shadow missing", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(config.ShadowConfig{BaseURL: server.URL}, testLogger())

	_, err := client.GetState(context.Background(), "ghost-1")
	require.Error(t, err)
	assert.Equal(t, "BRIDGE_UNREACHABLE", errors.AlexaErrorType(err))
}

func TestUpdateDesired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/things/lamp-1/shadow", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]map[string]map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ON", body["state"]["desired"]["power"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"state": {"desired": {"power": "ON"}}, "timestamp": 1764590460}`))
	}))
	defer server.Close()

	client := NewClient(config.ShadowConfig{BaseURL: server.URL}, testLogger())

	accepted, err := client.UpdateDesired(context.Background(), "lamp-1", map[string]interface{}{"power": "ON"})
	require.NoError(t, err)
	assert.Equal(t, "ON", accepted["power"])
}
