package alexa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/guirra-diy/smarthome-bridge-go/internal/config"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/errors"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sampleReport() *Response {
	return &Response{
		Event: Event{
			Header: Header{
				Namespace:      NamespaceAlexa,
				Name:           NameChangeReport,
				MessageID:      "m1",
				PayloadVersion: PayloadVersion,
			},
			Payload: struct{}{},
		},
	}
}

func TestSendEvent(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	gateway := NewGateway(appconfig.AlexaConfig{GatewayURL: server.URL}, testLogger())

	err := gateway.SendEvent(context.Background(), "bearer-1", sampleReport())
	require.NoError(t, err)

	assert.Equal(t, "/v3/events", gotPath)
	assert.Equal(t, "Bearer bearer-1", gotAuth)
	assert.Contains(t, gotBody, "event")
}

func TestSendEventRejectedByGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"payload":{"code":"INVALID_ACCESS_TOKEN_EXCEPTION"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	gateway := NewGateway(appconfig.AlexaConfig{GatewayURL: server.URL}, testLogger())

	err := gateway.SendEvent(context.Background(), "bad-token", sampleReport())
	require.Error(t, err)
	assert.Equal(t, "BRIDGE_UNREACHABLE", errors.AlexaErrorType(err))
}
