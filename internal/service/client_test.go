package service

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
)

// newTestClient points a Client at an httptest server.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.NewDefaultConfig().Service
	cfg.Addr = strings.TrimPrefix(srv.URL, "http://")
	return NewClient(cfg, zaptest.NewLogger(t)), srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, resp schemas.ServiceResponse) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestClient_HealthOK(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		writeJSON(t, w, http.StatusOK, schemas.ServiceResponse{Success: true, Status: "ok"})
	}))

	require.NoError(t, client.Health(context.Background()))
}

func TestClient_SuccessFalseIsAnError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with success:false still means unavailable.
		writeJSON(t, w, http.StatusOK, schemas.ServiceResponse{Success: false, Error: "no display"})
	}))

	err := client.Click(context.Background(), 10, 20)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")
}

func TestClient_Non200IsAnError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusInternalServerError, schemas.ServiceResponse{Success: false, Error: "boom"})
	}))

	err := client.PressKey(context.Background(), "enter")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_ClickSendsCoordinates(t *testing.T) {
	var got schemas.PointRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/click", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, http.StatusOK, schemas.ServiceResponse{Success: true})
	}))

	require.NoError(t, client.Click(context.Background(), 640, 480))
	assert.Equal(t, schemas.PointRequest{X: 640, Y: 480}, got)
}

func TestClient_TypeConvertsIntervalToSeconds(t *testing.T) {
	var got schemas.TypeRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/type", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, http.StatusOK, schemas.ServiceResponse{Success: true})
	}))

	require.NoError(t, client.Type(context.Background(), "hello", 50*time.Millisecond))
	assert.Equal(t, "hello", got.Text)
	assert.InDelta(t, 0.05, got.Interval, 1e-9)
}

func TestClient_ScreenshotDecodesBase64(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, schemas.ServiceResponse{
			Success: true,
			Image:   base64.StdEncoding.EncodeToString(png),
			Width:   1920,
			Height:  1080,
			Format:  "png",
		})
	}))

	shot, err := client.Screenshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, png, shot.PNG)
	assert.Equal(t, 1920, shot.Width)
	assert.Equal(t, 1080, shot.Height)
}

func TestClient_ScreenshotRejectsCorruptImage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, schemas.ServiceResponse{Success: true, Image: "%%not-base64%%"})
	}))

	_, err := client.Screenshot(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "undecodable image")
}

func TestClient_TimeoutTriggersFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	client.cfg.ActionTimeout = 50 * time.Millisecond

	start := time.Now()
	err := client.Click(context.Background(), 1, 1)

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "a slow service must fail fast, not hang")
}

func TestClient_UnreachableDaemon(t *testing.T) {
	cfg := config.NewDefaultConfig().Service
	cfg.Addr = "127.0.0.1:1" // nothing listens here
	client := NewClient(cfg, zaptest.NewLogger(t))

	err := client.Health(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}
