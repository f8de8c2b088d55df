package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/PoseStreamer/internal/config"
	"github.com/bryanchriswhite/PoseStreamer/internal/detector"
	"github.com/bryanchriswhite/PoseStreamer/internal/pipeline"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink/mjpeg"
	"github.com/bryanchriswhite/PoseStreamer/internal/source"
)

type failingSink struct{ sink.Func }

func (failingSink) Open(context.Context) error { return errors.New("no display") }

type fixture struct {
	server *Server
	http   *httptest.Server
	driver *pipeline.Driver
	sinks  *sink.Fanout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfgMgr, err := config.NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	cfg := cfgMgr.Get()
	cfg.Source.Camera = -1
	cfg.Source.Path = source.PatternPath
	cfg.Source.Width, cfg.Source.Height = 8, 6
	require.NoError(t, cfgMgr.Update(cfg))

	video := mjpeg.New(mjpeg.Config{})
	fanout := sink.NewFanout(
		sink.NewSwitch(video),
		sink.NewSwitch(&failingSink{sink.Func{N: "preview"}}),
	)
	driver := pipeline.NewDriver(fanout, pipeline.Options{FPS: 500})

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(ctx, Deps{
		Driver:   driver,
		Sinks:    fanout,
		Config:   cfgMgr,
		Detector: detector.Disabled(nil),
		MJPEG:    video,
		ListCameras: func() ([]source.Camera, error) {
			return []source.Camera{{Index: 0, Path: "/dev/video0", Name: "Webcam"}}, nil
		},
	})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		driver.Stop()
		<-driver.Done()
		cancel()
		hs.Close()
	})
	return &fixture{server: srv, http: hs, driver: driver, sinks: fanout}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/pipeline/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", body["state"])
	assert.Equal(t, "memory", body["source"])

	resp, _ = f.do(t, http.MethodPost, "/api/pipeline/start", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.Eventually(t, func() bool { return f.driver.Counters().Position > 2 }, 2*time.Second, 5*time.Millisecond)

	resp, body = f.do(t, http.MethodPost, "/api/pipeline/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", body["state"])
}

func TestStartBadPath(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodPost, "/api/pipeline/start", `{"path":"/no/such/clip.mp4"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "invalid source path")
	assert.Equal(t, pipeline.StateIdle, f.driver.Status().State)
}

func TestLoopToggle(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodPut, "/api/pipeline/loop", `{"enabled":true}`)
	assert.Equal(t, true, body["enabled"])
	assert.True(t, f.driver.Loop())

	_, body = f.do(t, http.MethodGet, "/api/pipeline/loop", "")
	assert.Equal(t, true, body["enabled"])
}

func TestSinkToggle(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPut, "/api/sinks/mjpeg", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["open"])

	resp, body = f.do(t, http.MethodPut, "/api/sinks/preview", `{"enabled":true}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "no display", body["error"])
	assert.Equal(t, false, body["open"])

	resp, _ = f.do(t, http.MethodPut, "/api/sinks/nope", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	states := f.sinks.States()
	require.Len(t, states, 2)
	assert.True(t, states[0].Open)
}

func TestStatusAndStats(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "pipeline")
	assert.Contains(t, body, "sinks")
	det := body["detector"].(map[string]interface{})
	assert.Equal(t, "disabled", det["kind"])

	resp, body = f.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "counters")
	assert.Contains(t, body, "mjpeg")
}

func TestCameras(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.http.URL + "/api/cameras")
	require.NoError(t, err)
	defer resp.Body.Close()

	var cams []source.Camera
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cams))
	assert.Equal(t, []source.Camera{{Index: 0, Path: "/dev/video0", Name: "Webcam"}}, cams)
}

func TestConfigRoundTrip(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(8080), body["server_port"])

	resp, _ = f.do(t, http.MethodPut, "/api/config", `{"server_port":9090}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = f.do(t, http.MethodGet, "/api/config", "")
	assert.Equal(t, float64(9090), body["server_port"])

	resp, _ = f.do(t, http.MethodPut, "/api/config", `{"server_port":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodOptions, f.http.URL+"/api/status", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusStream(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/api/status/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var st Status
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, pipeline.StateIdle, st.Pipeline.State)

	require.NoError(t, f.server.Sessions().Start(source.Selection{Camera: -1, Path: source.PatternPath}))
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, pipeline.StateRunning, st.Pipeline.State)
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp2, err := http.Get(f.http.URL + "/nothing-here")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
