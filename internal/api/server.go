// Package api is the HTTP control surface: start and stop the pipeline,
// toggle looping and sinks, and watch status and landmarks live.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/bryanchriswhite/PoseStreamer/internal/config"
	"github.com/bryanchriswhite/PoseStreamer/internal/detector"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/pipeline"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink/mjpeg"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink/wsfeed"
	"github.com/bryanchriswhite/PoseStreamer/internal/source"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Deps are the components the API controls. MJPEG and Feed are optional.
type Deps struct {
	Driver      *pipeline.Driver
	Sinks       *sink.Fanout
	Config      *config.Manager
	Detector    detector.Detector
	MJPEG       *mjpeg.Sink
	Feed        *wsfeed.Sink
	OpenSource  func(ctx context.Context, sel source.Selection) (source.Source, error)
	ListCameras func() ([]source.Camera, error)
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	deps     Deps
	sessions *Sessions
	upgrader websocket.Upgrader
}

// NewServer creates a new API server. ctx bounds every pipeline session
// started through it.
func NewServer(ctx context.Context, deps Deps) *Server {
	if deps.OpenSource == nil {
		deps.OpenSource = source.Open
	}
	if deps.ListCameras == nil {
		deps.ListCameras = source.ListCameras
	}
	s := &Server{
		router:   mux.NewRouter(),
		deps:     deps,
		sessions: NewSessions(ctx, deps.Driver, deps.Detector, deps.OpenSource),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	s.setupRoutes()
	return s
}

// Sessions exposes the session starter, used for auto-start
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Pipeline control
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/status/stream", s.handleStatusStream)
	api.HandleFunc("/pipeline/start", s.handleStart).Methods("POST")
	api.HandleFunc("/pipeline/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/pipeline/loop", s.handleGetLoop).Methods("GET")
	api.HandleFunc("/pipeline/loop", s.handleSetLoop).Methods("PUT")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Sinks
	api.HandleFunc("/sinks", s.handleGetSinks).Methods("GET")
	api.HandleFunc("/sinks/{name}", s.handleSetSink).Methods("PUT")

	// Inputs and detector
	api.HandleFunc("/cameras", s.handleCameras).Methods("GET")
	api.HandleFunc("/detector", s.handleDetector).Methods("GET")
	if s.deps.Feed != nil {
		api.HandleFunc("/landmarks/stream", s.deps.Feed.Handler())
	}

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.deps.MJPEG != nil {
		s.router.HandleFunc("/stream", s.deps.MJPEG.Handler()).Methods("GET")
		s.router.HandleFunc("/snapshot.jpg", s.deps.MJPEG.SnapshotHandler()).Methods("GET")
		s.router.HandleFunc("/frame.raw", s.deps.MJPEG.RawHandler()).Methods("GET")
	}

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithComponent("api").Info().Str("addr", srv.Addr).Msgf("Starting server on http://localhost%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Status is the combined view served by /api/status
type Status struct {
	Pipeline pipeline.Status `json:"pipeline"`
	Sinks    []sink.State    `json:"sinks"`
	Detector DetectorInfo    `json:"detector"`
}

// DetectorInfo describes the active backend
type DetectorInfo struct {
	Kind       detector.Kind `json:"kind"`
	MaxPersons int           `json:"max_persons"`
	Landmarks  int           `json:"landmarks"`
	ZMeaning   string        `json:"z,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func (s *Server) detectorInfo() DetectorInfo {
	det := s.deps.Detector
	if det == nil {
		return DetectorInfo{Kind: detector.KindDisabled}
	}
	info := DetectorInfo{Kind: det.Name(), MaxPersons: det.MaxPersons(), ZMeaning: string(det.ZMeaning())}
	if schema := det.Schema(); schema != nil {
		info.Landmarks = schema.Len()
	}
	if err := det.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

func (s *Server) status() Status {
	return Status{
		Pipeline: s.deps.Driver.Status(),
		Sinks:    s.deps.Sinks.States(),
		Detector: s.detectorInfo(),
	}
}

// HTTP Handlers

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.deps.Driver.Subscribe()
	defer s.deps.Driver.Unsubscribe(updates)

	if err := conn.WriteJSON(s.status()); err != nil {
		log.Debug().Err(err).Msg("WebSocket write error")
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			msg := Status{Pipeline: st, Sinks: s.deps.Sinks.States(), Detector: s.detectorInfo()}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

// startRequest optionally overrides the configured source
type startRequest struct {
	Camera *int    `json:"camera,omitempty"`
	Path   *string `json:"path,omitempty"`
	FPS    float64 `json:"fps,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sel := s.deps.Config.Get().Source.Selection()

	var req startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.Path != nil {
		sel.Path = *req.Path
		sel.Camera = -1
	}
	if req.Camera != nil {
		sel.Camera = *req.Camera
	}
	if req.FPS > 0 {
		sel.FPS = req.FPS
	}

	if err := s.sessions.Start(sel); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, pipeline.ErrRunning) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Driver.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.deps.Driver.Stop()
	select {
	case <-s.deps.Driver.Done():
	case <-time.After(2 * time.Second):
	case <-r.Context().Done():
	}
	writeJSON(w, http.StatusOK, s.deps.Driver.Status())
}

type toggle struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleGetLoop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toggle{Enabled: s.deps.Driver.Loop()})
}

func (s *Server) handleSetLoop(w http.ResponseWriter, r *http.Request) {
	var req toggle
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.deps.Driver.SetLoop(req.Enabled)
	writeJSON(w, http.StatusOK, toggle{Enabled: s.deps.Driver.Loop()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Driver.Status()
	out := map[string]interface{}{
		"counters": st.Counters,
		"timing":   st.Stats,
	}
	if s.deps.MJPEG != nil {
		out["mjpeg"] = s.deps.MJPEG.Stats()
	}
	if s.deps.Feed != nil {
		out["websocket_clients"] = s.deps.Feed.Clients()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSinks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sinks.States())
}

func (s *Server) handleSetSink(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	sw, err := s.deps.Sinks.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var req toggle
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// an init failure is reported here once; the switch becomes a no-op
	if err := sw.SetEnabled(r.Context(), req.Enabled); err != nil {
		writeJSON(w, http.StatusBadGateway, sw.State())
		return
	}
	writeJSON(w, http.StatusOK, sw.State())
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	cams, err := s.deps.ListCameras()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cams)
}

func (s *Server) handleDetector(w http.ResponseWriter, r *http.Request) {
	info := s.detectorInfo()
	out := map[string]interface{}{"detector": info}
	if s.deps.Detector != nil && s.deps.Detector.Schema() != nil {
		out["schema"] = s.deps.Detector.Schema().ID()
		out["names"] = s.deps.Detector.Schema().Names()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Config.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.deps.Config.Get()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.deps.Config.Update(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(indexHTML))
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/api") {
		http.NotFound(w, r)
		return
	}
	writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s", r.URL.Path))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>PoseStreamer</title>
    <style>
        body { font-family: system-ui, sans-serif; background: #111; color: #ddd; margin: 0; display: flex; }
        img { max-width: 70vw; max-height: 100vh; background: #000; }
        aside { padding: 16px; flex: 1; }
        button { margin: 4px 4px 4px 0; }
        pre { font-size: 12px; white-space: pre-wrap; }
    </style>
</head>
<body>
    <img src="/stream" alt="PoseStreamer">
    <aside>
        <h3>PoseStreamer</h3>
        <button onclick="post('/api/pipeline/start')">Start</button>
        <button onclick="post('/api/pipeline/stop')">Stop</button>
        <button onclick="loop()">Toggle loop</button>
        <div id="sinks"></div>
        <pre id="status"></pre>
    </aside>
    <script>
        let last = null;
        function post(url) { fetch(url, {method: 'POST'}); }
        function put(url, body) {
            fetch(url, {method: 'PUT', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body)});
        }
        function loop() { put('/api/pipeline/loop', {enabled: !(last && last.pipeline.counters.loop)}); }
        function render(st) {
            last = st;
            document.getElementById('status').textContent = JSON.stringify(st.pipeline, null, 2);
            document.getElementById('sinks').innerHTML = st.sinks.map(s =>
                '<label><input type="checkbox" ' + (s.enabled ? 'checked' : '') +
                ' onchange="put(\'/api/sinks/' + s.name + '\', {enabled: this.checked})"> ' +
                s.name + (s.error ? ' (' + s.error + ')' : '') + '</label><br>').join('');
        }
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/status/stream');
        ws.onmessage = e => render(JSON.parse(e.data));
    </script>
</body>
</html>`
