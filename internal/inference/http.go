package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPConfig configures a KServe v2 model-server client
type HTTPConfig struct {
	URL     string
	Model   string
	Timeout time.Duration
	// JPEG quality of the frames posted to the server
	Quality int
	// Input tensor name; defaults to "image"
	Input string
}

// HTTPRuntime runs inference on a remote model server speaking the KServe
// v2 REST protocol (Triton, OpenVINO Model Server, ...). Frames are sent
// JPEG-encoded as a single BYTES input.
type HTTPRuntime struct {
	cfg    HTTPConfig
	base   string
	client *http.Client
}

type inferInput struct {
	Name     string   `json:"name"`
	Shape    []int    `json:"shape"`
	Datatype string   `json:"datatype"`
	Data     []string `json:"data"`
}

type inferRequest struct {
	Inputs     []inferInput           `json:"inputs"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type inferOutput struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type inferResponse struct {
	ModelName string        `json:"model_name"`
	Outputs   []inferOutput `json:"outputs"`
	Error     string        `json:"error,omitempty"`
}

// NewHTTP creates the client and waits for one readiness probe
func NewHTTP(ctx context.Context, cfg HTTPConfig) (*HTTPRuntime, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("inference: model name is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("inference: invalid server url %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 85
	}
	if cfg.Input == "" {
		cfg.Input = "image"
	}

	r := &HTTPRuntime{
		cfg:    cfg,
		base:   strings.TrimRight(cfg.URL, "/") + "/v2/models/" + url.PathEscape(cfg.Model),
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if err := r.Ready(ctx); err != nil {
		return nil, err
	}

	logger.WithComponent("inference").Info().
		Str("url", cfg.URL).
		Str("model", cfg.Model).
		Msg("Model server ready")
	return r, nil
}

// Ready probes GET /v2/models/{name}/ready
func (r *HTTPRuntime) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/ready", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrModelNotReady, r.cfg.Model, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d", ErrModelNotReady, r.cfg.Model, resp.StatusCode)
	}
	return nil
}

// Infer posts the frame to POST /v2/models/{name}/infer
func (r *HTTPRuntime) Infer(ctx context.Context, img image.Image) (Output, error) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, img, &jpeg.Options{Quality: r.cfg.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	b := img.Bounds()
	body, err := json.Marshal(inferRequest{
		Inputs: []inferInput{{
			Name:     r.cfg.Input,
			Shape:    []int{1},
			Datatype: "BYTES",
			Data:     []string{base64.StdEncoding.EncodeToString(jpg.Bytes())},
		}},
		Parameters: map[string]interface{}{
			"width":  b.Dx(),
			"height": b.Dy(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/infer", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s: %s", ErrModelNotReady, r.cfg.Model, out.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, out.Error)
	}

	result := make(Output, len(out.Outputs))
	for _, o := range out.Outputs {
		result[o.Name] = &Tensor{Name: o.Name, Shape: o.Shape, Data: o.Data}
	}
	return result, nil
}

// Close releases idle connections
func (r *HTTPRuntime) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
