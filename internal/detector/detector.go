// Package detector turns frames into backend-agnostic pose results. Each
// backend pairs a landmark schema with a decoder for its model's native
// output tensors; the model itself runs behind an inference.Runtime.
package detector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/inference"
	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/oscproto"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

var (
	// ErrNotInitialized is returned by a detector whose backend failed to start
	ErrNotInitialized = errors.New("detector not initialized")
)

// Kind names a detector backend
type Kind string

const (
	KindMediaPipe      Kind = "mediapipe"
	KindMediaPipeMulti Kind = "mediapipe-multi"
	KindMoveNet        Kind = "movenet"
	KindOpenPose       Kind = "openpose"
	KindPoseNet        Kind = "posenet"
	KindDisabled       Kind = "disabled"
)

// Detector is a pose-estimation backend
type Detector interface {
	// Process runs one frame. The result is never nil and always carries
	// the frame's pixel size; on error it has no persons.
	Process(ctx context.Context, f *frame.Frame) (*pose.FrameResult, error)
	// LandmarkName maps a landmark index to its schema name
	LandmarkName(i int) landmark.Name
	// RenderOverlay draws res onto f in place
	RenderOverlay(f *frame.Frame, res *pose.FrameResult)
	// Emit writes res in the backend's broadcast shape
	Emit(res *pose.FrameResult, w oscproto.Writer) error

	Name() Kind
	Schema() *landmark.Schema
	MaxPersons() int
	ZMeaning() pose.ZMeaning
	// Err reports why the backend failed to initialize, if it did
	Err() error
	Close() error
}

// Config selects and tunes a backend
type Config struct {
	Kind Kind
	// Model overrides the model name requested from the runtime
	Model string
	// ScoreThreshold is the minimum person score (movenet, posenet)
	ScoreThreshold float64
	// Split enables the legacy per-coordinate messages
	Split bool
}

// Connector opens the runtime for a model
type Connector func(ctx context.Context, model string) (inference.Runtime, error)

type profile struct {
	schema     *landmark.Schema
	maxPersons int
	z          pose.ZMeaning
	legacy     bool
	model      string
	// pointScore hides overlay points at or below it
	pointScore float64
	bboxes     bool
	decode     decodeFunc
}

var profiles = map[Kind]profile{
	KindMediaPipe: {
		schema: landmark.Kinect33, maxPersons: 1, z: pose.ZDepth, legacy: true,
		model: "mediapipe_pose", decode: decodeMediaPipeSingle,
	},
	KindMediaPipeMulti: {
		schema: landmark.MediaPipe33, maxPersons: 6, z: pose.ZDepth,
		model: "mediapipe_pose_multi", bboxes: true, decode: decodeMediaPipeMulti,
	},
	KindMoveNet: {
		schema: landmark.COCO17, maxPersons: moveNetSlots, z: pose.ZConfidence,
		model: "movenet_multipose", pointScore: 0.2, bboxes: true, decode: decodeMoveNet,
	},
	KindOpenPose: {
		schema: landmark.Body25, maxPersons: 10, z: pose.ZConfidence,
		model: "openpose_body25", pointScore: openPoseMinScore, bboxes: true, decode: decodeOpenPose,
	},
	KindPoseNet: {
		schema: landmark.COCO17, maxPersons: 1, z: pose.ZConfidence,
		model: "posenet_mobilenet", pointScore: poseNetPointScore, decode: decodePoseNet,
	},
}

// Kinds lists the selectable backends, disabled included
func Kinds() []Kind {
	out := []Kind{KindDisabled}
	for k := range profiles {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SchemaFor returns the landmark schema a backend emits, nil for disabled
// or unknown kinds
func SchemaFor(k Kind) *landmark.Schema {
	s, ok := profiles[k]
	if !ok {
		return nil
	}
	return s.schema
}

// ParseKind validates a backend name
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if k == KindDisabled {
		return k, nil
	}
	if _, ok := profiles[k]; !ok {
		return "", fmt.Errorf("unknown detector kind %q", s)
	}
	return k, nil
}

// New opens the configured backend. It never returns nil: when the kind is
// unknown or the runtime cannot be opened, the result is a disabled detector
// whose Err reports the cause.
func New(ctx context.Context, cfg Config, connect Connector) Detector {
	log := logger.WithComponent("detector")

	if cfg.Kind == KindDisabled || cfg.Kind == "" {
		return Disabled(nil)
	}
	s, ok := profiles[cfg.Kind]
	if !ok {
		return Disabled(fmt.Errorf("unknown detector kind %q", cfg.Kind))
	}

	model := cfg.Model
	if model == "" {
		model = s.model
	}
	rt, err := connect(ctx, model)
	if err == nil {
		err = rt.Ready(ctx)
	}
	if err != nil {
		if rt != nil {
			rt.Close()
		}
		log.Error().Err(err).Str("kind", string(cfg.Kind)).Str("model", model).Msg("Detector init failed, running disabled")
		return Disabled(fmt.Errorf("%s: %w", cfg.Kind, err))
	}

	log.Info().Str("kind", string(cfg.Kind)).Str("model", model).Msg("Detector ready")
	return newBackend(cfg, s, rt)
}

// NewWithRuntime builds a backend around an already opened runtime
func NewWithRuntime(cfg Config, rt inference.Runtime) (Detector, error) {
	s, ok := profiles[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown detector kind %q", cfg.Kind)
	}
	if rt == nil {
		return nil, fmt.Errorf("%s: %w", cfg.Kind, ErrNotInitialized)
	}
	return newBackend(cfg, s, rt), nil
}
