package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/inference"
	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/oscproto"
	"github.com/bryanchriswhite/PoseStreamer/internal/overlay"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// decodeFunc adds the persons found in native model output to b
type decodeFunc func(out inference.Output, b *pose.Builder, cfg Config) error

const (
	defaultPersonScore      = 0.2
	defaultClampLogInterval = 10 * time.Second
)

func errShape(name string, shape []int) error {
	return fmt.Errorf("output %q: unexpected shape %v", name, shape)
}

type backend struct {
	cfg     Config
	profile profile
	runtime inference.Runtime
	overlay *overlay.Manager
	log     *zerolog.Logger
	clamps  *logger.Throttle
}

func newBackend(cfg Config, s profile, rt inference.Runtime) *backend {
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = defaultPersonScore
	}
	log := logger.WithComponent("detector").With().Str("kind", string(cfg.Kind)).Logger()
	return &backend{
		cfg:     cfg,
		profile: s,
		runtime: rt,
		overlay: overlay.NewPoseManager(s.schema, overlay.PoseOptions{
			Z:        s.z,
			MinScore: s.pointScore,
			BBoxes:   s.bboxes,
			Labels:   s.maxPersons > 1,
		}),
		log:    &log,
		clamps: logger.NewThrottle(defaultClampLogInterval, 1),
	}
}

func (d *backend) Process(ctx context.Context, f *frame.Frame) (*pose.FrameResult, error) {
	w, h := f.Width(), f.Height()
	if w == 0 || h == 0 {
		return pose.Empty(w, h), fmt.Errorf("%s: empty frame", d.cfg.Kind)
	}

	out, err := d.runtime.Infer(ctx, f.RGBA())
	if err != nil {
		return pose.Empty(w, h), fmt.Errorf("%s inference: %w", d.cfg.Kind, err)
	}

	b := pose.NewBuilder(w, h)
	if err := d.profile.decode(out, b, d.cfg); err != nil {
		return pose.Empty(w, h), fmt.Errorf("%s decode: %w", d.cfg.Kind, err)
	}

	res := b.Result()
	if len(res.Persons) > d.profile.maxPersons {
		res.Persons = res.Persons[:d.profile.maxPersons]
	}
	if res.Clamped > 0 {
		d.clamps.Event(d.log.Debug()).Int("clamped", res.Clamped).Msg("Clamped out-of-range landmarks")
	}
	return res, nil
}

func (d *backend) LandmarkName(i int) landmark.Name {
	return d.profile.schema.NameFor(i)
}

func (d *backend) RenderOverlay(f *frame.Frame, res *pose.FrameResult) {
	d.overlay.Render(f, res)
}

func (d *backend) Emit(res *pose.FrameResult, w oscproto.Writer) error {
	if d.profile.legacy {
		return oscproto.EmitLegacy(w, res, d.profile.schema, oscproto.LegacyOptions{Split: d.cfg.Split})
	}
	return oscproto.EmitMulti(w, res, d.profile.schema)
}

func (d *backend) Name() Kind { return d.cfg.Kind }

func (d *backend) Schema() *landmark.Schema { return d.profile.schema }

func (d *backend) MaxPersons() int { return d.profile.maxPersons }

func (d *backend) ZMeaning() pose.ZMeaning { return d.profile.z }

func (d *backend) Err() error { return nil }

func (d *backend) Close() error { return d.runtime.Close() }
