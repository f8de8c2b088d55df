package detector

import (
	"github.com/bryanchriswhite/PoseStreamer/internal/inference"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// MoveNet MultiPose output "output_0" [1,6,56]: per slot 17 (y, x, score)
// keypoint triples followed by ymin, xmin, ymax, xmax and the person score.
const (
	moveNetOutput    = "output_0"
	moveNetSlots     = 6
	moveNetKeypoints = 17
	moveNetStride    = moveNetKeypoints*3 + 5
)

func decodeMoveNet(out inference.Output, b *pose.Builder, cfg Config) error {
	t, err := out.Tensor(moveNetOutput, 3)
	if err != nil {
		return err
	}
	if t.Shape[2] < moveNetStride {
		return errShape(moveNetOutput, t.Shape)
	}

	box := moveNetKeypoints * 3
	for slot := 0; slot < t.Shape[1]; slot++ {
		score := float64(t.At(0, slot, box+4))
		if score < cfg.ScoreThreshold {
			continue
		}

		person := pose.Person{
			Landmarks:  make([]pose.Landmark, moveNetKeypoints),
			Confidence: pose.Float(score),
		}
		for k := 0; k < moveNetKeypoints; k++ {
			y := float64(t.At(0, slot, 3*k))
			x := float64(t.At(0, slot, 3*k+1))
			s := float64(t.At(0, slot, 3*k+2))
			person.Landmarks[k] = b.Point(x, y, s)
		}

		tl := b.Point(float64(t.At(0, slot, box+1)), float64(t.At(0, slot, box)), 0)
		br := b.Point(float64(t.At(0, slot, box+3)), float64(t.At(0, slot, box+2)), 0)
		if br.X > tl.X && br.Y > tl.Y {
			person.BBox = &pose.BBox{X: tl.X, Y: tl.Y, Width: br.X - tl.X, Height: br.Y - tl.Y}
		}
		b.Add(person)
	}
	return nil
}
