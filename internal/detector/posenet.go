package detector

import (
	"math"

	"github.com/bryanchriswhite/PoseStreamer/internal/inference"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// PoseNet MobileNet outputs: "heatmaps" [1,9,9,17] of per-cell keypoint
// logits and "offsets" [1,9,9,34] with the y offsets of the 17 keypoints
// followed by their x offsets, in frame pixels.
const (
	poseNetHeatmaps  = "heatmaps"
	poseNetOffsets   = "offsets"
	poseNetKeypoints = 17
)

// logits can be negative; -1 is the visibility cut used for drawing
var poseNetPointScore = sigmoid(-1)

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func decodePoseNet(out inference.Output, b *pose.Builder, cfg Config) error {
	heat, err := out.Tensor(poseNetHeatmaps, 4)
	if err != nil {
		return err
	}
	off, err := out.Tensor(poseNetOffsets, 4)
	if err != nil {
		return err
	}
	rows, cols := heat.Shape[1], heat.Shape[2]
	if heat.Shape[3] < poseNetKeypoints || off.Shape[1] != rows || off.Shape[2] != cols || off.Shape[3] < 2*poseNetKeypoints {
		return errShape(poseNetOffsets, off.Shape)
	}
	if rows < 2 || cols < 2 {
		return errShape(poseNetHeatmaps, heat.Shape)
	}

	res := b.Result()
	w, h := float64(res.Width), float64(res.Height)

	person := pose.Person{Landmarks: make([]pose.Landmark, poseNetKeypoints)}
	var sum float64
	for k := 0; k < poseNetKeypoints; k++ {
		// argmax over the grid, first cell wins ties
		by, bx := 0, 0
		best := heat.At(0, 0, 0, k)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				if v := heat.At(0, y, x, k); v > best {
					best, by, bx = v, y, x
				}
			}
		}

		py := float64(by)*h/float64(rows-1) + float64(off.At(0, by, bx, k))
		px := float64(bx)*w/float64(cols-1) + float64(off.At(0, by, bx, k+poseNetKeypoints))
		score := sigmoid(float64(best))
		sum += score
		person.Landmarks[k] = b.PixelPoint(px, py, score)
	}

	mean := sum / poseNetKeypoints
	if mean < cfg.ScoreThreshold {
		return nil
	}
	person.Confidence = pose.Float(mean)
	b.Add(person)
	return nil
}
