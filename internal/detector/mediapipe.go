package detector

import (
	"math"

	"github.com/bryanchriswhite/PoseStreamer/internal/inference"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// MediaPipe pose landmarker output: "landmarks" [N,33,3] with normalized
// x, y and a relative depth z. An optional "scores" [N] carries per-person
// presence.
const (
	mediaPipeLandmarks = "landmarks"
	mediaPipeScores    = "scores"
)

func mediaPipePersons(out inference.Output, b *pose.Builder, limit int, withBBox bool) error {
	lms, err := out.Tensor(mediaPipeLandmarks, 3)
	if err != nil {
		return err
	}
	scores, _ := out.Tensor(mediaPipeScores, 1)

	n, points := lms.Shape[0], lms.Shape[1]
	if lms.Shape[2] < 3 {
		return errShape(mediaPipeLandmarks, lms.Shape)
	}
	if n > limit {
		n = limit
	}

	for p := 0; p < n; p++ {
		person := pose.Person{Landmarks: make([]pose.Landmark, points)}
		for i := 0; i < points; i++ {
			person.Landmarks[i] = b.Point(
				float64(lms.At(p, i, 0)),
				float64(lms.At(p, i, 1)),
				float64(lms.At(p, i, 2)),
			)
		}
		if scores != nil && p < scores.Shape[0] {
			person.Confidence = pose.Float(float64(scores.At(p)))
		}
		if withBBox {
			// z is depth here, so every point counts toward the box
			person.BBox = pose.BBoxFromLandmarks(person.Landmarks, math.Inf(-1))
		}
		b.Add(person)
	}
	return nil
}

func decodeMediaPipeSingle(out inference.Output, b *pose.Builder, _ Config) error {
	return mediaPipePersons(out, b, 1, false)
}

func decodeMediaPipeMulti(out inference.Output, b *pose.Builder, _ Config) error {
	return mediaPipePersons(out, b, math.MaxInt32, true)
}
