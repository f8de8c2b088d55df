package detector

import (
	"github.com/bryanchriswhite/PoseStreamer/internal/inference"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// OpenPose BODY_25 output "pose_keypoints" [N,25,3]: pixel x, y and a
// confidence c per point. Undetected points come back as (0, 0, 0).
const (
	openPoseOutput   = "pose_keypoints"
	openPoseMinScore = 0.05
)

func decodeOpenPose(out inference.Output, b *pose.Builder, _ Config) error {
	t, err := out.Tensor(openPoseOutput, 3)
	if err != nil {
		return err
	}
	if t.Shape[2] < 3 {
		return errShape(openPoseOutput, t.Shape)
	}

	n, points := t.Shape[0], t.Shape[1]
	for p := 0; p < n; p++ {
		person := pose.Person{Landmarks: make([]pose.Landmark, points)}
		var sum float64
		for i := 0; i < points; i++ {
			c := float64(t.At(p, i, 2))
			sum += c
			person.Landmarks[i] = b.PixelPoint(float64(t.At(p, i, 0)), float64(t.At(p, i, 1)), c)
		}
		if points > 0 {
			person.Confidence = pose.Float(sum / float64(points))
		}
		person.BBox = pose.BBoxFromLandmarks(person.Landmarks, openPoseMinScore)
		b.Add(person)
	}
	return nil
}
