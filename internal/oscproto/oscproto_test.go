package oscproto

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

func person(n int, v float64) pose.Person {
	lms := make([]pose.Landmark, n)
	for i := range lms {
		lms[i] = pose.Landmark{X: v, Y: v, Z: v}
	}
	return pose.Person{Landmarks: lms}
}

func TestEmitLegacySinglePerson(t *testing.T) {
	res := &pose.FrameResult{Width: 640, Height: 480, Persons: []pose.Person{person(33, 0.5)}}
	rec := &Recorder{}

	require.NoError(t, EmitLegacy(rec, res, landmark.Kinect33, LegacyOptions{}))

	msgs := rec.Messages()
	require.Len(t, msgs, 3+33)
	n, ok := rec.Find(AddrNumLandmarks)
	require.True(t, ok)
	assert.Equal(t, []interface{}{int32(33)}, n.Args)

	head, ok := rec.Find("/p1/head")
	require.True(t, ok)
	assert.Equal(t, []interface{}{float32(0.5), float32(0.5), float32(0.5)}, head.Args)

	_, ok = rec.Find("/p1/foot_r")
	assert.True(t, ok)
}

func TestEmitLegacyNoPerson(t *testing.T) {
	rec := &Recorder{}
	require.NoError(t, EmitLegacy(rec, pose.Empty(640, 480), landmark.Kinect33, LegacyOptions{Split: true}))

	want := []string{AddrImageHeight, AddrImageWidth, AddrNumLandmarks}
	if diff := cmp.Diff(want, rec.Addresses()); diff != "" {
		t.Errorf("addresses mismatch (-want +got):\n%s", diff)
	}
	h, _ := rec.Find(AddrImageHeight)
	assert.Equal(t, []interface{}{int32(480)}, h.Args)
}

func TestEmitLegacySplit(t *testing.T) {
	res := &pose.FrameResult{Width: 200, Height: 100, Persons: []pose.Person{{
		Landmarks: []pose.Landmark{{X: 0.2, Y: 0.4, Z: -0.1}},
	}}}
	rec := &Recorder{}
	require.NoError(t, EmitLegacy(rec, res, landmark.Kinect33, LegacyOptions{Split: true}))

	want := []string{
		AddrImageHeight, AddrImageWidth, AddrNumLandmarks,
		"/p1/head", "/p1/head:tx", "/p1/head:ty", "/p1/head:tz",
	}
	assert.Equal(t, want, rec.Addresses())

	ty, _ := rec.Find("/p1/head:ty")
	assert.InDelta(t, 0.3, ty.Args[0].(float32), 1e-6)
}

func TestEmitMultiTwoPersons(t *testing.T) {
	res := &pose.FrameResult{Width: 640, Height: 480, Persons: []pose.Person{
		person(33, 0.1),
		{
			Landmarks:  person(33, 0.9).Landmarks,
			Confidence: pose.Float(0.75),
			BBox:       &pose.BBox{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4},
		},
	}}
	rec := &Recorder{}
	require.NoError(t, EmitMulti(rec, res, landmark.MediaPipe33))

	np, ok := rec.Find(AddrNumPersons)
	require.True(t, ok)
	assert.Equal(t, []interface{}{int32(2)}, np.Args)

	for _, addr := range []string{"/person0/landmark/nose", "/person1/landmark/nose", "/person1/landmark/right_foot_index"} {
		_, ok := rec.Find(addr)
		assert.True(t, ok, addr)
	}

	_, ok = rec.Find("/person0/confidence")
	assert.False(t, ok)
	conf, ok := rec.Find("/person1/confidence")
	require.True(t, ok)
	assert.Equal(t, []interface{}{float32(0.75)}, conf.Args)

	bbox, ok := rec.Find("/person1/bbox")
	require.True(t, ok)
	assert.Len(t, bbox.Args, 4)

	assert.Len(t, rec.Messages(), 4+33+33+2)
}

func TestEmitMultiEmpty(t *testing.T) {
	rec := &Recorder{}
	require.NoError(t, EmitMulti(rec, pose.Empty(10, 10), landmark.COCO17))
	np, _ := rec.Find(AddrNumPersons)
	assert.Equal(t, []interface{}{int32(0)}, np.Args)
	n, _ := rec.Find(AddrNumLandmarks)
	assert.Equal(t, []interface{}{int32(17)}, n.Args)
}

func TestEmitStopsOnWriteError(t *testing.T) {
	calls := 0
	w := WriterFunc(func(Message) error {
		calls++
		return errors.New("unreachable")
	})
	err := EmitMulti(w, &pose.FrameResult{Persons: []pose.Person{person(17, 0)}}, landmark.COCO17)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestAdjustY(t *testing.T) {
	assert.InDelta(t, 0.75, AdjustY(0, 640, 480), 1e-9)
	assert.InDelta(t, 0, AdjustY(1, 640, 480), 1e-9)
	assert.Equal(t, 0.0, AdjustY(0.5, 0, 480))
}
