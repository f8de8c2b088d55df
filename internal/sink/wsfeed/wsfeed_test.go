package wsfeed

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
)

type cocoNames struct{}

func (cocoNames) LandmarkName(i int) landmark.Name { return landmark.COCO17.NameFor(i) }

func result() *pose.FrameResult {
	b := pose.NewBuilder(100, 50)
	b.Add(pose.Person{
		Landmarks:  []pose.Landmark{{X: 0.25, Y: 0.5, Z: 0.9}},
		Confidence: pose.Float(0.8),
	})
	return b.Result()
}

func TestEncode(t *testing.T) {
	f := &frame.Frame{Seq: 7}
	got := Encode(f, result(), cocoNames{})
	want := Message{
		Seq: 7, Width: 100, Height: 50,
		Persons: []Person{{
			Landmarks:  []Point{{Name: "nose", X: 0.25, Y: 0.5, Z: 0.9}},
			Confidence: pose.Float(0.8),
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}
}

func TestConsumeRequiresOpen(t *testing.T) {
	s := New(cocoNames{})
	err := s.Consume(context.Background(), nil, result())
	assert.True(t, errors.Is(err, sink.ErrNotOpen))
}

func TestFeed(t *testing.T) {
	s := New(cocoNames{})
	require.NoError(t, s.Open(context.Background()))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Consume(context.Background(), &frame.Frame{Seq: 3}, result()))

	var msg Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, uint64(3), msg.Seq)
	require.Len(t, msg.Persons, 1)
	assert.Equal(t, landmark.Name("nose"), msg.Persons[0].Landmarks[0].Name)

	require.NoError(t, s.Close())
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
