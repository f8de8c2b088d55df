package mjpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
)

// bgraRed is a solid red frame laid out in BGRA order
func bgraRed(w, h int) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 255, 255
	}
	return frame.New(img, frame.BGRA)
}

func TestConsumeRequiresOpen(t *testing.T) {
	m := New(Config{})
	err := m.Consume(context.Background(), bgraRed(2, 2), pose.Empty(2, 2))
	assert.True(t, errors.Is(err, sink.ErrNotOpen))
}

func TestSnapshotNormalizesChannelOrder(t *testing.T) {
	m := New(Config{Quality: 90})
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	require.NoError(t, m.Consume(context.Background(), bgraRed(16, 16), pose.Empty(16, 16)))

	rec := httptest.NewRecorder()
	m.SnapshotHandler()(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BGRA", rec.Header().Get(HeaderPixelFormat))

	img, err := jpeg.Decode(rec.Body)
	require.NoError(t, err)
	r, g, b, _ := img.At(8, 8).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(60))
	assert.Less(t, b>>8, uint32(60))
}

func TestRawHandlerTagsFormat(t *testing.T) {
	m := New(Config{Raw: frame.RGBA})
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	rec := httptest.NewRecorder()
	m.RawHandler()(rec, httptest.NewRequest(http.MethodGet, "/frame.raw", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, m.Consume(context.Background(), bgraRed(2, 1), pose.Empty(2, 1)))

	rec = httptest.NewRecorder()
	m.RawHandler()(rec, httptest.NewRequest(http.MethodGet, "/frame.raw", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RGBA", rec.Header().Get(HeaderPixelFormat))
	assert.Equal(t, "2", rec.Header().Get("X-Frame-Width"))
	assert.Equal(t, "1", rec.Header().Get("X-Frame-Height"))
	assert.Equal(t, []byte{255, 0, 0, 255, 255, 0, 0, 255}, rec.Body.Bytes())
}

func TestRawSnapshotIsNotAliased(t *testing.T) {
	m := New(Config{Raw: frame.BGRA})
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	f := bgraRed(1, 1)
	require.NoError(t, m.Consume(context.Background(), f, pose.Empty(1, 1)))
	f.Image.Pix[0] = 99

	rec := httptest.NewRecorder()
	m.RawHandler()(rec, httptest.NewRequest(http.MethodGet, "/frame.raw", nil))
	assert.Equal(t, byte(0), rec.Body.Bytes()[0])
}

func TestStreamDeliversTaggedParts(t *testing.T) {
	m := New(Config{})
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				m.Consume(context.Background(), bgraRed(4, 4), pose.Empty(4, 4))
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "multipart/x-mixed-replace")

	rd := textproto.NewReader(bufio.NewReader(resp.Body))
	line, err := rd.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "--frame", line)
	hdr, err := rd.ReadMIMEHeader()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", hdr.Get("Content-Type"))
	assert.Equal(t, "BGRA", hdr.Get(HeaderPixelFormat))
	assert.NotEmpty(t, hdr.Get("Content-Length"))

	assert.Eventually(t, func() bool { return m.Stats().Clients == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, m.Stats().Frames > 0)
}

func TestHandlerWhenClosed(t *testing.T) {
	m := New(Config{})
	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, bytes.Contains(rec.Body.Bytes(), []byte("--frame")))
}
