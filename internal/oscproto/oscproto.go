// Package oscproto defines the landmark broadcast message layout. It only
// produces messages; the transport lives in sink/oscsink.
package oscproto

import (
	"fmt"

	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// Frame info addresses, sent once per frame
const (
	AddrImageHeight  = "/image-height"
	AddrImageWidth   = "/image-width"
	AddrNumLandmarks = "/numLandmarks"
	AddrNumPersons   = "/numPersons"
)

// Message is one broadcast message. Args hold int32 or float32 values.
type Message struct {
	Address string        `json:"address"`
	Args    []interface{} `json:"args"`
}

// NewMessage builds a message
func NewMessage(addr string, args ...interface{}) Message {
	return Message{Address: addr, Args: args}
}

// Writer delivers messages to a transport
type Writer interface {
	Write(msg Message) error
}

// WriterFunc adapts a function to Writer
type WriterFunc func(Message) error

// Write calls f
func (f WriterFunc) Write(msg Message) error { return f(msg) }

// LegacyOptions tunes the single-person message shape
type LegacyOptions struct {
	// Split adds per-coordinate :tx/:ty/:tz messages after each point
	Split bool
}

func sendFrameInfo(w Writer, res *pose.FrameResult, numLandmarks int) error {
	for _, m := range []Message{
		NewMessage(AddrImageHeight, int32(res.Height)),
		NewMessage(AddrImageWidth, int32(res.Width)),
		NewMessage(AddrNumLandmarks, int32(numLandmarks)),
	} {
		if err := w.Write(m); err != nil {
			return err
		}
	}
	return nil
}

func xyz(lm pose.Landmark) []interface{} {
	return []interface{}{float32(lm.X), float32(lm.Y), float32(lm.Z)}
}

// AdjustY flips y to a bottom-up axis and scales it by the frame aspect
// ratio, the convention of the legacy :ty message
func AdjustY(y float64, width, height int) float64 {
	if width <= 0 {
		return 0
	}
	return (1 - y) * (float64(height) / float64(width))
}

// EmitLegacy writes the single-person shape: frame info, then
// /p1/<name> [x,y,z] per point of the first person. Nothing past the
// frame info is sent when no person was detected.
func EmitLegacy(w Writer, res *pose.FrameResult, schema *landmark.Schema, opt LegacyOptions) error {
	if res == nil {
		return nil
	}
	if err := sendFrameInfo(w, res, schema.Len()); err != nil {
		return err
	}
	if !res.HasPersons() {
		return nil
	}

	for i, lm := range res.Persons[0].Landmarks {
		addr := fmt.Sprintf("/p1/%s", schema.NameFor(i))
		if err := w.Write(Message{Address: addr, Args: xyz(lm)}); err != nil {
			return err
		}
		if !opt.Split {
			continue
		}
		for _, m := range []Message{
			NewMessage(addr+":tx", float32(lm.X)),
			NewMessage(addr+":ty", float32(AdjustY(lm.Y, res.Width, res.Height))),
			NewMessage(addr+":tz", float32(lm.Z)),
		} {
			if err := w.Write(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// EmitMulti writes the multi-person shape: frame info plus /numPersons,
// then per person p its landmarks, confidence and bbox when present.
func EmitMulti(w Writer, res *pose.FrameResult, schema *landmark.Schema) error {
	if res == nil {
		return nil
	}
	if err := sendFrameInfo(w, res, schema.Len()); err != nil {
		return err
	}
	if err := w.Write(NewMessage(AddrNumPersons, int32(len(res.Persons)))); err != nil {
		return err
	}

	for p, person := range res.Persons {
		for i, lm := range person.Landmarks {
			addr := fmt.Sprintf("/person%d/landmark/%s", p, schema.NameFor(i))
			if err := w.Write(Message{Address: addr, Args: xyz(lm)}); err != nil {
				return err
			}
		}
		if person.Confidence != nil {
			addr := fmt.Sprintf("/person%d/confidence", p)
			if err := w.Write(NewMessage(addr, float32(*person.Confidence))); err != nil {
				return err
			}
		}
		if b := person.BBox; b != nil {
			addr := fmt.Sprintf("/person%d/bbox", p)
			msg := NewMessage(addr, float32(b.X), float32(b.Y), float32(b.Width), float32(b.Height))
			if err := w.Write(msg); err != nil {
				return err
			}
		}
	}
	return nil
}
