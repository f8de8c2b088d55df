package landmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaSizes(t *testing.T) {
	tests := []struct {
		schema *Schema
		want   int
	}{
		{Kinect33, 33},
		{MediaPipe33, 33},
		{COCO17, 17},
		{Body25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.schema.ID(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.schema.Len())
			assert.Len(t, tt.schema.Names(), tt.want)
		})
	}
}

func TestNameForIsStable(t *testing.T) {
	for _, id := range IDs() {
		s, err := Lookup(id)
		require.NoError(t, err)

		for i := 0; i < s.Len(); i++ {
			first := s.NameFor(i)
			for n := 0; n < 3; n++ {
				assert.Equal(t, first, s.NameFor(i))
			}
			idx, ok := s.Index(first)
			require.True(t, ok, "name %s not indexed", first)
			assert.Equal(t, i, idx)
		}
	}
}

func TestNameForOutOfRange(t *testing.T) {
	assert.Equal(t, Name("unknown_17"), COCO17.NameFor(17))
	assert.Equal(t, Name("unknown_-1"), COCO17.NameFor(-1))
	assert.Equal(t, Name("unknown_40"), MediaPipe33.NameFor(40))
}

func TestKnownNames(t *testing.T) {
	assert.Equal(t, Name("head"), Kinect33.NameFor(0))
	assert.Equal(t, Name("foot_r"), Kinect33.NameFor(32))
	assert.Equal(t, Name("nose"), MediaPipe33.NameFor(0))
	assert.Equal(t, Name("right_ankle"), COCO17.NameFor(16))
	assert.Equal(t, Name("right_heel"), Body25.NameFor(24))
}

func TestSharedPointsShareNames(t *testing.T) {
	// every COCO point exists in MediaPipe33 under the same name
	for _, n := range COCO17.Names() {
		_, ok := MediaPipe33.Index(n)
		assert.True(t, ok, "%s missing from mediapipe33", n)
	}
}

func TestEdgesWithinRange(t *testing.T) {
	for _, id := range IDs() {
		s, _ := Lookup(id)
		for _, e := range s.Edges() {
			assert.True(t, e[0] >= 0 && e[0] < s.Len(), "%s edge %v", id, e)
			assert.True(t, e[1] >= 0 && e[1] < s.Len(), "%s edge %v", id, e)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("nope")
	assert.Error(t, err)
}

func TestNamesReturnsCopy(t *testing.T) {
	names := COCO17.Names()
	names[0] = "mutated"
	assert.Equal(t, Name("nose"), COCO17.NameFor(0))
}
