package main

import (
	"bytes"
	"testing"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
)

func TestPrint(t *testing.T) {
	var buf bytes.Buffer

	ok := printMessage(&buf, osc.NewMessage("/p1/head", float32(0.5), float32(0.25), float32(-0.1)), "/p1")
	assert.True(t, ok)
	assert.Equal(t, "/p1/head 0.5000 0.2500 -0.1000\n", buf.String())

	buf.Reset()
	assert.False(t, printMessage(&buf, osc.NewMessage("/numLandmarks", int32(33)), "/p1"))
	assert.Empty(t, buf.String())

	assert.True(t, printMessage(&buf, osc.NewMessage("/numLandmarks", int32(33)), ""))
	assert.Equal(t, "/numLandmarks 33\n", buf.String())
}
