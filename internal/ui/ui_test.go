package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestStylesNoColor(t *testing.T) {
	s := GetStyles(true)
	assert.Equal(t, "ready", s.Success("ready"))

	colored := GetStyles(false)
	assert.Contains(t, colored.Error("failed"), "\x1b[31m")
	assert.True(t, strings.HasSuffix(colored.Error("failed"), ansiReset))
}

func TestStatusRender(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)

	err := r.Render([]DatasetStatus{
		{
			Dataset:   "ikat-passages",
			Family:    "wiki-passage",
			Status:    "ready",
			DocCount:  116838,
			BuiltAt:   time.Now().Add(-5 * time.Minute),
			IndexPath: "/data/indexes/ikat",
		},
		{
			Dataset:   "inscit-dialogues",
			Family:    "conversational-dialogue",
			Status:    "failed",
			IndexPath: "/data/indexes/inscit",
			Error:     "builder exited with code 1",
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ikat-passages")
	assert.Contains(t, out, "docs:    116838")
	assert.Contains(t, out, "m ago")
	assert.Contains(t, out, "builder exited with code 1")
}

func TestStatusRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewStatusRenderer(&buf, true).Render(nil))
	assert.Contains(t, buf.String(), "no datasets registered")
}

func TestStatusRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)
	require.NoError(t, r.RenderJSON([]DatasetStatus{
		{Dataset: "ikat-passages", Status: "missing"},
	}))

	var rows []DatasetStatus
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "missing", rows[0].Status)
}
