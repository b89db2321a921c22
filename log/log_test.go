package log

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	b, err := NewWriter(&buf, "info")
	require.NoError(t, err)

	l := b.GetLogger("pfrp")
	l.Debug("hidden")
	l.Infof("step %d finalized", 3)
	l.Error("desync")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO pfrp: step 3 finalized")
	assert.Contains(t, out, "ERRO pfrp: desync")
	assert.NoError(t, b.Close())
}

func TestInvalidLevel(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, "loud")
	assert.Error(t, err)
	_, err = New("", "loud", false)
	assert.Error(t, err)
}

func TestFileBackend(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "pfrp.log")
	b, err := New(fn, "DEBUG", false)
	require.NoError(t, err)
	b.GetLogger("sim").Debug("hello")
	require.NoError(t, b.Close())

	disabled, err := New(fn, "DEBUG", true)
	require.NoError(t, err)
	disabled.GetLogger("sim").Error("dropped")
	assert.NoError(t, disabled.Close())
}

func TestDiscard(t *testing.T) {
	l := Discard("pfrp")
	l.Error("nothing")
	assert.NotNil(t, l)
}
