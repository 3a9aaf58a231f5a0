package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackends(t *testing.T) {
	names := Backends()
	assert.Contains(t, names, BackendFsnotify)
	assert.Contains(t, names, DefaultBackend)
	assert.IsIncreasing(t, names)
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open("carrier-pigeon")
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestOpen_Default(t *testing.T) {
	n, err := Open("")
	require.NoError(t, err)
	require.NoError(t, n.Close())
}

func TestRegister_Panics(t *testing.T) {
	assert.Panics(t, func() { Register(BackendFsnotify, NewFsnotify) })
	assert.Panics(t, func() { Register("nil-backend", nil) })
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "event", KindEvent.String())
	assert.Equal(t, "error", KindError.String())
	assert.Equal(t, "end", KindEnd.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
