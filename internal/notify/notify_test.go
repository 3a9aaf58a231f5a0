package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// nextWithin runs n.Next in the background and fails the test if no item
// arrives within d.
func nextWithin(t *testing.T, n Notifier, d time.Duration) Item {
	t.Helper()
	items := make(chan Item, 1)
	go func() { items <- n.Next() }()
	select {
	case item := <-items:
		return item
	case <-time.After(d):
		t.Fatalf("no notification item within %v", d)
		return Item{}
	}
}

// expectQuiet asserts that no item arrives within d. The pending Next is
// released by closing n, and the resulting item is returned.
func expectQuiet(t *testing.T, n Notifier, d time.Duration) Item {
	t.Helper()
	items := make(chan Item, 1)
	go func() { items <- n.Next() }()
	select {
	case item := <-items:
		t.Fatalf("unexpected item %+v", item)
	case <-time.After(d):
	}
	require.NoError(t, n.Close())
	select {
	case item := <-items:
		return item
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
		return Item{}
	}
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("seed"), 0o644))
	return path
}

func appendTo(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
