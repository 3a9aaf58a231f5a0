//go:build !linux

package notify

// DefaultBackend is used when no backend is configured.
const DefaultBackend = BackendFsnotify
