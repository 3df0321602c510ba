package media

import (
	"io"
	"sync"

	"github.com/repairlens/repairlens/internal/domain"
)

// FrameSource is a live capture device producing one frame per read.
type FrameSource interface {
	io.ReadCloser
	// MIMEType declares the encoding of produced frames.
	MIMEType() string
}

// CameraSession owns a capture device for the duration of a camera view.
// The device is released exactly once, on every exit path: explicit cancel,
// successful snapshot, or teardown.
type CameraSession struct {
	adapter *Adapter
	src     FrameSource

	closeOnce sync.Once
	closeErr  error
}

// OpenCamera starts a capture session over the given device.
func OpenCamera(adapter *Adapter, src FrameSource) *CameraSession {
	return &CameraSession{adapter: adapter, src: src}
}

// Snapshot reads one frame, normalizes it, and releases the device. The
// device is released even when normalization fails.
func (c *CameraSession) Snapshot() (*domain.MediaReference, error) {
	defer c.Close()
	return c.adapter.Normalize(c.src, c.src.MIMEType())
}

// Close releases the underlying device. Safe to call multiple times.
func (c *CameraSession) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.src.Close()
	})
	return c.closeErr
}
