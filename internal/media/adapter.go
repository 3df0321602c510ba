// Package media normalizes user captures (file uploads, pasted images,
// camera frames) into transport-ready references.
package media

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/repairlens/repairlens/internal/domain"
)

// DefaultMaxBytes caps a single capture payload.
const DefaultMaxBytes = 20 * 1024 * 1024

// Adapter turns raw capture input into a domain.MediaReference.
type Adapter struct {
	maxBytes int64
}

// NewAdapter creates an adapter with the given payload cap; zero or negative
// uses DefaultMaxBytes.
func NewAdapter(maxBytes int64) *Adapter {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Adapter{maxBytes: maxBytes}
}

// Normalize reads the capture content and produces an immutable reference.
// Oversized or empty input yields a validation error and nothing else.
func (a *Adapter) Normalize(r io.Reader, mimeType string) (*domain.MediaReference, error) {
	const op = "media.normalize"

	data, err := io.ReadAll(io.LimitReader(r, a.maxBytes+1))
	if err != nil {
		return nil, domain.ErrValidation(op, "could not read capture content")
	}
	if int64(len(data)) > a.maxBytes {
		return nil, domain.ErrValidation(op,
			fmt.Sprintf("file exceeds the %d MB limit", a.maxBytes/(1024*1024)))
	}
	if len(data) == 0 {
		return nil, domain.ErrValidation(op, "capture is empty")
	}

	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	payload := base64.StdEncoding.EncodeToString(data)
	return &domain.MediaReference{
		Data:     data,
		MIMEType: mimeType,
		Kind:     classify(mimeType),
		Payload:  payload,
		Preview:  "data:" + mimeType + ";base64," + payload,
	}, nil
}

// FromDataURL normalizes a data URL capture, the form produced by canvas
// snapshots and clipboard pastes.
func (a *Adapter) FromDataURL(dataURL string) (*domain.MediaReference, error) {
	const op = "media.normalize"

	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, domain.ErrValidation(op, "not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, domain.ErrValidation(op, "malformed data URL")
	}
	mimeType, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, domain.ErrValidation(op, "data URL must be base64 encoded")
	}

	// Bound the decode by the encoded length before allocating.
	if int64(len(payload)) > (a.maxBytes*4)/3+4 {
		return nil, domain.ErrValidation(op,
			fmt.Sprintf("file exceeds the %d MB limit", a.maxBytes/(1024*1024)))
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.ErrValidation(op, "data URL payload is not valid base64")
	}
	return a.Normalize(strings.NewReader(string(data)), mimeType)
}

// classify maps a declared MIME type to a media kind. Anything that is not
// explicitly video is treated as an image.
func classify(mimeType string) domain.MediaKind {
	if strings.HasPrefix(mimeType, "video/") {
		return domain.MediaKindVideo
	}
	return domain.MediaKindImage
}
