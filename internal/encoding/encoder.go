package encoding

import (
	"fmt"

	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// Encoder converts snapshots to wire bytes.
type Encoder interface {
	Encode(s snapshot.Snapshot) ([]byte, error)
	ContentType() string
}

// Format selects a wire encoding.
type Format string

const (
	FormatJSON Format = "json"
)

// NewEncoder creates an encoder for the given format.
func NewEncoder(format Format) (Encoder, error) {
	switch format {
	case FormatJSON:
		return NewJSONEncoder(), nil
	default:
		return nil, fmt.Errorf("unknown encoding format %q", format)
	}
}
