package image

import "errors"

// ErrNotFound is returned by a runtime when the image does not exist locally.
var ErrNotFound = errors.New("image not found")

// ID is the content identity of a local image, e.g. "sha256:c3c3d8...".
// It changes whenever the image content changes, regardless of tags.
type ID string

// NoID stands for an image that is not present locally.
const NoID ID = ""

// IsZero reports whether id denotes an absent image.
func (id ID) IsZero() bool {
	return id == NoID
}

// Short returns the first twelve hex digits, the way docker prints image IDs.
func (id ID) Short() string {
	const (
		prefix = "sha256:"
		digits = 12
	)

	s := string(id)
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		s = s[len(prefix):]
	}

	if len(s) > digits {
		s = s[:digits]
	}

	return s
}

// String implements fmt.Stringer.
func (id ID) String() string {
	if id.IsZero() {
		return "<none>"
	}

	return string(id)
}

// PullEvent is one progress message of an image pull.
// Events carry no meaning beyond progress reporting.
type PullEvent struct {
	// Layer is the layer ID the event refers to, empty for image-level messages.
	Layer string
	// Status is the human-readable status, e.g. "Downloading" or "Pull complete".
	Status string
	// Current and Total are byte counters for the layer, zero when unknown.
	Current int64
	Total   int64
}

// PullStream yields the progress events of a running pull.
// The pull is complete once Next returns io.EOF. Close must always be called.
type PullStream interface {
	Next() (PullEvent, error)
	Close() error
}
