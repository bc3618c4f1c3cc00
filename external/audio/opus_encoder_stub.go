//go:build !opus

package audio

import "github.com/foxseedlab/otomaze/internal/audio"

// NewOpusEncoder always fails without the opus build tag.
func NewOpusEncoder(_ int) (audio.Encoder, error) {
	return nil, ErrOpusUnavailable
}
