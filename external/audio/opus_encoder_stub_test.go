//go:build !opus

package audio

import (
	"errors"
	"testing"
)

func TestNewOpusEncoder_UnavailableWithoutTag(t *testing.T) {
	if _, err := NewOpusEncoder(64000); !errors.Is(err, ErrOpusUnavailable) {
		t.Fatalf("expected ErrOpusUnavailable, got %v", err)
	}
}
