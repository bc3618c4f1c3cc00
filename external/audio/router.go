package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/foxseedlab/otomaze/internal/audio"
)

type nativeOpener func(ctx context.Context, path string, opts audio.OpenOptions) (audio.Stream, error)

// RoutingDecoder resolves local sources against the audio source directory and
// picks a decoder by file extension. Files that are already 48kHz stereo are
// decoded in process; everything else, including every URL, goes to the
// fallback decoder.
type RoutingDecoder struct {
	baseDir  string
	native   map[string]nativeOpener
	fallback audio.Decoder
}

func NewRoutingDecoder(baseDir string, fallback audio.Decoder) *RoutingDecoder {
	return &RoutingDecoder{
		baseDir: baseDir,
		native: map[string]nativeOpener{
			".mp3": openMP3,
			".ogg": openVorbis,
			".oga": openVorbis,
			".wav": openWAV,
		},
		fallback: fallback,
	}
}

func (d *RoutingDecoder) Open(ctx context.Context, src audio.Source, opts audio.OpenOptions) (audio.Stream, error) {
	if src.IsRemote() {
		return d.fallback.Open(ctx, src, opts)
	}

	path, err := d.resolve(src.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", audio.ErrDecodeUnavailable, src, err)
	}
	local := audio.Source{Location: path}

	if open, ok := d.native[strings.ToLower(filepath.Ext(path))]; ok {
		stream, err := open(ctx, path, opts)
		if err == nil {
			slog.Debug("native decoder selected", "source", path)
			return stream, nil
		}
		if !errors.Is(err, errFormatMismatch) {
			slog.Debug("native decoder failed; falling back", "source", path, "error", err)
		}
	}
	return d.fallback.Open(ctx, local, opts)
}

// resolve maps a location to a file path. With a base directory configured,
// relative paths are joined to it and the result must stay inside it.
func (d *RoutingDecoder) resolve(location string) (string, error) {
	if d.baseDir == "" {
		return location, nil
	}
	base, err := filepath.Abs(d.baseDir)
	if err != nil {
		return "", err
	}
	path := location
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideBaseDir
	}
	return path, nil
}
