package audio

import (
	"github.com/samber/do/v2"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/config"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.Decoder, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ffmpeg := NewFFmpegDecoder(cfg.FFmpegPath, cfg.FFmpegReconnect)
		return NewRoutingDecoder(cfg.AudioSourceDir, ffmpeg), nil
	})
	do.Provide(injector, func(i do.Injector) (audio.EncoderFactory, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return audio.EncoderFactory(func() (audio.Encoder, error) {
			return NewOpusEncoder(cfg.OpusBitrate)
		}), nil
	})
	do.Provide(injector, func(i do.Injector) (audio.MixerFactory, error) {
		cfg := do.MustInvoke[*config.Config](i)
		dec := do.MustInvoke[audio.Decoder](i)
		return audio.MixerFactory(func(opts ...audio.MixerOption) *audio.Mixer {
			base := []audio.MixerOption{
				audio.WithMaxTracks(cfg.AudioMaxTracks),
				audio.WithLoopPreopen(cfg.AudioLoopPreopen),
				audio.WithReopenTimeout(cfg.AudioLoopReopenTimeout),
			}
			return audio.NewMixer(dec, append(base, opts...)...)
		}), nil
	})
}
