package session

import (
	"github.com/samber/do/v2"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/config"
	"github.com/foxseedlab/otomaze/internal/discord"
	"github.com/foxseedlab/otomaze/internal/repository"
	"github.com/foxseedlab/otomaze/internal/webhook"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		wh := do.MustInvoke[webhook.Sender](i)
		newMixer := do.MustInvoke[audio.MixerFactory](i)
		newEncoder := do.MustInvoke[audio.EncoderFactory](i)
		return NewManager(cfg, repo, dc, wh, newMixer, newEncoder), nil
	})
}
