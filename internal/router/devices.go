package router

import (
	"github.com/gen2brain/malgo"

	"github.com/livecore-audio/livecore/internal/errors"
)

// ListPlaybackDevices returns the names of the audio playback devices the
// built-in synth could open.
func ListPlaybackDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryAudioBackend).
			Context("stage", "context_init").
			Build()
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryAudioBackend).
			Context("stage", "device_enum").
			Build()
	}

	names := make([]string, 0, len(infos))
	for i := range infos {
		names = append(names, infos[i].Name())
	}
	return names, nil
}
