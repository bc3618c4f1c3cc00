package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/discord"
)

const (
	playbackStatsInterval = 5 * time.Second
	// trailingSilenceFrames are sent after the mix empties so the receiving
	// decoders do not interpolate across the gap.
	trailingSilenceFrames = 5
)

type playbackStats struct {
	mixedFrames   int64
	sentPackets   int64
	droppedFrames int64
	encodeErrors  int64
	idleFrames    int64
}

// player pulls one frame from the mixer per tick, encodes it and hands it to
// the voice connection.
type player struct {
	sessionID string
	mixer     *audio.Mixer
	encoder   audio.Encoder
	voice     discord.VoiceConnection

	speaking    bool
	silentAfter int
	idleRun     int
	stats       playbackStats
}

func newPlayer(sessionID string, mixer *audio.Mixer, encoder audio.Encoder, voice discord.VoiceConnection) *player {
	return &player{
		sessionID:   sessionID,
		mixer:       mixer,
		encoder:     encoder,
		voice:       voice,
		silentAfter: trailingSilenceFrames,
		idleRun:     trailingSilenceFrames + 1,
	}
}

func (p *player) run(ctx context.Context) {
	ticker := time.NewTicker(audio.FrameDuration)
	statsTicker := time.NewTicker(playbackStatsInterval)
	defer ticker.Stop()
	defer statsTicker.Stop()

	slog.Info("playback loop started", "session_id", p.sessionID)
	for {
		select {
		case <-ctx.Done():
			p.logStats("playback loop stopped")
			return
		case <-statsTicker.C:
			p.logStats("playback stats")
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *player) logStats(msg string) {
	slog.Info(msg,
		"session_id", p.sessionID,
		"tracks", p.mixer.Len(),
		"mixed_frames", p.stats.mixedFrames,
		"sent_packets", p.stats.sentPackets,
		"dropped_frames", p.stats.droppedFrames,
		"encode_errors", p.stats.encodeErrors,
		"idle_frames", p.stats.idleFrames)
}

// tick produces one frame. Once the mixer has been empty for more than
// silentAfter frames nothing is sent and speaking is turned off.
func (p *player) tick(ctx context.Context) {
	frame := p.mixer.Read()
	p.stats.mixedFrames++

	if p.mixer.Len() == 0 {
		p.idleRun++
		if p.idleRun > p.silentAfter {
			p.stats.idleFrames++
			p.setSpeaking(false)
			return
		}
	} else {
		p.idleRun = 0
	}
	p.setSpeaking(true)

	packet, err := p.encoder.Encode(frame)
	if err != nil {
		p.stats.encodeErrors++
		slog.Warn("failed to encode frame", "error", err, "session_id", p.sessionID)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, audio.FrameDuration)
	err = p.voice.SendOpus(sendCtx, packet)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.stats.droppedFrames++
		if !errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("failed to send opus packet", "error", err, "session_id", p.sessionID)
		}
		return
	}
	p.stats.sentPackets++
}

func (p *player) setSpeaking(speaking bool) {
	if p.speaking == speaking {
		return
	}
	if err := p.voice.Speaking(speaking); err != nil {
		slog.Debug("failed to update speaking state", "error", err, "session_id", p.sessionID, "speaking", speaking)
		return
	}
	p.speaking = speaking
}
