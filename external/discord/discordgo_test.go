package discord

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	discordpkg "github.com/foxseedlab/otomaze/internal/discord"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestSession(t *testing.T, rt roundTripFunc) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if rt != nil {
		s.Client = &http.Client{Transport: rt}
	}
	return s
}

func TestGetUserVoiceChannelID_UsesStateCacheFirst(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected REST call: %s %s", req.Method, req.URL.String())
		return nil, nil
	})
	if err := s.State.GuildAdd(&discordgo.Guild{
		ID: "guild-1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "guild-1", ChannelID: "vc-1", UserID: "user-1"},
		},
	}); err != nil {
		t.Fatalf("failed to add guild to state: %v", err)
	}

	c := &Client{session: s}
	channelID, err := c.GetUserVoiceChannelID("guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channelID != "vc-1" {
		t.Fatalf("expected vc-1, got %q", channelID)
	}
}

func TestGetUserVoiceChannelID_FallsBackToRESTWhenStateIsCold(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/guilds/guild-1/voice-states/user-1") {
			t.Fatalf("unexpected request path: %s", req.URL.Path)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Body: io.NopCloser(strings.NewReader(
				`{"guild_id":"guild-1","channel_id":"vc-rest","user_id":"user-1","session_id":"x","deaf":false,"mute":false,"self_deaf":false,"self_mute":false,"self_video":false,"suppress":false}`,
			)),
			Header: make(http.Header),
		}, nil
	})

	c := &Client{session: s}
	channelID, err := c.GetUserVoiceChannelID("guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channelID != "vc-rest" {
		t.Fatalf("expected vc-rest, got %q", channelID)
	}
}

func TestGetUserVoiceChannelID_ReturnsEmptyOnRESTNotFound(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
			Body:       io.NopCloser(strings.NewReader(`{"message":"Unknown Voice State","code":10065}`)),
			Header:     make(http.Header),
		}, nil
	})

	c := &Client{session: s}
	channelID, err := c.GetUserVoiceChannelID("guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channelID != "" {
		t.Fatalf("expected empty channel id, got %q", channelID)
	}
}

func TestCommandOptionValues_ConvertsByType(t *testing.T) {
	values := commandOptionValues([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "source", Type: discordgo.ApplicationCommandOptionString, Value: "rain.ogg"},
		{Name: "volume", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(40)},
		{Name: "loop", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
		{Name: "gain", Type: discordgo.ApplicationCommandOptionNumber, Value: 0.25},
		nil,
	})

	if values["source"] != "rain.ogg" {
		t.Fatalf("unexpected source: %#v", values["source"])
	}
	if values["volume"] != int64(40) {
		t.Fatalf("unexpected volume: %#v", values["volume"])
	}
	if values["loop"] != true {
		t.Fatalf("unexpected loop: %#v", values["loop"])
	}
	if values["gain"] != 0.25 {
		t.Fatalf("unexpected gain: %#v", values["gain"])
	}
}

func TestCommandMatches(t *testing.T) {
	zero := 0.0
	want := &discordgo.ApplicationCommand{
		Name:        "volume",
		Description: "音量を変更します",
		Options: toCommandOptions([]discordpkg.SlashCommandOption{
			{Name: "track", Description: "トラックID", Type: discordpkg.OptionString, Required: true},
			{Name: "value", Description: "音量 (0-100)", Type: discordpkg.OptionInteger, Required: true, MinValue: &zero, MaxValue: 100},
		}),
	}
	same := &discordgo.ApplicationCommand{
		Name:        "volume",
		Description: "音量を変更します",
		Options: []*discordgo.ApplicationCommandOption{
			{Name: "track", Description: "トラックID", Type: discordgo.ApplicationCommandOptionString, Required: true},
			{Name: "value", Description: "音量 (0-100)", Type: discordgo.ApplicationCommandOptionInteger, Required: true, MinValue: &zero, MaxValue: 100},
		},
	}
	if !commandMatches(same, want) {
		t.Fatal("expected identical commands to match")
	}

	changed := *same
	changed.Options = []*discordgo.ApplicationCommandOption{same.Options[0]}
	if commandMatches(&changed, want) {
		t.Fatal("expected missing option to be detected")
	}

	changed = *same
	changed.Description = "old"
	if commandMatches(&changed, want) {
		t.Fatal("expected description change to be detected")
	}
}

func TestUpsertGuildSlashCommands_CreatesOnlyMissingOrChanged(t *testing.T) {
	var created, edited []string
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		body := "{}"
		switch {
		case req.Method == http.MethodGet:
			body = `[{"id":"c1","name":"tracks","description":"再生中のトラック一覧"},{"id":"c2","name":"leave","description":"old"}]`
		case req.Method == http.MethodPost:
			raw, _ := io.ReadAll(req.Body)
			created = append(created, string(raw))
		case req.Method == http.MethodPatch:
			edited = append(edited, req.URL.Path)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	})
	s.State.User = &discordgo.User{ID: "app-1"}

	c := &Client{session: s}
	err := c.UpsertGuildSlashCommands("guild-1", []discordpkg.SlashCommandDefinition{
		{Name: "tracks", Description: "再生中のトラック一覧"},
		{Name: "leave", Description: "ボイスチャンネルから退出します"},
		{Name: "join", Description: "ボイスチャンネルに参加します"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || !strings.Contains(created[0], `"name":"join"`) {
		t.Fatalf("expected join to be created, got %v", created)
	}
	if len(edited) != 1 || !strings.HasSuffix(edited[0], "/commands/c2") {
		t.Fatalf("expected leave to be edited, got %v", edited)
	}
}

func TestVoiceConnection_SendOpusHonoursDeadline(t *testing.T) {
	v := &voiceConnectionImpl{vc: &discordgo.VoiceConnection{OpusSend: make(chan []byte)}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := v.SendOpus(ctx, []byte{1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestVoiceConnection_SendOpusQueuesPacket(t *testing.T) {
	ch := make(chan []byte, 1)
	v := &voiceConnectionImpl{vc: &discordgo.VoiceConnection{OpusSend: ch}}

	if err := v.SendOpus(context.Background(), []byte{1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := <-ch; len(got) != 2 {
		t.Fatalf("unexpected packet: %v", got)
	}
}
