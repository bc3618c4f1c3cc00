package discord

import "context"

type SlashCommandOptionType int

const (
	OptionString SlashCommandOptionType = iota + 1
	OptionInteger
	OptionBoolean
	OptionNumber
)

type SlashCommandOption struct {
	Name        string
	Description string
	Type        SlashCommandOptionType
	Required    bool
	MinValue    *float64
	MaxValue    float64
}

type SlashCommandDefinition struct {
	Name        string
	Description string
	Options     []SlashCommandOption
}

// SlashCommandEvent carries one interaction. Option values are string, int64,
// bool or float64 depending on the option type.
type SlashCommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	UserID           string
	Options          map[string]any
	RespondEphemeral func(content string) error
	// Defer acknowledges the interaction for commands that may take longer than
	// Discord's response window. Follow it with EditResponse.
	Defer        func() error
	EditResponse func(content string) error
}

func (e SlashCommandEvent) StringOption(name string) (string, bool) {
	v, ok := e.Options[name].(string)
	return v, ok
}

func (e SlashCommandEvent) IntOption(name string) (int64, bool) {
	v, ok := e.Options[name].(int64)
	return v, ok
}

func (e SlashCommandEvent) BoolOption(name string) (bool, bool) {
	v, ok := e.Options[name].(bool)
	return v, ok
}

type VoiceStateEvent struct {
	GuildID         string
	UserID          string
	UserIsBot       bool
	BeforeChannelID string
	AfterChannelID  string
}

type VoiceParticipant struct {
	UserID string
	IsBot  bool
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	JoinVoiceChannel(guildID, channelID string) (VoiceConnection, error)
	SendChannelMessage(channelID, content string) error
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
	GetUserVoiceChannelID(guildID, userID string) (string, error)
	ListVoiceChannelParticipants(guildID, channelID string) ([]VoiceParticipant, error)
	GetBotUserID() (string, error)
}

// VoiceConnection is the outbound side of a joined voice channel.
type VoiceConnection interface {
	Disconnect() error
	Speaking(speaking bool) error
	// SendOpus queues one Opus packet. It returns ctx.Err() if the packet could
	// not be queued before ctx is done.
	SendOpus(ctx context.Context, packet []byte) error
}
