package discord

import (
	"slices"

	"github.com/keshon/voice-autoblock/internal/autoblock"

	"github.com/bwmarrin/discordgo"
)

// Ensure StateStore implements the host capabilities the blocker reads.
var (
	_ autoblock.ChannelStore = (*StateStore)(nil)
	_ autoblock.VoiceStore   = (*StateStore)(nil)
	_ autoblock.Identity     = (*StateStore)(nil)
	_ autoblock.MessageStore = (*StateStore)(nil)
)

// StateStore answers blocker lookups from the session's state cache.
type StateStore struct {
	state *discordgo.State
}

func NewStateStore(state *discordgo.State) *StateStore {
	return &StateStore{state: state}
}

func (s *StateStore) Channel(id string) (autoblock.Channel, bool) {
	if id == "" {
		return autoblock.Channel{}, false
	}
	ch, err := s.state.Channel(id)
	if err != nil || ch == nil {
		return autoblock.Channel{}, false
	}
	s.state.RLock()
	defer s.state.RUnlock()
	return toChannel(ch), true
}

// TextChannels lists the guild's text channels in state order.
func (s *StateStore) TextChannels(guildID string) []autoblock.Channel {
	return s.channelsOf(guildID, discordgo.ChannelTypeGuildText)
}

// VoiceChannels lists the guild's voice and stage channels. Both carry their
// own chat where the bot may post its panel.
func (s *StateStore) VoiceChannels(guildID string) []autoblock.Channel {
	return s.channelsOf(guildID, discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice)
}

func (s *StateStore) channelsOf(guildID string, types ...discordgo.ChannelType) []autoblock.Channel {
	g, err := s.state.Guild(guildID)
	if err != nil || g == nil {
		return nil
	}

	s.state.RLock()
	defer s.state.RUnlock()

	var out []autoblock.Channel
	for _, ch := range g.Channels {
		if ch != nil && slices.Contains(types, ch.Type) {
			out = append(out, toChannel(ch))
		}
	}
	return out
}

// VoiceChannelOf scans guilds in state order and returns the channel of the
// first voice state held by userID.
func (s *StateStore) VoiceChannelOf(userID string) (string, bool) {
	s.state.RLock()
	defer s.state.RUnlock()

	for _, g := range s.state.Guilds {
		if g == nil {
			continue
		}
		for _, vs := range g.VoiceStates {
			if vs != nil && vs.UserID == userID {
				return vs.ChannelID, vs.ChannelID != ""
			}
		}
	}
	return "", false
}

func (s *StateStore) CurrentUserID() string {
	s.state.RLock()
	defer s.state.RUnlock()
	if s.state.User == nil {
		return ""
	}
	return s.state.User.ID
}

// Messages returns the cached messages of a channel, oldest first.
func (s *StateStore) Messages(channelID string) []autoblock.Message {
	ch, err := s.state.Channel(channelID)
	if err != nil || ch == nil {
		return nil
	}

	s.state.RLock()
	defer s.state.RUnlock()

	out := make([]autoblock.Message, 0, len(ch.Messages))
	for _, m := range ch.Messages {
		if m == nil {
			continue
		}
		out = append(out, toMessage(m, ch.GuildID))
	}
	return out
}

func toChannel(ch *discordgo.Channel) autoblock.Channel {
	kind := autoblock.ChannelOther
	switch ch.Type {
	case discordgo.ChannelTypeGuildText:
		kind = autoblock.ChannelText
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		kind = autoblock.ChannelVoice
	}
	return autoblock.Channel{
		ID:       ch.ID,
		Name:     ch.Name,
		GuildID:  ch.GuildID,
		ParentID: ch.ParentID,
		Kind:     kind,
	}
}

func toMessage(m *discordgo.Message, guildID string) autoblock.Message {
	msg := autoblock.Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		GuildID:    m.GuildID,
		Components: decodeComponents(m.Components),
	}
	if msg.GuildID == "" {
		msg.GuildID = guildID
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	return msg
}

// toVoiceStateChange converts a gateway update; the previous channel comes
// from the state's copy taken before the update was applied.
func toVoiceStateChange(v *discordgo.VoiceStateUpdate) autoblock.VoiceStateChange {
	change := autoblock.VoiceStateChange{}
	if v.VoiceState != nil {
		change.UserID = v.UserID
		change.GuildID = v.GuildID
		change.ChannelID = v.ChannelID
		change.SessionID = v.SessionID
		change.Deaf = v.Deaf
		change.Mute = v.Mute
		change.SelfDeaf = v.SelfDeaf
		change.SelfMute = v.SelfMute
		change.SelfStream = v.SelfStream
		change.SelfVideo = v.SelfVideo
		change.Suppress = v.Suppress
		change.RequestToSpeakAt = v.RequestToSpeakTimestamp
	}
	if v.BeforeUpdate != nil {
		change.OldChannelID = v.BeforeUpdate.ChannelID
	}
	return change
}
