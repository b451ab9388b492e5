package autoblock

import "time"

// BlockControlID is the custom id the moderation bot puts on its block button.
const BlockControlID = "block_button"

// VoiceStateChange is one voice-presence record as delivered by the host.
// Empty ChannelID or OldChannelID means the field was absent.
type VoiceStateChange struct {
	UserID           string
	GuildID          string
	ChannelID        string
	OldChannelID     string
	SessionID        string
	Deaf             bool
	Mute             bool
	SelfDeaf         bool
	SelfMute         bool
	SelfStream       bool
	SelfVideo        bool
	Suppress         bool
	RequestToSpeakAt *time.Time
}

// IsJoin reports whether the record moves the user into a new channel.
func (v VoiceStateChange) IsJoin() bool {
	return v.ChannelID != "" && v.ChannelID != v.OldChannelID
}

type ChannelKind int

const (
	ChannelOther ChannelKind = iota
	ChannelText
	ChannelVoice
)

// Channel is the subset of host channel metadata the blocker reads.
type Channel struct {
	ID       string
	Name     string
	GuildID  string
	ParentID string
	Kind     ChannelKind
}

// Message is a cached chat message with its interactive components.
type Message struct {
	ID         string
	ChannelID  string
	GuildID    string
	AuthorID   string
	Components []Component
}

// Component is a node of a message component tree: either a Group or a Leaf.
type Component interface {
	isComponent()
}

// Group holds nested components (action rows, containers, sections).
type Group struct {
	Children []Component
}

// Leaf is an interactive control addressed by its custom id.
type Leaf struct {
	CustomID string
}

func (Group) isComponent() {}
func (Leaf) isComponent()  {}

// MessageRef addresses a message on the host surface.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

func (m Message) Ref() MessageRef {
	return MessageRef{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID}
}
