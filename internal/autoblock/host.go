package autoblock

import (
	"context"
	"time"
)

// ChannelStore is the host channel registry.
type ChannelStore interface {
	Channel(id string) (Channel, bool)
	TextChannels(guildID string) []Channel
}

// VoiceStore is the host voice-occupancy registry.
type VoiceStore interface {
	// VoiceChannelOf returns the voice channel of userID in the first server
	// whose occupancy map holds the user.
	VoiceChannelOf(userID string) (string, bool)
}

// Identity resolves the local account.
type Identity interface {
	CurrentUserID() string
}

// MessageStore is the host message cache.
type MessageStore interface {
	Messages(channelID string) []Message
}

// PressResult is the outcome of a Press that did not fail outright.
type PressResult int

const (
	PressClicked PressResult = iota
	PressMessageMissing
	PressControlMissing
)

// Surface is the rendered host UI.
type Surface interface {
	// Show brings the message's channel on screen. It is called when the
	// click is scheduled so rendering happens during the delay.
	Show(ctx context.Context, ref MessageRef) error
	// Press locates the rendered message, then the control with customID
	// inside it, and clicks it. Each lookup is attempted once.
	Press(ctx context.Context, ref MessageRef, customID string) (PressResult, error)
}

// Settings are read on every batch so changes apply without a restart.
type Settings interface {
	Enabled() bool
	TargetServerID() string
	BotID() string
}

// Scheduler runs f once after d. There is no way to cancel it.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Kind classifies a user-facing notification.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindFailure
	KindDuplicate
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindDuplicate:
		return "duplicate"
	default:
		return "info"
	}
}

// Notifier shows transient status messages to the user.
type Notifier interface {
	Notify(kind Kind, text string)
}
