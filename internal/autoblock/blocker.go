package autoblock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ClickDelay gives the host UI time to render a just-resolved message.
const ClickDelay = 1000 * time.Millisecond

const (
	msgDuplicate     = "Skipping duplicate user join (anti-flood protection)"
	msgTriggering    = "User joined your voice channel - triggering block action"
	msgNoVoice       = "Could not find voice channel"
	msgNoBotMessage  = "Could not find bot message in channel"
	msgNoBlockButton = "Could not find block button in bot message"
	msgNoMessageElem = "Could not find message element in DOM"
	msgNoButtonElem  = "Could not find button element in DOM"
	msgClickFailed   = "Failed to block user - button click simulation failed"
	msgClicked       = "Successfully triggered block action"
)

// Options wires a Blocker to its host.
type Options struct {
	Settings  Settings
	Channels  ChannelStore
	Voice     VoiceStore
	Identity  Identity
	Messages  MessageStore
	Surface   Surface
	Notifier  Notifier
	Scheduler Scheduler // defaults to time.AfterFunc
}

type nopNotifier struct{}

func (nopNotifier) Notify(Kind, string) {}

// Blocker clicks the moderation bot's block button when someone joins the
// voice channel the local user is in.
type Blocker struct {
	opts Options

	mu            sync.RWMutex
	lastTriggered string
	hasTriggered  bool
}

func New(opts Options) *Blocker {
	if opts.Scheduler == nil {
		opts.Scheduler = timeScheduler{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	return &Blocker{opts: opts}
}

// LastTriggered returns the user the block action last fired for.
func (b *Blocker) LastTriggered() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastTriggered, b.hasTriggered
}

func (b *Blocker) SetLastTriggered(userID string) {
	b.mu.Lock()
	b.lastTriggered = userID
	b.hasTriggered = true
	b.mu.Unlock()
}

func (b *Blocker) isLastTriggered(userID string) bool {
	last, ok := b.LastTriggered()
	return ok && last == userID
}

// HandleVoiceStates processes one batch of voice-presence records in order.
// At most one click is scheduled per batch.
func (b *Blocker) HandleVoiceStates(ctx context.Context, batch []VoiceStateChange) {
	s := b.opts.Settings
	if s == nil || !s.Enabled() {
		return
	}
	targetGuild := s.TargetServerID()
	me := b.opts.Identity.CurrentUserID()

	for _, vs := range batch {
		if !vs.IsJoin() {
			continue
		}

		ch, ok := b.opts.Channels.Channel(vs.ChannelID)
		if !ok || ch.GuildID != targetGuild {
			continue
		}

		myChannel, ok := b.opts.Voice.VoiceChannelOf(me)
		if !ok || myChannel == "" || myChannel != vs.ChannelID {
			continue
		}
		if vs.UserID == me {
			continue
		}

		if b.isLastTriggered(vs.UserID) {
			log.Debug().Str("user", vs.UserID).Msg("Duplicate join suppressed")
			b.opts.Notifier.Notify(KindDuplicate, msgDuplicate)
			continue
		}
		b.SetLastTriggered(vs.UserID)

		log.Info().Str("user", vs.UserID).Str("channel", vs.ChannelID).Msg("User joined voice channel")
		b.opts.Notifier.Notify(KindInfo, msgTriggering)

		if b.trigger(ctx, vs.ChannelID, targetGuild, s.BotID()) {
			return
		}
	}
}

// trigger resolves the bot message and schedules the click. It reports
// whether a click was scheduled.
func (b *Blocker) trigger(ctx context.Context, voiceID, guildID, botID string) bool {
	voice, ok := b.opts.Channels.Channel(voiceID)
	if !ok {
		b.opts.Notifier.Notify(KindFailure, msgNoVoice)
		return false
	}

	target := ResolveTargetChannel(voice, b.opts.Channels.TextChannels(guildID))

	msg, ok := FindBotMessage(b.opts.Messages.Messages(target), botID)
	if !ok {
		log.Debug().Str("channel", target).Str("bot", botID).Msg("No bot message cached")
		b.opts.Notifier.Notify(KindFailure, msgNoBotMessage)
		return false
	}

	leaf, ok := FindControl(msg.Components, BlockControlID)
	if !ok {
		log.Debug().Str("message", msg.ID).Msg("No block control in bot message")
		b.opts.Notifier.Notify(KindFailure, msgNoBlockButton)
		return false
	}

	ctx = context.WithoutCancel(ctx)
	if err := b.opts.Surface.Show(ctx, msg.Ref()); err != nil {
		// The locate after the delay reports the miss.
		log.Warn().Err(err).Str("channel", msg.ChannelID).Msg("Could not open channel")
	}
	b.opts.Scheduler.AfterFunc(ClickDelay, func() {
		b.activate(ctx, msg, leaf)
	})
	return true
}

// activate makes a single attempt to click the rendered control.
func (b *Blocker) activate(ctx context.Context, msg Message, leaf Leaf) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("message", msg.ID).Msgf("Click panicked: %v", r)
			b.opts.Notifier.Notify(KindFailure, msgClickFailed)
		}
	}()

	if err := b.click(ctx, msg, leaf); err != nil {
		log.Error().Err(err).Str("message", msg.ID).Msg("Block click failed")
		b.opts.Notifier.Notify(KindFailure, msgClickFailed)
	}
}

func (b *Blocker) click(ctx context.Context, msg Message, leaf Leaf) error {
	res, err := b.opts.Surface.Press(ctx, msg.Ref(), leaf.CustomID)
	if err != nil {
		return fmt.Errorf("press %s: %w", leaf.CustomID, err)
	}
	switch res {
	case PressMessageMissing:
		b.opts.Notifier.Notify(KindFailure, msgNoMessageElem)
		return nil
	case PressControlMissing:
		b.opts.Notifier.Notify(KindFailure, msgNoButtonElem)
		return nil
	}
	log.Info().Str("message", msg.ID).Msg("Block action triggered")
	b.opts.Notifier.Notify(KindSuccess, msgClicked)
	return nil
}
