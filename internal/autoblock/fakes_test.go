package autoblock

import (
	"context"
	"errors"
	"time"
)

const (
	testGuild = "500074231544152074"
	testBot   = "1279925176422633522"
	testMe    = "U1"
)

type fakeSettings struct {
	enabled bool
	guild   string
	bot     string
}

func (f fakeSettings) Enabled() bool          { return f.enabled }
func (f fakeSettings) TargetServerID() string { return f.guild }
func (f fakeSettings) BotID() string          { return f.bot }

type fakeChannels struct {
	byID  map[string]Channel
	texts map[string][]Channel
}

func (f *fakeChannels) Channel(id string) (Channel, bool) {
	c, ok := f.byID[id]
	return c, ok
}

func (f *fakeChannels) TextChannels(guildID string) []Channel {
	return f.texts[guildID]
}

type fakeVoice map[string]string

func (f fakeVoice) VoiceChannelOf(userID string) (string, bool) {
	c, ok := f[userID]
	return c, ok
}

type fakeIdentity string

func (f fakeIdentity) CurrentUserID() string { return string(f) }

type fakeMessages map[string][]Message

func (f fakeMessages) Messages(channelID string) []Message { return f[channelID] }

type note struct {
	kind Kind
	text string
}

type recorder struct {
	notes []note
}

func (r *recorder) Notify(kind Kind, text string) {
	r.notes = append(r.notes, note{kind, text})
}

func (r *recorder) texts() []string {
	out := make([]string, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n.text)
	}
	return out
}

type manualScheduler struct {
	delays []time.Duration
	funcs  []func()
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) {
	m.delays = append(m.delays, d)
	m.funcs = append(m.funcs, f)
}

func (m *manualScheduler) fireAll() {
	for _, f := range m.funcs {
		f()
	}
	m.funcs = nil
}

type fakeControl struct {
	clicks int
	err    error
	panics bool
}

func (c *fakeControl) click() error {
	if c.panics {
		panic("detached node")
	}
	c.clicks++
	return c.err
}

type fakeElement struct {
	controls map[string]*fakeControl
}

type fakeSurface struct {
	elements map[string]*fakeElement
	err      error
	showErr  error
	shown    []MessageRef
	lookups  []MessageRef
}

func (s *fakeSurface) Show(_ context.Context, ref MessageRef) error {
	s.shown = append(s.shown, ref)
	return s.showErr
}

func (s *fakeSurface) Press(_ context.Context, ref MessageRef, customID string) (PressResult, error) {
	s.lookups = append(s.lookups, ref)
	if s.err != nil {
		return 0, s.err
	}
	e, ok := s.elements[ref.MessageID]
	if !ok {
		return PressMessageMissing, nil
	}
	c, ok := e.controls[customID]
	if !ok {
		return PressControlMissing, nil
	}
	return PressClicked, c.click()
}

var errBrowserGone = errors.New("browser closed")

// fixture is the scenario from the blocker's happy path: the local user sits
// in V1 of the target guild, a text channel V1 under the same category holds
// the bot's panel message with the block button.
type fixture struct {
	settings  fakeSettings
	channels  *fakeChannels
	voice     fakeVoice
	messages  fakeMessages
	surface   *fakeSurface
	control   *fakeControl
	notes     *recorder
	scheduler *manualScheduler
}

func newFixture() *fixture {
	ctrl := &fakeControl{}
	return &fixture{
		settings: fakeSettings{enabled: true, guild: testGuild, bot: testBot},
		channels: &fakeChannels{
			byID: map[string]Channel{
				"V1":    {ID: "V1", Name: "lounge", GuildID: testGuild, ParentID: "CAT", Kind: ChannelVoice},
				"V2":    {ID: "V2", Name: "lobby", GuildID: testGuild, ParentID: "CAT", Kind: ChannelVoice},
				"OTHER": {ID: "OTHER", Name: "lounge", GuildID: "999", ParentID: "CAT", Kind: ChannelVoice},
			},
			texts: map[string][]Channel{
				testGuild: {
					{ID: "T0", Name: "lounge", GuildID: testGuild, ParentID: "ELSEWHERE", Kind: ChannelText},
					{ID: "T1", Name: "lounge", GuildID: testGuild, ParentID: "CAT", Kind: ChannelText},
				},
			},
		},
		voice: fakeVoice{testMe: "V1"},
		messages: fakeMessages{
			"T1": {
				{ID: "M0", ChannelID: "T1", GuildID: testGuild, AuthorID: "someone"},
				{ID: "M1", ChannelID: "T1", GuildID: testGuild, AuthorID: testBot, Components: panel()},
			},
		},
		surface: &fakeSurface{elements: map[string]*fakeElement{
			"M1": {controls: map[string]*fakeControl{BlockControlID: ctrl}},
		}},
		control:   ctrl,
		notes:     &recorder{},
		scheduler: &manualScheduler{},
	}
}

func (f *fixture) blocker() *Blocker {
	return New(Options{
		Settings:  f.settings,
		Channels:  f.channels,
		Voice:     f.voice,
		Identity:  fakeIdentity(testMe),
		Messages:  f.messages,
		Surface:   f.surface,
		Notifier:  f.notes,
		Scheduler: f.scheduler,
	})
}

// panel mirrors the bot's container > action row > buttons layout.
func panel() []Component {
	return []Component{
		Group{Children: []Component{
			Group{Children: []Component{
				Leaf{CustomID: "rename_button"},
				Leaf{CustomID: "limit_button"},
			}},
			Group{Children: []Component{
				Leaf{CustomID: "kick_button"},
				Leaf{CustomID: BlockControlID},
			}},
		}},
	}
}

func join(user, channel string) VoiceStateChange {
	return VoiceStateChange{UserID: user, GuildID: testGuild, ChannelID: channel, SessionID: "sess-" + user}
}
