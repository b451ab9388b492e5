package discord

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/keshon/voice-autoblock/internal/autoblock"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	mu       sync.Mutex
	byID     map[string][]*discordgo.Message
	failing  map[string]bool
	requests []string
}

func (f *fakeHistory) ChannelMessages(channelID string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, channelID)
	if f.failing[channelID] {
		return nil, errors.New("403 Forbidden")
	}
	msgs := f.byID[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeHistory) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.requests)
	slices.Sort(out)
	return out
}

type batchRecorder struct {
	batches [][]autoblock.VoiceStateChange
}

func (r *batchRecorder) HandleVoiceStates(_ context.Context, batch []autoblock.VoiceStateChange) {
	r.batches = append(r.batches, batch)
}

func newTestBot(t *testing.T, st *discordgo.State, history historySource) (*Bot, *batchRecorder) {
	t.Helper()
	dg, err := discordgo.New("Bot test")
	require.NoError(t, err)
	dg.State = st

	rec := &batchRecorder{}
	return &Bot{
		dg:      dg,
		state:   st,
		store:   NewStateStore(st),
		history: history,
		handler: rec,
		ctx:     context.Background(),
		warmed:  make(map[string]bool),
	}, rec
}

func panelMessage(id, channelID string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: channelID,
		Author:    &discordgo.User{ID: "bot"},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Block", Style: discordgo.DangerButton, CustomID: autoblock.BlockControlID},
			}},
		},
	}
}

func TestWarmMessageCache_IncludesVoiceChannels(t *testing.T) {
	st := newTestState(t)
	history := &fakeHistory{byID: map[string][]*discordgo.Message{
		// newest first, as the REST API returns it
		"V1": {panelMessage("M2", "V1"), {ID: "M1", ChannelID: "V1", Author: &discordgo.User{ID: "human"}}},
		"T1": {{ID: "M3", ChannelID: "T1", Author: &discordgo.User{ID: "human"}}},
	}}
	b, _ := newTestBot(t, st, history)

	assert.Equal(t, 4, b.warmMessageCache(context.Background(), "G"))
	assert.Equal(t, []string{"S1", "T1", "T2", "V1"}, history.requested())

	msgs := b.store.Messages("V1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "M1", msgs[0].ID)
	assert.Equal(t, "G", msgs[1].GuildID)

	msg, ok := autoblock.FindBotMessage(msgs, "bot")
	require.True(t, ok)
	_, ok = autoblock.FindControl(msg.Components, autoblock.BlockControlID)
	assert.True(t, ok)
}

func TestWarmMessageCache_FailedChannelDoesNotStopOthers(t *testing.T) {
	st := newTestState(t)
	history := &fakeHistory{
		byID:    map[string][]*discordgo.Message{"V1": {panelMessage("M2", "V1")}},
		failing: map[string]bool{"T1": true},
	}
	b, _ := newTestBot(t, st, history)

	b.warmMessageCache(context.Background(), "G")

	assert.Len(t, b.store.Messages("V1"), 1)
}

func TestStartWarmup_WaitsForChannels(t *testing.T) {
	st := discordgo.NewState()
	st.MaxMessageCount = 10
	require.NoError(t, st.GuildAdd(&discordgo.Guild{ID: "G"}))
	history := &fakeHistory{}
	b, _ := newTestBot(t, st, history)

	b.startWarmup("G")
	b.startWarmup("missing")

	assert.Empty(t, history.requested())
	assert.False(t, b.warmed["G"])
	assert.Zero(t, b.warmMessageCache(context.Background(), "G"))
}

func TestStartWarmup_OncePerSession(t *testing.T) {
	history := &fakeHistory{}
	b, _ := newTestBot(t, newTestState(t), history)

	b.startWarmup("G")
	b.startWarmup("G")

	assert.Eventually(t, func() bool { return len(history.requested()) == 4 }, time.Second, 10*time.Millisecond)
	assert.True(t, b.warmed["G"])
}

func TestOnVoiceStateUpdate_MuteInPlaceIsNotJoin(t *testing.T) {
	b, rec := newTestBot(t, newTestState(t), &fakeHistory{})

	// U2 already sits in V1 and only toggles mute.
	mute := &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{
		GuildID: "G", UserID: "U2", ChannelID: "V1", SessionID: "s2", SelfMute: true,
	}}
	require.NoError(t, b.state.OnInterface(b.dg, mute))
	b.onVoiceStateUpdate(b.dg, mute)

	require.Len(t, rec.batches, 1)
	require.Len(t, rec.batches[0], 1)
	got := rec.batches[0][0]
	assert.Equal(t, "V1", got.OldChannelID)
	assert.True(t, got.SelfMute)
	assert.False(t, got.IsJoin())
}

func TestOnVoiceStateUpdate_FreshJoin(t *testing.T) {
	b, rec := newTestBot(t, newTestState(t), &fakeHistory{})

	join := &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{
		GuildID: "G", UserID: "U3", ChannelID: "V1", SessionID: "s3",
	}}
	require.NoError(t, b.state.OnInterface(b.dg, join))
	b.onVoiceStateUpdate(b.dg, join)

	require.Len(t, rec.batches, 1)
	got := rec.batches[0][0]
	assert.Empty(t, got.OldChannelID)
	assert.True(t, got.IsJoin())

	ch, ok := b.store.VoiceChannelOf("U3")
	assert.True(t, ok)
	assert.Equal(t, "V1", ch)
}

func TestOnVoiceStateUpdate_NilIgnored(t *testing.T) {
	b, rec := newTestBot(t, newTestState(t), &fakeHistory{})

	b.onVoiceStateUpdate(b.dg, &discordgo.VoiceStateUpdate{})

	assert.Empty(t, rec.batches)
}
