package discord

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/keshon/voice-autoblock/internal/autoblock"
	"github.com/keshon/voice-autoblock/internal/config"
	"github.com/keshon/voice-autoblock/pkg/util"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const (
	// warmupLimit is how many recent messages are fetched per channel at startup.
	warmupLimit   = 50
	warmupWorkers = 4
)

// VoiceStateHandler consumes batches of voice-presence changes.
type VoiceStateHandler interface {
	HandleVoiceStates(ctx context.Context, batch []autoblock.VoiceStateChange)
}

// GuildSource tells the bot which server to warm the message cache for.
type GuildSource interface {
	TargetServerID() string
}

// historySource fetches recent channel history. *discordgo.Session is one.
type historySource interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Bot follows the account over the gateway and feeds voice updates to the handler.
type Bot struct {
	dg      *discordgo.Session
	cfg     *config.Config
	guilds  GuildSource
	state   *discordgo.State
	store   *StateStore
	history historySource
	handler VoiceStateHandler

	mu     sync.RWMutex
	ctx    context.Context
	warmed map[string]bool
}

// NewBot creates the gateway session without opening it.
func NewBot(cfg *config.Config, guilds GuildSource) (*Bot, error) {
	token := cfg.DiscordToken
	if cfg.DiscordBotAccount {
		token = "Bot " + token
	}
	dg, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Handlers run one at a time on the event goroutine.
	dg.SyncEvents = true
	dg.StateEnabled = true
	dg.State.TrackVoice = true
	dg.State.TrackChannels = true
	dg.State.MaxMessageCount = cfg.MessageCacheSize

	b := &Bot{
		dg:      dg,
		cfg:     cfg,
		guilds:  guilds,
		state:   dg.State,
		store:   NewStateStore(dg.State),
		history: dg,
		ctx:     context.Background(),
		warmed:  make(map[string]bool),
	}
	b.configureIntents()
	return b, nil
}

// Store exposes the state-backed lookups for the blocker.
func (b *Bot) Store() *StateStore {
	return b.store
}

// SetHandler must be called before Run.
func (b *Bot) SetHandler(h VoiceStateHandler) {
	b.handler = h
}

// Run opens the session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if b.handler == nil {
		return fmt.Errorf("no voice state handler set")
	}

	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received. Closing gateway session...")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
}

func (b *Bot) runCtx() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// onReady is called when the session is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	name := ""
	if r.User != nil {
		name = r.User.Username
	}
	log.Info().Str("user", name).Int("guilds", len(r.Guilds)).Msg("Gateway session ready")

	// A new session starts from an empty message cache.
	b.mu.Lock()
	clear(b.warmed)
	b.mu.Unlock()

	target := b.guilds.TargetServerID()
	if slices.ContainsFunc(r.Guilds, func(g *discordgo.Guild) bool { return g != nil && g.ID == target }) {
		b.startWarmup(target)
	}
}

// onGuildCreate is called when a guild becomes available
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Guild.ID != b.guilds.TargetServerID() {
		return
	}
	log.Info().Str("guild", g.Guild.ID).Str("name", g.Guild.Name).Msg("Target guild available")
	b.startWarmup(g.Guild.ID)
}

// onVoiceStateUpdate forwards each gateway update as a one-record batch.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v == nil || v.VoiceState == nil {
		return
	}
	b.handler.HandleVoiceStates(b.runCtx(), []autoblock.VoiceStateChange{toVoiceStateChange(v)})
}

// startWarmup preloads the guild's history once per session. Bot accounts
// get the channel list with GUILD_CREATE, after READY, so a guild without
// channels in state is left for that event.
func (b *Bot) startWarmup(guildID string) {
	g, err := b.state.Guild(guildID)
	if err != nil {
		return
	}
	b.state.RLock()
	n := len(g.Channels)
	b.state.RUnlock()
	if n == 0 {
		log.Debug().Str("guild", guildID).Msg("Guild channels not in state yet")
		return
	}

	b.mu.Lock()
	if b.warmed[guildID] {
		b.mu.Unlock()
		return
	}
	b.warmed[guildID] = true
	b.mu.Unlock()

	go b.warmMessageCache(b.runCtx(), guildID)
}

// warmMessageCache loads recent history of the guild's text, voice and stage
// channels into state, so the bot's panel message is found without waiting
// for new traffic. It returns how many channels were attempted.
func (b *Bot) warmMessageCache(ctx context.Context, guildID string) int {
	channels := append(b.store.TextChannels(guildID), b.store.VoiceChannels(guildID)...)
	if len(channels) == 0 {
		return 0
	}

	err := util.ForEach(ctx, channels, warmupWorkers, func(ctx context.Context, ch autoblock.Channel) error {
		msgs, err := b.history.ChannelMessages(ch.ID, warmupLimit, "", "", "", discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("history %s: %w", ch.ID, err)
		}
		// REST returns newest first; state keeps arrival order.
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].GuildID == "" {
				msgs[i].GuildID = guildID
			}
			if err := b.state.MessageAdd(msgs[i]); err != nil {
				return fmt.Errorf("cache %s: %w", ch.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		// Channels without read access fail here; the rest are still cached.
		log.Debug().Err(err).Str("guild", guildID).Int("channels", len(channels)).Msg("Message cache warmup incomplete")
		return len(channels)
	}
	log.Info().Str("guild", guildID).Int("channels", len(channels)).Msg("Message cache warmed")
	return len(channels)
}
