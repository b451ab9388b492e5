// cmd/autoblock/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/voice-autoblock/datastore"
	"github.com/keshon/voice-autoblock/internal/autoblock"
	"github.com/keshon/voice-autoblock/internal/browser"
	"github.com/keshon/voice-autoblock/internal/config"
	"github.com/keshon/voice-autoblock/internal/discord"
	"github.com/keshon/voice-autoblock/internal/logging"
	"github.com/keshon/voice-autoblock/internal/notify"
	"github.com/keshon/voice-autoblock/internal/settings"
	"github.com/keshon/voice-autoblock/internal/settingsapi"

	"github.com/rs/zerolog/log"
)

const recentNotifications = 50

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	log.Info().Msg("Starting voice auto-block...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ds, err := datastore.NewWithConfig(&datastore.Config{
		FilePath:    cfg.StoragePath,
		BackupCount: 3,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings storage")
	}
	defer ds.Close()

	prefs, err := settings.Open(ds, settings.Values{
		TargetServerID: cfg.DefaultTargetServerID,
		BotID:          cfg.DefaultBotID,
		Enabled:        cfg.DefaultEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}
	go prefs.Watch(ctx, cfg.SettingsReloadInterval)

	surface, err := browser.Launch(browser.Options{
		ProfileDir: cfg.BrowserProfileDir,
		Headless:   cfg.BrowserHeadless,
		BaseURL:    cfg.DiscordWebURL,
		Install:    true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open Discord web client")
	}
	defer surface.Close()

	bot, err := discord.NewBot(cfg, prefs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Discord session")
	}

	recent := notify.NewRing(recentNotifications)
	store := bot.Store()
	blocker := autoblock.New(autoblock.Options{
		Settings: prefs,
		Channels: store,
		Voice:    store,
		Identity: store,
		Messages: store,
		Surface:  surface,
		Notifier: notify.Multi{notify.NewLogNotifier(logger), recent},
	})
	bot.SetHandler(blocker)

	if cfg.SettingsAddr != "" {
		go settingsapi.Run(ctx, cfg.SettingsAddr, settingsapi.NewRouter(prefs, blocker, recent))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Received signal, shutting down...")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Discord session error")
		}
		cancel()
	}

	log.Info().Msg("Voice auto-block exited cleanly")
}
