// Package settingsapi exposes the auto-block settings on a local HTTP port so
// they can be changed while the daemon runs.
package settingsapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/keshon/voice-autoblock/internal/notify"
	"github.com/keshon/voice-autoblock/internal/settings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type SettingsStore interface {
	Snapshot() settings.Values
	Update(p settings.Patch) (settings.Values, error)
}

type Memo interface {
	LastTriggered() (string, bool)
}

type RecentNotifications interface {
	Recent() []notify.Entry
}

type status struct {
	LastTriggered *string        `json:"lastTriggered"`
	Notifications []notify.Entry `json:"notifications"`
}

// NewRouter builds the gin engine serving /settings and /status.
func NewRouter(store SettingsStore, memo Memo, recent RecentNotifications) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/settings", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.Snapshot())
	})

	r.PATCH("/settings", func(c *gin.Context) {
		var p settings.Patch
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
			return
		}
		v, err := store.Update(p)
		if errors.Is(err, settings.ErrInvalidSetting) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		log.Info().Str("target_server", v.TargetServerID).Str("bot", v.BotID).Bool("enabled", v.Enabled).Msg("Settings updated")
		c.JSON(http.StatusOK, v)
	})

	r.GET("/status", func(c *gin.Context) {
		var st status
		if last, ok := memo.LastTriggered(); ok {
			st.LastTriggered = &last
		}
		st.Notifications = []notify.Entry{}
		if recent != nil {
			st.Notifications = recent.Recent()
		}
		c.JSON(http.StatusOK, st)
	})

	return r
}

// Run serves the router on addr until ctx is cancelled.
func Run(ctx context.Context, addr string, handler http.Handler) {
	log.Info().Str("addr", addr).Msg("Starting settings server...")

	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down settings server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		// Log only; the daemon keeps running without the settings surface.
		log.Error().Err(err).Msg("Settings server exited")
	}
}
