// Package browser drives the Discord web client so the block button is
// pressed exactly as a user would press it.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/keshon/voice-autoblock/internal/autoblock"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog/log"
)

// Ensure Surface implements the blocker's UI port.
var _ autoblock.Surface = (*Surface)(nil)

type Options struct {
	ProfileDir string // persistent profile keeps the web login
	Headless   bool
	BaseURL    string // e.g. https://discord.com
	Install    bool   // download the driver and browser on start
}

// Surface is a logged-in Discord web page.
type Surface struct {
	opts Options

	pw      *playwright.Playwright
	context playwright.BrowserContext
	page    playwright.Page

	mu sync.Mutex
}

// Launch starts Chromium with the persistent profile and opens the app.
func Launch(opts Options) (*Surface, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://discord.com"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	if opts.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install failed: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright run failed: %w", err)
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(opts.ProfileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
		},
		Viewport: &playwright.Size{
			Width:  1600,
			Height: 900,
		},
		Locale: playwright.String("en-US"),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		bctx.Close()
		pw.Stop()
		return nil, fmt.Errorf("page creation failed: %w", err)
	}

	if _, err := page.Goto(opts.BaseURL+"/app", playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		bctx.Close()
		pw.Stop()
		return nil, fmt.Errorf("goto failed: %w", err)
	}

	log.Info().Str("profile", opts.ProfileDir).Bool("headless", opts.Headless).Msg("Discord web client opened")

	return &Surface{opts: opts, pw: pw, context: bctx, page: page}, nil
}

// Show switches the page to the message's channel. Inside the running app
// the route changes in place; anywhere else the channel is loaded.
func (s *Surface) Show(ctx context.Context, ref autoblock.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ref.GuildID == "" || ref.ChannelID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	want := ChannelURL(s.opts.BaseURL, ref.GuildID, ref.ChannelID)
	current := s.page.URL()
	if strings.HasPrefix(current, want) {
		return nil
	}

	if inApp(s.opts.BaseURL, current) {
		if _, err := s.page.Evaluate(switchRouteScript, want); err != nil {
			return fmt.Errorf("switch channel: %w", err)
		}
		return nil
	}
	if _, err := s.page.Goto(want, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	return nil
}

// Press looks the rendered message up once, then the control inside it, and
// clicks it. The page cannot change channel while a press is running.
func (s *Surface) Press(ctx context.Context, ref autoblock.MessageRef, customID string) (autoblock.PressResult, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.page.Locator(MessageSelector(ref.ChannelID, ref.MessageID)).First()
	n, err := msg.Count()
	if err != nil {
		return 0, fmt.Errorf("query message: %w", err)
	}
	if n == 0 {
		return autoblock.PressMessageMissing, nil
	}

	ctrl := msg.Locator(ControlSelector(customID)).First()
	if n, err = ctrl.Count(); err != nil {
		return 0, fmt.Errorf("query control: %w", err)
	}
	if n == 0 {
		return autoblock.PressControlMissing, nil
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := ctrl.Click(); err != nil {
		return 0, err
	}
	return autoblock.PressClicked, nil
}

// Close shuts the browser and the driver down.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []string
	if err := s.context.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close browser: %s", strings.Join(errs, "; "))
	}
	return nil
}

// switchRouteScript moves the client router to the URL passed as argument
// without reloading the page.
const switchRouteScript = `url => {
	window.history.pushState({}, "", url);
	window.dispatchEvent(new PopStateEvent("popstate", { state: {} }));
}`

// inApp reports whether url is a loaded route of the web client.
func inApp(base, url string) bool {
	base = strings.TrimRight(base, "/")
	return strings.HasPrefix(url, base+"/channels/") || strings.HasPrefix(url, base+"/app")
}

// ChannelURL is the web client route of a guild channel.
func ChannelURL(base, guildID, channelID string) string {
	return fmt.Sprintf("%s/channels/%s/%s", strings.TrimRight(base, "/"), guildID, channelID)
}

// MessageSelector matches the rendered list item of a message. The web client
// tags it with data-message-id on newer builds and a chat-messages id on older ones.
func MessageSelector(channelID, messageID string) string {
	sel := fmt.Sprintf(`[data-message-id="%s"]`, cssEscape(messageID))
	if channelID != "" {
		sel += fmt.Sprintf(`, [id="chat-messages-%s-%s"]`, cssEscape(channelID), cssEscape(messageID))
	}
	return sel
}

// ControlSelector matches an interactive component by its custom id.
func ControlSelector(customID string) string {
	return fmt.Sprintf(`[data-custom-id="%s"]`, cssEscape(customID))
}

func cssEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
