// Package notify delivers auto-block status messages to the user.
package notify

import (
	"sync"

	"github.com/keshon/voice-autoblock/internal/autoblock"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "toast").Logger()}
}

func (n *LogNotifier) Notify(kind autoblock.Kind, text string) {
	var ev *zerolog.Event
	switch kind {
	case autoblock.KindFailure:
		ev = n.logger.Warn()
	default:
		ev = n.logger.Info()
	}
	ev.Str("kind", kind.String()).Msg(text)
}

// Multi fans a notification out to every notifier.
type Multi []autoblock.Notifier

func (m Multi) Notify(kind autoblock.Kind, text string) {
	for _, n := range m {
		n.Notify(kind, text)
	}
}

// Entry is one delivered notification.
type Entry struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Ring keeps the most recent notifications for the status endpoint.
type Ring struct {
	mu      sync.Mutex
	size    int
	entries []Entry
}

func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{size: size}
}

func (r *Ring) Notify(kind autoblock.Kind, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Kind: kind.String(), Text: text})
	if len(r.entries) > r.size {
		r.entries = r.entries[len(r.entries)-r.size:]
	}
}

// Recent returns the stored notifications, oldest first.
func (r *Ring) Recent() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
