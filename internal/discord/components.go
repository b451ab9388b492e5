package discord

import (
	"encoding/json"

	"github.com/keshon/voice-autoblock/internal/autoblock"

	"github.com/bwmarrin/discordgo"
)

// rawComponent is the wire shape shared by every component type. Layout
// components (action rows, sections, containers) carry children; interactive
// ones carry a custom id. A section's button lives in its accessory.
type rawComponent struct {
	Type       int             `json:"type"`
	CustomID   string          `json:"custom_id"`
	Components []*rawComponent `json:"components"`
	Accessory  *rawComponent   `json:"accessory"`
}

// decodeComponents turns discordgo components into a blocker component tree.
// Anything that does not round-trip through JSON yields an empty tree.
func decodeComponents(components []discordgo.MessageComponent) []autoblock.Component {
	if len(components) == 0 {
		return nil
	}
	raw, err := json.Marshal(components)
	if err != nil {
		return nil
	}
	return parseComponents(raw)
}

func parseComponents(raw []byte) []autoblock.Component {
	var nodes []*rawComponent
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil
	}
	return convert(nodes)
}

func convert(nodes []*rawComponent) []autoblock.Component {
	out := make([]autoblock.Component, 0, len(nodes))
	for _, n := range nodes {
		if c := n.component(); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (r *rawComponent) component() autoblock.Component {
	if r == nil {
		return nil
	}
	if len(r.Components) > 0 || r.Accessory != nil {
		children := convert(r.Components)
		if acc := r.Accessory.component(); acc != nil {
			children = append(children, acc)
		}
		return autoblock.Group{Children: children}
	}
	if r.CustomID != "" {
		return autoblock.Leaf{CustomID: r.CustomID}
	}
	return nil
}
