package autoblock

// maxComponentDepth bounds the component walk: groups, sub-groups, controls.
const maxComponentDepth = 3

// ResolveTargetChannel picks the text channel that shares the voice channel's
// name and category. Without one, the voice channel itself is searched.
func ResolveTargetChannel(voice Channel, texts []Channel) string {
	for _, c := range texts {
		if c.Name == voice.Name && c.ParentID == voice.ParentID {
			return c.ID
		}
	}
	return voice.ID
}

// FindBotMessage returns the first message in cache order authored by botID.
func FindBotMessage(msgs []Message, botID string) (Message, bool) {
	if botID == "" {
		return Message{}, false
	}
	for _, m := range msgs {
		if m.AuthorID == botID {
			return m, true
		}
	}
	return Message{}, false
}

// FindControl walks the tree depth-first and returns the first leaf tagged
// customID. Nil nodes and anything deeper than three levels never match.
func FindControl(components []Component, customID string) (Leaf, bool) {
	return findControl(components, customID, 1)
}

// findControl matches a leaf at any level up to maxComponentDepth, so a
// button directly in a top-level row (level two) or at the top (level one)
// is found as well as one inside container > row. This is wider than a
// third-level-only search on purpose.
func findControl(nodes []Component, customID string, depth int) (Leaf, bool) {
	if depth > maxComponentDepth {
		return Leaf{}, false
	}
	for _, n := range nodes {
		switch c := n.(type) {
		case Leaf:
			if c.CustomID == customID {
				return c, true
			}
		case *Leaf:
			if c != nil && c.CustomID == customID {
				return *c, true
			}
		case Group:
			if leaf, ok := findControl(c.Children, customID, depth+1); ok {
				return leaf, true
			}
		case *Group:
			if c == nil {
				continue
			}
			if leaf, ok := findControl(c.Children, customID, depth+1); ok {
				return leaf, true
			}
		}
	}
	return Leaf{}, false
}
