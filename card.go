package minidoc

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

// CardRenderOptions is handed to a card's render function.
type CardRenderOptions struct {
	State    string
	Readonly bool
	// StateChanged persists a new serialized state back onto the card
	// element so the next serialization and undo commit pick it up.
	StateChanged func(state string)
}

// CardDefinition is the pluggable card contract. Only Type and Render are
// required; Match/DeriveState let the registry recognize foreign markup
// during normalization, and Serialize overrides the default card
// serialization.
type CardDefinition struct {
	Type        string
	Match       func(n *html.Node) bool
	DeriveState func(n *html.Node) string
	Render      func(opts CardRenderOptions) *html.Node
	Serialize   func(state string) (string, error)
}

// CardRegistry holds the card definitions for one editor session.
type CardRegistry struct {
	defs  map[string]CardDefinition
	order []string
	log   *slog.Logger
}

// NewCardRegistry builds a registry from zero or more definitions.
func NewCardRegistry(defs ...CardDefinition) *CardRegistry {
	cr := &CardRegistry{defs: map[string]CardDefinition{}, log: slog.Default()}
	for _, d := range defs {
		cr.Register(d)
	}
	return cr
}

// Register adds or replaces a definition.
func (cr *CardRegistry) Register(def CardDefinition) {
	if _, exists := cr.defs[def.Type]; !exists {
		cr.order = append(cr.order, def.Type)
	}
	cr.defs[def.Type] = def
}

// Mount walks the root's leafs, converting matched foreign elements into
// card leafs and rendering every card from its state. A card element whose
// type has no definition is fatal for the mount: silently dropping it would
// corrupt the document without warning.
func (cr *CardRegistry) Mount(root *html.Node, readonly bool, onStateChange func(card *html.Node)) error {
	for leaf := root.FirstChild; leaf != nil; {
		next := leaf.NextSibling
		if !IsCard(leaf) {
			if converted := cr.convertMatch(leaf); converted != nil {
				leaf = converted
			} else {
				leaf = next
				continue
			}
		}
		if err := cr.render(leaf, readonly, onStateChange); err != nil {
			return err
		}
		leaf = next
	}
	return nil
}

// convertMatch replaces a foreign element recognized by a definition's
// matcher with a card leaf carrying derived state.
func (cr *CardRegistry) convertMatch(leaf *html.Node) *html.Node {
	for _, typ := range cr.order {
		def := cr.defs[typ]
		if def.Match == nil || !def.Match(leaf) {
			continue
		}
		state := ""
		if def.DeriveState != nil {
			state = def.DeriveState(leaf)
		}
		card := El(CardTag, Attrs{"type": typ, "state": state})
		leaf.Parent.InsertBefore(card, leaf)
		detach(leaf)
		return card
	}
	return nil
}

func (cr *CardRegistry) render(card *html.Node, readonly bool, onStateChange func(card *html.Node)) error {
	typ := getAttr(card, "type")
	def, ok := cr.defs[typ]
	if !ok {
		cr.log.Error("cannot mount card", slog.String("type", typ))
		return fmt.Errorf("mount card %q: %w", typ, ErrUnknownCard)
	}
	// rendering is always re-derived from state; existing children are
	// stale render output at best and untrusted markup at worst
	removeChildren(card)
	if def.Render == nil {
		return nil
	}
	content := def.Render(CardRenderOptions{
		State:    getAttr(card, "state"),
		Readonly: readonly,
		StateChanged: func(state string) {
			setAttr(card, "state", state)
			if onStateChange != nil {
				onStateChange(card)
			}
		},
	})
	if content != nil {
		detach(content)
		card.AppendChild(content)
	}
	return nil
}

// SerializeCard produces the document-format form of a card leaf: exactly
// the type and state attributes, no interior markup.
func (cr *CardRegistry) SerializeCard(card *html.Node) (string, error) {
	typ := getAttr(card, "type")
	state := getAttr(card, "state")
	if cr != nil {
		if def, ok := cr.defs[typ]; ok && def.Serialize != nil {
			return def.Serialize(state)
		}
	}
	return RenderNode(El(CardTag, Attrs{"type": typ, "state": state}))
}

// SerializeDocument renders the root's leafs in order, delegating card
// leafs to the registry.
func SerializeDocument(root *html.Node, cards *CardRegistry) (string, error) {
	var b strings.Builder
	for leaf := root.FirstChild; leaf != nil; leaf = leaf.NextSibling {
		if IsCard(leaf) {
			s, err := cards.SerializeCard(leaf)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
			continue
		}
		s, err := RenderNode(leaf)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}
