package usecase

import (
	"fmt"
	"strings"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
)

// Renderer expands a message template into a concrete payload for one
// recipient. Rendering is pure and deterministic; the only failure mode is a
// malformed template, reported as domain.ErrInvalidTemplate.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Placeholders recognized inside template bodies.
const (
	phName     = "name"
	phUsername = "username"
	phLanguage = "language"
)

// ValidateTemplate is the fail-fast check run once before a broadcast
// dispatches anything.
func (rd *Renderer) ValidateTemplate(tpl model.MessageTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	_, err := expand(tpl.Body, func(ph string) (string, bool) {
		switch ph {
		case phName, phUsername, phLanguage:
			return "", true
		}
		return "", false
	})
	return err
}

// Render substitutes recipient fields into the template body. Buttons and
// media pass through untouched.
func (rd *Renderer) Render(tpl model.MessageTemplate, r *model.Recipient) (model.Payload, error) {
	if r == nil {
		return model.Payload{}, domain.ErrInvalidArgument
	}
	if err := tpl.Validate(); err != nil {
		return model.Payload{}, err
	}
	text, err := expand(tpl.Body, func(ph string) (string, bool) {
		switch ph {
		case phName:
			return r.DisplayName(), true
		case phUsername:
			return r.Username, true
		case phLanguage:
			return r.Language, true
		}
		return "", false
	})
	if err != nil {
		return model.Payload{}, err
	}
	return model.Payload{Text: text, Media: tpl.Media, Buttons: tpl.Buttons}, nil
}

// expand walks body once, resolving {placeholder} tokens through lookup.
// Unknown placeholders and unbalanced braces make the template invalid.
func expand(body string, lookup func(string) (string, bool)) (string, error) {
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '{':
			end := strings.IndexByte(body[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unbalanced '{' at offset %d: %w", i, domain.ErrInvalidTemplate)
			}
			ph := body[i+1 : i+1+end]
			val, ok := lookup(ph)
			if !ok {
				return "", fmt.Errorf("unknown placeholder %q: %w", ph, domain.ErrInvalidTemplate)
			}
			b.WriteString(val)
			i += end + 1
		case '}':
			return "", fmt.Errorf("unbalanced '}' at offset %d: %w", i, domain.ErrInvalidTemplate)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
