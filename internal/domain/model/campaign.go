package model

import (
	"time"

	"telegram-campaign-bot/internal/domain"

	"github.com/google/uuid"
)

// Campaign owns the message templates broadcast to recipients. Bodies are
// stored per language; MessageFor falls back to the default language so a
// campaign is usable even when a translation is missing.
type Campaign struct {
	ID          string
	Code        string
	Title       string
	Description string
	Messages    map[string]string // language -> body
	Media       *MediaRef
	Buttons     []Button
	ActiveFrom  time.Time
	ActiveTo    *time.Time
	Active      bool
	Language    string // non-empty restricts the campaign to one language
	CreatedAt   time.Time
}

const DefaultLanguage = "en"

func NewCampaign(id, code, title string, messages map[string]string) (*Campaign, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if code == "" || title == "" {
		return nil, domain.ErrInvalidArgument
	}
	if len(messages) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Campaign{
		ID:         id,
		Code:       code,
		Title:      title,
		Messages:   messages,
		ActiveFrom: now,
		Active:     true,
		CreatedAt:  now,
	}, nil
}

// MessageFor returns the body for the recipient's language, the default
// language as fallback, or "" when the campaign has no usable body.
func (c *Campaign) MessageFor(language string) string {
	if body := c.Messages[language]; body != "" {
		return body
	}
	return c.Messages[DefaultLanguage]
}

// TemplateFor builds the renderable template for one recipient language.
func (c *Campaign) TemplateFor(language string) MessageTemplate {
	return MessageTemplate{
		Body:    c.MessageFor(language),
		Media:   c.Media,
		Buttons: c.Buttons,
	}
}

// CurrentlyActive reports whether the campaign is inside its active window.
func (c *Campaign) CurrentlyActive(now time.Time) bool {
	if !c.Active {
		return false
	}
	if now.Before(c.ActiveFrom) {
		return false
	}
	if c.ActiveTo != nil && now.After(*c.ActiveTo) {
		return false
	}
	return true
}
