package model

import "telegram-campaign-bot/internal/domain"

// MediaKind is the supported attachment type for campaign and auto messages.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// MediaRef points at an already-uploaded Telegram file.
type MediaRef struct {
	Kind   MediaKind
	FileID string
}

// Button is one inline URL button under a message.
type Button struct {
	Label string
	URL   string
}

// MessageTemplate is the raw, per-language template text plus optional media
// and buttons, before placeholder expansion.
type MessageTemplate struct {
	Body    string
	Media   *MediaRef
	Buttons []Button
}

// Payload is the concrete message for one recipient after rendering.
type Payload struct {
	Text    string
	Media   *MediaRef
	Buttons []Button
}

// Validate rejects templates the renderer cannot expand.
func (t MessageTemplate) Validate() error {
	if t.Body == "" {
		return domain.ErrInvalidTemplate
	}
	if t.Media != nil {
		if t.Media.FileID == "" {
			return domain.ErrInvalidTemplate
		}
		switch t.Media.Kind {
		case MediaPhoto, MediaVideo:
		default:
			return domain.ErrInvalidTemplate
		}
	}
	for _, b := range t.Buttons {
		if b.Label == "" || b.URL == "" {
			return domain.ErrInvalidTemplate
		}
	}
	return nil
}
