package model

import (
	"time"

	"telegram-campaign-bot/internal/domain"

	"github.com/google/uuid"
)

// Recipient is a domain entity representing a Telegram user the bot can
// address. It is created on first interaction and never deleted; blocking
// is soft state flipped when the messaging API reports a permanent failure.
type Recipient struct {
	ID           string
	TelegramID   int64
	Username     string
	FullName     string
	Language     string
	Source       string
	Blocked      bool
	CreatedAt    time.Time
	LastActiveAt time.Time
}

func NewRecipient(id string, tgID int64, username, fullName, language, source string) (*Recipient, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if language == "" {
		language = "en"
	}
	now := time.Now()
	return &Recipient{
		ID:           id,
		TelegramID:   tgID,
		Username:     username,
		FullName:     fullName,
		Language:     language,
		Source:       source,
		CreatedAt:    now,
		LastActiveAt: now,
	}, nil
}

func (r *Recipient) IsZero() bool { return r == nil || r.ID == "" }
func (r *Recipient) Touch()       { r.LastActiveAt = time.Now() }

// DisplayName prefers the full name, falling back to the username and
// finally to a neutral placeholder so templates never render empty.
func (r *Recipient) DisplayName() string {
	if r.FullName != "" {
		return r.FullName
	}
	if r.Username != "" {
		return r.Username
	}
	return "there"
}
