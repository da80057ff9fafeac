package model

import (
	"time"

	"telegram-campaign-bot/internal/domain"

	"github.com/google/uuid"
)

// AutoMessage is a delayed follow-up sent once per recipient a configured
// number of minutes after registration. Optional target filters narrow the
// audience by language or acquisition source.
type AutoMessage struct {
	ID             string
	Name           string
	DelayMinutes   int
	Messages       map[string]string // language -> body
	Media          *MediaRef
	Buttons        []Button
	TargetLanguage string
	TargetSource   string
	Active         bool
	CreatedAt      time.Time
}

func NewAutoMessage(id, name string, delayMinutes int, messages map[string]string) (*AutoMessage, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" || delayMinutes < 0 || len(messages) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &AutoMessage{
		ID:           id,
		Name:         name,
		DelayMinutes: delayMinutes,
		Messages:     messages,
		Active:       true,
		CreatedAt:    time.Now(),
	}, nil
}

func (a *AutoMessage) MessageFor(language string) string {
	if body := a.Messages[language]; body != "" {
		return body
	}
	return a.Messages[DefaultLanguage]
}

func (a *AutoMessage) TemplateFor(language string) MessageTemplate {
	return MessageTemplate{
		Body:    a.MessageFor(language),
		Media:   a.Media,
		Buttons: a.Buttons,
	}
}

// Matches reports whether the recipient falls inside the target filters and
// registered long enough ago for the delay to have elapsed.
func (a *AutoMessage) Matches(r *Recipient, now time.Time) bool {
	if r == nil || r.Blocked {
		return false
	}
	if a.TargetLanguage != "" && r.Language != a.TargetLanguage {
		return false
	}
	if a.TargetSource != "" && r.Source != a.TargetSource {
		return false
	}
	due := r.CreatedAt.Add(time.Duration(a.DelayMinutes) * time.Minute)
	return !now.Before(due)
}
