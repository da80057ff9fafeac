//go:build !integration

package web

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
	"telegram-campaign-bot/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// --- Mock use cases driven by the handlers under test ---

type mockBroadcastUC struct {
	mu sync.Mutex

	StartFunc func(ctx context.Context, campaignID string, filter repository.RecipientFilter, cfg usecase.DispatchConfig) (string, error)

	progress map[string]model.Progress
	reports  map[string]model.BroadcastReport
	canceled []string
}

func (m *mockBroadcastUC) Start(ctx context.Context, campaignID string, filter repository.RecipientFilter, cfg usecase.DispatchConfig) (string, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, campaignID, filter, cfg)
	}
	return "run-test", nil
}

func (m *mockBroadcastUC) Progress(runID string) (model.Progress, error) {
	p, ok := m.progress[runID]
	if !ok {
		return model.Progress{}, domain.ErrRunNotFound
	}
	return p, nil
}

func (m *mockBroadcastUC) Cancel(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.progress[runID]; !ok {
		return domain.ErrRunNotFound
	}
	m.canceled = append(m.canceled, runID)
	return nil
}

func (m *mockBroadcastUC) Report(runID string) (model.BroadcastReport, error) {
	rep, ok := m.reports[runID]
	if !ok {
		return model.BroadcastReport{}, domain.ErrRunNotFound
	}
	return rep, nil
}

type mockRecipientUC struct {
	recipients []*model.Recipient
	blocked    map[int64]bool
}

func (m *mockRecipientUC) RegisterOrTouch(ctx context.Context, tgID int64, username, fullName, source string) (*model.Recipient, bool, error) {
	return nil, false, nil
}

func (m *mockRecipientUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.Recipient, error) {
	for _, rc := range m.recipients {
		if rc.TelegramID == tgID {
			return rc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockRecipientUC) SetLanguage(ctx context.Context, tgID int64, language string) error {
	return nil
}

func (m *mockRecipientUC) SetBlocked(ctx context.Context, tgID int64, blocked bool) error {
	if _, err := m.GetByTelegramID(ctx, tgID); err != nil {
		return err
	}
	if m.blocked == nil {
		m.blocked = map[int64]bool{}
	}
	m.blocked[tgID] = blocked
	return nil
}

func (m *mockRecipientUC) List(ctx context.Context, filter repository.RecipientFilter, offset, limit int) ([]*model.Recipient, error) {
	end := offset + limit
	if end > len(m.recipients) {
		end = len(m.recipients)
	}
	if offset >= len(m.recipients) {
		return []*model.Recipient{}, nil
	}
	return m.recipients[offset:end], nil
}

func (m *mockRecipientUC) Count(ctx context.Context) (int, error) { return len(m.recipients), nil }

type mockCampaignUC struct {
	campaigns map[string]*model.Campaign
}

func (m *mockCampaignUC) Create(ctx context.Context, code, title, description string, messages map[string]string) (*model.Campaign, error) {
	c, err := model.NewCampaign("", code, title, messages)
	if err != nil {
		return nil, err
	}
	c.Description = description
	if m.campaigns == nil {
		m.campaigns = map[string]*model.Campaign{}
	}
	m.campaigns[c.ID] = c
	return c, nil
}

func (m *mockCampaignUC) Update(ctx context.Context, c *model.Campaign) error {
	if _, ok := m.campaigns[c.ID]; !ok {
		return domain.ErrNotFound
	}
	m.campaigns[c.ID] = c
	return nil
}

func (m *mockCampaignUC) Get(ctx context.Context, id string) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *mockCampaignUC) List(ctx context.Context, offset, limit int) ([]*model.Campaign, error) {
	out := make([]*model.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCampaignUC) Delete(ctx context.Context, id string) error {
	if _, ok := m.campaigns[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *mockCampaignUC) ActiveByCode(ctx context.Context, code string) (*model.Campaign, error) {
	for _, c := range m.campaigns {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

type mockTextsUC struct {
	texts []model.BotText
	snap  *model.TextSnapshot

	reloads int
}

func (m *mockTextsUC) Snapshot() *model.TextSnapshot {
	if m.snap == nil {
		m.snap = model.NewTextSnapshot(m.texts, []model.Language{{Code: "en", Default: true}})
	}
	return m.snap
}

func (m *mockTextsUC) Reload(ctx context.Context) error {
	m.reloads++
	m.snap = model.NewTextSnapshot(m.texts, []model.Language{{Code: "en", Default: true}})
	return nil
}

func (m *mockTextsUC) UpdateText(ctx context.Context, t model.BotText) error {
	m.texts = append(m.texts, t)
	return m.Reload(ctx)
}

func (m *mockTextsUC) ListTexts(ctx context.Context) ([]model.BotText, error) { return m.texts, nil }

type mockStatsUC struct {
	total   int
	blocked int
	byLang  map[string]int
	week    int
}

func (m *mockStatsUC) Totals(ctx context.Context) (int, int, map[string]int, error) {
	return m.total, m.blocked, m.byLang, nil
}

func (m *mockStatsUC) NewRecipients(ctx context.Context, since time.Time) (int, error) {
	return m.week, nil
}
