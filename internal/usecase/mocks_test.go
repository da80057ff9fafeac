//go:build !integration

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// --- In-memory repositories ---

type mockRecipientRepo struct {
	mu         sync.Mutex
	recipients map[int64]*model.Recipient
	blocked    map[int64]bool
}

func newMockRecipientRepo() *mockRecipientRepo {
	return &mockRecipientRepo{
		recipients: map[int64]*model.Recipient{},
		blocked:    map[int64]bool{},
	}
}

func (m *mockRecipientRepo) Save(ctx context.Context, tx repository.Tx, r *model.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.recipients[r.TelegramID] = &cp
	return nil
}

func (m *mockRecipientRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRecipientRepo) List(ctx context.Context, tx repository.Tx, filter repository.RecipientFilter, offset, limit int) ([]*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Recipient
	for _, r := range m.recipients {
		if r.Blocked && !filter.IncludeBlocked {
			continue
		}
		if filter.Language != "" && r.Language != filter.Language {
			continue
		}
		if filter.Source != "" && r.Source != filter.Source {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRecipientRepo) SetBlocked(ctx context.Context, tx repository.Tx, tgID int64, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[tgID]
	if !ok {
		return domain.ErrNotFound
	}
	r.Blocked = blocked
	m.blocked[tgID] = blocked
	return nil
}

func (m *mockRecipientRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recipients), nil
}

func (m *mockRecipientRepo) CountBlocked(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.recipients {
		if r.Blocked {
			n++
		}
	}
	return n, nil
}

func (m *mockRecipientRepo) CountByLanguage(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, r := range m.recipients {
		out[r.Language]++
	}
	return out, nil
}

func (m *mockRecipientRepo) CountCreatedSince(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.recipients {
		if r.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

type mockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign
}

func newMockCampaignRepo() *mockCampaignRepo {
	return &mockCampaignRepo{campaigns: map[string]*model.Campaign{}}
}

func (m *mockCampaignRepo) Save(ctx context.Context, tx repository.Tx, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *mockCampaignRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCampaignRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.campaigns {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockCampaignRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Campaign
	for _, c := range m.campaigns {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockCampaignRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

type mockRunRepo struct {
	mu       sync.Mutex
	runs     map[string]string // runID -> state
	outcomes map[string][]model.DeliveryOutcome
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{
		runs:     map[string]string{},
		outcomes: map[string][]model.DeliveryOutcome{},
	}
}

func (m *mockRunRepo) CreateRun(ctx context.Context, tx repository.Tx, runID, campaignID string, total int, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = string(model.RunRunning)
	return nil
}

func (m *mockRunRepo) AppendOutcome(ctx context.Context, tx repository.Tx, runID string, o model.DeliveryOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[runID] = append(m.outcomes[runID], o)
	return nil
}

func (m *mockRunRepo) FinishRun(ctx context.Context, tx repository.Tx, runID string, state model.RunState, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = string(state)
	return nil
}

func (m *mockRunRepo) ListOutcomes(ctx context.Context, tx repository.Tx, runID string) ([]model.DeliveryOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DeliveryOutcome(nil), m.outcomes[runID]...), nil
}

func (m *mockRunRepo) state(runID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[runID]
}

type mockAutoMessageRepo struct {
	mu       sync.Mutex
	messages []*model.AutoMessage
	sent     map[string]map[string]bool // recipientID -> autoMessageID
}

func newMockAutoMessageRepo(msgs ...*model.AutoMessage) *mockAutoMessageRepo {
	return &mockAutoMessageRepo{messages: msgs, sent: map[string]map[string]bool{}}
}

func (m *mockAutoMessageRepo) Save(ctx context.Context, tx repository.Tx, msg *model.AutoMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockAutoMessageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AutoMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockAutoMessageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.AutoMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AutoMessage
	for _, msg := range m.messages {
		if msg.Active {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockAutoMessageRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.AutoMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.AutoMessage(nil), m.messages...), nil
}

func (m *mockAutoMessageRepo) WasSent(ctx context.Context, tx repository.Tx, recipientID, autoMessageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[recipientID][autoMessageID], nil
}

func (m *mockAutoMessageRepo) MarkSent(ctx context.Context, tx repository.Tx, recipientID, autoMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent[recipientID] == nil {
		m.sent[recipientID] = map[string]bool{}
	}
	m.sent[recipientID][autoMessageID] = true
	return nil
}

type mockTextRepo struct {
	mu        sync.Mutex
	texts     []model.BotText
	languages []model.Language
}

func (m *mockTextRepo) ListTexts(ctx context.Context, tx repository.Tx) ([]model.BotText, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BotText(nil), m.texts...), nil
}

func (m *mockTextRepo) ListLanguages(ctx context.Context, tx repository.Tx) ([]model.Language, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Language(nil), m.languages...), nil
}

func (m *mockTextRepo) UpsertText(ctx context.Context, tx repository.Tx, t model.BotText) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.texts {
		if existing.Key == t.Key && existing.Language == t.Language {
			m.texts[i] = t
			return nil
		}
	}
	m.texts = append(m.texts, t)
	return nil
}

func (m *mockTextRepo) SaveLanguage(ctx context.Context, tx repository.Tx, l model.Language) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.languages = append(m.languages, l)
	return nil
}

// --- Transaction manager that just runs the function ---

type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// --- Messenger double with scriptable failures ---

// mockMessenger counts attempts per recipient and fails according to a
// script: script[tgID] errors are returned in order, then sends succeed.
type mockMessenger struct {
	mu       sync.Mutex
	script   map[int64][]error
	attempts map[int64]int
	sent     []int64

	inFlight    int
	maxInFlight int

	delay time.Duration
}

func newMockMessenger() *mockMessenger {
	return &mockMessenger{
		script:   map[int64][]error{},
		attempts: map[int64]int{},
	}
}

func (m *mockMessenger) failWith(tgID int64, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script[tgID] = append(m.script[tgID], errs...)
}

func (m *mockMessenger) Send(ctx context.Context, tgID int64, p model.Payload) error {
	m.mu.Lock()
	m.attempts[tgID]++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	var err error
	if q := m.script[tgID]; len(q) > 0 {
		err = q[0]
		m.script[tgID] = q[1:]
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	m.inFlight--
	if err == nil {
		m.sent = append(m.sent, tgID)
	}
	m.mu.Unlock()
	return err
}

func (m *mockMessenger) attemptCount(tgID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[tgID]
}

func (m *mockMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// --- Locker and progress sink doubles ---

type mockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	fails bool
}

func newMockLocker() *mockLocker { return &mockLocker{held: map[string]string{}} }

func (l *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fails {
		return "", domain.ErrBroadcastInFlight
	}
	if _, taken := l.held[key]; taken {
		return "", domain.ErrBroadcastInFlight
	}
	l.held[key] = "token"
	return "token", nil
}

func (l *mockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type mockProgressSink struct {
	mu     sync.Mutex
	last   map[string]model.Progress
	pushes int
}

func newMockProgressSink() *mockProgressSink {
	return &mockProgressSink{last: map[string]model.Progress{}}
}

func (s *mockProgressSink) Publish(ctx context.Context, runID string, p model.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[runID] = p
	s.pushes++
	return nil
}

func (s *mockProgressSink) Fetch(ctx context.Context, runID string) (model.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.last[runID]
	if !ok {
		return model.Progress{}, domain.ErrRunNotFound
	}
	return p, nil
}

// --- Shared fixtures ---

func testRecipient(tgID int64, lang string) *model.Recipient {
	r, err := model.NewRecipient("", tgID, "", "", lang, "")
	if err != nil {
		panic(err)
	}
	return r
}

func fastDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Concurrency: 4,
		RatePerSec:  10_000,
		MaxRetries:  2,
		BackoffBase: time.Millisecond,
	}
}
