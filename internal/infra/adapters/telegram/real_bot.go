package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-campaign-bot/internal/config"
	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/adapter"
	"telegram-campaign-bot/internal/usecase"
)

var _ adapter.Messenger = (*Bot)(nil)

// Bot wraps tgbotapi: it is both the Messenger the broadcast dispatcher
// sends through and the polling surface that registers recipients.
type Bot struct {
	api        *tgbotapi.BotAPI
	cfg        *config.BotConfig
	recipients usecase.RecipientUseCase
	campaigns  usecase.CampaignUseCase
	renderer   *usecase.Renderer
	texts      usecase.TextsUseCase
	log        *zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewBot(
	cfg *config.BotConfig,
	recipients usecase.RecipientUseCase,
	campaigns usecase.CampaignUseCase,
	renderer *usecase.Renderer,
	texts usecase.TextsUseCase,
	logger *zerolog.Logger,
) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:        api,
		cfg:        cfg,
		recipients: recipients,
		campaigns:  campaigns,
		renderer:   renderer,
		texts:      texts,
		log:        logger,
	}, nil
}

// Send delivers one rendered payload and maps transport failures onto the
// retry taxonomy: 429 -> rate limited with the server hint, 403 and "chat
// not found" -> permanent, everything else -> temporary.
func (b *Bot) Send(ctx context.Context, telegramID int64, p model.Payload) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var msg tgbotapi.Chattable
	switch {
	case p.Media != nil && p.Media.Kind == model.MediaPhoto:
		photo := tgbotapi.NewPhoto(telegramID, tgbotapi.FileID(p.Media.FileID))
		photo.Caption = p.Text
		photo.ParseMode = tgbotapi.ModeHTML
		if kb, ok := buttonMarkup(p.Buttons); ok {
			photo.ReplyMarkup = kb
		}
		msg = photo
	case p.Media != nil && p.Media.Kind == model.MediaVideo:
		video := tgbotapi.NewVideo(telegramID, tgbotapi.FileID(p.Media.FileID))
		video.Caption = p.Text
		video.ParseMode = tgbotapi.ModeHTML
		if kb, ok := buttonMarkup(p.Buttons); ok {
			video.ReplyMarkup = kb
		}
		msg = video
	default:
		text := tgbotapi.NewMessage(telegramID, p.Text)
		text.ParseMode = tgbotapi.ModeHTML
		if kb, ok := buttonMarkup(p.Buttons); ok {
			text.ReplyMarkup = kb
		}
		msg = text
	}

	if _, err := b.api.Send(msg); err != nil {
		return classify(err)
	}
	return nil
}

func buttonMarkup(buttons []model.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(buttons) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL),
		})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func classify(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return &domain.TemporaryError{Reason: err.Error()}
	}
	switch {
	case apiErr.Code == 429:
		retryAfter := time.Duration(apiErr.RetryAfter) * time.Second
		return &domain.RateLimitedError{RetryAfter: retryAfter}
	case apiErr.Code == 403:
		return &domain.PermanentError{Reason: apiErr.Message}
	case apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "chat not found"):
		return &domain.PermanentError{Reason: apiErr.Message}
	default:
		return &domain.TemporaryError{Reason: apiErr.Message}
	}
}

// StartPolling consumes updates until ctx is cancelled. Handling is fanned
// out to cfg.Workers goroutines so a slow handler cannot stall the feed.
func (b *Bot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < b.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.consumeUpdates(ctx, updateChan)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

// consumeUpdates handles updates until ctx is cancelled or the channel is
// closed by the feed loop.
func (b *Bot) consumeUpdates(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if err := b.handleUpdate(ctx, up); err != nil {
				b.log.Error().Err(err).Msg("update handler failed")
			}
		}
	}
}

func (b *Bot) StopPolling() {
	if b.cancelPolling != nil {
		b.cancelPolling()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return b.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	from := update.Message.From
	fields := strings.Fields(update.Message.Text)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/start") {
		source := ""
		if len(fields) > 1 {
			source = fields[1]
		}
		return b.handleStart(ctx, from, source)
	}
	if len(fields) > 0 && fields[0] == "/reload" && b.isAdmin(from.ID) {
		return b.handleReload(ctx, from.ID)
	}

	// Any other message just refreshes activity.
	_, _, err := b.recipients.RegisterOrTouch(ctx, from.ID, from.UserName, fullName(from), "")
	return err
}

func (b *Bot) isAdmin(tgID int64) bool {
	for _, id := range b.cfg.AdminIDs {
		if id == tgID {
			return true
		}
	}
	return false
}

// handleReload refreshes the bot-texts snapshot on request from an admin, so
// edits made straight in the DB show up without a redeploy.
func (b *Bot) handleReload(ctx context.Context, tgID int64) error {
	if err := b.texts.Reload(ctx); err != nil {
		return err
	}
	_, err := b.api.Send(tgbotapi.NewMessage(tgID, "texts reloaded"))
	return err
}

func fullName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// handleStart registers the recipient (carrying the deep-link payload as the
// acquisition source) and greets first-timers with a language picker. When
// the payload names an active campaign code, its rendered content follows
// the greeting.
func (b *Bot) handleStart(ctx context.Context, from *tgbotapi.User, source string) error {
	rc, created, err := b.recipients.RegisterOrTouch(ctx, from.ID, from.UserName, fullName(from), source)
	if err != nil {
		return err
	}

	snap := b.texts.Snapshot()
	if created && len(snap.Languages()) > 1 {
		if err := b.sendLanguagePicker(ctx, from.ID, snap); err != nil {
			return err
		}
	} else {
		welcome := snap.TextWithName("welcome", rc.Language, rc.DisplayName())
		msg := tgbotapi.NewMessage(from.ID, welcome)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(msg); err != nil {
			return err
		}
	}
	if source != "" {
		return b.sendDeepLinkCampaign(ctx, rc, source)
	}
	return nil
}

// sendDeepLinkCampaign delivers the campaign a /start payload points at.
// Unknown or expired codes are plain acquisition tags, not errors.
func (b *Bot) sendDeepLinkCampaign(ctx context.Context, rc *model.Recipient, code string) error {
	if b.campaigns == nil || b.renderer == nil {
		return nil
	}
	c, err := b.campaigns.ActiveByCode(ctx, code)
	if err != nil || c == nil {
		return nil
	}
	p, err := b.renderer.Render(c.TemplateFor(rc.Language), rc)
	if err != nil {
		b.log.Warn().Err(err).Str("code", code).Msg("deep-link campaign failed to render")
		return nil
	}
	return b.Send(ctx, rc.TelegramID, p)
}

func (b *Bot) sendLanguagePicker(ctx context.Context, tgID int64, snap *model.TextSnapshot) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(snap.Languages()))
	for _, l := range snap.Languages() {
		if !l.Active {
			continue
		}
		label := strings.TrimSpace(l.Flag + " " + l.Name)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, "lang:"+l.Code),
		})
	}
	msg := tgbotapi.NewMessage(tgID, snap.Text("choose_language", snap.DefaultLanguage()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.From == nil {
		return errors.New("callback without sender")
	}
	defer func() { _, _ = b.api.Request(tgbotapi.NewCallback(query.ID, "")) }()

	data := strings.TrimSpace(query.Data)
	if !strings.HasPrefix(data, "lang:") {
		return nil
	}
	code := strings.TrimPrefix(data, "lang:")
	if err := b.recipients.SetLanguage(ctx, query.From.ID, code); err != nil {
		return err
	}

	rc, err := b.recipients.GetByTelegramID(ctx, query.From.ID)
	if err != nil {
		return err
	}
	welcome := b.texts.Snapshot().TextWithName("welcome", code, rc.DisplayName())
	msg := tgbotapi.NewMessage(query.From.ID, welcome)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}
