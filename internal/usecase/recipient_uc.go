package usecase

import (
	"context"
	"errors"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
	"telegram-campaign-bot/internal/infra/logging"
	"telegram-campaign-bot/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ RecipientUseCase = (*recipientUC)(nil)

// RecipientUseCase exposes recipient operations used by bot and admin flows.
type RecipientUseCase interface {
	// RegisterOrTouch creates the recipient on first interaction and
	// refreshes activity on subsequent ones.
	RegisterOrTouch(ctx context.Context, tgID int64, username, fullName, source string) (*model.Recipient, bool, error)
	GetByTelegramID(ctx context.Context, tgID int64) (*model.Recipient, error)
	SetLanguage(ctx context.Context, tgID int64, language string) error
	SetBlocked(ctx context.Context, tgID int64, blocked bool) error
	List(ctx context.Context, filter repository.RecipientFilter, offset, limit int) ([]*model.Recipient, error)
	Count(ctx context.Context) (int, error)
}

type recipientUC struct {
	recipients repository.RecipientRepository
	tm         repository.TransactionManager
	log        *zerolog.Logger
}

func NewRecipientUseCase(recipients repository.RecipientRepository, tm repository.TransactionManager, logger *zerolog.Logger) *recipientUC {
	return &recipientUC{recipients: recipients, tm: tm, log: logger}
}

func (u *recipientUC) RegisterOrTouch(ctx context.Context, tgID int64, username, fullName, source string) (*model.Recipient, bool, error) {
	defer logging.TraceDuration(u.log, "RecipientUC.RegisterOrTouch")()

	var rcpt *model.Recipient
	var created bool
	// find+save as one atomic step so two concurrent /start updates cannot
	// both insert the recipient.
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.recipients.FindByTelegramID(ctx, tx, tgID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if existing != nil {
			if username != "" {
				existing.Username = username
			}
			if fullName != "" {
				existing.FullName = fullName
			}
			existing.Touch()
			if err := u.recipients.Save(ctx, tx, existing); err != nil {
				return err
			}
			rcpt = existing
			return nil
		}

		nr, err := model.NewRecipient("", tgID, username, fullName, "", source)
		if err != nil {
			return err
		}
		if err := u.recipients.Save(ctx, tx, nr); err != nil {
			return err
		}
		rcpt = nr
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.IncRecipientRegistered()
		u.log.Info().Int64("tg_id", tgID).Str("source", source).Msg("recipient registered")
	}
	return rcpt, created, nil
}

func (u *recipientUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.Recipient, error) {
	return u.recipients.FindByTelegramID(ctx, repository.NoTX, tgID)
}

func (u *recipientUC) SetLanguage(ctx context.Context, tgID int64, language string) error {
	if language == "" {
		return domain.ErrInvalidArgument
	}
	r, err := u.recipients.FindByTelegramID(ctx, repository.NoTX, tgID)
	if err != nil {
		return err
	}
	r.Language = language
	r.Touch()
	return u.recipients.Save(ctx, repository.NoTX, r)
}

func (u *recipientUC) SetBlocked(ctx context.Context, tgID int64, blocked bool) error {
	return u.recipients.SetBlocked(ctx, repository.NoTX, tgID, blocked)
}

func (u *recipientUC) List(ctx context.Context, filter repository.RecipientFilter, offset, limit int) ([]*model.Recipient, error) {
	return u.recipients.List(ctx, repository.NoTX, filter, offset, limit)
}

func (u *recipientUC) Count(ctx context.Context) (int, error) {
	return u.recipients.Count(ctx, repository.NoTX)
}

// Touch updates last activity without any other mutation.
func (u *recipientUC) Touch(ctx context.Context, tgID int64) {
	r, err := u.recipients.FindByTelegramID(ctx, repository.NoTX, tgID)
	if err != nil {
		return
	}
	r.Touch()
	if err := u.recipients.Save(ctx, repository.NoTX, r); err != nil {
		u.log.Debug().Err(err).Int64("tg_id", tgID).Msg("touch failed")
	}
}
