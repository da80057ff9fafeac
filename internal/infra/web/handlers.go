package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
	"telegram-campaign-bot/internal/usecase"
)

// reportDetailsCap bounds how many per-recipient rows a report response
// carries. The full list stays in the store; this is display truncation only.
const reportDetailsCap = 50

type broadcastStartRequest struct {
	CampaignID string `json:"campaign_id"`
	Filter     struct {
		Language string `json:"language"`
		Source   string `json:"source"`
	} `json:"filter"`
	// Optional per-run overrides; zero values fall back to server defaults.
	// A negative max_retries disables retries for this run.
	Concurrency int `json:"concurrency"`
	RatePerSec  int `json:"rate_per_sec"`
	MaxRetries  int `json:"max_retries"`
}

func broadcastStartHandler(broadcasts usecase.BroadcastUseCase, defaults usecase.DispatchConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req broadcastStartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.CampaignID == "" {
			http.Error(w, "campaign_id is required", http.StatusBadRequest)
			return
		}

		cfg := defaults
		if req.Concurrency > 0 {
			cfg.Concurrency = req.Concurrency
		}
		if req.RatePerSec > 0 {
			cfg.RatePerSec = req.RatePerSec
		}
		if req.MaxRetries != 0 {
			cfg.MaxRetries = req.MaxRetries
		}

		filter := repository.RecipientFilter{
			Language: req.Filter.Language,
			Source:   req.Filter.Source,
		}
		runID, err := broadcasts.Start(r.Context(), req.CampaignID, filter, cfg)
		if err != nil {
			writeBroadcastError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
	}
}

func broadcastProgressHandler(broadcasts usecase.BroadcastUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := broadcasts.Progress(chi.URLParam(r, "runID"))
		if err != nil {
			writeBroadcastError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func broadcastCancelHandler(broadcasts usecase.BroadcastUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := broadcasts.Cancel(chi.URLParam(r, "runID")); err != nil {
			writeBroadcastError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func broadcastReportHandler(broadcasts usecase.BroadcastUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := broadcasts.Report(chi.URLParam(r, "runID"))
		if err != nil {
			writeBroadcastError(w, err)
			return
		}

		truncated := false
		if len(rep.Details) > reportDetailsCap {
			rep.Details = rep.Details[:reportDetailsCap]
			truncated = true
		}
		response := struct {
			model.BroadcastReport
			DetailsTruncated bool `json:"details_truncated"`
		}{rep, truncated}
		writeJSON(w, http.StatusOK, response)
	}
}

func writeBroadcastError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRunNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidTemplate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrBroadcastInFlight), errors.Is(err, domain.ErrRunFinished),
		errors.Is(err, domain.ErrRunAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// statsHandler serves the dashboard counters.
func statsHandler(stats usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		total, blocked, byLanguage, err := stats.Totals(ctx)
		if err != nil {
			http.Error(w, "Failed to get totals", http.StatusInternalServerError)
			return
		}
		week, err := stats.NewRecipients(ctx, time.Now().AddDate(0, 0, -7))
		if err != nil {
			http.Error(w, "Failed to get weekly signups", http.StatusInternalServerError)
			return
		}

		response := struct {
			TotalRecipients   int            `json:"total_recipients"`
			BlockedRecipients int            `json:"blocked_recipients"`
			ByLanguage        map[string]int `json:"by_language"`
			NewThisWeek       int            `json:"new_this_week"`
		}{
			TotalRecipients:   total,
			BlockedRecipients: blocked,
			ByLanguage:        byLanguage,
			NewThisWeek:       week,
		}
		writeJSON(w, http.StatusOK, response)
	}
}

// recipientsListHandler returns a paginated recipient list. It accepts
// 'offset', 'limit', 'language', 'source' and 'include_blocked' query params.
func recipientsListHandler(recipients usecase.RecipientUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}
		filter := repository.RecipientFilter{
			Language:       r.URL.Query().Get("language"),
			Source:         r.URL.Query().Get("source"),
			IncludeBlocked: r.URL.Query().Get("include_blocked") == "true",
		}

		list, err := recipients.List(ctx, filter, offset, limit)
		if err != nil {
			http.Error(w, "Failed to list recipients", http.StatusInternalServerError)
			return
		}
		total, err := recipients.Count(ctx)
		if err != nil {
			http.Error(w, "Failed to count recipients", http.StatusInternalServerError)
			return
		}

		response := struct {
			Data   []*model.Recipient `json:"data"`
			Total  int                `json:"total"`
			Limit  int                `json:"limit"`
			Offset int                `json:"offset"`
		}{
			Data:   list,
			Total:  total,
			Limit:  limit,
			Offset: offset,
		}
		writeJSON(w, http.StatusOK, response)
	}
}

func recipientBlockHandler(recipients usecase.RecipientUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tgID, err := strconv.ParseInt(chi.URLParam(r, "tgID"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid telegram id", http.StatusBadRequest)
			return
		}
		var req struct {
			Blocked bool `json:"blocked"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := recipients.SetBlocked(r.Context(), tgID, req.Blocked); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to update recipient", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type campaignRequest struct {
	Code        string            `json:"code"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Messages    map[string]string `json:"messages"`
	Media       *model.MediaRef   `json:"media,omitempty"`
	Buttons     []model.Button    `json:"buttons,omitempty"`
	Active      *bool             `json:"active,omitempty"`
	Language    string            `json:"language"`
}

func campaignsCreateHandler(campaigns usecase.CampaignUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req campaignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		c, err := campaigns.Create(r.Context(), req.Code, req.Title, req.Description, req.Messages)
		if err != nil {
			writeBroadcastError(w, err)
			return
		}
		if req.Media != nil || len(req.Buttons) > 0 || req.Language != "" {
			c.Media = req.Media
			c.Buttons = req.Buttons
			c.Language = req.Language
			if err := campaigns.Update(r.Context(), c); err != nil {
				writeBroadcastError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func campaignsListHandler(campaigns usecase.CampaignUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := campaigns.List(r.Context(), offset, limit)
		if err != nil {
			http.Error(w, "Failed to list campaigns", http.StatusInternalServerError)
			return
		}
		response := struct {
			Data []*model.Campaign `json:"data"`
		}{Data: list}
		writeJSON(w, http.StatusOK, response)
	}
}

func campaignGetHandler(campaigns usecase.CampaignUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := campaigns.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeBroadcastError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func campaignUpdateHandler(campaigns usecase.CampaignUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, err := campaigns.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeBroadcastError(w, err)
			return
		}
		var req campaignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Code != "" {
			existing.Code = req.Code
		}
		if req.Title != "" {
			existing.Title = req.Title
		}
		existing.Description = req.Description
		if req.Messages != nil {
			existing.Messages = req.Messages
		}
		existing.Media = req.Media
		existing.Buttons = req.Buttons
		existing.Language = req.Language
		if req.Active != nil {
			existing.Active = *req.Active
		}
		if err := campaigns.Update(r.Context(), existing); err != nil {
			writeBroadcastError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, existing)
	}
}

func campaignDeleteHandler(campaigns usecase.CampaignUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := campaigns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeBroadcastError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func textsListHandler(texts usecase.TextsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := texts.ListTexts(r.Context())
		if err != nil {
			http.Error(w, "Failed to list texts", http.StatusInternalServerError)
			return
		}
		response := struct {
			Data     []model.BotText `json:"data"`
			LoadedAt time.Time       `json:"loaded_at"`
		}{Data: list, LoadedAt: texts.Snapshot().LoadedAt()}
		writeJSON(w, http.StatusOK, response)
	}
}

func textUpdateHandler(texts usecase.TextsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.BotText
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Key == "" || req.Language == "" {
			http.Error(w, "key and language are required", http.StatusBadRequest)
			return
		}
		if err := texts.UpdateText(r.Context(), req); err != nil {
			http.Error(w, "Failed to update text", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func textsReloadHandler(texts usecase.TextsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := texts.Reload(r.Context()); err != nil {
			http.Error(w, "Failed to reload texts", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"loaded_at": texts.Snapshot().LoadedAt(),
		})
	}
}
