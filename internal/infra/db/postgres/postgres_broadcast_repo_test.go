//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
)

func seedCampaign(t *testing.T) *model.Campaign {
	t.Helper()
	c, err := model.NewCampaign("", "welcome", "Welcome", map[string]string{"en": "hi {name}"})
	if err != nil {
		t.Fatalf("NewCampaign: %v", err)
	}
	if err := NewCampaignRepo(testPool).Save(context.Background(), repository.NoTX, c); err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	return c
}

func TestBroadcastRunRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewBroadcastRunRepo(testPool)
	ctx := context.Background()

	t.Run("should record a full run lifecycle", func(t *testing.T) {
		cleanup(t)
		c := seedCampaign(t)

		started := time.Now().Truncate(time.Millisecond)
		if err := repo.CreateRun(ctx, repository.NoTX, "run-1", c.ID, 2, started); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}

		outcomes := []model.DeliveryOutcome{
			{RecipientID: 11, Username: "a", Status: model.DeliverySent, Attempts: 1, At: started.Add(time.Second)},
			{RecipientID: 12, Username: "b", Status: model.DeliveryFailed, Error: "blocked", Attempts: 1, At: started.Add(2 * time.Second)},
		}
		for _, o := range outcomes {
			if err := repo.AppendOutcome(ctx, repository.NoTX, "run-1", o); err != nil {
				t.Fatalf("AppendOutcome: %v", err)
			}
		}
		if err := repo.FinishRun(ctx, repository.NoTX, "run-1", model.RunCompleted, started.Add(3*time.Second)); err != nil {
			t.Fatalf("FinishRun: %v", err)
		}

		got, err := repo.ListOutcomes(ctx, repository.NoTX, "run-1")
		if err != nil {
			t.Fatalf("ListOutcomes: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 outcomes, got %d", len(got))
		}
		if got[0].RecipientID != 11 || got[0].Status != model.DeliverySent {
			t.Errorf("first outcome mismatch: %+v", got[0])
		}
		if got[1].Error != "blocked" {
			t.Errorf("second outcome error = %q, want blocked", got[1].Error)
		}
	})

	t.Run("should ignore duplicate outcome for the same recipient", func(t *testing.T) {
		cleanup(t)
		c := seedCampaign(t)

		if err := repo.CreateRun(ctx, repository.NoTX, "run-2", c.ID, 1, time.Now()); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		o := model.DeliveryOutcome{RecipientID: 21, Status: model.DeliverySent, Attempts: 1, At: time.Now()}
		if err := repo.AppendOutcome(ctx, repository.NoTX, "run-2", o); err != nil {
			t.Fatalf("AppendOutcome: %v", err)
		}
		o.Status = model.DeliveryFailed
		if err := repo.AppendOutcome(ctx, repository.NoTX, "run-2", o); err != nil {
			t.Fatalf("AppendOutcome (dup): %v", err)
		}

		got, err := repo.ListOutcomes(ctx, repository.NoTX, "run-2")
		if err != nil {
			t.Fatalf("ListOutcomes: %v", err)
		}
		if len(got) != 1 || got[0].Status != model.DeliverySent {
			t.Errorf("expected first outcome to win, got %+v", got)
		}
	})
}
