//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
)

type broadcastFixture struct {
	uc        *broadcastUC
	msgr      *mockMessenger
	rcpts     *mockRecipientRepo
	campaigns *mockCampaignRepo
	runs      *mockRunRepo
	locker    *mockLocker
	sink      *mockProgressSink
	campaign  *model.Campaign
}

func newBroadcastFixture(t *testing.T, audience int) *broadcastFixture {
	t.Helper()

	f := &broadcastFixture{
		msgr:      newMockMessenger(),
		rcpts:     newMockRecipientRepo(),
		campaigns: newMockCampaignRepo(),
		runs:      newMockRunRepo(),
		locker:    newMockLocker(),
		sink:      newMockProgressSink(),
	}
	ctx := context.Background()
	for i := 0; i < audience; i++ {
		if err := f.rcpts.Save(ctx, repository.NoTX, testRecipient(int64(i+1), "en")); err != nil {
			t.Fatal(err)
		}
	}
	c, err := model.NewCampaign("", "promo", "Promo", map[string]string{"en": "hi {name}"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.campaigns.Save(ctx, repository.NoTX, c); err != nil {
		t.Fatal(err)
	}
	f.campaign = c

	f.uc = NewBroadcastUseCase(
		f.rcpts, f.campaigns, f.runs, f.msgr, NewRenderer(), f.locker, f.sink, newTestLogger())
	return f
}

func (f *broadcastFixture) start(t *testing.T, cfg DispatchConfig) string {
	t.Helper()
	runID, err := f.uc.Start(context.Background(), f.campaign.ID, repository.RecipientFilter{}, cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return runID
}

func TestBroadcastUC_FullRun(t *testing.T) {
	f := newBroadcastFixture(t, 3)

	runID := f.start(t, fastDispatchConfig())
	if err := f.uc.Wait(runID); err != nil {
		t.Fatal(err)
	}

	rep, err := f.uc.Report(runID)
	if err != nil {
		t.Fatal(err)
	}
	if rep.State != model.RunCompleted {
		t.Errorf("state = %s, want completed", rep.State)
	}
	if rep.Total != 3 || rep.Sent != 3 || rep.SuccessRate != 100 {
		t.Errorf("report = %+v, want 3/3 sent at 100%%", rep)
	}
	if len(rep.Details) != 3 {
		t.Errorf("details = %d rows, want 3", len(rep.Details))
	}

	// The durable mirror saw the same outcomes and the final state.
	persisted, _ := f.runs.ListOutcomes(context.Background(), repository.NoTX, runID)
	if len(persisted) != 3 {
		t.Errorf("persisted %d outcomes, want 3", len(persisted))
	}
	if got := f.runs.state(runID); got != string(model.RunCompleted) {
		t.Errorf("persisted state = %s", got)
	}

	// The lock is released once the run settles.
	if _, err := f.locker.TryLock(context.Background(), "broadcast:campaign:"+f.campaign.ID, time.Hour); err != nil {
		t.Error("campaign lock still held after run finished")
	}
}

func TestBroadcastUC_PartialFailureReport(t *testing.T) {
	f := newBroadcastFixture(t, 4)
	f.msgr.failWith(2, &domain.PermanentError{Reason: "bot was blocked by the user"})

	runID := f.start(t, fastDispatchConfig())
	if err := f.uc.Wait(runID); err != nil {
		t.Fatal(err)
	}

	rep, _ := f.uc.Report(runID)
	if rep.Total != 4 || rep.Sent != 3 || rep.Failed != 1 {
		t.Errorf("report = %+v, want total 4, sent 3, failed 1", rep)
	}
	if rep.SuccessRate != 75 {
		t.Errorf("success rate = %d, want 75", rep.SuccessRate)
	}
	var found bool
	for _, d := range rep.Details {
		if d.RecipientID == 2 {
			found = true
			if d.Status != model.DeliveryFailed || d.Error == "" {
				t.Errorf("failed detail = %+v, want failed with error text", d)
			}
		}
	}
	if !found {
		t.Error("no detail row for the failed recipient")
	}

	// A permanent failure flips the blocked flag.
	if !f.rcpts.blocked[2] {
		t.Error("recipient 2 not marked blocked after permanent send failure")
	}
}

func TestBroadcastUC_SecondStartConflicts(t *testing.T) {
	f := newBroadcastFixture(t, 3)
	f.msgr.delay = 20 * time.Millisecond

	runID := f.start(t, fastDispatchConfig())

	_, err := f.uc.Start(context.Background(), f.campaign.ID, repository.RecipientFilter{}, fastDispatchConfig())
	if !errors.Is(err, domain.ErrBroadcastInFlight) {
		t.Errorf("expected ErrBroadcastInFlight, got %v", err)
	}
	if err := f.uc.Wait(runID); err != nil {
		t.Fatal(err)
	}

	// Once finished, the campaign may run again.
	if _, err := f.uc.Start(context.Background(), f.campaign.ID, repository.RecipientFilter{}, fastDispatchConfig()); err != nil {
		t.Errorf("restart after completion: %v", err)
	}
}

func TestBroadcastUC_InvalidTemplateFailsFast(t *testing.T) {
	f := newBroadcastFixture(t, 3)

	bad, _ := model.NewCampaign("", "bad", "Bad", map[string]string{"en": "hi {name}"})
	bad.Messages["de"] = "hallo {surname}"
	if err := f.campaigns.Save(context.Background(), repository.NoTX, bad); err != nil {
		t.Fatal(err)
	}

	_, err := f.uc.Start(context.Background(), bad.ID, repository.RecipientFilter{}, fastDispatchConfig())
	if !errors.Is(err, domain.ErrInvalidTemplate) {
		t.Fatalf("expected ErrInvalidTemplate, got %v", err)
	}
	if f.msgr.sentCount() != 0 {
		t.Error("nothing may be sent when any language template is invalid")
	}
}

func TestBroadcastUC_EmptyAudienceRejected(t *testing.T) {
	f := newBroadcastFixture(t, 3)

	_, err := f.uc.Start(context.Background(), f.campaign.ID,
		repository.RecipientFilter{Language: "xx"}, fastDispatchConfig())
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty audience, got %v", err)
	}
}

func TestBroadcastUC_UnknownCampaign(t *testing.T) {
	f := newBroadcastFixture(t, 1)

	_, err := f.uc.Start(context.Background(), "no-such-id", repository.RecipientFilter{}, fastDispatchConfig())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBroadcastUC_CancelMidRun(t *testing.T) {
	f := newBroadcastFixture(t, 30)
	f.msgr.delay = 10 * time.Millisecond

	cfg := fastDispatchConfig()
	cfg.Concurrency = 1
	runID := f.start(t, cfg)

	// Let a few sends land before cancelling.
	for {
		p, err := f.uc.Progress(runID)
		if err != nil {
			t.Fatal(err)
		}
		if p.Completed >= 3 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := f.uc.Cancel(runID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := f.uc.Wait(runID); err != nil {
		t.Fatal(err)
	}

	rep, _ := f.uc.Report(runID)
	if rep.State != model.RunCancelled {
		t.Errorf("state = %s, want cancelled", rep.State)
	}
	if rep.Sent+rep.Failed+rep.Skipped != rep.Total {
		t.Errorf("outcome counts %d+%d+%d do not cover total %d",
			rep.Sent, rep.Failed, rep.Skipped, rep.Total)
	}
	if rep.Skipped == 0 {
		t.Error("expected undispatched recipients to be reported as skipped")
	}

	// Cancelling a settled run is an error.
	if err := f.uc.Cancel(runID); !errors.Is(err, domain.ErrRunFinished) {
		t.Errorf("expected ErrRunFinished on second cancel, got %v", err)
	}
}

func TestBroadcastUC_ProgressMirroredToSink(t *testing.T) {
	f := newBroadcastFixture(t, 3)

	runID := f.start(t, fastDispatchConfig())
	if err := f.uc.Wait(runID); err != nil {
		t.Fatal(err)
	}

	f.sink.mu.Lock()
	last, pushes := f.sink.last[runID], f.sink.pushes
	f.sink.mu.Unlock()
	if pushes == 0 {
		t.Fatal("no progress published")
	}
	if last.Completed != 3 || last.Sent != 3 {
		t.Errorf("final mirrored progress = %+v", last)
	}
}

func TestBroadcastUC_LanguagePinnedCampaign(t *testing.T) {
	f := newBroadcastFixture(t, 3) // recipients 1..3 speak "en"
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := f.rcpts.Save(ctx, repository.NoTX, testRecipient(int64(100+i), "de")); err != nil {
			t.Fatal(err)
		}
	}

	pinned, _ := model.NewCampaign("", "de-only", "DE only", map[string]string{"en": "hi", "de": "hallo"})
	pinned.Language = "de"
	if err := f.campaigns.Save(ctx, repository.NoTX, pinned); err != nil {
		t.Fatal(err)
	}

	runID, err := f.uc.Start(ctx, pinned.ID, repository.RecipientFilter{}, fastDispatchConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.uc.Wait(runID); err != nil {
		t.Fatal(err)
	}

	rep, _ := f.uc.Report(runID)
	if rep.Total != 2 || rep.Sent != 2 {
		t.Errorf("report = %+v, want only the 2 de recipients reached", rep)
	}

	// An explicit filter for a different language contradicts the pin.
	_, err = f.uc.Start(ctx, pinned.ID, repository.RecipientFilter{Language: "en"}, fastDispatchConfig())
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBroadcastUC_ProgressServedFromMirrorAcrossProcesses(t *testing.T) {
	f := newBroadcastFixture(t, 3)

	runID := f.start(t, fastDispatchConfig())
	if err := f.uc.Wait(runID); err != nil {
		t.Fatal(err)
	}

	// A second admin process shares the sink but not the run registry.
	other := NewBroadcastUseCase(
		f.rcpts, f.campaigns, f.runs, f.msgr, NewRenderer(), f.locker, f.sink, newTestLogger())

	p, err := other.Progress(runID)
	if err != nil {
		t.Fatalf("Progress from mirror: %v", err)
	}
	if p.Completed != 3 || p.Sent != 3 {
		t.Errorf("mirrored progress = %+v, want 3 completed, 3 sent", p)
	}

	// Runs absent from the mirror still report not found.
	if _, err := other.Progress("missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestBroadcastUC_UnknownRunLookups(t *testing.T) {
	f := newBroadcastFixture(t, 1)

	if _, err := f.uc.Progress("missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("Progress: expected ErrRunNotFound, got %v", err)
	}
	if err := f.uc.Cancel("missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("Cancel: expected ErrRunNotFound, got %v", err)
	}
	if _, err := f.uc.Report("missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("Report: expected ErrRunNotFound, got %v", err)
	}
}
