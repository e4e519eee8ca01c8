package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examhub/internal/model"
)

func answers() model.SubmitAttemptPayload {
	return model.SubmitAttemptPayload{
		FullName: "Karimov Javohir",
		Answers:  map[string]string{"q1": "A", "q2": "C"},
	}
}

func TestStart_SetsSixHourDeadline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.addStudent("karimov_4567")
	a := f.approvedAttempt(u.ID, "IELTS")

	started, err := f.attempts.Start(ctx, u.ID, a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != model.AttemptStatusInProgress {
		t.Fatalf("status = %s, want in_progress", started.Status)
	}
	if !started.StartedAt.Equal(f.clock.Now()) {
		t.Errorf("started_at = %v, want %v", started.StartedAt, f.clock.Now())
	}
	if got := started.ExpiresAt.Sub(*started.StartedAt); got != 6*time.Hour {
		t.Errorf("expires_at - started_at = %v, want 6h", got)
	}
}

func TestStart_IsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.addStudent("karimov_4567")
	a := f.approvedAttempt(u.ID, "IELTS")

	first, err := f.attempts.Start(ctx, u.ID, a.ID)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	f.clock.Advance(20 * time.Minute)
	second, err := f.attempts.Start(ctx, u.ID, a.ID)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}

	if !first.StartedAt.Equal(*second.StartedAt) || !first.ExpiresAt.Equal(*second.ExpiresAt) {
		t.Fatalf("restart changed timer: first=(%v,%v) second=(%v,%v)",
			first.StartedAt, first.ExpiresAt, second.StartedAt, second.ExpiresAt)
	}
}

func TestStart_TerminalStates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.addStudent("karimov_4567")

	done, _ := f.submittedAttempt(u.ID)
	if _, err := f.attempts.Start(ctx, u.ID, done.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("start submitted: err = %v, want conflict", err)
	}

	lapsed := f.approvedAttempt(u.ID, "SAT")
	if _, err := f.attempts.Start(ctx, u.ID, lapsed.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(7 * time.Hour)
	if _, err := f.attempts.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := f.attempts.Start(ctx, u.ID, lapsed.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("start expired: err = %v, want conflict", err)
	}
}

func TestStart_RunningPastDeadlineIsExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.addStudent("karimov_4567")
	a := f.approvedAttempt(u.ID, "IELTS")

	if _, err := f.attempts.Start(ctx, u.ID, a.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(6*time.Hour + time.Second)
	if _, err := f.attempts.Start(ctx, u.ID, a.ID); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want expired", err)
	}

	got, _ := f.store.Attempts().GetByID(ctx, a.ID)
	if got.Status != model.AttemptStatusExpired {
		t.Fatalf("stored status = %s, want expired", got.Status)
	}
}

func TestStart_Ownership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.addStudent("karimov_4567")
	a := f.approvedAttempt(u.ID, "IELTS")

	if _, err := f.attempts.Start(ctx, uuid.New(), a.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign start: err = %v, want forbidden", err)
	}
	if _, err := f.attempts.Start(ctx, u.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing attempt: err = %v, want not found", err)
	}
}

// Student requests IELTS at "lsl", gets approved, starts, and submits at
// the edge of the six hour window.
func TestSubmit_DeadlineScenario(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{"five hours fifty nine minutes", 5*time.Hour + 59*time.Minute, nil},
		{"exactly six hours", 6 * time.Hour, nil},
		{"six hours one minute", 6*time.Hour + time.Minute, ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			u := f.addStudent("karimov_4567")
			a := f.approvedAttempt(u.ID, "IELTS")
			if a.ExpiresAt != nil {
				t.Fatalf("ready attempt has expires_at %v", a.ExpiresAt)
			}

			started, err := f.attempts.Start(ctx, u.ID, a.ID)
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			if !started.ExpiresAt.Equal(started.StartedAt.Add(6 * time.Hour)) {
				t.Fatalf("expires_at = %v, want start+6h", started.ExpiresAt)
			}

			f.clock.Advance(tt.elapsed)
			done, sub, err := f.attempts.Submit(ctx, u.ID, a.ID, answers())

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if errors.Is(err, ErrConflict) {
					t.Fatalf("expired submit must not be a conflict: %v", err)
				}
				if len(f.store.submissions) != 0 {
					t.Fatalf("submission stored despite expiry")
				}
				n, err := f.attempts.Sweep(ctx)
				if err != nil {
					t.Fatalf("sweep: %v", err)
				}
				got, _ := f.store.Attempts().GetByID(ctx, a.ID)
				if got.Status != model.AttemptStatusExpired {
					t.Fatalf("status after sweep = %s (swept %d), want expired", got.Status, n)
				}
				return
			}

			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if done.Status != model.AttemptStatusSubmitted || done.SubmissionID == nil || *done.SubmissionID != sub.ID {
				t.Fatalf("attempt = %+v, want submitted with submission %s", done, sub.ID)
			}
			if sub.FullName != "Karimov Javohir" || sub.Answers["q2"] != "C" {
				t.Fatalf("submission = %+v", sub)
			}
		})
	}
}

func TestSubmit_StateGuards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.addStudent("karimov_4567")

	ready := f.approvedAttempt(u.ID, "SAT")
	if _, _, err := f.attempts.Submit(ctx, u.ID, ready.ID, answers()); !errors.Is(err, ErrConflict) {
		t.Fatalf("submit ready: err = %v, want conflict", err)
	}

	done, _ := f.submittedAttempt(u.ID)
	if _, _, err := f.attempts.Submit(ctx, u.ID, done.ID, answers()); !errors.Is(err, ErrConflict) {
		t.Fatalf("double submit: err = %v, want conflict", err)
	}

	if _, _, err := f.attempts.Submit(ctx, u.ID, done.ID, model.SubmitAttemptPayload{Answers: map[string]string{}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing name: err = %v, want validation", err)
	}
}

func TestSweep_IdempotentAndLeavesOthers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.addStudent("karimov_4567")

	overdue := f.approvedAttempt(u.ID, "IELTS")
	if _, err := f.attempts.Start(ctx, u.ID, overdue.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(5 * time.Hour)

	running := f.approvedAttempt(u.ID, "SAT")
	if _, err := f.attempts.Start(ctx, u.ID, running.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	idle := f.approvedAttempt(u.ID, "CEFR")

	f.clock.Advance(2 * time.Hour)

	n, err := f.attempts.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("first sweep = %d, %v; want 1, nil", n, err)
	}
	n, err = f.attempts.Sweep(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second sweep = %d, %v; want 0, nil", n, err)
	}

	want := map[uuid.UUID]model.AttemptStatus{
		overdue.ID: model.AttemptStatusExpired,
		running.ID: model.AttemptStatusInProgress,
		idle.ID:    model.AttemptStatusReady,
	}
	for id, status := range want {
		got, _ := f.store.Attempts().GetByID(ctx, id)
		if got.Status != status {
			t.Errorf("attempt %s status = %s, want %s", id, got.Status, status)
		}
	}
}

func TestGet_ReflectsLazyExpiry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.addStudent("karimov_4567")
	a := f.approvedAttempt(u.ID, "IELTS")
	if _, err := f.attempts.Start(ctx, u.ID, a.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.clock.Advance(6*time.Hour + time.Minute)
	got, err := f.attempts.Get(ctx, u.ID, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.AttemptStatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}

	list, err := f.attempts.ListMine(ctx, u.ID)
	if err != nil || len(list) != 1 || list[0].Status != model.AttemptStatusExpired {
		t.Fatalf("list = %+v, %v; want one expired attempt", list, err)
	}
}
