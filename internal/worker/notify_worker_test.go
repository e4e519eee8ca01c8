package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/model"
)

type fakeRelay struct {
	got []model.PublishEvent
	err error
}

func (f *fakeRelay) Deliver(_ context.Context, ev model.PublishEvent) error {
	f.got = append(f.got, ev)
	return f.err
}

func TestNotifyWorker_Handle(t *testing.T) {
	relay := &fakeRelay{}
	w := NewNotifyWorker(nil, relay, zerolog.Nop())

	ev := model.PublishEvent{TelegramID: 42, Score: 7.5, SubmissionID: uuid.New()}
	raw, _ := json.Marshal(ev)

	w.handle(context.Background(), string(raw))
	w.handle(context.Background(), "{not json")

	if len(relay.got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(relay.got))
	}
	if relay.got[0].TelegramID != 42 || relay.got[0].SubmissionID != ev.SubmissionID {
		t.Fatalf("delivered = %+v", relay.got[0])
	}
}

func TestNotifyWorker_FailedDeliveryIsDropped(t *testing.T) {
	relay := &fakeRelay{err: errors.New("relay down")}
	w := NewNotifyWorker(nil, relay, zerolog.Nop())

	raw, _ := json.Marshal(model.PublishEvent{TelegramID: 42, Score: "B2"})
	w.handle(context.Background(), string(raw))

	// One attempt, no retry.
	if len(relay.got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(relay.got))
	}
}
