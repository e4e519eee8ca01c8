package relay

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/service"
)

type sent struct {
	chatID int64
	text   string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (m *fakeMessenger) Send(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sent{chatID, text})
	return nil
}

func (m *fakeMessenger) last() sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sent{}
	}
	return m.sent[len(m.sent)-1]
}

type fakeRegistrar struct {
	regs   []model.Registration
	creds  *model.Credentials
	err    error
	linked map[int64]*model.User
}

func (r *fakeRegistrar) Register(_ context.Context, reg model.Registration) (*model.Credentials, error) {
	r.regs = append(r.regs, reg)
	return r.creds, r.err
}

func (r *fakeRegistrar) ResolveChat(_ context.Context, chatID int64) (*model.User, error) {
	if u, ok := r.linked[chatID]; ok {
		return u, nil
	}
	return nil, service.ErrNotFound
}

type fakeHistory struct {
	entries []model.ResultEntry
}

func (h *fakeHistory) History(context.Context, uuid.UUID) ([]model.ResultEntry, error) {
	return h.entries, nil
}
