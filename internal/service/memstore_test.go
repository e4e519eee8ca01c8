package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repositories. It
// enforces the same unique constraints and guarded transitions.
type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*model.User
	links       map[uuid.UUID]*model.ExternalIdentityLink
	requests    map[uuid.UUID]*model.ExamRequest
	attempts    map[uuid.UUID]*model.ExamAttempt
	submissions map[uuid.UUID]*model.Submission
	scores      map[uuid.UUID]*model.Score
	tests       map[uuid.UUID]string

	// attemptInsertErr, when set, fails the attempt insert inside Approve.
	attemptInsertErr error
	// beforeUpsert, when set, runs at the start of Scores().Upsert.
	beforeUpsert func()
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]*model.User),
		links:       make(map[uuid.UUID]*model.ExternalIdentityLink),
		requests:    make(map[uuid.UUID]*model.ExamRequest),
		attempts:    make(map[uuid.UUID]*model.ExamAttempt),
		submissions: make(map[uuid.UUID]*model.Submission),
		scores:      make(map[uuid.UUID]*model.Score),
		tests:       make(map[uuid.UUID]string),
	}
}

func (m *memStore) Users() *memUsers             { return (*memUsers)(m) }
func (m *memStore) Identities() *memIdentities   { return (*memIdentities)(m) }
func (m *memStore) Requests() *memRequests       { return (*memRequests)(m) }
func (m *memStore) Attempts() *memAttempts       { return (*memAttempts)(m) }
func (m *memStore) Submissions() *memSubmissions { return (*memSubmissions)(m) }
func (m *memStore) Scores() *memScores           { return (*memScores)(m) }
func (m *memStore) Tests() *memTests             { return (*memTests)(m) }

// ─── Users ──────────────────────────────────────────────────────────

type memUsers memStore

func (s *memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) GetByLogin(_ context.Context, login string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Login == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memUsers) FindByIdentity(_ context.Context, surname, name, phone string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Surname, surname) && strings.EqualFold(u.Name, name) && u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memUsers) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.users {
		if x.Login == u.Login {
			return repository.ErrDuplicateLogin
		}
		if u.Phone != "" && strings.EqualFold(x.Surname, u.Surname) &&
			strings.EqualFold(x.Name, u.Name) && x.Phone == u.Phone {
			return fmt.Errorf("%w: users_identity_uq", repository.ErrDuplicate)
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// ─── Identities ─────────────────────────────────────────────────────

type memIdentities memStore

func (s *memIdentities) GetByUserID(_ context.Context, userID uuid.UUID) (*model.ExternalIdentityLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memIdentities) GetByChatID(_ context.Context, chatID int64) (*model.ExternalIdentityLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.ChatID == chatID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memIdentities) Link(_ context.Context, l *model.ExternalIdentityLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[l.UserID]; ok {
		return repository.ErrDuplicate
	}
	for _, x := range s.links {
		if x.ChatID == l.ChatID {
			return repository.ErrDuplicate
		}
	}
	l.LinkedAt = time.Now()
	cp := *l
	s.links[l.UserID] = &cp
	return nil
}

// ─── Requests ───────────────────────────────────────────────────────

type memRequests memStore

func (s *memRequests) Create(_ context.Context, req *model.ExamRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.requests {
		if x.UserID == req.UserID && x.CenterID == req.CenterID && x.ExamType == req.ExamType &&
			x.Status != model.RequestStatusRejected {
			return fmt.Errorf("%w: exam_requests_active_uq", repository.ErrDuplicate)
		}
	}
	req.ID = uuid.New()
	req.Status = model.RequestStatusPending
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *memRequests) GetByID(_ context.Context, id uuid.UUID) (*model.ExamRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memRequests) list(keep func(*model.ExamRequest) bool) []model.ExamRequest {
	var out []model.ExamRequest
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out
}

func (s *memRequests) ListByCenter(_ context.Context, centerID string, status *model.RequestStatus) ([]model.ExamRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(r *model.ExamRequest) bool {
		return r.CenterID == centerID && (status == nil || r.Status == *status)
	}), nil
}

func (s *memRequests) ListByUser(_ context.Context, userID uuid.UUID) ([]model.ExamRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(r *model.ExamRequest) bool { return r.UserID == userID }), nil
}

func (s *memRequests) review(id uuid.UUID, to model.RequestStatus, reviewerID uuid.UUID, at time.Time) (*model.ExamRequest, error) {
	r, ok := s.requests[id]
	if !ok || r.Status != model.RequestStatusPending {
		return nil, repository.ErrStateChanged
	}
	r.Status = to
	r.ReviewedAt = &at
	r.ReviewedBy = &reviewerID
	cp := *r
	return &cp, nil
}

func (s *memRequests) Approve(_ context.Context, id, reviewerID uuid.UUID, at time.Time) (*model.ExamRequest, *model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var before model.ExamRequest
	if r, ok := s.requests[id]; ok {
		before = *r
	}
	req, err := s.review(id, model.RequestStatusApproved, reviewerID, at)
	if err != nil {
		return nil, nil, err
	}
	if s.attemptInsertErr != nil {
		// Rolled back together with the review.
		*s.requests[id] = before
		return nil, nil, fmt.Errorf("insert attempt: %w", s.attemptInsertErr)
	}
	a := &model.ExamAttempt{
		ID:            uuid.New(),
		UserID:        req.UserID,
		ExamRequestID: req.ID,
		CenterID:      req.CenterID,
		ExamType:      req.ExamType,
		TestID:        req.TestID,
		Status:        model.AttemptStatusReady,
		CreatedAt:     at,
	}
	s.attempts[a.ID] = a
	cp := *a
	return req, &cp, nil
}

func (s *memRequests) Reject(_ context.Context, id, reviewerID uuid.UUID, at time.Time) (*model.ExamRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.review(id, model.RequestStatusRejected, reviewerID, at)
}

// ─── Attempts ───────────────────────────────────────────────────────

type memAttempts memStore

func (s *memAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memAttempts) ListByUser(_ context.Context, userID uuid.UUID) ([]model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ExamAttempt
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memAttempts) Start(_ context.Context, id uuid.UUID, startedAt, expiresAt time.Time) (*model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok || a.Status != model.AttemptStatusReady {
		return nil, repository.ErrStateChanged
	}
	a.Status = model.AttemptStatusInProgress
	a.StartedAt = &startedAt
	a.ExpiresAt = &expiresAt
	cp := *a
	return &cp, nil
}

func (s *memAttempts) Submit(_ context.Context, attemptID uuid.UUID, sub *model.Submission) (*model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok || a.Status != model.AttemptStatusInProgress || sub.SubmittedAt.After(*a.ExpiresAt) {
		return nil, repository.ErrStateChanged
	}
	sub.ID = uuid.New()
	cp := *sub
	s.submissions[sub.ID] = &cp
	a.Status = model.AttemptStatusSubmitted
	a.SubmissionID = &sub.ID
	out := *a
	return &out, nil
}

func (s *memAttempts) MarkExpired(_ context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.attempts[id]; ok && a.TimeExpired(now) {
		a.Status = model.AttemptStatusExpired
	}
	return nil
}

func (s *memAttempts) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.attempts {
		if (a.Status == model.AttemptStatusReady || a.Status == model.AttemptStatusInProgress) &&
			a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			a.Status = model.AttemptStatusExpired
			n++
		}
	}
	return n, nil
}

// ─── Submissions ────────────────────────────────────────────────────

type memSubmissions memStore

func (s *memSubmissions) GetByID(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *memSubmissions) LatestByUser(_ context.Context, userID uuid.UUID) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.Submission
	for _, sub := range s.submissions {
		if sub.UserID == userID && (latest == nil || sub.SubmittedAt.After(latest.SubmittedAt)) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *memSubmissions) ListByCenter(_ context.Context, centerID string, graded *bool) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Submission
	for _, sub := range s.submissions {
		if sub.CenterID == centerID && (graded == nil || sub.IsGraded == *graded) {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

// ─── Scores ─────────────────────────────────────────────────────────

type memScores memStore

func (s *memScores) Get(_ context.Context, submissionID uuid.UUID) (*model.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scores[submissionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (s *memScores) Upsert(_ context.Context, sc *model.Score, gradedBy uuid.UUID, at time.Time) error {
	if s.beforeUpsert != nil {
		s.beforeUpsert()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[sc.SubmissionID]
	if !ok {
		// The scores insert trips its submission foreign key.
		return fmt.Errorf("upsert score: %w", repository.ErrReferenceMissing)
	}
	sc.UpdatedAt = at
	cp := *sc
	s.scores[sc.SubmissionID] = &cp
	sub.IsGraded = true
	sub.GradedAt = &at
	sub.GradedBy = &gradedBy
	return nil
}

func (s *memScores) DeleteCascade(_ context.Context, submissionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[submissionID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.scores, submissionID)
	for _, a := range s.attempts {
		if a.SubmissionID != nil && *a.SubmissionID == submissionID {
			a.Status = model.AttemptStatusReady
			a.StartedAt = nil
			a.ExpiresAt = nil
			a.SubmissionID = nil
			if r, ok := s.requests[a.ExamRequestID]; ok {
				r.Status = model.RequestStatusApproved
			}
		}
	}
	delete(s.submissions, submissionID)
	return nil
}

// ─── Tests ──────────────────────────────────────────────────────────

type memTests memStore

func (s *memTests) TestName(_ context.Context, id uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.tests[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return name, nil
}

// ─── Helpers ────────────────────────────────────────────────────────

// fakeClock is a settable clock shared by the services under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.PublishEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.PublishEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []model.PublishEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.PublishEvent(nil), p.events...)
}

// fixture wires every service onto one memStore and one clock.
type fixture struct {
	store     *memStore
	clock     *fakeClock
	publisher *recordingPublisher
	notified  chan error

	requests *RequestService
	attempts *AttemptService
	scores   *ScoreService
	results  *ResultService
	reg      *RegistrationService
}

func newFixture() *fixture {
	st := newMemStore()
	clock := newFakeClock()
	pub := &recordingPublisher{}
	log := zerolog.Nop()

	f := &fixture{
		store:     st,
		clock:     clock,
		publisher: pub,
		notified:  make(chan error, 16),
		requests:  NewRequestService(st.Requests(), log),
		attempts:  NewAttemptService(st.Attempts(), log),
		scores:    NewScoreService(st.Submissions(), st.Scores(), st.Users(), st.Identities(), st.Tests(), pub, log),
		results:   NewResultService(st.Attempts(), st.Submissions(), st.Scores(), st.Tests()),
		reg:       NewRegistrationService(st.Users(), st.Identities(), "exam12345", 4, log),
	}
	f.requests.now = clock.Now
	f.attempts.now = clock.Now
	f.scores.now = clock.Now
	f.results.now = clock.Now
	f.scores.notifyDone = func(err error) { f.notified <- err }
	return f
}

func (f *fixture) addStudent(login string) *model.User {
	u := &model.User{Login: login, Surname: "Karimov", Name: login, Role: model.RoleStudent}
	if err := f.store.Users().Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

var (
	superAdmin  = model.Actor{UserID: uuid.New(), Role: model.RoleSuperAdmin}
	lslAdmin    = model.Actor{UserID: uuid.New(), Role: model.RoleCenterAdmin, CenterID: "lsl"}
	otherAdmin  = model.Actor{UserID: uuid.New(), Role: model.RoleCenterAdmin, CenterID: "brt"}
	studentActr = model.Actor{UserID: uuid.New(), Role: model.RoleStudent}
)

// approvedAttempt walks a fresh request for user through approval.
func (f *fixture) approvedAttempt(userID uuid.UUID, examType string) *model.ExamAttempt {
	ctx := context.Background()
	req, err := f.requests.Create(ctx, userID, model.CreateExamRequestPayload{CenterID: "lsl", ExamType: examType})
	if err != nil {
		panic(err)
	}
	_, a, err := f.requests.Approve(ctx, lslAdmin, req.ID)
	if err != nil {
		panic(err)
	}
	return a
}

// submittedAttempt goes one step further: started and submitted.
func (f *fixture) submittedAttempt(userID uuid.UUID) (*model.ExamAttempt, *model.Submission) {
	ctx := context.Background()
	a := f.approvedAttempt(userID, "IELTS")
	if _, err := f.attempts.Start(ctx, userID, a.ID); err != nil {
		panic(err)
	}
	f.clock.Advance(time.Hour)
	done, sub, err := f.attempts.Submit(ctx, userID, a.ID, model.SubmitAttemptPayload{
		FullName: "Karimov Javohir",
		Answers:  map[string]string{"q1": "A"},
	})
	if err != nil {
		panic(err)
	}
	return done, sub
}
