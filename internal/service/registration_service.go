package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/repository"
)

// maxLoginAttempts bounds the suffix search for a free login.
const maxLoginAttempts = 20

// RegistrationService creates directory users from chat registrations and
// links chats to them. Registration is idempotent by (surname, name, phone).
type RegistrationService struct {
	users           UserStore
	identities      IdentityStore
	defaultPassword string
	bcryptCost      int
	log             zerolog.Logger
}

// NewRegistrationService creates a new RegistrationService. Accounts it
// creates get defaultPassword.
func NewRegistrationService(users UserStore, identities IdentityStore, defaultPassword string, bcryptCost int, log zerolog.Logger) *RegistrationService {
	return &RegistrationService{
		users:           users,
		identities:      identities,
		defaultPassword: defaultPassword,
		bcryptCost:      bcryptCost,
		log:             log.With().Str("component", "registration_service").Logger(),
	}
}

// Register finds or creates the user matching reg and, when reg carries a
// chat, links it. A user already linked to another chat is a conflict and
// nothing is changed.
func (s *RegistrationService) Register(ctx context.Context, reg model.Registration) (*model.Credentials, error) {
	reg.Surname = strings.TrimSpace(reg.Surname)
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Phone = strings.TrimSpace(reg.Phone)
	if reg.Surname == "" || reg.Name == "" || reg.Phone == "" {
		return nil, validationf("surname, name and phone are required")
	}

	user, err := s.users.FindByIdentity(ctx, reg.Surname, reg.Name, reg.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if reg.ChatID != 0 {
		if err := s.checkChatFree(ctx, reg.ChatID, user); err != nil {
			return nil, err
		}
	}

	creds := &model.Credentials{}
	if user == nil {
		user, creds.Created, err = s.createUser(ctx, reg)
		if err != nil {
			return nil, err
		}
		if creds.Created {
			creds.Password = s.defaultPassword
		}
	}
	creds.UserID = user.ID
	creds.Login = user.Login

	if reg.ChatID != 0 {
		if err := s.link(ctx, user, reg); err != nil {
			return nil, err
		}
	}
	return creds, nil
}

// ResolveChat returns the user linked to a chat.
func (s *RegistrationService) ResolveChat(ctx context.Context, chatID int64) (*model.User, error) {
	link, err := s.identities.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("chat is not registered")
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	user, err := s.users.GetByID(ctx, link.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// checkChatFree fails when the chat already belongs to someone other than user.
func (s *RegistrationService) checkChatFree(ctx context.Context, chatID int64, user *model.User) error {
	link, err := s.identities.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get link: %w", err)
	}
	if user == nil || link.UserID != user.ID {
		return ErrChatLinkedElsewhere
	}
	return nil
}

func (s *RegistrationService) link(ctx context.Context, user *model.User, reg model.Registration) error {
	existing, err := s.identities.GetByUserID(ctx, user.ID)
	switch {
	case err == nil:
		if existing.ChatID == reg.ChatID {
			return nil
		}
		return ErrAlreadyLinked
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("get link: %w", err)
	}

	l := &model.ExternalIdentityLink{UserID: user.ID, ChatID: reg.ChatID}
	if reg.Username != "" {
		username := reg.Username
		l.Username = &username
	}
	if err := s.identities.Link(ctx, l); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("link chat: %w", err)
		}
		// Lost a race with a concurrent registration; decide on what won.
		won, gerr := s.identities.GetByUserID(ctx, user.ID)
		if gerr == nil {
			if won.ChatID == reg.ChatID {
				return nil
			}
			return ErrAlreadyLinked
		}
		return ErrChatLinkedElsewhere
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Int64("chat_id", reg.ChatID).
		Msg("Chat linked")
	return nil
}

// createUser inserts a student with a generated login. A concurrent
// registration of the same identity is resolved by re-reading it.
func (s *RegistrationService) createUser(ctx context.Context, reg model.Registration) (*model.User, bool, error) {
	hash, err := HashPassword(s.defaultPassword, s.bcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	base := loginBase(reg.Surname, reg.Phone)
	for i := 1; i <= maxLoginAttempts; i++ {
		login := base
		if i > 1 {
			login = base + strconv.Itoa(i)
		}
		u := &model.User{
			Login:        login,
			PasswordHash: hash,
			Surname:      reg.Surname,
			Name:         reg.Name,
			Phone:        reg.Phone,
			Role:         model.RoleStudent,
		}
		err := s.users.Create(ctx, u)
		switch {
		case err == nil:
			s.log.Info().Str("user_id", u.ID.String()).Str("login", login).Msg("Student registered")
			return u, true, nil
		case errors.Is(err, repository.ErrDuplicateLogin):
			continue
		case errors.Is(err, repository.ErrDuplicate):
			existing, ferr := s.users.FindByIdentity(ctx, reg.Surname, reg.Name, reg.Phone)
			if ferr != nil {
				return nil, false, fmt.Errorf("find user after conflict: %w", ferr)
			}
			return existing, false, nil
		default:
			return nil, false, fmt.Errorf("create user: %w", err)
		}
	}
	return nil, false, fmt.Errorf("%w: no free login for %q", ErrConflict, base)
}

// loginBase builds "<surname>_<last four phone digits>" in lowercase ASCII.
func loginBase(surname, phone string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(surname) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		b.WriteString("student")
	}

	var digits []rune
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	if len(digits) > 0 {
		b.WriteByte('_')
		b.WriteString(string(digits))
	}
	return b.String()
}
