package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stemsi/examhub/internal/model"
	"golang.org/x/crypto/bcrypt"
)

func karimov(chatID int64) model.Registration {
	return model.Registration{Surname: "Karimov", Name: "Javohir", Phone: "+998901234567", ChatID: chatID}
}

func TestRegister_CreatesThenLinks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.reg.Register(ctx, karimov(0))
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	if !first.Created || first.Login != "karimov_4567" || first.Password != "exam12345" {
		t.Fatalf("first credentials = %+v", first)
	}
	user, _ := f.store.Users().GetByID(ctx, first.UserID)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("exam12345")); err != nil {
		t.Fatalf("stored password does not match default: %v", err)
	}

	// Same identity, different letter case, now from a chat.
	reg := karimov(555)
	reg.Surname, reg.Name = "KARIMOV", "javohir"
	second, err := f.reg.Register(ctx, reg)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if second.Created || second.UserID != first.UserID || second.Password != "" {
		t.Fatalf("second credentials = %+v, want existing user without password", second)
	}

	if n := len(f.store.users); n != 1 {
		t.Fatalf("users = %d, want 1", n)
	}
	link, err := f.store.Identities().GetByUserID(ctx, first.UserID)
	if err != nil || link.ChatID != 555 {
		t.Fatalf("link = %+v, %v; want chat 555", link, err)
	}
}

func TestRegister_SameChatIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.reg.Register(ctx, karimov(555))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	again, err := f.reg.Register(ctx, karimov(555))
	if err != nil {
		t.Fatalf("again: %v", err)
	}
	if again.UserID != first.UserID || again.Login != first.Login || again.Created {
		t.Fatalf("again = %+v, want same user", again)
	}
}

func TestRegister_OtherChatIsConflictWithoutMutation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.reg.Register(ctx, karimov(555))
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	_, err = f.reg.Register(ctx, karimov(999))
	if !errors.Is(err, ErrAlreadyLinked) || !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want already linked conflict", err)
	}

	link, _ := f.store.Identities().GetByUserID(ctx, first.UserID)
	if link.ChatID != 555 {
		t.Fatalf("link chat = %d, want 555 unchanged", link.ChatID)
	}
	if _, err := f.store.Identities().GetByChatID(ctx, 999); err == nil {
		t.Fatal("chat 999 got linked")
	}
}

func TestRegister_ChatAlreadyUsedByAnotherUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.reg.Register(ctx, karimov(555)); err != nil {
		t.Fatalf("first: %v", err)
	}
	other := model.Registration{Surname: "Aliyeva", Name: "Dilnoza", Phone: "+998907654321", ChatID: 555}
	if _, err := f.reg.Register(ctx, other); !errors.Is(err, ErrChatLinkedElsewhere) {
		t.Fatalf("err = %v, want chat linked elsewhere", err)
	}
	if n := len(f.store.users); n != 1 {
		t.Fatalf("users = %d, want 1 (no account for the rejected registration)", n)
	}
}

func TestRegister_LoginCollisionGetsSuffix(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a, err := f.reg.Register(ctx, karimov(0))
	if err != nil {
		t.Fatalf("a: %v", err)
	}
	b, err := f.reg.Register(ctx, model.Registration{Surname: "Karimov", Name: "Aziz", Phone: "+998911114567"})
	if err != nil {
		t.Fatalf("b: %v", err)
	}
	if a.Login != "karimov_4567" || b.Login != "karimov_45672" {
		t.Fatalf("logins = %q, %q", a.Login, b.Login)
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture()
	_, err := f.reg.Register(context.Background(), model.Registration{Surname: "Karimov", Phone: "+998901234567"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestResolveChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.reg.ResolveChat(ctx, 555); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unlinked: err = %v, want not found", err)
	}
	creds, err := f.reg.Register(ctx, karimov(555))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	u, err := f.reg.ResolveChat(ctx, 555)
	if err != nil || u.ID != creds.UserID {
		t.Fatalf("resolve = %+v, %v", u, err)
	}
}

func TestLoginBase(t *testing.T) {
	tests := []struct {
		surname, phone, want string
	}{
		{"Karimov", "+998901234567", "karimov_4567"},
		{"O'Neil", "+12025550123", "oneil_0123"},
		{"Каримов", "+998901234567", "student_4567"},
		{"Lee", "", "lee"},
	}
	for _, tt := range tests {
		if got := loginBase(tt.surname, tt.phone); got != tt.want {
			t.Errorf("loginBase(%q, %q) = %q, want %q", tt.surname, tt.phone, got, tt.want)
		}
	}
}
