package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examhub/internal/model"
)

// IdentityRepository handles external identity links (Telegram chats).
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func scanLink(row scanner) (*model.ExternalIdentityLink, error) {
	l := &model.ExternalIdentityLink{}
	if err := row.Scan(&l.UserID, &l.ChatID, &l.Username, &l.LinkedAt); err != nil {
		return nil, translate(err)
	}
	return l, nil
}

// GetByUserID returns the link of a directory user.
func (r *IdentityRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.ExternalIdentityLink, error) {
	return scanLink(r.pool.QueryRow(ctx,
		`SELECT user_id, chat_id, username, linked_at FROM external_identities WHERE user_id = $1`, userID))
}

// GetByChatID returns the link of an external chat.
func (r *IdentityRepository) GetByChatID(ctx context.Context, chatID int64) (*model.ExternalIdentityLink, error) {
	return scanLink(r.pool.QueryRow(ctx,
		`SELECT user_id, chat_id, username, linked_at FROM external_identities WHERE chat_id = $1`, chatID))
}

// Link inserts the link only if neither the user nor the chat is linked
// yet. Both columns carry unique constraints, so concurrent registrations
// cannot produce two links; the loser gets ErrDuplicate.
func (r *IdentityRepository) Link(ctx context.Context, l *model.ExternalIdentityLink) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO external_identities (user_id, chat_id, username)
		 VALUES ($1, $2, $3)
		 RETURNING linked_at`,
		l.UserID, l.ChatID, l.Username,
	).Scan(&l.LinkedAt)
	return translate(err)
}
