package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examhub/internal/model"
)

const userColumns = `id, login, password_hash, surname, name, phone, role, center_id, created_at, updated_at`

// UserRepository handles directory user data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row scanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Surname, &u.Name, &u.Phone,
		&u.Role, &u.CenterID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByLogin retrieves a user by their unique login.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = $1`, login))
}

// FindByIdentity looks a user up by the registration triple.
// Names compare case-insensitively; phone must already be normalized.
func (r *UserRepository) FindByIdentity(ctx context.Context, surname, name, phone string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(surname) = lower($1) AND lower(name) = lower($2) AND phone = $3`,
		surname, name, phone))
}

// Create inserts a new user. Returns ErrDuplicateLogin when the login is
// taken and ErrDuplicate when the identity triple already exists.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, surname, name, phone, role, center_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		u.Login, u.PasswordHash, u.Surname, u.Name, u.Phone, u.Role, u.CenterID,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return translate(err)
}
