// Package storage is the gateway's source of truth: users, visits, refresh
// tokens and referral contests live in Postgres, which also serializes
// conflicting writes (atomic referral increments, first-visit immutability).
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/silvesterwali/daily-gateway/domain"
)

// Store provides access to the relational store.
type Store struct {
	db *sql.DB
}

// New opens a Store over the given Postgres URL and verifies connectivity.
func New(ctx context.Context, dbURL string) (*Store, error) {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle, used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

const userColumns = `id, name, email, COALESCE(image, ''), COALESCE(username, ''),
	COALESCE(bio, ''), COALESCE(company, ''), COALESCE(title, ''),
	COALESCE(twitter, ''), COALESCE(github, ''), COALESCE(hashnode, ''),
	COALESCE(portfolio, ''), premium, reputation, "acceptedMarketing",
	"infoConfirmed", "createdAt"`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var createdAt time.Time
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Image, &u.Username,
		&u.Bio, &u.Company, &u.Title,
		&u.Twitter, &u.Github, &u.Hashnode,
		&u.Portfolio, &u.Premium, &u.Reputation, &u.AcceptedMarketing,
		&u.InfoConfirmed, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = &createdAt
	return &u, nil
}

// GetUserByID fetches a user row by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, id))
}

// GetUserByIDOrHandle resolves a referral token that may hold either a user id
// or a username.
func (s *Store) GetUserByIDOrHandle(ctx context.Context, ref string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1 OR username = $1`
	return scanUser(s.db.QueryRowContext(ctx, q, ref))
}

// UpdateUser overwrites the mutable profile fields. Unique-constraint
// violations come back as DuplicateError naming the offending field.
func (s *Store) UpdateUser(ctx context.Context, id string, u domain.User) error {
	const q = `
UPDATE users SET
	name = $2, email = $3, username = NULLIF($4, ''), bio = NULLIF($5, ''),
	company = NULLIF($6, ''), title = NULLIF($7, ''), twitter = NULLIF($8, ''),
	github = NULLIF($9, ''), hashnode = NULLIF($10, ''), portfolio = NULLIF($11, ''),
	"acceptedMarketing" = $12, "infoConfirmed" = $13, "updatedAt" = now()
WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id,
		u.Name, u.Email, u.Username, u.Bio,
		u.Company, u.Title, u.Twitter,
		u.Github, u.Hashnode, u.Portfolio,
		u.AcceptedMarketing, u.InfoConfirmed,
	)
	if err != nil {
		if field, ok := duplicateField(err); ok {
			return DuplicateError{Field: field}
		}
		return err
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ra == 0 {
		return ErrNotFound
	}
	return nil
}

// duplicateField maps a unique violation to the profile field it guards.
func duplicateField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}
	for _, field := range []string{"username", "twitter", "github", "hashnode", "email"} {
		if strings.Contains(pgErr.ConstraintName, field) {
			return field, true
		}
	}
	return "", false
}

// IsDuplicateEmail reports whether another user already owns the email.
func (s *Store) IsDuplicateEmail(ctx context.Context, userID, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id != $2)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, email, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// GetRefreshToken looks up a stored refresh credential.
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	const q = `SELECT token, "userId", "createdAt" FROM refresh_tokens WHERE token = $1`
	var rt domain.RefreshToken
	err := s.db.QueryRowContext(ctx, q, token).Scan(&rt.Token, &rt.UserID, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rt, nil
}

// GetUserRoles lists the roles granted to a user.
func (s *Store) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	const q = `SELECT role FROM user_roles WHERE "userId" = $1 ORDER BY role`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetUserProvider returns the identity provider the user signed up with, or
// an empty string when unknown.
func (s *Store) GetUserProvider(ctx context.Context, userID string) (string, error) {
	const q = `SELECT provider FROM user_providers WHERE "userId" = $1 LIMIT 1`
	var provider string
	err := s.db.QueryRowContext(ctx, q, userID).Scan(&provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return provider, nil
}
