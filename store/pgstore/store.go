// Package pgstore implements accountcore.CredentialStore on PostgreSQL using
// database/sql with the pgx driver. Schema migrations are embedded and
// applied with goose.
//
// Account ids are BIGSERIAL keys formatted as decimal strings at this
// boundary, so callers always see string ids.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/store/pgstore/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

const selectColumns = `id, identity, credential_hash, display_name, role, verified,
	challenge_hash, challenge_expires_at, challenge_attempts, token_epoch, created_at, updated_at`

// Store is a PostgreSQL-backed credential store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to dsn through the pgx driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// New returns a Store over db. The schema must already be migrated.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Create(ctx context.Context, account accountcore.Account) (accountcore.Account, error) {
	stored := account.Clone()
	now := s.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	hash, expires, attempts := challengeColumns(stored.Challenge)

	query :=
		`INSERT INTO accounts (identity, credential_hash, display_name, role, verified,
			challenge_hash, challenge_expires_at, challenge_attempts, token_epoch, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		stored.Identity, stored.CredentialHash, stored.DisplayName, stored.Role, stored.Verified,
		hash, expires, attempts, int64(stored.TokenEpoch), stored.CreatedAt, stored.UpdatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return accountcore.Account{}, accountcore.ErrAlreadyExists
		}
		return accountcore.Account{}, fmt.Errorf("%w: %v", accountcore.ErrStoreUnavailable, err)
	}

	stored.ID = strconv.FormatInt(id, 10)
	return stored, nil
}

func (s *Store) GetByIdentity(ctx context.Context, identity string) (accountcore.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE identity = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, identity))
}

func (s *Store) GetByID(ctx context.Context, id string) (accountcore.Account, error) {
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return accountcore.Account{}, accountcore.ErrAccountNotFound
	}
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, key))
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// result in the same transaction. fn runs exactly once.
func (s *Store) Update(ctx context.Context, identity string, fn func(*accountcore.Account) error) (accountcore.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return accountcore.Account{}, fmt.Errorf("%w: %v", accountcore.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + selectColumns + ` FROM accounts WHERE identity = $1 FOR UPDATE`
	current, err := scanAccount(tx.QueryRowContext(ctx, query, identity))
	if err != nil {
		return accountcore.Account{}, err
	}

	work := current.Clone()
	if err := fn(&work); err != nil {
		return accountcore.Account{}, err
	}
	work.ID = current.ID
	work.Identity = current.Identity
	work.CreatedAt = current.CreatedAt

	key, err := strconv.ParseInt(work.ID, 10, 64)
	if err != nil {
		return accountcore.Account{}, fmt.Errorf("%w: bad id %q", accountcore.ErrStoreUnavailable, work.ID)
	}

	hash, expires, attempts := challengeColumns(work.Challenge)
	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET credential_hash = $2, display_name = $3, role = $4, verified = $5,
			challenge_hash = $6, challenge_expires_at = $7, challenge_attempts = $8,
			token_epoch = $9, updated_at = $10
		 WHERE id = $1`,
		key, work.CredentialHash, work.DisplayName, work.Role, work.Verified,
		hash, expires, attempts, int64(work.TokenEpoch), work.UpdatedAt,
	)
	if err != nil {
		return accountcore.Account{}, fmt.Errorf("%w: %v", accountcore.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return accountcore.Account{}, fmt.Errorf("%w: %v", accountcore.ErrStoreUnavailable, err)
	}
	return work, nil
}

func challengeColumns(c *accountcore.OTPChallenge) (sql.NullString, sql.NullTime, int) {
	if c == nil {
		return sql.NullString{}, sql.NullTime{}, 0
	}
	return sql.NullString{String: c.CodeHash, Valid: true},
		sql.NullTime{Time: c.ExpiresAt.UTC(), Valid: true},
		c.Attempts
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (accountcore.Account, error) {
	var (
		a        accountcore.Account
		id       int64
		hash     sql.NullString
		expires  sql.NullTime
		attempts int
		epoch    int64
	)
	err := row.Scan(&id, &a.Identity, &a.CredentialHash, &a.DisplayName, &a.Role, &a.Verified,
		&hash, &expires, &attempts, &epoch, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accountcore.Account{}, accountcore.ErrAccountNotFound
		}
		return accountcore.Account{}, fmt.Errorf("%w: %v", accountcore.ErrStoreUnavailable, err)
	}

	a.ID = strconv.FormatInt(id, 10)
	a.TokenEpoch = uint32(epoch)
	if hash.Valid {
		a.Challenge = &accountcore.OTPChallenge{
			CodeHash:  hash.String,
			ExpiresAt: expires.Time,
			Attempts:  attempts,
		}
	}
	return a, nil
}
