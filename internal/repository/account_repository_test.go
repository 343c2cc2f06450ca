package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/umsys/account-api/internal/models"
)

func newAccountRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "first_name", "last_name", "email", "password_hash", "role", "active",
		"verification_token", "verified_at", "reset_token", "reset_token_expires_at",
		"password_reset_at", "created_at", "updated_at",
	})
}

func TestAccountRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now()
	rows := accountRows().
		AddRow("a1", "Mr", "First", "Last", "user@example.com", "hash", models.RoleUser, true,
			nil, now, nil, nil, nil, now, now)
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE email = \$1 LIMIT 1`).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	account, err := repo.FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Equal(t, "a1", account.ID)
	require.True(t, account.IsVerified())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryFindByEmailMissing(t *testing.T) {
	db, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE email = \$1 LIMIT 1`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryFindByResetTokenExpired(t *testing.T) {
	db, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE reset_token = \$1 AND reset_token_expires_at > \$2 LIMIT 1`).
		WithArgs("tok", now).
		WillReturnError(sql.ErrNoRows)

	// an expired token is indistinguishable from an absent one
	_, err := repo.FindByResetToken(context.Background(), "tok", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryRotateRefreshToken(t *testing.T) {
	db, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	revokedAt := time.Now().UTC()
	next := &models.RefreshToken{
		ID:          "rt2",
		AccountID:   "a1",
		Token:       "new-token",
		ExpiresAt:   revokedAt.Add(7 * 24 * time.Hour),
		CreatedAt:   revokedAt,
		CreatedByIP: "10.0.0.2",
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE refresh_tokens SET revoked_at = $2, revoked_by_ip = $3, replaced_by_token = $4 WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2`)).
		WithArgs("old-token", revokedAt, "10.0.0.2", "new-token").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RotateRefreshToken(context.Background(), "old-token", revokedAt, "10.0.0.2", next)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryRotateRefreshTokenLoser(t *testing.T) {
	db, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	revokedAt := time.Now().UTC()
	next := &models.RefreshToken{
		ID:        "rt2",
		AccountID: "a1",
		Token:     "new-token",
		ExpiresAt: revokedAt.Add(time.Hour),
		CreatedAt: revokedAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE refresh_tokens SET revoked_at = $2, revoked_by_ip = $3, replaced_by_token = $4 WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2`)).
		WithArgs("old-token", revokedAt, "10.0.0.2", "new-token").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	// zero rows revoked: the token was already rotated by a concurrent call
	err := repo.RotateRefreshToken(context.Background(), "old-token", revokedAt, "10.0.0.2", next)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryRevokeRefreshTokenAlreadyRevoked(t *testing.T) {
	db, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	revokedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE refresh_tokens SET revoked_at = $2, revoked_by_ip = $3 WHERE token = $1 AND revoked_at IS NULL`)).
		WithArgs("tok", revokedAt, "10.0.0.1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RevokeRefreshToken(context.Background(), "tok", revokedAt, "10.0.0.1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	token := &models.RefreshToken{
		AccountID:   "a1",
		Token:       "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		CreatedByIP: "10.0.0.1",
	}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), token))
	require.NotEmpty(t, token.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryListFiltersAndCounts(t *testing.T) {
	db, mock, cleanup := newAccountRepoMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now()
	role := models.RoleUser
	rows := accountRows().
		AddRow("a1", "Mr", "First", "Last", "user@example.com", "hash", role, true,
			nil, now, nil, nil, nil, now, now)

	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE 1=1 AND role = \$1 ORDER BY created_at DESC LIMIT 20 OFFSET 0`).
		WithArgs(role).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts WHERE 1=1 AND role = \$1`).
		WithArgs(role).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	accounts, total, err := repo.List(context.Background(), models.AccountFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
