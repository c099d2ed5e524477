package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/auth-service/internal/domain"
	apperrors "github.com/learnhub/auth-service/pkg/errors"
)

func newUserTestFixture(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewUserRepository(mock)
	return repo, mock
}

func sampleUser() *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           "6c1a62f2-9a3e-4d34-9c51-76a9f0b5e8d1",
		Name:         "Alice Smith",
		Email:        "alice@example.com",
		PasswordHash: "hash-abc",
		Role:         domain.RoleStudent,
		IsVerified:   false,
		AvatarURL:    "",
		LastLoginAt:  nil,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// userColumns returns the column names scanned by scanUser and inserted by Create.
func userColumns() []string {
	return []string{
		"id", "name", "email", "password_hash", "role",
		"is_verified", "avatar_url", "last_login_at", "created_at", "updated_at",
	}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns()).AddRow(
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
		u.IsVerified, u.AvatarURL, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestUserRepository_Create_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
			u.IsVerified, u.AvatarURL, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), u)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
			u.IsVerified, u.AvatarURL, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnError(fmt.Errorf(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`))

	err := repo.Create(context.Background(), u)

	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByID / GetByEmail
// ---------------------------------------------------------------------------

func TestUserRepository_GetByID_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(u.ID).
		WillReturnRows(userRow(u))

	got, err := repo.GetByID(context.Background(), u.ID)

	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.Email, got.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing-id")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectQuery(`SELECT (.+) FROM users\s+WHERE email = LOWER\(\$1\)`).
		WithArgs(u.Email).
		WillReturnRows(userRow(u))

	got, err := repo.GetByEmail(context.Background(), u.Email)

	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("missing@example.com").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByEmail(context.Background(), "missing@example.com")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestUserRepository_Update_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()
	u.IsVerified = true

	mock.ExpectExec("UPDATE users").
		WithArgs(
			u.Name, u.Email, u.PasswordHash, u.Role, u.IsVerified,
			u.AvatarURL, pgxmock.AnyArg(), u.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	before := u.UpdatedAt
	err := repo.Update(context.Background(), u)

	require.NoError(t, err)
	assert.True(t, u.UpdatedAt.After(before) || u.UpdatedAt.Equal(before))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectExec("UPDATE users").
		WithArgs(
			u.Name, u.Email, u.PasswordHash, u.Role, u.IsVerified,
			u.AvatarURL, pgxmock.AnyArg(), u.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), u)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// TouchLastLogin
// ---------------------------------------------------------------------------

func TestUserRepository_TouchLastLogin(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	at := time.Now().UTC()

	mock.ExpectExec("UPDATE users SET last_login_at").
		WithArgs(at, "u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.TouchLastLogin(context.Background(), "u-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_TouchLastLogin_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	at := time.Now().UTC()

	mock.ExpectExec("UPDATE users SET last_login_at").
		WithArgs(at, "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.TouchLastLogin(context.Background(), "gone", at)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestUserRepository_Delete_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM users").
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), "u-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM users").
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "gone")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Error passthrough
// ---------------------------------------------------------------------------

func TestUserRepository_Create_DatabaseError(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()
	dbErr := errors.New("connection reset")

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
			u.IsVerified, u.AvatarURL, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnError(dbErr)

	err := repo.Create(context.Background(), u)

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrAlreadyExists)
}
