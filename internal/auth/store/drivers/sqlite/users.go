package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tradehall/tradehall/internal/auth/domain"
)

type usersRepo struct {
	db DBTX
}

const userColumns = `id, username, email, name, password_hash, verified,
	verification_code, verification_sent_at, reset_code, reset_sent_at,
	created_at, updated_at`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, name, password_hash, verified,
			verification_code, verification_sent_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		u.ID, u.Username, u.Email, u.Name, u.PasswordHash, u.Verified,
		mapOptionalString(u.VerificationCode), optionalTime(u.VerificationSentAt),
	)
	return mapUniqueViolation(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) GetUserByIdentifier(ctx context.Context, identifier string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ?`,
		identifier, identifier)
	return scanUser(row)
}

func (r *usersRepo) UpdateProfile(ctx context.Context, userID, name, username string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET name = ?, username = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		name, username, userID)
	return mapUniqueViolation(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		newHash, userID)
	return err
}

func (r *usersRepo) SetVerificationCode(ctx context.Context, userID, code string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET verification_code = ?, verification_sent_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		code, sentAt.UTC(), userID)
	return err
}

func (r *usersRepo) MarkVerified(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET verified = 1, verification_code = NULL,
			verification_sent_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		userID)
	return err
}

func (r *usersRepo) SetResetCode(ctx context.Context, userID, code string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_code = ?, reset_sent_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		code, sentAt.UTC(), userID)
	return err
}

func (r *usersRepo) ClearResetCode(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_code = NULL, reset_sent_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		userID)
	return err
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	return err
}

func (r *usersRepo) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u                domain.User
		verificationCode sql.NullString
		verificationSent sql.NullTime
		resetCode        sql.NullString
		resetSent        sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Name, &u.PasswordHash, &u.Verified,
		&verificationCode, &verificationSent, &resetCode, &resetSent,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.VerificationCode = mapNullStringPtr(verificationCode)
	u.VerificationSentAt = mapNullTimePtr(verificationSent)
	u.ResetCode = mapNullStringPtr(resetCode)
	u.ResetSentAt = mapNullTimePtr(resetSent)
	return u, nil
}

func optionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
