package sqlite

import (
	"context"
	"time"

	"github.com/tradehall/tradehall/internal/auth/domain"
	"github.com/tradehall/tradehall/internal/auth/store"
)

type sessionsRepo struct {
	db DBTX
}

const sessionColumns = `id, user_id, refresh_token_hash, device_info, ip_address,
	active, expires_at, created_at, last_accessed_at`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token_hash, device_info,
			ip_address, active, expires_at, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		s.ID, s.UserID, s.RefreshTokenHash, s.DeviceInfo, s.IPAddress,
		s.Active, s.ExpiresAt.UTC(),
	)
	return mapUniqueViolation(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	var s domain.Session
	err := row.Scan(
		&s.ID, &s.UserID, &s.RefreshTokenHash, &s.DeviceInfo, &s.IPAddress,
		&s.Active, &s.ExpiresAt, &s.CreatedAt, &s.LastAccessedAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) ListUserSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND active = 1
		ORDER BY last_accessed_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.RefreshTokenHash, &s.DeviceInfo, &s.IPAddress,
			&s.Active, &s.ExpiresAt, &s.CreatedAt, &s.LastAccessedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RotateRefreshToken is a compare-and-swap on the stored fingerprint. Two
// concurrent rotations of the same token both reach this UPDATE but only one
// matches the WHERE clause; the loser sees zero rows and gets ErrNotFound.
func (r *sessionsRepo) RotateRefreshToken(
	ctx context.Context,
	sessionID, oldHash, newHash string,
	expiresAt, lastAccessedAt time.Time,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET refresh_token_hash = ?, expires_at = ?, last_accessed_at = ?
		WHERE id = ? AND refresh_token_hash = ? AND active = 1`,
		newHash, expiresAt.UTC(), lastAccessedAt.UTC(), sessionID, oldHash)
	if err != nil {
		return mapUniqueViolation(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) DeactivateSession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0 WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeleteOldestUserSessions(ctx context.Context, userID string, keep int) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions
			WHERE user_id = ?
			ORDER BY last_accessed_at DESC, id DESC
			LIMIT -1 OFFSET ?
		)`,
		userID, keep)
	return err
}

func (r *sessionsRepo) CountUserSessions(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = ? AND active = 1`,
		userID).Scan(&count)
	return count, err
}
