package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	caseAuth "github.com/MrEthical07/caseAuth"
)

const findActiveUserQuery = `SELECT u.id, u.login, u.name, u.email, u.password, u.mfa_secrets,
       u.webauthn_credentials, u.active, u.ctx_case, c.name
  FROM users u
  LEFT JOIN cases c ON c.case_id = u.ctx_case
 WHERE u.login = $1 AND u.active`

const userGroupsQuery = `SELECT g.group_name
  FROM user_group ug
  JOIN groups g ON g.group_id = ug.group_id
 WHERE ug.user_id = $1
 ORDER BY g.group_name`

const setCurrentCaseQuery = `UPDATE users SET ctx_case = $1, ctx_human_case = $2 WHERE id = $3`

// UserRepository implements [caseAuth.UserStore].
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// FindActive loads the active user with login and the names of its groups.
func (r *UserRepository) FindActive(ctx context.Context, login string) (caseAuth.UserRecord, error) {
	var (
		u        caseAuth.UserRecord
		mfa      sql.NullString
		caseID   sql.NullInt64
		caseName sql.NullString
	)

	err := r.db.QueryRowContext(ctx, findActiveUserQuery, login).Scan(
		&u.ID, &u.Login, &u.Name, &u.Email, &u.PasswordHash, &mfa,
		&u.WebAuthnCredentials, &u.Active, &caseID, &caseName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return caseAuth.UserRecord{}, caseAuth.ErrUserNotFound
		}
		return caseAuth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}

	u.MFASecrets = mfa.String
	if caseID.Valid {
		id := caseID.Int64
		u.CurrentCaseID = &id
		u.CurrentCaseName = caseName.String
	}

	groups, err := r.groups(ctx, u.ID)
	if err != nil {
		return caseAuth.UserRecord{}, err
	}
	u.Groups = groups

	return u, nil
}

// SetCurrentCase persists c as the user's current case.
func (r *UserRepository) SetCurrentCase(ctx context.Context, userID int64, c caseAuth.Case) error {
	res, err := r.db.ExecContext(ctx, setCurrentCaseQuery, c.ID, c.Name, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return caseAuth.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) groups(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, userGroupsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
