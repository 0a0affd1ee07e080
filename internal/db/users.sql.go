package db

import (
	"context"

	"adminportal/requests/internal/model"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, active, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &u.Active, &u.CreatedAt)
	u.Role = model.Role(role)
	return u, err
}

const getUser = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id int64) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx, getUser, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

type UpsertUserParams struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         model.Role
	Active       bool
}

// upsertUser keeps the identity sequence ahead of explicitly provisioned ids.
const upsertUser = `
WITH upserted AS (
    INSERT INTO users (id, email, password_hash, first_name, last_name, role, active)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT (id) DO UPDATE
    SET email = EXCLUDED.email,
        password_hash = EXCLUDED.password_hash,
        first_name = EXCLUDED.first_name,
        last_name = EXCLUDED.last_name,
        role = EXCLUDED.role,
        active = EXCLUDED.active
    RETURNING ` + userColumns + `
), bump AS (
    SELECT setval(pg_get_serial_sequence('users', 'id'), GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), $1))
)
SELECT upserted.* FROM upserted, bump`

func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx, upsertUser,
		arg.ID,
		arg.Email,
		arg.PasswordHash,
		arg.FirstName,
		arg.LastName,
		string(arg.Role),
		arg.Active,
	))
}
