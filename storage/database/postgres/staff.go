package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core/staff"
)

type StaffRepo struct {
	db *sqlx.DB
}

func NewStaffRepo(db *sqlx.DB) *StaffRepo { return &StaffRepo{db: db} }

var _ staff.Repository = (*StaffRepo)(nil)

type staffRow struct {
	ID           int       `db:"id"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r staffRow) account() staff.Account {
	return staff.Account{
		ID:           r.ID,
		Email:        r.Email,
		Role:         r.Role,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

func (repo *StaffRepo) CreateAccount(ctx context.Context, acc staff.Account) (staff.Account, error) {
	const q = `
	INSERT INTO staff_account (email, role, is_active, password_hash, created_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id`

	err := repo.db.QueryRowContext(ctx, q, acc.Email, acc.Role, acc.IsActive, acc.PasswordHash, acc.CreatedAt).
		Scan(&acc.ID)
	if err != nil {
		if isUniqueViolation(err, "") {
			return staff.Account{}, staff.ErrEmailExists
		}
		return staff.Account{}, errors.Wrap(err, "inserting staff account")
	}
	return acc, nil
}

func (repo *StaffRepo) GetAccountByID(ctx context.Context, id int) (staff.Account, error) {
	const q = `SELECT * FROM staff_account WHERE id = $1`

	var row staffRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return staff.Account{}, staff.ErrNotFound
		}
		return staff.Account{}, errors.Wrap(err, "getting staff account")
	}
	return row.account(), nil
}

func (repo *StaffRepo) GetAccountByEmail(ctx context.Context, email string) (staff.Account, error) {
	const q = `SELECT * FROM staff_account WHERE lower(email) = lower($1)`

	var row staffRow
	if err := repo.db.GetContext(ctx, &row, q, email); err != nil {
		if isNoRows(err) {
			return staff.Account{}, staff.ErrNotFound
		}
		return staff.Account{}, errors.Wrap(err, "getting staff account by email")
	}
	return row.account(), nil
}

func (repo *StaffRepo) QueryLecturers(ctx context.Context) ([]staff.Account, error) {
	const q = `
	SELECT * FROM staff_account
	WHERE role = $1 AND is_active
	ORDER BY email`

	var rows []staffRow
	if err := repo.db.SelectContext(ctx, &rows, q, staff.RoleLecturer); err != nil {
		return nil, errors.Wrap(err, "querying lecturers")
	}
	accounts := make([]staff.Account, len(rows))
	for i, row := range rows {
		accounts[i] = row.account()
	}
	return accounts, nil
}

func (repo *StaffRepo) UpdatePasswordHash(ctx context.Context, id int, hash []byte) error {
	const q = `UPDATE staff_account SET password_hash = $2 WHERE id = $1`

	res, err := repo.db.ExecContext(ctx, q, id, hash)
	if err != nil {
		return errors.Wrap(err, "updating password hash")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return staff.ErrNotFound
	}
	return nil
}
