package inmem

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tmwangi/sauti/core/staff"
)

type StaffRepo struct {
	db *DB
}

func NewStaffRepo(db *DB) *StaffRepo { return &StaffRepo{db: db} }

var _ staff.Repository = (*StaffRepo)(nil)

func (r *StaffRepo) CreateAccount(ctx context.Context, acc staff.Account) (staff.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, a := range r.db.accounts {
		if strings.EqualFold(a.Email, acc.Email) {
			return staff.Account{}, staff.ErrEmailExists
		}
	}
	acc.ID = r.db.nextAccountID
	r.db.nextAccountID++
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	r.db.accounts = append(r.db.accounts, acc)
	return acc, nil
}

func (r *StaffRepo) GetAccountByID(ctx context.Context, id int) (staff.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, a := range r.db.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return staff.Account{}, staff.ErrNotFound
}

func (r *StaffRepo) GetAccountByEmail(ctx context.Context, email string) (staff.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, a := range r.db.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return staff.Account{}, staff.ErrNotFound
}

func (r *StaffRepo) QueryLecturers(ctx context.Context) ([]staff.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var lecturers []staff.Account
	for _, a := range r.db.accounts {
		if a.IsLecturer() && a.IsActive {
			lecturers = append(lecturers, a)
		}
	}
	sort.Slice(lecturers, func(i, j int) bool { return lecturers[i].Email < lecturers[j].Email })
	return lecturers, nil
}

func (r *StaffRepo) UpdatePasswordHash(ctx context.Context, id int, hash []byte) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i := range r.db.accounts {
		if r.db.accounts[i].ID == id {
			r.db.accounts[i].PasswordHash = hash
			return nil
		}
	}
	return staff.ErrNotFound
}
