package staff

import (
	"context"
	"errors"
	"time"

	"github.com/tmwangi/sauti/core"
)

var (
	ErrNotFound    = errors.New("staff account not found")
	ErrEmailExists = errors.New("an account with this email already exists")
)

type (
	Repository interface {
		CreateAccount(ctx context.Context, acc Account) (Account, error)
		GetAccountByID(ctx context.Context, id int) (Account, error)
		GetAccountByEmail(ctx context.Context, email string) (Account, error)
		QueryLecturers(ctx context.Context) ([]Account, error)
		UpdatePasswordHash(ctx context.Context, id int, hash []byte) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, na NewAccount) (Account, error) {
	if err := na.Validate(); err != nil {
		return Account{}, err
	}

	acc := Account{
		Email:     na.Email,
		Role:      na.Role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, err
	}
	acc, err := svc.repo.CreateAccount(ctx, acc)
	if err == ErrEmailExists {
		return Account{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
	}
	return acc, err
}

func (svc *Service) GetByID(ctx context.Context, id int) (Account, error) {
	return svc.repo.GetAccountByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Lecturers returns all lecturer accounts ordered by email.
func (svc *Service) Lecturers(ctx context.Context) ([]Account, error) {
	return svc.repo.QueryLecturers(ctx)
}

// ResetPassword replaces the password of the account with the given email.
func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := acc.SetPassword(pwd); err != nil {
		return err
	}
	return svc.repo.UpdatePasswordHash(ctx, acc.ID, acc.PasswordHash)
}
