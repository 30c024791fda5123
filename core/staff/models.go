package staff

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tmwangi/sauti/core"
)

// Roles. Students are not staff: their identity comes from the institution's
// identity provider and only ever reaches us as a JWT subject.
const (
	RoleLecturer = "LECTURER"
	RoleAdmin    = "ADMIN"
)

type Account struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a *Account) IsLecturer() bool {
	return a.Role == RoleLecturer
}

// NewAccount contains information needed to create a staff account.
type NewAccount struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=LECTURER ADMIN"`
}

func (na *NewAccount) Validate() error {
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Role = strings.ToUpper(core.CleanString(na.Role))
	return core.Validate.Struct(na)
}
