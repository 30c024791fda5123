package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/course"
)

// Token states. A token transitions unused -> reserved -> used, or back to
// unused when a reservation is released or goes stale. It is never deleted:
// used tokens are kept for audit and analytics provenance.
const (
	StatusUnused   = "unused"
	StatusReserved = "reserved"
	StatusUsed     = "used"
)

type Token struct {
	ID            string      `json:"-"`
	Value         string      `json:"token"`
	LecturerID    int         `json:"lecturer_id"`
	LecturerEmail string      `json:"lecturer_email"`
	CourseCode    string      `json:"course_code"`
	SessionKey    string      `json:"session_key"`
	SessionLabel  string      `json:"session_label"`
	Semester      string      `json:"semester"`
	Status        string      `json:"-"`
	ReservationID null.String `json:"-"`
	ReservedAt    null.Time   `json:"-"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UsedAt        null.Time   `json:"used_at"`
}

func (t Token) Used() bool {
	return t.Status == StatusUsed
}

// reservedSince reports whether the token holds a reservation made at or after
// the cutoff; older reservations are stale and count as free.
func (t Token) reservedSince(cutoff time.Time) bool {
	return t.Status == StatusReserved && t.ReservedAt.Valid && !t.ReservedAt.Time.Before(cutoff)
}

// Reservation is a provisional hold on a token. It must be committed or
// released; a reservation left hanging expires after the store's TTL.
type Reservation struct {
	ID           string
	TokenID      string
	TokenValue   string
	LecturerID   int
	CourseCode   string
	SessionKey   string
	SessionLabel string
	Semester     string
}

// NewBatch contains information needed to issue a batch of feedback tokens.
type NewBatch struct {
	LecturerID   int    `json:"lecturer_id" validate:"required"`
	CourseCode   string `json:"course_code" validate:"required,min=2,max=50,coursecode"`
	SessionKey   string `json:"session_key" validate:"omitempty,max=32,sessionkey"`
	SessionLabel string `json:"session_label" validate:"omitempty,max=120"`
	Quantity     int    `json:"quantity" validate:"required,min=1,max=500"`
}

func (nb *NewBatch) Validate() error {
	nb.CourseCode = course.NormalizeCode(nb.CourseCode)
	nb.SessionKey = core.CleanString(nb.SessionKey)
	nb.SessionLabel = core.CleanString(nb.SessionLabel)
	return core.Validate.Struct(nb)
}

// Batch is the result of issuing tokens: all values share one
// lecturer/course/session/semester stamp.
type Batch struct {
	CourseCode   string   `json:"course_code"`
	LecturerID   int      `json:"lecturer_id"`
	SessionKey   string   `json:"session_key"`
	SessionLabel string   `json:"session_label"`
	Tokens       []string `json:"tokens"`
}

// Status is the read-only answer to "can this token still be submitted?".
type Status struct {
	Token         string `json:"token"`
	Valid         bool   `json:"valid"`
	IsUsed        bool   `json:"is_used"`
	CanSubmit     bool   `json:"can_submit"`
	CourseCode    string `json:"course_code,omitempty"`
	LecturerEmail string `json:"lecturer_email,omitempty"`
	SessionKey    string `json:"session_key,omitempty"`
	SessionLabel  string `json:"session_label,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// QueryFilter narrows token listings and exports.
// Semester is a calendar value like "HARMATTAN-2025"; the store resolves it to
// the Since/Until bounds before hitting the repository.
type QueryFilter struct {
	CourseCode string `query:"course_code"`
	LecturerID int    `query:"lecturer_id"`
	Semester   string `query:"semester"`
	Since      time.Time
	Until      time.Time
}

func (qf *QueryFilter) Clean() {
	qf.CourseCode = course.NormalizeCode(qf.CourseCode)
	qf.Semester = core.CleanString(qf.Semester)
}

// CourseUsage is one row of the per-course token tracker.
type CourseUsage struct {
	CourseCode  string  `json:"course_code"`
	UsedTokens  int     `json:"used_tokens"`
	TotalTokens int     `json:"total_tokens"`
	UsagePct    float64 `json:"usage_pct"`
}

// newValue generates a cryptographically random, url-safe token value.
func newValue() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating token value")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// defaultSessionLabel mirrors the label shown when an admin does not name the
// lecture session.
func defaultSessionLabel(courseCode, sessionKey string) string {
	return fmt.Sprintf("%s session %s", courseCode, sessionKey)
}
