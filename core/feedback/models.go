package feedback

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/tmwangi/sauti/core"
)

// ReasonDuplicate marks attempts blocked by the one-submission-per-session
// guard. The content reasons (profanity, watchlist, insufficient,
// unavailable) come from the screening package.
const ReasonDuplicate = "duplicate"

// Feedback is an accepted, anonymous submission. It never stores who wrote
// it; TokenID only proves a valid token was burned for it.
type Feedback struct {
	ID            string    `json:"id"`
	TokenID       string    `json:"-"`
	LecturerID    int       `json:"lecturer_id"`
	LecturerEmail string    `json:"lecturer_email,omitempty"`
	CourseCode    string    `json:"course_code"`
	SessionKey    string    `json:"session_key"`
	Rating        int       `json:"rating"`
	Text          string    `json:"text"`
	CleanedText   string    `json:"cleaned_text,omitempty"`
	IsFlagged     bool      `json:"is_flagged"`
	Semester      string    `json:"semester"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// RejectedAttempt records a submission that never became feedback, kept for
// the moderation queue. The comment text is preserved verbatim so moderators
// can judge the rejection.
type RejectedAttempt struct {
	ID            string      `json:"id"`
	TokenID       string      `json:"-"`
	LecturerID    int         `json:"lecturer_id"`
	LecturerEmail string      `json:"lecturer_email,omitempty"`
	CourseCode    string      `json:"course_code"`
	SessionKey    string      `json:"session_key"`
	Text          string      `json:"text"`
	Reason        string      `json:"reason"`
	IsReviewed    bool        `json:"is_reviewed"`
	ReviewedBy    null.Int    `json:"reviewed_by,omitempty"`
	ReviewedAt    null.Time   `json:"reviewed_at,omitempty"`
	ReviewNote    null.String `json:"review_note,omitempty"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
}

// NewSubmission is the student-facing payload. StudentRef is an opaque
// client identifier used only to derive the anonymous session key; it is
// never persisted or logged.
type NewSubmission struct {
	Token      string `json:"token" validate:"required"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Text       string `json:"text" validate:"required,max=2000"`
	StudentRef string `json:"student_ref" validate:"omitempty,max=128"`
}

func (ns *NewSubmission) Validate() error {
	ns.Token = core.CleanString(ns.Token)
	ns.Text = core.CleanString(ns.Text)
	ns.StudentRef = core.CleanString(ns.StudentRef)
	return core.Validate.Struct(ns)
}

// AnonStudentKey derives the irreversible per-student-per-session key behind
// the duplicate guard. Only the HMAC digest is ever stored, so the student
// reference cannot be recovered from the database.
func AnonStudentKey(secret []byte, studentRef, courseCode, sessionKey string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(studentRef))
	mac.Write([]byte{0})
	mac.Write([]byte(courseCode))
	mac.Write([]byte{0})
	mac.Write([]byte(sessionKey))
	return hex.EncodeToString(mac.Sum(nil))
}
