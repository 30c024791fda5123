// Package inmem provides a mutex-guarded in-memory implementation of the
// repository interfaces. It backs unit tests and local development without a
// running database; the semantics (unique constraints, compare-and-swap
// reservations, not-found errors) mirror the postgres repositories.
package inmem

import (
	"sync"
	"time"

	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/feedback"
	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/core/token"
)

// DB is the shared table space. All repositories returned by New share the
// same DB and lock so cross-table operations stay consistent.
type DB struct {
	mu sync.Mutex

	accounts    []staff.Account
	assignments []course.Assignment
	tokens      []token.Token
	feedback    []feedback.Feedback
	attempts    []feedback.RejectedAttempt
	flagReviews map[string]flagReview // feedback ID -> review
	submissions map[string]bool       // anonKey|course|session
	auditLog    []audit.Entry

	nextAccountID    int
	nextAssignmentID int
}

type flagReview struct {
	feedbackID string
	reviewerID int
	note       string
	reviewedAt time.Time
}

func NewDB() *DB {
	return &DB{
		flagReviews:      make(map[string]flagReview),
		submissions:      make(map[string]bool),
		nextAccountID:    1,
		nextAssignmentID: 1,
	}
}
