package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/semester"
)

var (
	ErrNotFound     = errors.New("feedback token not found")
	ErrAlreadyUsed  = errors.New("this token has already been used")
	ErrReserved     = errors.New("this token is currently being used")
	ErrNoAssignment = errors.New("lecturer is not assigned to this course")
)

// Human copy returned on the public token status endpoint. Deliberately vague
// about internals; students only need to know whether to try again.
const (
	reasonInvalid  = "Invalid feedback token"
	reasonUsed     = "This token has already been used"
	reasonReserved = "This token is currently being used, try again shortly"
)

// AssignmentChecker reports whether a lecturer actually teaches a course.
// *course.Service satisfies it.
type AssignmentChecker interface {
	Exists(ctx context.Context, lecturerID int, courseCode string) (bool, error)
}

// Repository abstracts token persistence. Reserve, Release and Commit must be
// atomic with respect to concurrent callers; Reserve in particular is a
// compare-and-swap that also claims stale reservations.
type Repository interface {
	CreateTokens(ctx context.Context, tokens []Token) error
	GetTokenByValue(ctx context.Context, value string) (Token, error)
	// ReserveToken atomically moves the token to reserved under reservationID.
	// A token already reserved strictly before staleBefore counts as free.
	// Errors: ErrNotFound, ErrAlreadyUsed, ErrReserved.
	ReserveToken(ctx context.Context, value, reservationID string, now, staleBefore time.Time) (Token, error)
	// ReleaseReservation returns the token to unused. Releasing an unknown or
	// expired reservation is a no-op.
	ReleaseReservation(ctx context.Context, reservationID string) error
	// CommitReservation marks the token used. Committing a reservation that
	// was already committed is a no-op; committing one that no longer holds
	// the token returns ErrNotFound.
	CommitReservation(ctx context.Context, reservationID string, usedAt time.Time) error
	FilterTokens(ctx context.Context, qf QueryFilter) ([]Token, error)
	CourseUsage(ctx context.Context) ([]CourseUsage, error)
}

// Store issues tokens and brokers the reserve/commit/release lifecycle.
type Store struct {
	repo        Repository
	assignments AssignmentChecker
	cal         semester.Calendar
	trail       *audit.Trail
	ttl         time.Duration
	nowFunc     func() time.Time
}

func NewStore(repo Repository, assignments AssignmentChecker, cal semester.Calendar, trail *audit.Trail, ttl time.Duration) *Store {
	return &Store{
		repo:        repo,
		assignments: assignments,
		cal:         cal,
		trail:       trail,
		ttl:         ttl,
		nowFunc:     func() time.Time { return time.Now().UTC() },
	}
}

// IssueBatch creates nb.Quantity fresh tokens for an assigned lecturer+course
// pair and records the action against adminID.
func (s *Store) IssueBatch(ctx context.Context, adminID int, nb NewBatch) (Batch, error) {
	if err := nb.Validate(); err != nil {
		return Batch{}, err
	}

	ok, err := s.assignments.Exists(ctx, nb.LecturerID, nb.CourseCode)
	if err != nil {
		return Batch{}, err
	}
	if !ok {
		return Batch{}, core.NewValidationError(ErrNoAssignment, core.FieldError{
			Field: "course_code", Error: ErrNoAssignment.Error(),
		})
	}

	now := s.nowFunc()
	if nb.SessionKey == "" {
		nb.SessionKey = now.Format("2006-01-02")
	}
	if nb.SessionLabel == "" {
		nb.SessionLabel = defaultSessionLabel(nb.CourseCode, nb.SessionKey)
	}
	sem := s.cal.At(now).Value

	tokens := make([]Token, 0, nb.Quantity)
	values := make([]string, 0, nb.Quantity)
	for i := 0; i < nb.Quantity; i++ {
		val, err := newValue()
		if err != nil {
			return Batch{}, err
		}
		tokens = append(tokens, Token{
			ID:           uuid.NewString(),
			Value:        val,
			LecturerID:   nb.LecturerID,
			CourseCode:   nb.CourseCode,
			SessionKey:   nb.SessionKey,
			SessionLabel: nb.SessionLabel,
			Semester:     sem,
			Status:       StatusUnused,
			CreatedAt:    now,
		})
		values = append(values, val)
	}
	if err := s.repo.CreateTokens(ctx, tokens); err != nil {
		return Batch{}, err
	}

	if err := s.trail.Record(ctx, adminID, audit.ActionTokenBatchGenerated, "feedback_token_batch", nb.CourseCode,
		map[string]interface{}{
			"course_code": nb.CourseCode,
			"lecturer_id": nb.LecturerID,
			"session_key": nb.SessionKey,
			"quantity":    nb.Quantity,
			"semester":    sem,
		}); err != nil {
		return Batch{}, err
	}

	return Batch{
		CourseCode:   nb.CourseCode,
		LecturerID:   nb.LecturerID,
		SessionKey:   nb.SessionKey,
		SessionLabel: nb.SessionLabel,
		Tokens:       values,
	}, nil
}

// Status answers the public "is this token still good?" probe without
// changing any state. Unknown tokens are not an error; the caller gets a
// response with Valid false so scanners can render it directly.
func (s *Store) Status(ctx context.Context, value string) (Status, error) {
	tok, err := s.repo.GetTokenByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Status{Token: value, Reason: reasonInvalid}, nil
		}
		return Status{}, err
	}

	st := Status{
		Token:         tok.Value,
		Valid:         true,
		IsUsed:        tok.Used(),
		CourseCode:    tok.CourseCode,
		LecturerEmail: tok.LecturerEmail,
		SessionKey:    tok.SessionKey,
		SessionLabel:  tok.SessionLabel,
	}
	switch {
	case tok.Used():
		st.Reason = reasonUsed
	case tok.reservedSince(s.nowFunc().Add(-s.ttl)):
		st.Reason = reasonReserved
	default:
		st.CanSubmit = true
	}
	return st, nil
}

// Reserve places an exclusive hold on an unused token. Exactly one of any
// number of concurrent callers wins; the rest get ErrReserved. A hold older
// than the store TTL is treated as abandoned and can be taken over.
func (s *Store) Reserve(ctx context.Context, value string) (Reservation, error) {
	now := s.nowFunc()
	resID := uuid.NewString()
	tok, err := s.repo.ReserveToken(ctx, value, resID, now, now.Add(-s.ttl))
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{
		ID:           resID,
		TokenID:      tok.ID,
		TokenValue:   tok.Value,
		LecturerID:   tok.LecturerID,
		CourseCode:   tok.CourseCode,
		SessionKey:   tok.SessionKey,
		SessionLabel: tok.SessionLabel,
		Semester:     tok.Semester,
	}, nil
}

// Release returns a reserved token to the pool, e.g. after a rejected
// submission. Safe to call after the reservation expired.
func (s *Store) Release(ctx context.Context, res Reservation) error {
	return s.repo.ReleaseReservation(ctx, res.ID)
}

// Commit burns the reserved token for good.
func (s *Store) Commit(ctx context.Context, res Reservation) error {
	return s.repo.CommitReservation(ctx, res.ID, s.nowFunc())
}

// Filter lists tokens for admin views and CSV exports.
func (s *Store) Filter(ctx context.Context, qf QueryFilter) ([]Token, error) {
	qf.Clean()
	if qf.Semester != "" {
		win, err := s.cal.Parse(qf.Semester)
		if err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: "semester", Error: err.Error()})
		}
		qf.Since, qf.Until = win.Start, win.End
	}
	return s.repo.FilterTokens(ctx, qf)
}

// Usage reports per-course token consumption for the admin tracker.
func (s *Store) Usage(ctx context.Context) ([]CourseUsage, error) {
	return s.repo.CourseUsage(ctx)
}
