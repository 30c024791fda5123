// Package moderation merges flagged feedback and rejected attempts into one
// review queue for admins.
package moderation

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/audit"
)

// Item kinds. A queue entry is either accepted-but-flagged feedback or an
// attempt that never became feedback.
const (
	KindFeedback        = "feedback"
	KindRejectedAttempt = "rejected_attempt"
)

var ErrNotFound = errors.New("moderation item not found or already resolved")

// Item is one row of the moderation queue. Comment is shown verbatim so the
// moderator judges the original wording, not the censored rendering.
type Item struct {
	Kind          string    `json:"kind"`
	ID            string    `json:"id"`
	LecturerID    int       `json:"lecturer_id"`
	LecturerEmail string    `json:"lecturer_email"`
	CourseCode    string    `json:"course_code"`
	SessionKey    string    `json:"session_key"`
	Comment       string    `json:"comment"`
	Rating        int       `json:"rating,omitempty"` // feedback only
	Reason        string    `json:"reason,omitempty"` // rejected attempts only
	CreatedAt     time.Time `json:"created_at"`
}

// Dismissal is the admin's resolution payload.
type Dismissal struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

func (d *Dismissal) Validate() error {
	d.Note = core.CleanString(d.Note)
	return core.Validate.Struct(d)
}

type (
	Repository interface {
		PendingFlaggedFeedback(ctx context.Context) ([]Item, error)
		PendingRejectedAttempts(ctx context.Context) ([]Item, error)
		// DismissFlag atomically clears is_flagged and records the review.
		// Missing or already dismissed items return ErrNotFound.
		DismissFlag(ctx context.Context, feedbackID string, reviewerID int, note string, at time.Time) error
		DismissAttempt(ctx context.Context, attemptID string, reviewerID int, note string, at time.Time) error
		PendingCount(ctx context.Context) (int, error)
	}

	Service struct {
		repo    Repository
		trail   *audit.Trail
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, trail *audit.Trail) *Service {
	return &Service{
		repo:    repo,
		trail:   trail,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// ListPending returns the merged queue, newest first. Ties break on kind then
// ID so the ordering is stable across calls.
func (svc *Service) ListPending(ctx context.Context) ([]Item, error) {
	flagged, err := svc.repo.PendingFlaggedFeedback(ctx)
	if err != nil {
		return nil, err
	}
	attempts, err := svc.repo.PendingRejectedAttempts(ctx)
	if err != nil {
		return nil, err
	}

	items := append(flagged, attempts...)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	return items, nil
}

// DismissFlag clears the toxicity flag on a feedback item and records who
// reviewed it. The feedback itself stays; once cleared it counts as clean
// everywhere, including the dashboard comment feed.
func (svc *Service) DismissFlag(ctx context.Context, adminID int, feedbackID string, d Dismissal) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := svc.repo.DismissFlag(ctx, feedbackID, adminID, d.Note, svc.nowFunc()); err != nil {
		return err
	}
	return svc.trail.Record(ctx, adminID, audit.ActionFlagDismissed, KindFeedback, feedbackID,
		map[string]interface{}{"note": d.Note})
}

// DismissAttempt marks a rejected attempt as reviewed.
func (svc *Service) DismissAttempt(ctx context.Context, adminID int, attemptID string, d Dismissal) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := svc.repo.DismissAttempt(ctx, attemptID, adminID, d.Note, svc.nowFunc()); err != nil {
		return err
	}
	return svc.trail.Record(ctx, adminID, audit.ActionRejectedAttemptDismissed, KindRejectedAttempt, attemptID,
		map[string]interface{}{"note": d.Note})
}

// PendingCount backs the admin dashboard badge.
func (svc *Service) PendingCount(ctx context.Context) (int, error) {
	return svc.repo.PendingCount(ctx)
}
