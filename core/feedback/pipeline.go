package feedback

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/screening"
	"github.com/tmwangi/sauti/core/token"
)

var ErrDuplicateSubmission = errors.New("feedback was already submitted for this session")

const reasonAlreadySubmitted = "You already submitted feedback for this session"

// ContentRejectedError signals that the comment itself was refused. The
// Reason is an internal code for the moderation queue; student-facing copy
// stays deliberately generic.
type ContentRejectedError struct {
	Reason string
}

func (e *ContentRejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

// Repository persists accepted feedback and rejected attempts.
type Repository interface {
	// CreateCommitted atomically inserts the feedback, marks the reserved
	// token used and, when lockKey is non-empty, claims the per-session
	// submission lock. A lock collision returns ErrDuplicateSubmission and
	// leaves the token reserved; a missing reservation returns
	// token.ErrNotFound.
	CreateCommitted(ctx context.Context, fb Feedback, reservationID, lockKey string, usedAt time.Time) error
	CreateRejectedAttempt(ctx context.Context, ra RejectedAttempt) error
	HasSessionSubmission(ctx context.Context, lockKey, courseCode, sessionKey string) (bool, error)
}

// Pipeline runs a submission end to end: reserve the token, screen the
// comment, then either commit everything in one step or record the attempt
// and put the token back.
type Pipeline struct {
	tokens     *token.Store
	repo       Repository
	classifier screening.Classifier
	mailSvc    core.EmailService
	logger     core.Logger

	secret          []byte
	moderationEmail string
	classifyTimeout time.Duration
	nowFunc         func() time.Time
}

func NewPipeline(tokens *token.Store, repo Repository, classifier screening.Classifier, mailSvc core.EmailService, logger core.Logger) *Pipeline {
	return &Pipeline{
		tokens:          tokens,
		repo:            repo,
		classifier:      classifier,
		mailSvc:         mailSvc,
		logger:          logger,
		secret:          core.Conf.SecretKey,
		moderationEmail: core.Conf.ModerationEmail,
		classifyTimeout: core.Conf.ClassificationTimeout,
		nowFunc:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit processes one student submission. Token errors (ErrNotFound,
// ErrAlreadyUsed, ErrReserved) pass through from the token store; refused
// comments return *ContentRejectedError; a session replay returns
// ErrDuplicateSubmission. In every failure path the token ends up either
// released or untouched, never silently burned.
func (p *Pipeline) Submit(ctx context.Context, ns NewSubmission) (Feedback, error) {
	if err := ns.Validate(); err != nil {
		return Feedback{}, err
	}

	res, err := p.tokens.Reserve(ctx, ns.Token)
	if err != nil {
		return Feedback{}, err
	}

	var lockKey string
	if ns.StudentRef != "" {
		lockKey = AnonStudentKey(p.secret, ns.StudentRef, res.CourseCode, res.SessionKey)
		dup, err := p.repo.HasSessionSubmission(ctx, lockKey, res.CourseCode, res.SessionKey)
		if err != nil {
			p.release(ctx, res)
			return Feedback{}, err
		}
		if dup {
			p.recordAttempt(ctx, res, ns.Text, ReasonDuplicate)
			p.release(ctx, res)
			return Feedback{}, ErrDuplicateSubmission
		}
	}

	result := p.classify(ctx, ns.Text)
	if result.Outcome == screening.Reject {
		p.recordAttempt(ctx, res, ns.Text, result.Reason)
		p.release(ctx, res)
		p.alert("Submission rejected", res, ns.Text, result.Reason)
		return Feedback{}, &ContentRejectedError{Reason: result.Reason}
	}

	now := p.nowFunc()
	fb := Feedback{
		ID:          uuid.NewString(),
		TokenID:     res.TokenID,
		LecturerID:  res.LecturerID,
		CourseCode:  res.CourseCode,
		SessionKey:  res.SessionKey,
		Rating:      ns.Rating,
		Text:        ns.Text,
		CleanedText: result.Cleaned,
		IsFlagged:   result.Outcome == screening.Flag,
		Semester:    res.Semester,
		CreatedAt:   now,
	}
	if err := p.repo.CreateCommitted(ctx, fb, res.ID, lockKey, now); err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			p.recordAttempt(ctx, res, ns.Text, ReasonDuplicate)
		}
		p.release(ctx, res)
		return Feedback{}, err
	}

	if fb.IsFlagged {
		p.alert("Feedback flagged for review", res, ns.Text, result.Reason)
	}
	return fb, nil
}

// TokenStatus extends the token store's read-only probe with the duplicate
// guard, so the form can tell a student their session is spent before they
// type anything.
func (p *Pipeline) TokenStatus(ctx context.Context, value, studentRef string) (token.Status, error) {
	st, err := p.tokens.Status(ctx, core.CleanString(value))
	if err != nil {
		return token.Status{}, err
	}
	if st.CanSubmit && studentRef != "" {
		lockKey := AnonStudentKey(p.secret, studentRef, st.CourseCode, st.SessionKey)
		dup, err := p.repo.HasSessionSubmission(ctx, lockKey, st.CourseCode, st.SessionKey)
		if err != nil {
			return token.Status{}, err
		}
		if dup {
			st.CanSubmit = false
			st.Reason = reasonAlreadySubmitted
		}
	}
	return st, nil
}

// classify screens the comment under a deadline. If the classifier fails or
// times out the comment is refused rather than let through unscreened.
func (p *Pipeline) classify(ctx context.Context, text string) screening.Result {
	cctx, cancel := context.WithTimeout(ctx, p.classifyTimeout)
	defer cancel()

	result, err := p.classifier.Classify(cctx, text)
	if err != nil {
		p.logger.Error(fmt.Sprintf("toxicity classifier unavailable: %v", err), err)
		return screening.Result{Outcome: screening.Reject, Reason: screening.ReasonUnavailable, Cleaned: text}
	}
	return result
}

func (p *Pipeline) recordAttempt(ctx context.Context, res token.Reservation, text, reason string) {
	ra := RejectedAttempt{
		ID:         uuid.NewString(),
		TokenID:    res.TokenID,
		LecturerID: res.LecturerID,
		CourseCode: res.CourseCode,
		SessionKey: res.SessionKey,
		Text:       text,
		Reason:     reason,
		CreatedAt:  p.nowFunc(),
	}
	if err := p.repo.CreateRejectedAttempt(ctx, ra); err != nil {
		p.logger.Error(fmt.Sprintf("recording rejected attempt: %v", err), err, map[string]interface{}{"reason": reason})
	}
}

func (p *Pipeline) release(ctx context.Context, res token.Reservation) {
	if err := p.tokens.Release(ctx, res); err != nil {
		p.logger.Error(fmt.Sprintf("releasing token reservation: %v", err), err, map[string]interface{}{"reservation": res.ID})
	}
}

func (p *Pipeline) alert(subject string, res token.Reservation, text, reason string) {
	if p.moderationEmail == "" {
		return
	}
	body := fmt.Sprintf(
		"Course: %s\nSession: %s (%s)\nReason: %s\n\nComment:\n%s\n",
		res.CourseCode, res.SessionKey, res.SessionLabel, reason, text,
	)
	p.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: p.moderationEmail}},
		Subject: subject,
		Body:    body,
	})
}
