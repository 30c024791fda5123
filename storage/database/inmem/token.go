package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/core/token"
)

type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

var _ token.Repository = (*TokenRepo)(nil)

func (r *TokenRepo) CreateTokens(ctx context.Context, tokens []token.Token) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.tokens = append(r.db.tokens, tokens...)
	return nil
}

func (r *TokenRepo) GetTokenByValue(ctx context.Context, value string) (token.Token, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, t := range r.db.tokens {
		if t.Value == value {
			return r.withLecturerEmail(t), nil
		}
	}
	return token.Token{}, token.ErrNotFound
}

// ReserveToken is the in-memory equivalent of the conditional UPDATE the
// postgres repo runs: one winner under the shared lock, stale reservations
// claimable.
func (r *TokenRepo) ReserveToken(ctx context.Context, value, reservationID string, now, staleBefore time.Time) (token.Token, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i := range r.db.tokens {
		t := &r.db.tokens[i]
		if t.Value != value {
			continue
		}
		switch t.Status {
		case token.StatusUsed:
			return token.Token{}, token.ErrAlreadyUsed
		case token.StatusReserved:
			if t.ReservedAt.Valid && !t.ReservedAt.Time.Before(staleBefore) {
				return token.Token{}, token.ErrReserved
			}
		}
		t.Status = token.StatusReserved
		t.ReservationID = null.StringFrom(reservationID)
		t.ReservedAt = null.TimeFrom(now)
		return r.withLecturerEmail(*t), nil
	}
	return token.Token{}, token.ErrNotFound
}

func (r *TokenRepo) ReleaseReservation(ctx context.Context, reservationID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i := range r.db.tokens {
		t := &r.db.tokens[i]
		if t.Status == token.StatusReserved && t.ReservationID.Valid && t.ReservationID.String == reservationID {
			t.Status = token.StatusUnused
			t.ReservationID = null.String{}
			t.ReservedAt = null.Time{}
			return nil
		}
	}
	return nil
}

func (r *TokenRepo) CommitReservation(ctx context.Context, reservationID string, usedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.commitReservationLocked(reservationID, usedAt)
}

// commitReservationLocked implements the token burn shared by the token repo
// and the feedback repo's transactional insert. Caller holds db.mu.
func (db *DB) commitReservationLocked(reservationID string, usedAt time.Time) error {
	for i := range db.tokens {
		t := &db.tokens[i]
		if !t.ReservationID.Valid || t.ReservationID.String != reservationID {
			continue
		}
		if t.Status == token.StatusUsed {
			return nil
		}
		t.Status = token.StatusUsed
		t.UsedAt = null.TimeFrom(usedAt)
		return nil
	}
	return token.ErrNotFound
}

func (r *TokenRepo) FilterTokens(ctx context.Context, qf token.QueryFilter) ([]token.Token, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []token.Token
	for _, t := range r.db.tokens {
		if qf.CourseCode != "" && t.CourseCode != qf.CourseCode {
			continue
		}
		if qf.LecturerID != 0 && t.LecturerID != qf.LecturerID {
			continue
		}
		if !qf.Since.IsZero() && t.CreatedAt.Before(qf.Since) {
			continue
		}
		if !qf.Until.IsZero() && !t.CreatedAt.Before(qf.Until) {
			continue
		}
		out = append(out, r.withLecturerEmail(t))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *TokenRepo) CourseUsage(ctx context.Context) ([]token.CourseUsage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	byCourse := make(map[string]*token.CourseUsage)
	for _, t := range r.db.tokens {
		u, ok := byCourse[t.CourseCode]
		if !ok {
			u = &token.CourseUsage{CourseCode: t.CourseCode}
			byCourse[t.CourseCode] = u
		}
		u.TotalTokens++
		if t.Used() {
			u.UsedTokens++
		}
	}
	out := make([]token.CourseUsage, 0, len(byCourse))
	for _, u := range byCourse {
		if u.TotalTokens > 0 {
			u.UsagePct = float64(u.UsedTokens) / float64(u.TotalTokens) * 100
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseCode < out[j].CourseCode })
	return out, nil
}

// withLecturerEmail denormalizes the lecturer email the way the postgres
// queries join it in.
func (r *TokenRepo) withLecturerEmail(t token.Token) token.Token {
	if a, ok := r.db.lecturerByID(t.LecturerID); ok {
		t.LecturerEmail = a.Email
	}
	return t
}

// lecturerByID is shared by sibling repos that denormalize staff fields.
func (db *DB) lecturerByID(id int) (staff.Account, bool) {
	for _, a := range db.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return staff.Account{}, false
}
