package token_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmwangi/sauti/core"
	"github.com/tmwangi/sauti/core/audit"
	"github.com/tmwangi/sauti/core/course"
	"github.com/tmwangi/sauti/core/semester"
	"github.com/tmwangi/sauti/core/staff"
	"github.com/tmwangi/sauti/core/token"
	"github.com/tmwangi/sauti/storage/database/inmem"
)

type storeFixture struct {
	store    *token.Store
	auditLog *inmem.AuditRepo
	lecturer staff.Account
}

func newStoreFixture(t *testing.T, ttl time.Duration) *storeFixture {
	t.Helper()
	ctx := context.Background()

	db := inmem.NewDB()
	staffRepo := inmem.NewStaffRepo(db)
	auditRepo := inmem.NewAuditRepo(db)
	trail := audit.NewTrail(auditRepo)
	staffSvc := staff.NewService(staffRepo)
	courseSvc := course.NewService(inmem.NewCourseRepo(db), staffSvc, trail)

	lecturer, err := staffSvc.Create(ctx, staff.NewAccount{
		Email: "awesome.lecturer@test.cd", Password: "secretpwd", Role: staff.RoleLecturer,
	})
	require.NoError(t, err)
	_, err = courseSvc.Assign(ctx, 0, course.NewAssignment{LecturerID: lecturer.ID, CourseCode: "CSC 101"})
	require.NoError(t, err)

	store := token.NewStore(inmem.NewTokenRepo(db), courseSvc, semester.NewAcademicCalendar(), trail, ttl)
	return &storeFixture{
		store:    store,
		auditLog: auditRepo,
		lecturer: lecturer,
	}
}

// usedAt reads a token's burn timestamp back through the admin listing.
func (fix *storeFixture) usedAt(t *testing.T, value string) time.Time {
	t.Helper()
	toks, err := fix.store.Filter(context.Background(), token.QueryFilter{})
	require.NoError(t, err)
	for _, tok := range toks {
		if tok.Value == value {
			return tok.UsedAt.Time
		}
	}
	t.Fatalf("usedAt() token %q not found", value)
	return time.Time{}
}

func TestStoreIssueBatch(t *testing.T) {
	ctx := context.Background()
	fix := newStoreFixture(t, 2*time.Minute)

	t.Run("happy path", func(t *testing.T) {
		batch, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
			LecturerID: fix.lecturer.ID, CourseCode: "csc 101", Quantity: 25,
		})
		require.NoError(t, err)
		assert.Equal(t, "CSC 101", batch.CourseCode)
		assert.Len(t, batch.Tokens, 25)

		// values are unique and url-safe
		seen := make(map[string]bool, len(batch.Tokens))
		for _, v := range batch.Tokens {
			assert.Len(t, v, 22)
			assert.False(t, seen[v])
			seen[v] = true
		}

		// defaults applied
		assert.Equal(t, time.Now().UTC().Format("2006-01-02"), batch.SessionKey)
		assert.Equal(t, "CSC 101 session "+batch.SessionKey, batch.SessionLabel)

		// each token carries the semester stamp and lecturer email
		st, err := fix.store.Status(ctx, batch.Tokens[0])
		require.NoError(t, err)
		assert.True(t, st.CanSubmit)
		assert.Equal(t, fix.lecturer.Email, st.LecturerEmail)
	})

	t.Run("unassigned course rejected", func(t *testing.T) {
		_, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
			LecturerID: fix.lecturer.ID, CourseCode: "MTH 202", Quantity: 5,
		})
		require.Error(t, err)
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "course_code", vErr.Fields[0].Field)
	})

	t.Run("quantity bounds enforced", func(t *testing.T) {
		for _, qty := range []int{0, 501} {
			_, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
				LecturerID: fix.lecturer.ID, CourseCode: "CSC 101", Quantity: qty,
			})
			require.Error(t, err, "quantity %d", qty)
			var vErrs validator.ValidationErrors
			assert.ErrorAs(t, err, &vErrs)
		}
	})

	t.Run("audit entry recorded", func(t *testing.T) {
		entries := fix.auditLog.Entries()
		require.NotEmpty(t, entries)
		var found bool
		for _, e := range entries {
			if e.Action == audit.ActionTokenBatchGenerated {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestStoreStatus(t *testing.T) {
	ctx := context.Background()
	fix := newStoreFixture(t, 2*time.Minute)

	batch, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
		LecturerID: fix.lecturer.ID, CourseCode: "CSC 101", Quantity: 3,
	})
	require.NoError(t, err)

	t.Run("unknown token is invalid, not an error", func(t *testing.T) {
		st, err := fix.store.Status(ctx, "nosuchtoken")
		require.NoError(t, err)
		assert.False(t, st.Valid)
		assert.False(t, st.CanSubmit)
		assert.NotEmpty(t, st.Reason)
	})

	t.Run("fresh token can submit", func(t *testing.T) {
		st, err := fix.store.Status(ctx, batch.Tokens[0])
		require.NoError(t, err)
		assert.True(t, st.Valid)
		assert.False(t, st.IsUsed)
		assert.True(t, st.CanSubmit)
		assert.Empty(t, st.Reason)
		assert.Equal(t, "CSC 101", st.CourseCode)
	})

	t.Run("reserved token cannot submit yet", func(t *testing.T) {
		_, err := fix.store.Reserve(ctx, batch.Tokens[1])
		require.NoError(t, err)

		st, err := fix.store.Status(ctx, batch.Tokens[1])
		require.NoError(t, err)
		assert.True(t, st.Valid)
		assert.False(t, st.IsUsed)
		assert.False(t, st.CanSubmit)
		assert.NotEmpty(t, st.Reason)
	})

	t.Run("used token cannot submit", func(t *testing.T) {
		res, err := fix.store.Reserve(ctx, batch.Tokens[2])
		require.NoError(t, err)
		require.NoError(t, fix.store.Commit(ctx, res))

		st, err := fix.store.Status(ctx, batch.Tokens[2])
		require.NoError(t, err)
		assert.True(t, st.Valid)
		assert.True(t, st.IsUsed)
		assert.False(t, st.CanSubmit)
	})
}

func TestStoreReserveLifecycle(t *testing.T) {
	ctx := context.Background()
	fix := newStoreFixture(t, 2*time.Minute)

	batch, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
		LecturerID: fix.lecturer.ID, CourseCode: "CSC 101", Quantity: 4,
	})
	require.NoError(t, err)

	t.Run("second reserve loses", func(t *testing.T) {
		_, err := fix.store.Reserve(ctx, batch.Tokens[0])
		require.NoError(t, err)
		_, err = fix.store.Reserve(ctx, batch.Tokens[0])
		assert.ErrorIs(t, err, token.ErrReserved)
	})

	t.Run("release frees the token", func(t *testing.T) {
		res, err := fix.store.Reserve(ctx, batch.Tokens[1])
		require.NoError(t, err)
		require.NoError(t, fix.store.Release(ctx, res))

		res2, err := fix.store.Reserve(ctx, batch.Tokens[1])
		require.NoError(t, err)
		assert.NotEqual(t, res.ID, res2.ID)
	})

	t.Run("commit is final and idempotent", func(t *testing.T) {
		res, err := fix.store.Reserve(ctx, batch.Tokens[2])
		require.NoError(t, err)
		require.NoError(t, fix.store.Commit(ctx, res))

		// a repeat commit must not move the burn timestamp
		firstUsedAt := fix.usedAt(t, batch.Tokens[2])
		require.NoError(t, fix.store.Commit(ctx, res))
		assert.Equal(t, firstUsedAt, fix.usedAt(t, batch.Tokens[2]))

		_, err = fix.store.Reserve(ctx, batch.Tokens[2])
		assert.ErrorIs(t, err, token.ErrAlreadyUsed)
	})

	t.Run("release after commit does not resurrect", func(t *testing.T) {
		res, err := fix.store.Reserve(ctx, batch.Tokens[3])
		require.NoError(t, err)
		require.NoError(t, fix.store.Commit(ctx, res))
		require.NoError(t, fix.store.Release(ctx, res))

		_, err = fix.store.Reserve(ctx, batch.Tokens[3])
		assert.ErrorIs(t, err, token.ErrAlreadyUsed)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := fix.store.Reserve(ctx, "nosuchtoken")
		assert.ErrorIs(t, err, token.ErrNotFound)
	})
}

func TestStoreReserveConcurrent(t *testing.T) {
	ctx := context.Background()
	fix := newStoreFixture(t, 2*time.Minute)

	batch, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
		LecturerID: fix.lecturer.ID, CourseCode: "CSC 101", Quantity: 1,
	})
	require.NoError(t, err)

	const n = 32
	var (
		wg                 sync.WaitGroup
		mu                 sync.Mutex
		wins, losses, errs int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := fix.store.Reserve(ctx, batch.Tokens[0])
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case err == token.ErrReserved:
				losses++
			default:
				errs++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, losses)
	assert.Zero(t, errs)
}

func TestStoreReserveStaleTakeover(t *testing.T) {
	ctx := context.Background()
	// a nanosecond TTL makes any prior reservation immediately stale
	fix := newStoreFixture(t, time.Nanosecond)

	batch, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
		LecturerID: fix.lecturer.ID, CourseCode: "CSC 101", Quantity: 1,
	})
	require.NoError(t, err)

	res1, err := fix.store.Reserve(ctx, batch.Tokens[0])
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	res2, err := fix.store.Reserve(ctx, batch.Tokens[0])
	require.NoError(t, err)
	require.NotEqual(t, res1.ID, res2.ID)

	// the superseded reservation can no longer commit
	require.NoError(t, fix.store.Commit(ctx, res2))
	assert.ErrorIs(t, fix.store.Commit(ctx, res1), token.ErrNotFound)
}

func TestStoreFilter(t *testing.T) {
	ctx := context.Background()
	fix := newStoreFixture(t, 2*time.Minute)

	_, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
		LecturerID: fix.lecturer.ID, CourseCode: "CSC 101", Quantity: 3,
	})
	require.NoError(t, err)

	t.Run("by course", func(t *testing.T) {
		toks, err := fix.store.Filter(ctx, token.QueryFilter{CourseCode: "csc 101"})
		require.NoError(t, err)
		assert.Len(t, toks, 3)
	})

	t.Run("current semester", func(t *testing.T) {
		sem := semester.NewAcademicCalendar().At(time.Now().UTC())
		toks, err := fix.store.Filter(ctx, token.QueryFilter{Semester: sem.Value})
		require.NoError(t, err)
		assert.Len(t, toks, 3)
	})

	t.Run("previous semester is empty", func(t *testing.T) {
		cal := semester.NewAcademicCalendar()
		prev := cal.Prev(cal.At(time.Now().UTC()))
		toks, err := fix.store.Filter(ctx, token.QueryFilter{Semester: prev.Value})
		require.NoError(t, err)
		assert.Empty(t, toks)
	})

	t.Run("bad semester value", func(t *testing.T) {
		_, err := fix.store.Filter(ctx, token.QueryFilter{Semester: "SUMMER-2025"})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}

func TestStoreUsage(t *testing.T) {
	ctx := context.Background()
	fix := newStoreFixture(t, 2*time.Minute)

	batch, err := fix.store.IssueBatch(ctx, 1, token.NewBatch{
		LecturerID: fix.lecturer.ID, CourseCode: "CSC 101", Quantity: 4,
	})
	require.NoError(t, err)

	res, err := fix.store.Reserve(ctx, batch.Tokens[0])
	require.NoError(t, err)
	require.NoError(t, fix.store.Commit(ctx, res))

	usage, err := fix.store.Usage(ctx)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, "CSC 101", usage[0].CourseCode)
	assert.Equal(t, 4, usage[0].TotalTokens)
	assert.Equal(t, 1, usage[0].UsedTokens)
	assert.InDelta(t, 25.0, usage[0].UsagePct, 0.001)
}
