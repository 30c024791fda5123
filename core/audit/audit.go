// Package audit keeps an append-only trail of admin actions.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the engine.
const (
	ActionTokenBatchGenerated      = "TOKEN_BATCH_GENERATED"
	ActionCourseAssigned           = "COURSE_ASSIGNED"
	ActionCourseUnassigned         = "COURSE_UNASSIGNED"
	ActionFlagDismissed            = "FLAG_DISMISSED"
	ActionRejectedAttemptDismissed = "REJECTED_ATTEMPT_DISMISSED"
	ActionExportSemesterSummary    = "EXPORT_SEMESTER_SUMMARY"
	ActionExportTokenList          = "EXPORT_TOKEN_LIST"
)

type Entry struct {
	ID         string    `json:"id"`
	AdminID    int       `json:"admin_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details"` // JSON blob
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type Repository interface {
	CreateEntry(ctx context.Context, e Entry) error
}

type Trail struct {
	repo Repository
}

func NewTrail(repo Repository) *Trail {
	return &Trail{repo: repo}
}

// Record appends an entry. details must be json-marshalable; a marshal failure
// is recorded as an empty blob rather than failing the admin action.
// System actions (adminID 0, e.g. seeding) are not recorded.
func (t *Trail) Record(ctx context.Context, adminID int, action, entityType, entityID string, details interface{}) error {
	if adminID == 0 {
		return nil
	}
	var blob string
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			blob = string(b)
		}
	}
	return t.repo.CreateEntry(ctx, Entry{
		ID:         uuid.New().String(),
		AdminID:    adminID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    blob,
		CreatedAt:  time.Now().UTC(),
	})
}
