package inmem

import (
	"context"

	"github.com/tmwangi/sauti/core/audit"
)

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

var _ audit.Repository = (*AuditRepo)(nil)

func (r *AuditRepo) CreateEntry(ctx context.Context, e audit.Entry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.auditLog = append(r.db.auditLog, e)
	return nil
}

// Entries returns a snapshot of the recorded log, oldest first. Test helper.
func (r *AuditRepo) Entries() []audit.Entry {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]audit.Entry, len(r.db.auditLog))
	copy(out, r.db.auditLog)
	return out
}
