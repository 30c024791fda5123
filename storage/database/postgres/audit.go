package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tmwangi/sauti/core/audit"
)

type AuditRepo struct {
	db *sqlx.DB
}

func NewAuditRepo(db *sqlx.DB) *AuditRepo { return &AuditRepo{db: db} }

var _ audit.Repository = (*AuditRepo)(nil)

func (repo *AuditRepo) CreateEntry(ctx context.Context, e audit.Entry) error {
	const q = `
	INSERT INTO admin_audit_log (id, admin_id, action, entity_type, entity_id, details, created_at)
	VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, ''), '{}')::jsonb, $7)`

	_, err := repo.db.ExecContext(ctx, q, e.ID, e.AdminID, e.Action, e.EntityType, e.EntityID, e.Details, e.CreatedAt)
	return errors.Wrap(err, "inserting audit entry")
}
