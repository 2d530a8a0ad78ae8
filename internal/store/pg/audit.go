package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"sentra.dev/internal/audit"
)

// Audit implements audit.Store. Details go into a jsonb column so audit
// reviews can filter on them with plain SQL.
type Audit struct {
	store *Store
}

var _ audit.Store = (*Audit)(nil)

func (s *Store) Audit() *Audit { return &Audit{store: s} }

func (a *Audit) Append(ctx context.Context, e *audit.Entry) error {
	var details []byte
	if len(e.Details) > 0 {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return err
		}
	}
	_, err := a.store.db.ExecContext(ctx, `
		insert into audit_logs(id, actor_user_id, actor_email, action, resource_type, resource_id, details, ip, user_agent, created_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7,nullif($8,''),nullif($9,''),$10)
	`, e.ID, e.ActorUserID, e.ActorEmail, e.Action, e.ResourceType, e.ResourceID, details, e.IP, e.UserAgent, e.CreatedAt)
	return translate(err)
}

func (a *Audit) Query(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	var where []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ActorID != "" {
		add("actor_user_id=$%d", f.ActorID)
	}
	if f.Action != "" {
		add("action=$%d", f.Action)
	}
	if f.ResourceType != "" {
		add("resource_type=$%d", f.ResourceType)
	}
	if !f.Start.IsZero() {
		add("created_at >= $%d", f.Start)
	}
	if !f.End.IsZero() {
		add("created_at < $%d", f.End)
	}

	query := `select id, actor_user_id, actor_email, action, resource_type, coalesce(resource_id,''), details, coalesce(ip,''), coalesce(user_agent,''), created_at from audit_logs`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" order by created_at desc limit $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" offset $%d", len(args))

	rows, err := a.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var details sql.RawBytes
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.ActorEmail, &e.Action, &e.ResourceType, &e.ResourceID, &details, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, translate(rows.Err())
}
