package pg

import (
	"context"
	"database/sql"

	"sentra.dev/internal/auth"
)

// APIKeys implements auth.APIKeyStore.
type APIKeys struct {
	store *Store
}

var _ auth.APIKeyStore = (*APIKeys)(nil)

func (s *Store) APIKeys() *APIKeys { return &APIKeys{store: s} }

const apiKeyColumns = `id, user_id, name, prefix, key_hash, status, usage_count, last_used, expires_at, created_at`

func scanAPIKey(row interface{ Scan(...any) error }) (*auth.APIKey, error) {
	var k auth.APIKey
	var lastUsed, expiresAt sql.NullTime
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.KeyHash, &k.Status, &k.UsageCount, &lastUsed, &expiresAt, &k.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsed = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		k.ExpiresAt = &t
	}
	return &k, nil
}

func (a *APIKeys) Create(ctx context.Context, k *auth.APIKey) error {
	_, err := a.store.db.ExecContext(ctx, `
		insert into api_keys(id, user_id, name, prefix, key_hash, status, expires_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, k.ID, k.UserID, k.Name, k.Prefix, k.KeyHash, k.Status, k.ExpiresAt, k.CreatedAt)
	return translate(err)
}

func (a *APIKeys) FindByHash(ctx context.Context, keyHash string) (*auth.APIKey, error) {
	row := a.store.db.QueryRowContext(ctx, `select `+apiKeyColumns+` from api_keys where key_hash=$1`, keyHash)
	return scanAPIKey(row)
}

func (a *APIKeys) ListByUser(ctx context.Context, userID string) ([]*auth.APIKey, error) {
	return a.list(ctx, `select `+apiKeyColumns+` from api_keys where user_id=$1 order by created_at desc`, userID)
}

func (a *APIKeys) List(ctx context.Context) ([]*auth.APIKey, error) {
	return a.list(ctx, `select `+apiKeyColumns+` from api_keys order by created_at desc`)
}

func (a *APIKeys) list(ctx context.Context, query string, args ...any) ([]*auth.APIKey, error) {
	rows, err := a.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []*auth.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, translate(rows.Err())
}

func (a *APIKeys) Revoke(ctx context.Context, id string) error {
	res, err := a.store.db.ExecContext(ctx, `
		update api_keys set status=$2 where id=$1
	`, id, auth.APIKeyStatusRevoked)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (a *APIKeys) RecordUse(ctx context.Context, id string) error {
	_, err := a.store.db.ExecContext(ctx, `
		update api_keys set usage_count=usage_count+1, last_used=now() where id=$1
	`, id)
	return translate(err)
}
