package pg

import (
	"context"
	"database/sql"
	"time"

	"sentra.dev/internal/auth"
	"sentra.dev/internal/ids"
)

// Users implements auth.UserStore.
type Users struct {
	store *Store
}

var _ auth.UserStore = (*Users)(nil)

func (s *Store) Users() *Users { return &Users{store: s} }

const userColumns = `id, name, email, phone, password_hash, role, email_verified, created_at, updated_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var u auth.User
	var phone sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Name, &u.Email, &phone, &u.PasswordHash, &u.Role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, translate(err)
	}
	if phone.Valid {
		u.Phone = phone.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func (u *Users) Create(ctx context.Context, user *auth.User) error {
	if user.ID == "" {
		user.ID = ids.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := u.store.db.ExecContext(ctx, `
		insert into users(id, name, email, phone, password_hash, role, email_verified, created_at, updated_at)
		values ($1,$2,$3,nullif($4,''),$5,$6,$7,$8,$9)
	`, user.ID, user.Name, user.Email, user.Phone, user.PasswordHash, user.Role, user.EmailVerified, user.CreatedAt, user.UpdatedAt)
	return translate(err)
}

func (u *Users) Find(ctx context.Context, id string) (*auth.User, error) {
	row := u.store.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (u *Users) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := u.store.db.QueryRowContext(ctx, `select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (u *Users) List(ctx context.Context, limit, offset int) ([]*auth.User, error) {
	rows, err := u.store.db.QueryContext(ctx, `
		select `+userColumns+` from users
		order by created_at desc
		limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, translate(rows.Err())
}

func (u *Users) UpdateProfile(ctx context.Context, id, name, phone string) error {
	return u.exec(ctx, `
		update users set name=$2, phone=nullif($3,''), updated_at=now()
		where id=$1
	`, id, name, phone)
}

func (u *Users) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return u.exec(ctx, `
		update users set password_hash=$2, updated_at=now()
		where id=$1
	`, id, passwordHash)
}

func (u *Users) UpdateRole(ctx context.Context, id string, role auth.Role) error {
	return u.exec(ctx, `
		update users set role=$2, updated_at=now()
		where id=$1
	`, id, role)
}

func (u *Users) TouchLastLogin(ctx context.Context, id string) error {
	return u.exec(ctx, `update users set last_login=now() where id=$1`, id)
}

func (u *Users) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	return u.exec(ctx, `
		update users set reset_token_hash=$2, reset_token_expires_at=$3, updated_at=now()
		where id=$1
	`, id, tokenHash, expiresAt)
}

func (u *Users) FindByResetToken(ctx context.Context, tokenHash string) (*auth.User, error) {
	row := u.store.db.QueryRowContext(ctx, `
		select `+userColumns+` from users
		where reset_token_hash=$1 and reset_token_expires_at > now()
	`, tokenHash)
	return scanUser(row)
}

func (u *Users) ClearResetToken(ctx context.Context, id string) error {
	return u.exec(ctx, `
		update users set reset_token_hash=null, reset_token_expires_at=null, updated_at=now()
		where id=$1
	`, id)
}

func (u *Users) Delete(ctx context.Context, id string) error {
	return u.exec(ctx, `delete from users where id=$1`, id)
}

// exec runs a statement that must touch exactly one row.
func (u *Users) exec(ctx context.Context, query string, args ...any) error {
	res, err := u.store.db.ExecContext(ctx, query, args...)
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
