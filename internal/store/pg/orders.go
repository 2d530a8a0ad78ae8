package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sentra.dev/internal/auth"
	"sentra.dev/internal/orders"
)

// Orders implements orders.Store.
type Orders struct {
	store *Store
}

var _ orders.Store = (*Orders)(nil)

func (s *Store) Orders() *Orders { return &Orders{store: s} }

const orderColumns = `id, customer_id, coalesce(reference,''), amount_cents, currency, status, created_at, updated_at`

// translateOrder keeps the orders package's own not-found sentinel.
func translateOrder(err error) error {
	if err == nil {
		return nil
	}
	err = translate(err)
	if errors.Is(err, auth.ErrNotFound) {
		return orders.ErrNotFound
	}
	return err
}

func (o *Orders) Create(ctx context.Context, order *orders.Order) error {
	_, err := o.store.db.ExecContext(ctx, `
		insert into orders(id, customer_id, reference, amount_cents, currency, status, created_at, updated_at)
		values ($1,$2,nullif($3,''),$4,$5,$6,$7,$8)
	`, order.ID, order.CustomerID, order.Reference, order.AmountCents, order.Currency, order.Status, order.CreatedAt, order.UpdatedAt)
	return translateOrder(err)
}

func (o *Orders) Find(ctx context.Context, id string) (*orders.Order, error) {
	var order orders.Order
	err := o.store.db.QueryRowContext(ctx, `
		select `+orderColumns+` from orders where id=$1
	`, id).Scan(&order.ID, &order.CustomerID, &order.Reference, &order.AmountCents, &order.Currency, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, translateOrder(err)
	}
	return &order, nil
}

func (o *Orders) List(ctx context.Context, f orders.Filter) ([]*orders.Order, error) {
	var where []string
	var args []any
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}

	query := `select ` + orderColumns + ` from orders`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" order by created_at desc limit $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" offset $%d", len(args))

	rows, err := o.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateOrder(err)
	}
	defer rows.Close()

	var out []*orders.Order
	for rows.Next() {
		var order orders.Order
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.Reference, &order.AmountCents, &order.Currency, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &order)
	}
	return out, translateOrder(rows.Err())
}

func (o *Orders) UpdateStatus(ctx context.Context, id string, status orders.Status) error {
	res, err := o.store.db.ExecContext(ctx, `
		update orders set status=$2, updated_at=now() where id=$1
	`, id, status)
	if err != nil {
		return translateOrder(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return orders.ErrNotFound
	}
	return nil
}
