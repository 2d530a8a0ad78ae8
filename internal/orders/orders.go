// Package orders holds the order records managed through the back office.
// Fulfilment itself happens elsewhere; this package owns the status machine
// and who may drive it.
package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"sentra.dev/internal/audit"
	"sentra.dev/internal/auth"
	"sentra.dev/internal/ids"
)

// Status is an order's position in the fulfilment flow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// transitions lists the allowed next statuses. Delivered and cancelled are
// terminal.
var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

// ParseStatus validates a status name.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.TrimSpace(strings.ToLower(raw)))
	switch s {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return s, true
	}
	return "", false
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is one customer order. AmountCents avoids floating point money.
type Order struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	Reference   string    `json:"reference"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter narrows a listing. Zero values mean "any".
type Filter struct {
	CustomerID string
	Status     Status
	Limit      int
	Offset     int
}

// Store persists orders.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Find(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f Filter) ([]*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

var (
	ErrNotFound          = errors.New("orders: not found")
	ErrInvalidTransition = errors.New("orders: invalid status transition")
	ErrInvalidInput      = errors.New("orders: invalid input")
)

// Service applies the status machine and records who drove it.
type Service struct {
	store Store
	audit *audit.Logger
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the order service.
func NewService(store Store, trail *audit.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("orders: store is required")
	}
	if trail == nil {
		trail = audit.NewLogger(nil)
	}
	s := &Service{store: store, audit: trail, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create opens a new pending order for a customer.
func (s *Service) Create(ctx context.Context, customerID, reference string, amountCents int64, currency string) (*Order, error) {
	customerID = strings.TrimSpace(customerID)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if customerID == "" || amountCents <= 0 || len(currency) != 3 {
		return nil, ErrInvalidInput
	}
	now := s.now().UTC()
	o := &Order{
		ID:          ids.New(),
		CustomerID:  customerID,
		Reference:   strings.TrimSpace(reference),
		AmountCents: amountCents,
		Currency:    currency,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Get returns one order. Customers see only their own; management roles see
// any.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id string) (*Order, error) {
	if actor.User == nil {
		return nil, auth.ErrUnauthenticated
	}
	o, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.HasRole(actor.User.Role, auth.ManagerRoles...) && o.CustomerID != actor.User.ID {
		// The order's existence is not revealed to strangers.
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns orders. Customers are pinned to their own orders regardless
// of the requested filter.
func (s *Service) List(ctx context.Context, actor auth.Principal, f Filter) ([]*Order, error) {
	if actor.User == nil {
		return nil, auth.ErrUnauthenticated
	}
	if !auth.HasRole(actor.User.Role, auth.ManagerRoles...) {
		f.CustomerID = actor.User.ID
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.List(ctx, f)
}

// UpdateStatus moves an order along the fulfilment flow. Management roles
// only; every applied change lands in the audit trail.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Principal, id string, next Status, meta auth.Meta) (*Order, error) {
	if actor.User == nil {
		return nil, auth.ErrUnauthenticated
	}
	if !auth.HasRole(actor.User.Role, auth.ManagerRoles...) {
		return nil, auth.ErrForbidden
	}
	if _, ok := ParseStatus(string(next)); !ok {
		return nil, ErrInvalidInput
	}
	o, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == next {
		return o, nil
	}
	if !CanTransition(o.Status, next) {
		return nil, ErrInvalidTransition
	}
	if err := s.store.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorUserID:  actor.User.ID,
		ActorEmail:   actor.User.Email,
		Action:       audit.ActionOrderStatusChanged,
		ResourceType: audit.ResourceOrder,
		ResourceID:   id,
		Details: map[string]any{
			"from": string(o.Status),
			"to":   string(next),
		},
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	return s.store.Find(ctx, id)
}
