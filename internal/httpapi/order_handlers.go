package httpapi

import (
	"net/http"
	"strings"

	"sentra.dev/internal/orders"
)

type createOrderRequest struct {
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// /v1/orders: the customer-facing view. Listing is pinned to the caller's
// own orders inside the service.
func (a *API) handleOrdersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listOwnOrders(w, r)
	case http.MethodPost:
		a.createOrder(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrderResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	order, err := a.orders.Get(r.Context(), p, id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	f, bad := orderFilterFromQuery(w, r)
	if bad {
		return
	}
	list, err := a.orders.List(r.Context(), p, f)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": list,
	})
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	order, err := a.orders.Create(r.Context(), p.User.ID, req.Reference, req.AmountCents, req.Currency)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// /v1/admin/orders: the back-office view, management roles only.
func (a *API) handleAdminOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.requireManager(w, r)
	if !ok {
		return
	}
	f, bad := orderFilterFromQuery(w, r)
	if bad {
		return
	}
	f.CustomerID = strings.TrimSpace(r.URL.Query().Get("customer_id"))
	list, err := a.orders.List(r.Context(), p, f)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": list,
	})
}

func (a *API) handleAdminOrderResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/admin/orders/")
	id, ok := strings.CutSuffix(path, "/status")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	p, ok := a.requireManager(w, r)
	if !ok {
		return
	}
	var req updateOrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status, valid := orders.ParseStatus(req.Status)
	if !valid {
		writeError(w, r, http.StatusBadRequest, "unknown status")
		return
	}

	order, err := a.orders.UpdateStatus(r.Context(), p, id, status, requestMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func orderFilterFromQuery(w http.ResponseWriter, r *http.Request) (orders.Filter, bool) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
		return orders.Filter{}, true
	}
	offset, err := parsePositiveInt(q.Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
		return orders.Filter{}, true
	}
	f := orders.Filter{Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := orders.ParseStatus(raw)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "unknown status")
			return orders.Filter{}, true
		}
		f.Status = status
	}
	return f, false
}
