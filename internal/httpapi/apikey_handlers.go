package httpapi

import (
	"net/http"
	"strings"
	"time"
)

type createAPIKeyRequest struct {
	Name      string `json:"name"`
	ExpiresIn string `json:"expires_in"`
}

func (a *API) handleAPIKeysCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAPIKeys(w, r)
	case http.MethodPost:
		a.createAPIKey(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAPIKeyResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/apikeys/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodDelete:
		a.revokeAPIKey(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodDelete)
	}
}

func (a *API) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	keys, err := a.auth.ListAPIKeys(r.Context(), p, false)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": keys,
	})
}

func (a *API) createAPIKey(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var expiresIn time.Duration
	if raw := strings.TrimSpace(req.ExpiresIn); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, r, http.StatusBadRequest, "expires_in must be a positive duration")
			return
		}
		expiresIn = d
	}

	created, err := a.auth.CreateAPIKey(r.Context(), p, req.Name, expiresIn, requestMeta(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	// The raw key appears in this response and nowhere else.
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":     created.Key,
		"raw_key": created.Raw,
	})
}

func (a *API) revokeAPIKey(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.auth.RevokeAPIKey(r.Context(), p, id, requestMeta(r)); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "api key revoked",
	})
}
