package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"auctiondesk.app/internal/audit"
	"auctiondesk.app/internal/tenant"
)

type saveDocumentRequest struct {
	Email string          `json:"email"`
	Data  json.RawMessage `json:"data"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type importRequest struct {
	Email    string          `json:"email"`
	Teams    json.RawMessage `json:"teams"`
	Players  json.RawMessage `json:"players"`
	Settings json.RawMessage `json:"settings"`
}

var okResponse = map[string]any{"success": true}

func (a *API) handleGetDocument(kind tenant.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := caller(w, r, r.URL.Query().Get("email"))
		if !ok {
			return
		}
		data, err := a.tenants.GetDocument(r.Context(), email, kind)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func (a *API) handleSaveDocument(kind tenant.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveDocumentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		email, ok := caller(w, r, req.Email)
		if !ok {
			return
		}
		if err := a.tenants.SaveDocument(r.Context(), email, kind, req.Data); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		_ = a.auditor.LogEvent(r.Context(), audit.EventTenantSave,
			zap.String("kind", string(kind)),
			zap.Int("bytes", len(req.Data)),
		)
		writeJSON(w, http.StatusOK, okResponse)
	}
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	email, ok := caller(w, r, r.URL.Query().Get("email"))
	if !ok {
		return
	}
	bundle, err := a.tenants.Export(r.Context(), email)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="auction-data.json"`)
	writeJSON(w, http.StatusOK, bundle)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email, ok := caller(w, r, req.Email)
	if !ok {
		return
	}
	bundle := tenant.Bundle{Teams: req.Teams, Players: req.Players, Settings: req.Settings}
	if err := a.tenants.Import(r.Context(), email, bundle); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	_ = a.auditor.LogEvent(r.Context(), audit.EventTenantImport)
	writeJSON(w, http.StatusOK, okResponse)
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	// The body is optional; without one the session identity is used.
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email, ok := caller(w, r, req.Email)
	if !ok {
		return
	}
	if err := a.tenants.Reset(r.Context(), email); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	_ = a.auditor.LogEvent(r.Context(), audit.EventTenantReset)
	writeJSON(w, http.StatusOK, okResponse)
}
