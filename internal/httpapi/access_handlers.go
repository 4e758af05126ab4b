package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"auctiondesk.app/internal/access"
	"auctiondesk.app/internal/audit"
	"auctiondesk.app/internal/obs"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type loginResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Email     string      `json:"email"`
	Role      access.Role `json:"role"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type decisionRequest struct {
	AdminEmail string `json:"admin_email"`
	UserEmail  string `json:"user_email"`
}

type accessRequestView struct {
	Email       string        `json:"email"`
	Status      access.Status `json:"status"`
	RequestedAt time.Time     `json:"requested_at"`
	ApprovedAt  *time.Time    `json:"approved_at"`
	ApprovedBy  *string       `json:"approved_by"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "Email and password required")
		return
	}
	if _, err := a.access.Register(r.Context(), email, req.Password); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	_ = a.auditor.LogEvent(r.Context(), audit.EventRegister, zap.String("email", email))
	writeJSON(w, http.StatusOK, registerResponse{
		Success: true,
		Message: "Registration successful. Waiting for admin approval.",
		Status:  "pending_approval",
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "Email and password required")
		return
	}
	res, err := a.access.Login(r.Context(), email, req.Password)
	result := loginOutcome(err)
	obs.ObserveLogin(result)
	_ = a.auditor.LogEvent(r.Context(), audit.EventLogin, zap.String("email", email), zap.String("result", result))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		Message:   "Login successful",
		Email:     res.Email,
		Role:      res.Role,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	})
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, access.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, access.ErrForbidden):
		return "forbidden"
	case errors.Is(err, access.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (a *API) handleAccessRequests(w http.ResponseWriter, r *http.Request) {
	email, ok := caller(w, r, r.URL.Query().Get("admin_email"))
	if !ok {
		return
	}
	reqs, err := a.access.ListPendingRequests(r.Context(), email)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	views := make([]accessRequestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, accessRequestView(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": views})
}

func (a *API) handleDecision(decision access.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req decisionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		email, ok := caller(w, r, req.AdminEmail)
		if !ok {
			return
		}
		target := strings.TrimSpace(req.UserEmail)
		if err := a.access.DecideAccess(r.Context(), email, target, decision); err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		obs.ObserveAccessDecision(string(decision))
		_ = a.auditor.LogEvent(r.Context(), audit.EventDecide,
			zap.String("target", target),
			zap.String("decision", string(decision)),
		)
		verb := "granted"
		if decision == access.DecisionDeny {
			verb = "denied"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("Access %s to %s", verb, target),
		})
	}
}
