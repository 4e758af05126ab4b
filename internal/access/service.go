// Package access owns accounts, access requests and sessions, and decides whether an
// email may use tenant storage.
package access

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"auctiondesk.app/internal/docstore"
	"auctiondesk.app/internal/ids"
)

const (
	accountsCollection = "accounts"
	requestsCollection = "access_requests"
)

// Provisioner creates the default tenant documents.
type Provisioner interface {
	// Provision writes (or overwrites) every default document of the tenant.
	Provision(ctx context.Context, tenantID string) error
	// EnsureProvisioned writes the defaults only when they are missing.
	EnsureProvisioned(ctx context.Context, tenantID string) error
}

// Service implements registration, login and the admin approval workflow.
type Service struct {
	store       docstore.Store
	provisioner Provisioner
	sessions    *Sessions
	logger      *zap.Logger
	now         func() time.Time
	hashCost    int

	adminEmail    string
	adminPassword []byte
}

// Option configures Service behavior.
type Option func(*Service) error

// WithProvisioner sets the tenant document provisioner.
func WithProvisioner(p Provisioner) Option {
	return func(s *Service) error {
		s.provisioner = p
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
			if s.sessions != nil {
				s.sessions.now = fn
			}
		}
		return nil
	}
}

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) error {
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return fmt.Errorf("access: bcrypt cost %d out of range", cost)
		}
		s.hashCost = cost
		return nil
	}
}

// NewService builds the service. adminEmail and adminPassword identify the single
// administrator and come from configuration.
func NewService(store docstore.Store, sessions *Sessions, adminEmail, adminPassword string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("access: store is required")
	}
	if sessions == nil {
		return nil, errors.New("access: sessions are required")
	}
	adminEmail = strings.TrimSpace(adminEmail)
	if adminEmail == "" || adminPassword == "" {
		return nil, errors.New("access: admin identity is not configured")
	}
	s := &Service{
		store:         store,
		sessions:      sessions,
		logger:        zap.NewNop(),
		now:           time.Now,
		hashCost:      bcrypt.DefaultCost,
		adminEmail:    adminEmail,
		adminPassword: []byte(adminPassword),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// IsAdmin reports whether email is the configured administrator.
func (s *Service) IsAdmin(email string) bool {
	return email != "" && email == s.adminEmail
}

// HasAccess is true for the admin and for accounts whose request is approved.
func (s *Service) HasAccess(ctx context.Context, email string) (bool, error) {
	if s.IsAdmin(email) {
		return true, nil
	}
	req, err := s.request(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return req.Status == StatusApproved, nil
}

// EnsureAdmin seeds the admin account if absent and forces its role to admin.
func (s *Service) EnsureAdmin(ctx context.Context) error {
	created, err := s.createAdmin(ctx)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("Admin account created", zap.String("email", s.adminEmail))
		return nil
	}
	if err := s.store.Update(ctx, accountKey(s.adminEmail), map[string]any{"role": RoleAdmin}); err != nil {
		return fmt.Errorf("access: force admin role: %w", err)
	}
	s.logger.Info("Admin role enforced", zap.String("email", s.adminEmail))
	return nil
}

// Register creates a user account and a pending access request.
func (s *Service) Register(ctx context.Context, email, password string) (AccessRequest, error) {
	if email == "" || password == "" {
		return AccessRequest{}, fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}
	hash, err := HashPassword(password, s.hashCost)
	if err != nil {
		return AccessRequest{}, err
	}
	now := s.now().UTC()
	acct := Account{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		TenantID:     ids.NewTenantID(),
		CreatedAt:    now,
	}
	if err := docstore.CreateJSON(ctx, s.store, accountKey(email), acct); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return AccessRequest{}, ErrConflict
		}
		return AccessRequest{}, fmt.Errorf("access: create account: %w", err)
	}
	req := AccessRequest{Email: email, Status: StatusPending, RequestedAt: now}
	if err := docstore.SetJSON(ctx, s.store, requestKey(email), req); err != nil {
		err = fmt.Errorf("access: create access request: %w", err)
		// An account without a request can never be approved.
		if rbErr := s.store.Delete(context.WithoutCancel(ctx), accountKey(email)); rbErr != nil {
			s.logger.Error("Account rollback failed", zap.String("email", email), zap.Error(rbErr))
			err = multierr.Append(err, fmt.Errorf("access: roll back account: %w", rbErr))
		}
		return AccessRequest{}, err
	}
	return req, nil
}

// Login verifies credentials and access, provisions tenant documents for users on
// first use and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}
	admin := s.IsAdmin(email)

	acct, err := s.Account(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound) && admin:
		if !s.checkAdminPassword(password) {
			return LoginResult{}, ErrUnauthorized
		}
		if _, err := s.createAdmin(ctx); err != nil {
			return LoginResult{}, err
		}
		if acct, err = s.Account(ctx, email); err != nil {
			return LoginResult{}, err
		}
	case err != nil:
		return LoginResult{}, err
	}

	if admin {
		// The stored hash is ignored for the admin; the configured secret is authoritative.
		if !s.checkAdminPassword(password) {
			return LoginResult{}, ErrUnauthorized
		}
	} else if err := VerifyPassword(acct.PasswordHash, password); err != nil {
		return LoginResult{}, ErrUnauthorized
	}

	if !admin {
		req, err := s.request(ctx, email)
		switch {
		case errors.Is(err, ErrNotFound):
			return LoginResult{}, &DeniedError{Status: StatusNoRequest}
		case err != nil:
			return LoginResult{}, err
		case req.Status != StatusApproved:
			return LoginResult{}, &DeniedError{Status: req.Status}
		}
		if s.provisioner != nil {
			if err := s.provisioner.EnsureProvisioned(ctx, acct.TenantID); err != nil {
				return LoginResult{}, fmt.Errorf("access: provision tenant: %w", err)
			}
		}
	}

	role := acct.Role
	switch {
	case admin:
		role = RoleAdmin
	case role == "":
		role = RoleUser
	}
	token, exp, err := s.sessions.Issue(email, role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Email: email, Role: role, Token: token, ExpiresAt: exp}, nil
}

// Authenticate verifies a session token and re-checks that the account still has access.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.sessions.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	acct, err := s.Account(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, ErrInvalidToken
	}
	if err != nil {
		return Principal{}, err
	}
	ok, err := s.HasAccess(ctx, acct.Email)
	if err != nil {
		return Principal{}, err
	}
	if !ok {
		return Principal{}, ErrForbidden
	}
	role := acct.Role
	if s.IsAdmin(acct.Email) {
		role = RoleAdmin
	}
	return Principal{Email: acct.Email, Role: role}, nil
}

// ListPendingRequests returns every pending request except the admin's, oldest first.
func (s *Service) ListPendingRequests(ctx context.Context, caller string) ([]AccessRequest, error) {
	if !s.IsAdmin(caller) {
		return nil, ErrForbidden
	}
	docs, err := s.store.List(ctx, requestsCollection)
	if err != nil {
		return nil, fmt.Errorf("access: list requests: %w", err)
	}
	out := make([]AccessRequest, 0, len(docs))
	for _, doc := range docs {
		var req AccessRequest
		if err := json.Unmarshal(doc.Data, &req); err != nil {
			s.logger.Warn("Skipping unreadable access request", zap.String("id", doc.Key.ID), zap.Error(err))
			continue
		}
		if req.Email == "" {
			req.Email = doc.Key.ID
		}
		if req.Status != StatusPending || s.IsAdmin(req.Email) {
			continue
		}
		out = append(out, req)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

// DecideAccess records an admin decision on target's access request. Approving also
// (re)provisions the target's tenant documents with empty defaults.
func (s *Service) DecideAccess(ctx context.Context, caller, target string, decision Decision) error {
	if !s.IsAdmin(caller) {
		return ErrForbidden
	}
	if target == "" {
		return fmt.Errorf("%w: user email required", ErrInvalidInput)
	}
	status, ok := decision.status()
	if !ok {
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, decision)
	}
	acct, err := s.Account(ctx, target)
	if err != nil {
		return err
	}
	err = s.store.Update(ctx, requestKey(target), map[string]any{
		"status":      status,
		"approved_at": s.now().UTC(),
		"approved_by": caller,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: no access request for %s", ErrNotFound, target)
	}
	if err != nil {
		return fmt.Errorf("access: update request: %w", err)
	}
	if status == StatusApproved && s.provisioner != nil {
		if err := s.provisioner.Provision(ctx, acct.TenantID); err != nil {
			return fmt.Errorf("access: provision tenant: %w", err)
		}
	}
	return nil
}

// Account loads the account for email.
func (s *Service) Account(ctx context.Context, email string) (Account, error) {
	if email == "" {
		return Account{}, ErrNotFound
	}
	var acct Account
	err := docstore.GetJSON(ctx, s.store, accountKey(email), &acct)
	if errors.Is(err, docstore.ErrNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("access: load account: %w", err)
	}
	if acct.Email == "" {
		acct.Email = email
	}
	return acct, nil
}

// TenantID resolves the storage namespace of an account.
func (s *Service) TenantID(ctx context.Context, email string) (string, error) {
	acct, err := s.Account(ctx, email)
	if err != nil {
		return "", err
	}
	if acct.TenantID == "" {
		return "", fmt.Errorf("access: account %s has no tenant id", email)
	}
	return acct.TenantID, nil
}

// Request returns the access request of email.
func (s *Service) Request(ctx context.Context, email string) (AccessRequest, error) {
	return s.request(ctx, email)
}

func (s *Service) request(ctx context.Context, email string) (AccessRequest, error) {
	var req AccessRequest
	err := docstore.GetJSON(ctx, s.store, requestKey(email), &req)
	if errors.Is(err, docstore.ErrNotFound) {
		return AccessRequest{}, ErrNotFound
	}
	if err != nil {
		return AccessRequest{}, fmt.Errorf("access: load access request: %w", err)
	}
	return req, nil
}

// createAdmin stores the admin account if it does not exist yet.
func (s *Service) createAdmin(ctx context.Context) (bool, error) {
	hash, err := HashPassword(string(s.adminPassword), s.hashCost)
	if err != nil {
		return false, err
	}
	acct := Account{
		Email:        s.adminEmail,
		PasswordHash: hash,
		Role:         RoleAdmin,
		TenantID:     ids.NewTenantID(),
		CreatedAt:    s.now().UTC(),
	}
	err = docstore.CreateJSON(ctx, s.store, accountKey(s.adminEmail), acct)
	if errors.Is(err, docstore.ErrExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("access: create admin: %w", err)
	}
	return true, nil
}

func (s *Service) checkAdminPassword(password string) bool {
	return subtle.ConstantTimeCompare([]byte(password), s.adminPassword) == 1
}

func accountKey(email string) docstore.Key {
	return docstore.Key{Collection: accountsCollection, ID: email}
}

func requestKey(email string) docstore.Key {
	return docstore.Key{Collection: requestsCollection, ID: email}
}
