// Package tenant stores the three JSON documents (teams, players, settings) that make
// up one account's auction workspace.
package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"auctiondesk.app/internal/docstore"
)

var (
	ErrUnknownKind  = errors.New("tenant: unknown document kind")
	ErrInvalidInput = errors.New("tenant: invalid document")
)

// Kind names one of the per-tenant documents.
type Kind string

const (
	KindTeams    Kind = "teams"
	KindPlayers  Kind = "players"
	KindSettings Kind = "settings"
)

// Kinds lists every document kind in provisioning order.
var Kinds = []Kind{KindTeams, KindPlayers, KindSettings}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTeams, KindPlayers, KindSettings:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Default is the empty payload of a kind: an array for teams and players, an object
// for settings.
func (k Kind) Default() json.RawMessage {
	if k == KindSettings {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(`[]`)
}

// AuctionSettings is what Reset writes to the settings document unless
// WithResetSettings overrides it: squad size, purse and the bid ladder.
var AuctionSettings = json.RawMessage(`{"maxPlayersPerTeam":9,"totalPurse":1000000,"defaultBasePrice":30000,"bidIncrement1":10000,"bidIncrement2":20000,"bidIncrement3":30000}`)

// AccountResolver maps a login email to the tenant namespace it owns. Its not-found
// error is passed through unchanged.
type AccountResolver interface {
	TenantID(ctx context.Context, email string) (string, error)
}

// Bundle is the export/import envelope of a whole workspace.
type Bundle struct {
	Teams      json.RawMessage `json:"teams"`
	Players    json.RawMessage `json:"players"`
	Settings   json.RawMessage `json:"settings"`
	ExportDate time.Time       `json:"export_date"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Service reads and writes tenant documents.
type Service struct {
	store    docstore.Store
	accounts AccountResolver
	logger   *zap.Logger
	now      func() time.Time
	reset    json.RawMessage
}

// Option configures Service behavior.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for export dates.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithResetSettings sets the settings payload written by Reset. Anything other than
// a JSON object is ignored.
func WithResetSettings(raw json.RawMessage) Option {
	return func(s *Service) {
		if isJSON(raw, '{') {
			s.reset = raw
		}
	}
}

// NewService builds a tenant service. accounts may be set later with SetAccounts
// because the access service and the tenant service depend on each other.
func NewService(store docstore.Store, accounts AccountResolver, opts ...Option) *Service {
	s := &Service{store: store, accounts: accounts, logger: zap.NewNop(), now: time.Now, reset: AuctionSettings}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAccounts installs the account resolver.
func (s *Service) SetAccounts(accounts AccountResolver) { s.accounts = accounts }

// GetDocument returns the stored payload of kind, or its empty default when the
// document has never been written.
func (s *Service) GetDocument(ctx context.Context, email string, kind Kind) (json.RawMessage, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	tenantID, err := s.resolve(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, tenantID, kind)
}

// SaveDocument overwrites kind with data. A nil or null data saves the kind's default.
func (s *Service) SaveDocument(ctx context.Context, email string, kind Kind, data json.RawMessage) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = nil
	}
	if data != nil && !json.Valid(data) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrInvalidInput, kind)
	}
	tenantID, err := s.resolve(ctx, email)
	if err != nil {
		return err
	}
	return s.put(ctx, tenantID, kind, data)
}

// Provision writes the default of every kind, overwriting existing documents.
func (s *Service) Provision(ctx context.Context, tenantID string) error {
	for _, kind := range Kinds {
		if err := s.put(ctx, tenantID, kind, nil); err != nil {
			return err
		}
	}
	s.logger.Info("Tenant provisioned", zap.String("tenant_id", tenantID))
	return nil
}

// EnsureProvisioned provisions the tenant when its teams document is missing.
func (s *Service) EnsureProvisioned(ctx context.Context, tenantID string) error {
	_, err := s.store.Get(ctx, docKey(tenantID, KindTeams))
	if err == nil {
		return nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("tenant: probe %s: %w", tenantID, err)
	}
	return s.Provision(ctx, tenantID)
}

// Export returns all three documents in one bundle.
func (s *Service) Export(ctx context.Context, email string) (Bundle, error) {
	tenantID, err := s.resolve(ctx, email)
	if err != nil {
		return Bundle{}, err
	}
	docs := make(map[Kind]json.RawMessage, len(Kinds))
	for _, kind := range Kinds {
		data, err := s.get(ctx, tenantID, kind)
		if err != nil {
			return Bundle{}, err
		}
		docs[kind] = data
	}
	return Bundle{
		Teams:      docs[KindTeams],
		Players:    docs[KindPlayers],
		Settings:   docs[KindSettings],
		ExportDate: s.now().UTC(),
	}, nil
}

// Import validates the bundle shape and replaces all three documents.
func (s *Service) Import(ctx context.Context, email string, b Bundle) error {
	if !isJSON(b.Teams, '[') || !isJSON(b.Players, '[') {
		return fmt.Errorf("%w: teams and players must be arrays", ErrInvalidInput)
	}
	if !isJSON(b.Settings, '{') {
		return fmt.Errorf("%w: settings must be an object", ErrInvalidInput)
	}
	tenantID, err := s.resolve(ctx, email)
	if err != nil {
		return err
	}
	docs := map[Kind]json.RawMessage{KindTeams: b.Teams, KindPlayers: b.Players, KindSettings: b.Settings}
	for _, kind := range Kinds {
		if err := s.put(ctx, tenantID, kind, docs[kind]); err != nil {
			return err
		}
	}
	return nil
}

// Reset empties teams and players and restores the configured auction settings.
func (s *Service) Reset(ctx context.Context, email string) error {
	tenantID, err := s.resolve(ctx, email)
	if err != nil {
		return err
	}
	docs := map[Kind]json.RawMessage{KindTeams: nil, KindPlayers: nil, KindSettings: s.reset}
	for _, kind := range Kinds {
		if err := s.put(ctx, tenantID, kind, docs[kind]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	if s.accounts == nil {
		return "", errors.New("tenant: account resolver not configured")
	}
	return s.accounts.TenantID(ctx, email)
}

func (s *Service) get(ctx context.Context, tenantID string, kind Kind) (json.RawMessage, error) {
	var env envelope
	err := docstore.GetJSON(ctx, s.store, docKey(tenantID, kind), &env)
	if errors.Is(err, docstore.ErrNotFound) {
		return kind.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("tenant: load %s: %w", kind, err)
	}
	if env.Data == nil {
		return kind.Default(), nil
	}
	return env.Data, nil
}

func (s *Service) put(ctx context.Context, tenantID string, kind Kind, data json.RawMessage) error {
	if data == nil {
		data = kind.Default()
	}
	if err := docstore.SetJSON(ctx, s.store, docKey(tenantID, kind), envelope{Data: data}); err != nil {
		return fmt.Errorf("tenant: save %s: %w", kind, err)
	}
	return nil
}

func docKey(tenantID string, kind Kind) docstore.Key {
	return docstore.Key{Collection: "tenants/" + tenantID, ID: string(kind)}
}

func isJSON(raw json.RawMessage, open byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == open && json.Valid(trimmed)
}
