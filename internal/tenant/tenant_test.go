package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctiondesk.app/internal/docstore"
)

var errNoAccount = errors.New("no account")

type staticResolver map[string]string

func (r staticResolver) TenantID(_ context.Context, email string) (string, error) {
	id, ok := r[email]
	if !ok {
		return "", errNoAccount
	}
	return id, nil
}

func newTestService(t *testing.T) (*Service, docstore.Store) {
	t.Helper()
	store := docstore.NewMemory()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, staticResolver{"a@x": "T-A", "b@x": "T-B"}, WithClock(func() time.Time { return fixed }))
	return svc, store
}

func TestParseKind(t *testing.T) {
	for _, k := range []string{"teams", "players", "settings"} {
		got, err := ParseKind(k)
		require.NoError(t, err)
		assert.Equal(t, Kind(k), got)
	}
	_, err := ParseKind("auctions")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestGetDocumentDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	teams, err := svc.GetDocument(ctx, "a@x", KindTeams)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(teams))

	settings, err := svc.GetDocument(ctx, "a@x", KindSettings)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(settings))

	_, err = svc.GetDocument(ctx, "ghost@x", KindTeams)
	assert.ErrorIs(t, err, errNoAccount)

	_, err = svc.GetDocument(ctx, "a@x", Kind("auctions"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSaveThenGetRoundTrips(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	payload := json.RawMessage(`[{"id":1,"name":"Lions","budget":1000000}]`)

	require.NoError(t, svc.SaveDocument(ctx, "a@x", KindTeams, payload))
	got, err := svc.GetDocument(ctx, "a@x", KindTeams)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))

	other, err := svc.GetDocument(ctx, "b@x", KindTeams)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(other), "tenants must be isolated")
}

func TestSaveDocumentValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SaveDocument(ctx, "a@x", KindPlayers, json.RawMessage(`{bad`)), ErrInvalidInput)
	assert.ErrorIs(t, svc.SaveDocument(ctx, "ghost@x", KindPlayers, json.RawMessage(`[]`)), errNoAccount)
	assert.ErrorIs(t, svc.SaveDocument(ctx, "", KindPlayers, json.RawMessage(`[]`)), ErrInvalidInput)

	require.NoError(t, svc.SaveDocument(ctx, "a@x", KindSettings, json.RawMessage(`{"theme":"dark"}`)))
	require.NoError(t, svc.SaveDocument(ctx, "a@x", KindSettings, nil))
	got, err := svc.GetDocument(ctx, "a@x", KindSettings)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got), "nil data saves the default")
}

func TestProvisionOverwrites(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SaveDocument(ctx, "a@x", KindPlayers, json.RawMessage(`[1,2]`)))

	require.NoError(t, svc.Provision(ctx, "T-A"))
	docs, err := store.List(ctx, "tenants/T-A")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	players, err := svc.GetDocument(ctx, "a@x", KindPlayers)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(players))
}

func TestEnsureProvisionedKeepsExistingData(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureProvisioned(ctx, "T-A"))
	docs, err := store.List(ctx, "tenants/T-A")
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	require.NoError(t, svc.SaveDocument(ctx, "a@x", KindTeams, json.RawMessage(`[{"id":7}]`)))
	require.NoError(t, svc.EnsureProvisioned(ctx, "T-A"))
	teams, err := svc.GetDocument(ctx, "a@x", KindTeams)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":7}]`, string(teams))
}

func TestExportImportReset(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SaveDocument(ctx, "a@x", KindTeams, json.RawMessage(`[{"id":1}]`)))
	require.NoError(t, svc.SaveDocument(ctx, "a@x", KindSettings, json.RawMessage(`{"currency":"INR"}`)))

	bundle, err := svc.Export(ctx, "a@x")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(bundle.Teams))
	assert.JSONEq(t, `[]`, string(bundle.Players))
	assert.JSONEq(t, `{"currency":"INR"}`, string(bundle.Settings))
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), bundle.ExportDate)

	require.NoError(t, svc.Import(ctx, "b@x", bundle))
	teams, err := svc.GetDocument(ctx, "b@x", KindTeams)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(teams))

	bad := bundle
	bad.Settings = json.RawMessage(`[]`)
	assert.ErrorIs(t, svc.Import(ctx, "b@x", bad), ErrInvalidInput)
	bad = bundle
	bad.Players = nil
	assert.ErrorIs(t, svc.Import(ctx, "b@x", bad), ErrInvalidInput)

	require.NoError(t, svc.Reset(ctx, "b@x"))
	teams, err = svc.GetDocument(ctx, "b@x", KindTeams)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(teams))
	settings, err := svc.GetDocument(ctx, "b@x", KindSettings)
	require.NoError(t, err)
	assert.JSONEq(t, string(AuctionSettings), string(settings))
}

func TestResetUsesConfiguredSettings(t *testing.T) {
	store := docstore.NewMemory()
	svc := NewService(store, staticResolver{"a@x": "T-A"},
		WithResetSettings(json.RawMessage(`{"totalPurse":500}`)))
	ctx := context.Background()

	require.NoError(t, svc.Reset(ctx, "a@x"))
	settings, err := svc.GetDocument(ctx, "a@x", KindSettings)
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalPurse":500}`, string(settings))

	ignored := NewService(store, staticResolver{"a@x": "T-A"}, WithResetSettings(json.RawMessage(`[1]`)))
	require.NoError(t, ignored.Reset(ctx, "a@x"))
	settings, err = svc.GetDocument(ctx, "a@x", KindSettings)
	require.NoError(t, err)
	assert.JSONEq(t, string(AuctionSettings), string(settings))
}
