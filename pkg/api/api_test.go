package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/castellan-labs/disburse/pkg/api"
	"github.com/castellan-labs/disburse/pkg/auth"
	"github.com/castellan-labs/disburse/pkg/engine"
	"github.com/castellan-labs/disburse/pkg/schedule"
	"github.com/castellan-labs/disburse/pkg/store"
	"github.com/castellan-labs/disburse/pkg/transfer"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "api-test-secret"

type fixture struct {
	server   *httptest.Server
	recorder *transfer.Recorder
	blocks   *engine.SystemBlockSource
}

func newFixture(t *testing.T, entries ...schedule.Entry) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	eng := engine.New(st)
	require.NoError(t, eng.Initialize(context.Background(), "owner0001", entries))

	rec := transfer.NewRecorder()
	blocks := engine.NewSystemBlockSource(0)
	srv := api.NewServer(eng, blocks, rec, auth.NewJWTValidator([]byte(testSecret)), nil)
	ts := httptest.NewServer(srv.Handler(api.NewSweepLimiter(100, 100)))
	t.Cleanup(ts.Close)

	return &fixture{server: ts, recorder: rec, blocks: blocks}
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func nativeEntry(recipient string, amount int64, height uint64) schedule.Entry {
	return schedule.Entry{
		Recipient: recipient,
		Asset:     schedule.NewNativeAsset("u", amount),
		Trigger:   schedule.AtHeight(height),
	}
}

func TestAPI_SweepFlow(t *testing.T) {
	f := newFixture(t, nativeEntry("payee0002", 1, 5))

	// Height 0: nothing payable.
	resp := doJSON(t, http.MethodPost, f.server.URL+"/v1/sweep", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sweep api.SweepResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sweep))
	assert.Empty(t, sweep.Instructions)

	// Height 5: one instruction, handed to the executor.
	f.blocks.ObserveHeight(5)
	resp = doJSON(t, http.MethodPost, f.server.URL+"/v1/sweep", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sweep))
	require.Len(t, sweep.Instructions, 1)
	assert.True(t, sweep.Executed)
	assert.Equal(t, "payee0002", sweep.Instructions[0].Recipient)
	assert.Len(t, f.recorder.Executed(), 1)

	// Sweep again: idempotent, nothing executed twice.
	resp = doJSON(t, http.MethodPost, f.server.URL+"/v1/sweep", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sweep))
	assert.Empty(t, sweep.Instructions)
	assert.Len(t, f.recorder.Executed(), 1)
}

func TestAPI_AddObligationsAuth(t *testing.T) {
	f := newFixture(t)
	body := api.AddObligationsRequest{Schedule: []schedule.Entry{nativeEntry("payee0002", 1, 5)}}

	// No token.
	resp := doJSON(t, http.MethodPost, f.server.URL+"/v1/obligations", "", body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Authenticated but not the owner.
	resp = doJSON(t, http.MethodPost, f.server.URL+"/v1/obligations", bearer(t, "intruder"), body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Store unchanged by the rejected calls.
	resp = doJSON(t, http.MethodGet, f.server.URL+"/v1/obligations", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Obligations []schedule.Obligation `json:"obligations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Empty(t, list.Obligations)

	// Owner succeeds.
	resp = doJSON(t, http.MethodPost, f.server.URL+"/v1/obligations", bearer(t, "owner0001"), body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAPI_AddObligationsRejectsMalformedEntry(t *testing.T) {
	f := newFixture(t)
	body := api.AddObligationsRequest{Schedule: []schedule.Entry{{
		Recipient: "payee0002",
		Asset:     schedule.Asset{Kind: schedule.AssetNative, Denom: "u", Contract: "token1", Amount: 5},
		Trigger:   schedule.Never(),
	}}}

	resp := doJSON(t, http.MethodPost, f.server.URL+"/v1/obligations", bearer(t, "owner0001"), body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_StopPayment(t *testing.T) {
	f := newFixture(t, nativeEntry("payee0002", 3, 5))

	resp := doJSON(t, http.MethodPost, f.server.URL+"/v1/obligations/1/stop", bearer(t, "owner0001"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refund api.InstructionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refund))
	assert.Equal(t, "owner0001", refund.Recipient, "refund goes to the owner")
	assert.Equal(t, int64(3), refund.Amount)

	// Second stop conflicts.
	resp = doJSON(t, http.MethodPost, f.server.URL+"/v1/obligations/1/stop", bearer(t, "owner0001"), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown id.
	resp = doJSON(t, http.MethodPost, f.server.URL+"/v1/obligations/99/stop", bearer(t, "owner0001"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Non-owner.
	resp = doJSON(t, http.MethodPost, f.server.URL+"/v1/obligations/1/stop", bearer(t, "intruder"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_UpdateOwner(t *testing.T) {
	f := newFixture(t)

	resp := doJSON(t, http.MethodPut, f.server.URL+"/v1/config/owner", bearer(t, "owner0001"), api.UpdateOwnerRequest{Owner: "owner0002"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, f.server.URL+"/v1/config", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cfg store.Config
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, "owner0002", cfg.Owner)

	// Old owner is locked out immediately.
	resp = doJSON(t, http.MethodPut, f.server.URL+"/v1/config/owner", bearer(t, "owner0001"), api.UpdateOwnerRequest{Owner: "owner0003"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_SweepRateLimit(t *testing.T) {
	st := store.NewMemoryStore()
	eng := engine.New(st)
	require.NoError(t, eng.Initialize(context.Background(), "owner0001", nil))

	srv := api.NewServer(eng, engine.NewSystemBlockSource(0), transfer.NewRecorder(), nil, nil)
	ts := httptest.NewServer(srv.Handler(api.NewSweepLimiter(1, 1)))
	t.Cleanup(ts.Close)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/sweep", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/v1/sweep", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestAPI_HealthIsPublic(t *testing.T) {
	f := newFixture(t)
	resp := doJSON(t, http.MethodGet, f.server.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
