package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracvault/internal/journal"
	"fracvault/internal/reclaim"
	"fracvault/internal/reclaim/orchestrator"
	"fracvault/internal/vault"
	"fracvault/internal/vault/store"
)

type fakeVaults struct {
	mu        sync.Mutex
	vaults    []vault.Vault
	positions vault.UserPosition

	positionsErr error
	staleCalls   int
	metaCalls    int
}

func (f *fakeVaults) Snapshot() store.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return store.Snapshot{Vaults: append([]vault.Vault(nil), f.vaults...), LastFetch: time.Now()}
}

func (f *fakeVaults) VaultsByStatus(status vault.Status) []vault.Vault {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []vault.Vault
	for _, v := range f.vaults {
		if v.Status == status {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeVaults) LatestVaults(limit int) []vault.Vault {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.vaults) {
		limit = len(f.vaults)
	}
	return append([]vault.Vault(nil), f.vaults[:limit]...)
}

func (f *fakeVaults) ByAddress(address solana.PublicKey) (vault.Vault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.vaults {
		if v.Address == address {
			return v, true
		}
	}
	return vault.Vault{}, false
}

func (f *fakeVaults) FetchIfStale(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleCalls++
	return nil
}

func (f *fakeVaults) FetchMetadataFor(_ context.Context, _ []solana.PublicKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	return nil
}

func (f *fakeVaults) FetchUserPositions(_ context.Context, _ solana.PublicKey) (vault.UserPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, f.positionsErr
}

type fakeReclaims struct {
	receipt    orchestrator.Receipt
	sig        solana.Signature
	initErr    error
	cancelErr  error
	finalError error
}

func (f *fakeReclaims) InitializeReclaim(_ context.Context, _, _ solana.PublicKey) (orchestrator.Receipt, error) {
	return f.receipt, f.initErr
}

func (f *fakeReclaims) CancelReclaim(_ context.Context, _ solana.PublicKey) (solana.Signature, error) {
	return f.sig, f.cancelErr
}

func (f *fakeReclaims) FinalizeReclaim(_ context.Context, _, _ solana.PublicKey) (solana.Signature, error) {
	return f.sig, f.finalError
}

func sampleVault(status vault.Status) vault.Vault {
	return vault.Vault{
		Address:       solana.NewWallet().PublicKey(),
		AssetID:       solana.NewWallet().PublicKey(),
		FractionMint:  solana.NewWallet().PublicKey(),
		Creator:       solana.NewWallet().PublicKey(),
		TotalSupply:   1_000_000,
		MinReclaimBps: 8000,
		Status:        status,
		CreatedAt:     time.Now().Add(-time.Hour),
	}
}

func newTestRouter(vaults VaultService, reclaims ReclaimService, reader JournalReader) http.Handler {
	h := NewHandler(vaults, reclaims, reader, log.New(io.Discard, "", 0))
	return NewRouter(h)
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestHandleListVaults(t *testing.T) {
	active := sampleVault(vault.StatusActive)
	initiated := sampleVault(vault.StatusReclaimInitiated)
	vaults := &fakeVaults{vaults: []vault.Vault{active, initiated}}
	router := newTestRouter(vaults, &fakeReclaims{}, nil)

	t.Run("all vaults", func(t *testing.T) {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/vaults", nil))

		require.Equal(t, http.StatusOK, res.Code)
		body := decodeBody[collectionResponse](t, res)
		assert.Len(t, body.Vaults, 2)
	})

	t.Run("filtered by status", func(t *testing.T) {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/vaults?status=active", nil))

		require.Equal(t, http.StatusOK, res.Code)
		body := decodeBody[collectionResponse](t, res)
		require.Len(t, body.Vaults, 1)
		assert.Equal(t, active.Address.String(), body.Vaults[0].Address)
	})

	t.Run("unknown status", func(t *testing.T) {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/vaults?status=bogus", nil))
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	vaults.mu.Lock()
	staleCalls := vaults.staleCalls
	vaults.mu.Unlock()
	assert.Equal(t, 2, staleCalls, "refresh-on-read for each successful listing")
}

func TestHandleLatestVaults(t *testing.T) {
	vaults := &fakeVaults{vaults: []vault.Vault{sampleVault(vault.StatusActive), sampleVault(vault.StatusActive)}}
	router := newTestRouter(vaults, &fakeReclaims{}, nil)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/vaults/latest?limit=1", nil))
	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[collectionResponse](t, res)
	assert.Len(t, body.Vaults, 1)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/vaults/latest?limit=-3", nil))
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHandleGetVault(t *testing.T) {
	v := sampleVault(vault.StatusActive)
	router := newTestRouter(&fakeVaults{vaults: []vault.Vault{v}}, &fakeReclaims{}, nil)

	t.Run("found", func(t *testing.T) {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/vaults/"+v.Address.String(), nil))

		require.Equal(t, http.StatusOK, res.Code)
		body := decodeBody[vaultView](t, res)
		assert.Equal(t, v.Address.String(), body.Address)
		assert.Equal(t, "active", body.Status)
	})

	t.Run("unknown vault", func(t *testing.T) {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/vaults/"+solana.NewWallet().PublicKey().String(), nil))
		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("malformed address", func(t *testing.T) {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/vaults/not-an-address", nil))
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})
}

func TestHandleInitializeReclaim(t *testing.T) {
	v := sampleVault(vault.StatusActive)
	sig := solana.SignatureFromBytes(append([]byte{1}, make([]byte, 63)...))
	reclaims := &fakeReclaims{receipt: orchestrator.Receipt{Signature: sig, Path: reclaim.PathEscrow}}
	router := newTestRouter(&fakeVaults{vaults: []vault.Vault{v}}, reclaims, nil)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/vaults/"+v.Address.String()+"/reclaim/initialize", nil))

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[actionResponse](t, res)
	assert.Equal(t, sig.String(), body.Signature)
	assert.Equal(t, "escrow", body.Path)
}

func TestErrorTranslation(t *testing.T) {
	v := sampleVault(vault.StatusActive)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid state", reclaim.ErrInvalidVaultState, http.StatusConflict},
		{"not eligible", reclaim.ErrNotEligible, http.StatusConflict},
		{"escrow active", reclaim.ErrEscrowPeriodActive, http.StatusConflict},
		{"unauthorized", reclaim.ErrUnauthorized, http.StatusForbidden},
		{"wallet missing", reclaim.ErrWalletNotConnected, http.StatusServiceUnavailable},
		{"proof unavailable", reclaim.ErrProofUnavailable, http.StatusServiceUnavailable},
		{"rejected on chain", &reclaim.RejectedError{Reason: "custom program error: 0x1"}, http.StatusUnprocessableEntity},
		{"too large", reclaim.ErrTransactionTooLarge, http.StatusUnprocessableEntity},
		{"submission failed", reclaim.ErrSubmissionFailed, http.StatusBadGateway},
		{"confirmation timeout", reclaim.ErrConfirmationTimeout, http.StatusGatewayTimeout},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeVaults{vaults: []vault.Vault{v}}, &fakeReclaims{cancelErr: tc.err}, nil)
			res := httptest.NewRecorder()
			router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/vaults/"+v.Address.String()+"/reclaim/cancel", nil))
			assert.Equal(t, tc.want, res.Code)
		})
	}
}

func TestHandlePositions(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	vaults := &fakeVaults{positions: vault.UserPosition{mint: 850_000}}
	router := newTestRouter(vaults, &fakeReclaims{}, nil)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/positions/"+owner.String(), nil))

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[positionsResponse](t, res)
	assert.Equal(t, owner.String(), body.Owner)
	assert.Equal(t, uint64(850_000), body.Balances[mint.String()])

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/positions/garbage", nil))
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHandleVaultJournal(t *testing.T) {
	v := sampleVault(vault.StatusReclaimInitiated)
	store := journal.NewInMemory()
	pub := journal.NewPublisher(store)
	require.NoError(t, pub.Record(context.Background(), journal.Event{
		Kind:  journal.KindReclaimInitialized,
		Vault: v.Address.String(),
	}))

	router := newTestRouter(&fakeVaults{vaults: []vault.Vault{v}}, &fakeReclaims{}, pub)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/vaults/"+v.Address.String()+"/journal", nil))

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[journalResponse](t, res)
	require.Len(t, body.Events, 1)
	assert.Equal(t, string(journal.KindReclaimInitialized), body.Events[0].Kind)
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(&fakeVaults{}, &fakeReclaims{}, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, res.Code)
}
