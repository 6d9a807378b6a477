// Package httptransport is the thin HTTP layer over the vault cache and the
// reclaim orchestrator. Handlers translate between JSON and domain types;
// business rules stay below.
package httptransport

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fracvault/internal/journal"
	"fracvault/internal/reclaim/orchestrator"
	"fracvault/internal/vault"
	"fracvault/internal/vault/store"
)

// VaultService is the cache surface the read endpoints use.
type VaultService interface {
	Snapshot() store.Snapshot
	VaultsByStatus(status vault.Status) []vault.Vault
	LatestVaults(limit int) []vault.Vault
	ByAddress(address solana.PublicKey) (vault.Vault, bool)
	FetchIfStale(ctx context.Context) error
	FetchMetadataFor(ctx context.Context, assetIDs []solana.PublicKey) error
	FetchUserPositions(ctx context.Context, owner solana.PublicKey) (vault.UserPosition, error)
}

// ReclaimService executes reclaim actions.
type ReclaimService interface {
	InitializeReclaim(ctx context.Context, vaultID, assetID solana.PublicKey) (orchestrator.Receipt, error)
	CancelReclaim(ctx context.Context, vaultID solana.PublicKey) (solana.Signature, error)
	FinalizeReclaim(ctx context.Context, vaultID, assetID solana.PublicKey) (solana.Signature, error)
}

// JournalReader serves the per-vault activity log.
type JournalReader interface {
	ListByVault(ctx context.Context, vault string) ([]journal.Event, error)
}

// Handler holds the wired services.
type Handler struct {
	log      *log.Logger
	vaults   VaultService
	reclaims ReclaimService
	journal  JournalReader
}

func NewHandler(vaults VaultService, reclaims ReclaimService, journalReader JournalReader, logger *log.Logger) *Handler {
	return &Handler{
		log:      logger,
		vaults:   vaults,
		reclaims: reclaims,
		journal:  journalReader,
	}
}

// NewRouter wires all endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/vaults", func(r chi.Router) {
		r.Get("/", h.handleListVaults)
		r.Get("/latest", h.handleLatestVaults)
		r.Get("/{vault}", h.handleGetVault)
		r.Get("/{vault}/journal", h.handleVaultJournal)
		r.Post("/{vault}/reclaim/initialize", h.handleInitializeReclaim)
		r.Post("/{vault}/reclaim/cancel", h.handleCancelReclaim)
		r.Post("/{vault}/reclaim/finalize", h.handleFinalizeReclaim)
	})
	r.Get("/positions/{owner}", h.handlePositions)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListVaults refreshes on read if the collection went stale, then
// renders the snapshot. A failed refresh still serves the previous collection
// with the error surfaced alongside it.
func (h *Handler) handleListVaults(w http.ResponseWriter, r *http.Request) {
	var statusFilter *vault.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := vault.ParseStatus(raw)
		if !ok {
			writeErrorMessage(w, http.StatusBadRequest, "unknown status "+raw)
			return
		}
		statusFilter = &status
	}

	if err := h.vaults.FetchIfStale(r.Context()); err != nil {
		h.log.Printf("stale refresh failed: %v", err)
	}

	snap := h.vaults.Snapshot()
	vaults := snap.Vaults
	if statusFilter != nil {
		vaults = h.vaults.VaultsByStatus(*statusFilter)
	}
	h.enrichAsync(vaults)
	writeJSON(w, http.StatusOK, collectionResponse{
		Vaults:    viewsOf(vaults),
		Loading:   snap.Loading,
		LastFetch: snap.LastFetch,
		Error:     errString(snap.Err),
	})
}

func (h *Handler) handleLatestVaults(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	if err := h.vaults.FetchIfStale(r.Context()); err != nil {
		h.log.Printf("stale refresh failed: %v", err)
	}

	vaults := h.vaults.LatestVaults(limit)
	h.enrichAsync(vaults)
	writeJSON(w, http.StatusOK, collectionResponse{Vaults: viewsOf(vaults)})
}

func (h *Handler) handleGetVault(w http.ResponseWriter, r *http.Request) {
	address, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	v, found := h.vaults.ByAddress(address)
	if !found {
		writeErrorMessage(w, http.StatusNotFound, "vault not found")
		return
	}
	h.enrichAsync([]vault.Vault{v})
	writeJSON(w, http.StatusOK, viewOf(v))
}

func (h *Handler) handleVaultJournal(w http.ResponseWriter, r *http.Request) {
	address, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	if h.journal == nil {
		writeJSON(w, http.StatusOK, journalResponse{Events: []journalView{}})
		return
	}
	events, err := h.journal.ListByVault(r.Context(), address.String())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	views := make([]journalView, 0, len(events))
	for _, e := range events {
		views = append(views, journalView{
			ID:        e.ID.String(),
			Kind:      string(e.Kind),
			Signature: e.Signature,
			Detail:    e.Detail,
			Timestamp: e.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, journalResponse{Events: views})
}

func (h *Handler) handleInitializeReclaim(w http.ResponseWriter, r *http.Request) {
	address, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	v, found := h.vaults.ByAddress(address)
	if !found {
		writeErrorMessage(w, http.StatusNotFound, "vault not found")
		return
	}

	receipt, err := h.reclaims.InitializeReclaim(r.Context(), v.Address, v.AssetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{
		Signature: receipt.Signature.String(),
		Path:      receipt.Path.String(),
	})
}

func (h *Handler) handleCancelReclaim(w http.ResponseWriter, r *http.Request) {
	address, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	sig, err := h.reclaims.CancelReclaim(r.Context(), address)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Signature: sig.String()})
}

func (h *Handler) handleFinalizeReclaim(w http.ResponseWriter, r *http.Request) {
	address, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	v, found := h.vaults.ByAddress(address)
	if !found {
		writeErrorMessage(w, http.StatusNotFound, "vault not found")
		return
	}

	sig, err := h.reclaims.FinalizeReclaim(r.Context(), v.Address, v.AssetID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Signature: sig.String()})
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	owner, err := solana.PublicKeyFromBase58(chi.URLParam(r, "owner"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid owner address")
		return
	}
	positions, err := h.vaults.FetchUserPositions(r.Context(), owner)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make(map[string]uint64, len(positions))
	for mint, amount := range positions {
		out[mint.String()] = amount
	}
	writeJSON(w, http.StatusOK, positionsResponse{Owner: owner.String(), Balances: out})
}

func (h *Handler) vaultParam(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	address, err := solana.PublicKeyFromBase58(chi.URLParam(r, "vault"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid vault address")
		return solana.PublicKey{}, false
	}
	return address, true
}

// enrichAsync queues display metadata for the rendered vaults. Detached from
// the request so a slow indexer never delays a response.
func (h *Handler) enrichAsync(vaults []vault.Vault) {
	var missing []solana.PublicKey
	for _, v := range vaults {
		if v.Meta == nil {
			missing = append(missing, v.AssetID)
		}
	}
	if len(missing) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := h.vaults.FetchMetadataFor(ctx, missing); err != nil {
			h.log.Printf("metadata enrichment failed: %v", err)
		}
	}()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
