package main

import (
	"context"
	"database/sql"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gagliardetto/solana-go"
	_ "github.com/lib/pq"

	"fracvault/internal/events"
	"fracvault/internal/journal"
	"fracvault/internal/ledger"
	"fracvault/internal/platform/config"
	"fracvault/internal/platform/httpserver"
	"fracvault/internal/platform/logger"
	"fracvault/internal/platform/metrics"
	platformredis "fracvault/internal/platform/redis"
	"fracvault/internal/proof"
	"fracvault/internal/reclaim/orchestrator"
	httptransport "fracvault/internal/transport/http"
	"fracvault/internal/vault/metadata"
	"fracvault/internal/vault/store"
)

// main wires the dependencies and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	program := mustKey(log, "FRACVAULT_PROGRAM_ID", cfg.ProgramID)
	treasury := mustKey(log, "FRACVAULT_TREASURY", cfg.Treasury)
	feeMint := mustKey(log, "FRACVAULT_FEE_MINT", cfg.FeeMint)

	chain := ledger.NewClient(cfg.RPCURL, cfg.WSURL, program, log)
	assets := proof.NewClient(cfg.ProofURL, log)

	var metaStore metadata.Store = metadata.NewInMemory()
	rc, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	if rc != nil {
		defer rc.Close()
		metaStore = metadata.NewRedis(rc.Client)
		log.Printf("metadata cache backed by redis")
	}

	vaults := store.New(chain, assets, metaStore, cfg.VaultCacheTTL, log, m)

	var journalStore journal.Store = journal.NewInMemory()
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatalf("postgres ping: %v", err)
		}
		journalStore = journal.NewPostgres(db)
		log.Printf("journal backed by postgres")
	}
	publisher := journal.NewPublisher(journalStore)

	wallet, err := ledger.LoadFileWallet(cfg.WalletKeyPath)
	if err != nil {
		log.Fatalf("load wallet: %v", err)
	}
	var signer ledger.Signer
	if wallet != nil {
		signer = wallet
		log.Printf("wallet %s connected", wallet.PublicKey())
	} else {
		log.Printf("no wallet configured, reclaim actions disabled")
	}

	binding := ledger.NewBinding(program, treasury, feeMint)
	orcOpts := []orchestrator.Option{orchestrator.WithJournal(publisher)}
	if cfg.LookupTable != "" {
		orcOpts = append(orcOpts, orchestrator.WithLookupTable(
			mustKey(log, "FRACVAULT_LOOKUP_TABLE", cfg.LookupTable)))
	}
	reclaims := orchestrator.New(vaults, assets, chain, binding, signer, program, log, m, orcOpts...)

	listener := events.New(chain, vaults, log, m, events.WithJournal(publisher))

	handler := httptransport.NewHandler(vaults, reclaims, publisher, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	listener.Start(rootCtx)
	defer listener.Close()

	// Warm the cache without delaying startup; the API serves loading state
	// until the first scan lands.
	go func() {
		ctx, cancel := context.WithTimeout(rootCtx, time.Minute)
		defer cancel()
		if err := vaults.FetchAll(ctx); err != nil {
			log.Printf("initial scan failed: %v", err)
		}
	}()

	log.Printf("starting fracvault on %s (program %s)", cfg.Addr, program)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
}

// mustKey parses a required base58 address from configuration.
func mustKey(log *stdlog.Logger, name, raw string) solana.PublicKey {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		log.Fatalf("invalid %s %q: %v", name, raw, err)
	}
	return key
}
