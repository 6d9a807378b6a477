package config

import (
	"os"
	"strconv"
	"time"
)

// App captures process-level configuration. Values come from the environment so
// main stays lean; on-chain addresses are kept as strings here and parsed at
// wiring time.
type App struct {
	Addr string

	// Ledger endpoints.
	RPCURL string
	WSURL  string

	// DAS-style proof/asset API.
	ProofURL string

	// On-chain addresses (base58).
	ProgramID     string
	Treasury      string
	FeeMint       string
	LookupTable   string
	WalletKeyPath string

	// Cache behavior.
	VaultCacheTTL time.Duration

	// Optional backends; empty means the in-memory variant is used.
	RedisURL    string
	PostgresDSN string
}

// Escrow and fee policy are protocol constants, not deployment knobs.
const (
	// EscrowPeriod is the mandatory wait between initiating and finalizing a
	// reclaim.
	EscrowPeriod = 7 * 24 * time.Hour

	// CancelFee is charged in stable-asset base units when an initiator backs
	// out of a reclaim.
	CancelFee uint64 = 25_000_000
)

// FromEnv builds an App config from environment variables.
func FromEnv() App {
	ttl := 20 * time.Minute
	if raw := os.Getenv("FRACVAULT_CACHE_TTL_MINUTES"); raw != "" {
		if mins, err := strconv.Atoi(raw); err == nil && mins > 0 {
			ttl = time.Duration(mins) * time.Minute
		}
	}

	return App{
		Addr:          envOr("FRACVAULT_ADDR", ":8080"),
		RPCURL:        envOr("FRACVAULT_RPC_URL", "https://api.mainnet-beta.solana.com"),
		WSURL:         envOr("FRACVAULT_WS_URL", "wss://api.mainnet-beta.solana.com"),
		ProofURL:      os.Getenv("FRACVAULT_PROOF_URL"),
		ProgramID:     os.Getenv("FRACVAULT_PROGRAM_ID"),
		Treasury:      os.Getenv("FRACVAULT_TREASURY"),
		FeeMint:       os.Getenv("FRACVAULT_FEE_MINT"),
		LookupTable:   os.Getenv("FRACVAULT_LOOKUP_TABLE"),
		WalletKeyPath: os.Getenv("FRACVAULT_WALLET_KEY"),
		VaultCacheTTL: ttl,
		RedisURL:      os.Getenv("FRACVAULT_REDIS_URL"),
		PostgresDSN:   os.Getenv("FRACVAULT_POSTGRES_DSN"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
