package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"fracvault/pkg/platform/sentinel"
)

// Client adapts the solana-go RPC and WS clients to the narrow surface the
// store, orchestrator, and listener consume.
type Client struct {
	rpc     *rpc.Client
	wsURL   string
	program solana.PublicKey
	log     *log.Logger

	mu sync.Mutex
	ws *ws.Client
}

// NewClient builds a gateway against the given RPC endpoint. The WS connection
// is dialed lazily on first subscription.
func NewClient(rpcURL, wsURL string, program solana.PublicKey, logger *log.Logger) *Client {
	return &Client{
		rpc:     rpc.New(rpcURL),
		wsURL:   wsURL,
		program: program,
		log:     logger,
	}
}

// Program returns the program id this client scans and subscribes against.
func (c *Client) Program() solana.PublicKey {
	return c.program
}

// ProgramAccounts scans the program's account space, filtered server-side to
// accounts of exactly dataSize bytes.
func (c *Client) ProgramAccounts(ctx context.Context, dataSize uint64) ([]KeyedAccount, error) {
	res, err := c.rpc.GetProgramAccountsWithOpts(ctx, c.program, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Filters: []rpc.RPCFilter{
			{DataSize: dataSize},
		},
	})
	if err != nil {
		return nil, mapRPCError("getProgramAccounts", err)
	}

	out := make([]KeyedAccount, 0, len(res))
	for _, acc := range res {
		if acc == nil || acc.Account == nil {
			continue
		}
		out = append(out, KeyedAccount{
			Address: acc.Pubkey,
			Data:    acc.Account.Data.GetBinary(),
		})
	}
	return out, nil
}

// AccountData fetches one account's raw data. Missing accounts map to
// sentinel.ErrNotFound.
func (c *Client) AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if err == rpc.ErrNotFound {
			return nil, fmt.Errorf("account %s: %w", address, sentinel.ErrNotFound)
		}
		return nil, mapRPCError("getAccountInfo", err)
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("account %s: %w", address, sentinel.ErrNotFound)
	}
	return res.Value.Data.GetBinary(), nil
}

// TokenAccountsByOwner returns the owner's SPL token accounts as raw data in a
// single bulk call; the store decodes and aggregates them.
func (c *Client) TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]KeyedAccount, error) {
	res, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return nil, mapRPCError("getTokenAccountsByOwner", err)
	}

	out := make([]KeyedAccount, 0, len(res.Value))
	for _, acc := range res.Value {
		if acc.Account.Data == nil {
			continue
		}
		out = append(out, KeyedAccount{
			Address: acc.Pubkey,
			Data:    acc.Account.Data.GetBinary(),
		})
	}
	return out, nil
}

// LatestBlockhash fetches a recent blockhash and its validity horizon.
func (c *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return Blockhash{}, mapRPCError("getLatestBlockhash", err)
	}
	return Blockhash{
		Hash:                 res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}

// BlockHeight returns the cluster's current block height, used to detect
// blockhash expiry while waiting for confirmation.
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, mapRPCError("getBlockHeight", err)
	}
	return height, nil
}

// SendTransaction submits a signed transaction. A duplicate submission maps to
// sentinel.ErrAlreadyProcessed so the orchestrator can treat it as success.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, mapRPCError("sendTransaction", err)
	}
	return sig, nil
}

// SignatureStatus polls one signature. Searches the full transaction history
// so a status survives blockhash expiry.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (TxStatus, error) {
	res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return TxStatus{}, mapRPCError("getSignatureStatuses", err)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return TxStatus{}, nil
	}

	status := res.Value[0]
	out := TxStatus{Found: true}
	if status.Err != nil {
		out.TxErr = fmt.Sprintf("%v", status.Err)
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		out.Confirmed = true
	}
	return out, nil
}

// LogSubscription is one active program log subscription.
type LogSubscription interface {
	// Recv blocks for the next log batch from a transaction mentioning the
	// program.
	Recv(ctx context.Context) ([]string, error)
	// Unsubscribe tears the subscription down; safe to call more than once.
	Unsubscribe()
}

// SubscribeLogs opens (at most) one WS connection and subscribes to logs
// mentioning the program.
func (c *Client) SubscribeLogs(ctx context.Context) (LogSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws == nil {
		conn, err := ws.Connect(ctx, c.wsURL)
		if err != nil {
			return nil, fmt.Errorf("ws connect: %w", err)
		}
		c.ws = conn
	}

	sub, err := c.ws.LogsSubscribeMentions(c.program, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("logs subscribe: %w", err)
	}
	return &wsLogSubscription{sub: sub}, nil
}

type wsLogSubscription struct {
	sub  *ws.LogSubscription
	once sync.Once
}

func (s *wsLogSubscription) Recv(ctx context.Context) ([]string, error) {
	res, err := s.sub.Recv(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.Value.Logs, nil
}

func (s *wsLogSubscription) Unsubscribe() {
	s.once.Do(func() { s.sub.Unsubscribe() })
}

// mapRPCError normalizes transport error shapes into sentinels. Rate limiting
// and duplicate submission only surface as message text at this layer.
func mapRPCError(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests"):
		return fmt.Errorf("%s: %w", op, sentinel.ErrRateLimited)
	case strings.Contains(msg, "already been processed"):
		return fmt.Errorf("%s: %w", op, sentinel.ErrAlreadyProcessed)
	case strings.Contains(msg, "BlockhashNotFound") || strings.Contains(msg, "blockhash not found"):
		return fmt.Errorf("%s: %w", op, sentinel.ErrExpired)
	}
	return fmt.Errorf("%s: %w", op, err)
}
