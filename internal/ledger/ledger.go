// Package ledger is the gateway to the chain: RPC reads, transaction
// submission and confirmation, the program instruction binding, and the log
// subscription. Everything above it works with typed values; raw RPC error
// shapes stop here.
package ledger

import (
	"github.com/gagliardetto/solana-go"
)

// MaxTransactionBytes is the network's hard ceiling on a serialized
// transaction (IPv6 MTU minus headers).
const MaxTransactionBytes = 1232

// KeyedAccount pairs an account address with its raw data.
type KeyedAccount struct {
	Address solana.PublicKey
	Data    []byte
}

// Blockhash is a recent blockhash plus its validity horizon, needed both for
// signing and for bounding confirmation waits.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// TxStatus is the result of a signature status poll.
type TxStatus struct {
	// Found is false when the ledger has no record of the signature.
	Found bool
	// Confirmed is true once the cluster voted the transaction in.
	Confirmed bool
	// TxErr carries the decoded on-chain error verbatim, empty on success.
	TxErr string
}

// Signer abstracts the wallet: a public key plus the ability to sign a
// serialized message.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}
