package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// FileWallet signs with a keypair loaded from a solana-keygen JSON file.
type FileWallet struct {
	key solana.PrivateKey
}

// LoadFileWallet reads a keypair file. An empty path returns (nil, nil) so
// callers can run read-only.
func LoadFileWallet(path string) (*FileWallet, error) {
	if path == "" {
		return nil, nil
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load wallet key: %w", err)
	}
	return &FileWallet{key: key}, nil
}

func (w *FileWallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

func (w *FileWallet) Sign(message []byte) (solana.Signature, error) {
	return w.key.Sign(message)
}
