package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// lookupTableMetaSize is the fixed header length of an address lookup table
// account; the registered addresses follow as packed 32-byte keys.
const lookupTableMetaSize = 56

// AccountDataReader is the single read the lookup table loader needs.
type AccountDataReader interface {
	AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
}

// FetchLookupTable loads the shared lookup table that pre-registers the
// program's common accounts, in the form the transaction builder consumes.
func FetchLookupTable(ctx context.Context, reader AccountDataReader, table solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	data, err := reader.AccountData(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("fetch lookup table %s: %w", table, err)
	}
	if len(data) < lookupTableMetaSize || (len(data)-lookupTableMetaSize)%32 != 0 {
		return nil, fmt.Errorf("lookup table %s: malformed data of %d bytes", table, len(data))
	}

	body := data[lookupTableMetaSize:]
	addresses := make(solana.PublicKeySlice, 0, len(body)/32)
	for i := 0; i+32 <= len(body); i += 32 {
		addresses = append(addresses, solana.PublicKeyFromBytes(body[i:i+32]))
	}
	return map[solana.PublicKey]solana.PublicKeySlice{table: addresses}, nil
}
