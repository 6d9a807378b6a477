package httptransport

import (
	"time"

	"fracvault/internal/vault"
)

type collectionResponse struct {
	Vaults    []vaultView `json:"vaults"`
	Loading   bool        `json:"loading,omitempty"`
	LastFetch time.Time   `json:"lastFetch,omitzero"`
	Error     string      `json:"error,omitempty"`
}

type vaultView struct {
	Address      string `json:"address"`
	AssetID      string `json:"assetId"`
	FractionMint string `json:"fractionMint"`
	Creator      string `json:"creator"`
	Status       string `json:"status"`
	TotalSupply  uint64 `json:"totalSupply"`

	Initiator             string     `json:"initiator,omitempty"`
	InitiatedAt           *time.Time `json:"initiatedAt,omitempty"`
	TokensInEscrow        uint64     `json:"tokensInEscrow,omitempty"`
	TotalCompensation     uint64     `json:"totalCompensation,omitempty"`
	RemainingCompensation uint64     `json:"remainingCompensation,omitempty"`
	PriceSnapshot         uint64     `json:"priceSnapshot,omitempty"`

	MinReclaimBps   uint16 `json:"minReclaimBps"`
	MinLiquidityBps uint16 `json:"minLiquidityBps"`
	MinVolume30dBps uint16 `json:"minVolume30dBps"`
	MinPoolAgeSecs  int64  `json:"minPoolAgeSecs"`

	CreatedAt time.Time     `json:"createdAt"`
	Metadata  *metadataView `json:"metadata,omitempty"`
}

type metadataView struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

type actionResponse struct {
	Signature string `json:"signature"`
	Path      string `json:"path,omitempty"`
}

type positionsResponse struct {
	Owner    string            `json:"owner"`
	Balances map[string]uint64 `json:"balances"`
}

type journalResponse struct {
	Events []journalView `json:"events"`
}

type journalView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Signature string    `json:"signature,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func viewsOf(vaults []vault.Vault) []vaultView {
	out := make([]vaultView, 0, len(vaults))
	for _, v := range vaults {
		out = append(out, viewOf(v))
	}
	return out
}

func viewOf(v vault.Vault) vaultView {
	view := vaultView{
		Address:               v.Address.String(),
		AssetID:               v.AssetID.String(),
		FractionMint:          v.FractionMint.String(),
		Creator:               v.Creator.String(),
		Status:                v.Status.String(),
		TotalSupply:           v.TotalSupply,
		TokensInEscrow:        v.TokensInEscrow,
		TotalCompensation:     v.TotalCompensation,
		RemainingCompensation: v.RemainingCompensation,
		PriceSnapshot:         v.PriceSnapshot,
		MinReclaimBps:         v.MinReclaimBps,
		MinLiquidityBps:       v.MinLiquidityBps,
		MinVolume30dBps:       v.MinVolume30dBps,
		MinPoolAgeSecs:        int64(v.MinPoolAge / time.Second),
		CreatedAt:             v.CreatedAt,
	}
	if !v.Initiator.IsZero() {
		view.Initiator = v.Initiator.String()
	}
	if !v.InitiatedAt.IsZero() {
		at := v.InitiatedAt
		view.InitiatedAt = &at
	}
	if v.Meta != nil {
		view.Metadata = &metadataView{
			Name:        v.Meta.Name,
			Symbol:      v.Meta.Symbol,
			Image:       v.Meta.Image,
			Description: v.Meta.Description,
		}
	}
	return view
}
