package pdp

import (
	"context"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/ipfs/go-cid"
)

// ExtraDataSigner produces the signed extra data that the record keeper
// contract checks when a data set is created or pieces are added
type ExtraDataSigner interface {
	CreateDataSetExtraData(ctx context.Context, provider types.ProviderInfo, metadata map[string]string) ([]byte, error)
	AddPiecesExtraData(ctx context.Context, dataSetID uint64, pieceCid cid.Cid, metadata map[string]string) ([]byte, error)
}

// NoSigner sends empty extra data, for record keepers that don't require a
// signature
type NoSigner struct{}

var _ ExtraDataSigner = NoSigner{}

func (NoSigner) CreateDataSetExtraData(context.Context, types.ProviderInfo, map[string]string) ([]byte, error) {
	return nil, nil
}

func (NoSigner) AddPiecesExtraData(context.Context, uint64, cid.Cid, map[string]string) ([]byte, error) {
	return nil, nil
}
