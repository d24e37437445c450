package types

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
)

//go:generate go run github.com/golang/mock/mockgen -destination=mock_types/mocks.go -package=mock_types . StorageBackend,StorageContext,PieceStatusChecker,ProviderDirectory,DealStore

// UploadCallbacks are invoked by the storage backend while an upload is in
// progress. Each fires at most once, OnUploadComplete before OnPieceAdded,
// and both return before Upload returns.
type UploadCallbacks struct {
	// OnUploadComplete fires when the provider has received the whole piece
	OnUploadComplete func(pieceCid cid.Cid)
	// OnPieceAdded fires when the provider has submitted the piece to the
	// data set on chain
	OnPieceAdded func(txHash string)
}

// UploadResult is returned by a successful upload
type UploadResult struct {
	PieceCid cid.Cid
	Size     uint64
	PieceID  uint64
}

// StorageContext is a provider-side data set that pieces are uploaded into.
type StorageContext interface {
	DataSetID() uint64
	Upload(ctx context.Context, data []byte, cb UploadCallbacks, pieceMetadata map[string]string) (*UploadResult, error)
}

// StorageBackend creates storage contexts with storage providers
type StorageBackend interface {
	CreateStorageContext(ctx context.Context, provider ProviderInfo, dataSetMetadata map[string]string) (StorageContext, error)
}

// ProviderDirectory lists the storage providers deals are made with.
type ProviderDirectory interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]ProviderInfo, error)
}

// DealStore persists deals. Save is an idempotent upsert keyed by deal id
// that writes the lifecycle fields; SaveVerification writes only the
// verification fields.
type DealStore interface {
	Create(ctx context.Context, deal *Deal) error
	Save(ctx context.Context, deal *Deal) error
	SaveVerification(ctx context.Context, id uuid.UUID, v *Verification) error
	FindProvider(ctx context.Context, address string) (*ProviderInfo, error)
}

// PieceStatus is the indexing state of a piece as reported by its provider
type PieceStatus struct {
	Indexed     bool
	Advertised  bool
	Retrieved   bool
	RetrievedAt *time.Time
}

// PieceStatusChecker queries a provider for the indexing state of a piece.
type PieceStatusChecker interface {
	PieceStatus(ctx context.Context, provider ProviderInfo, pieceCid cid.Cid) (*PieceStatus, error)
}
