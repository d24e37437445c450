package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
)

// Payload is a named blob of data that is preprocessed and uploaded to
// storage providers.
type Payload struct {
	Name string
	Data []byte
	Size int64
}

// DealConfig is the input to a batch run. It is created once per batch and
// not modified afterwards.
type DealConfig struct {
	Payload    Payload
	EnableCDN  bool
	EnableIpni bool
}

// ProviderInfo is the directory record for a storage provider
type ProviderInfo struct {
	Address     string
	Name        string
	Description string
	// ServiceURL is the base URL of the provider's PDP service
	ServiceURL string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProviderConfig is the provider-visible configuration accumulated by the
// preprocessing pipeline, split into data set and piece level metadata.
type ProviderConfig struct {
	DataSet map[string]string
	Piece   map[string]string
}

func NewProviderConfig() ProviderConfig {
	return ProviderConfig{
		DataSet: make(map[string]string),
		Piece:   make(map[string]string),
	}
}

// AddonMetadata maps an addon name to the metadata that addon produced.
type AddonMetadata map[string]interface{}

// Verification is the IPNI verification sub-state of a deal. It is owned by
// the verification monitor once the upload has completed.
type Verification struct {
	Status  dealstatus.IpniStatus
	RootCID *cid.Cid

	IndexedAt    *time.Time
	AdvertisedAt *time.Time
	RetrievedAt  *time.Time
	VerifiedAt   *time.Time

	// Milliseconds elapsed between the end of the upload and each stage
	TimeToIndexMs     *int64
	TimeToAdvertiseMs *int64
	TimeToRetrieveMs  *int64
	TimeToVerifyMs    *int64

	VerifiedCidsCount   int
	UnverifiedCidsCount int
	Error               string
}

// Advance moves the verification status forward. Regressions are rejected.
func (v *Verification) Advance(next dealstatus.IpniStatus) error {
	if v.Status == next {
		return nil
	}
	if !v.Status.CanTransition(next) {
		return fmt.Errorf("ipni status cannot move from %s to %s", v.Status, next)
	}
	v.Status = next
	return nil
}

// Deal is the record of one storage deal with one provider.
type Deal struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time

	ProviderAddress string
	WalletAddress   string
	// Provider is the directory record attached during deal creation. It is
	// not persisted with the deal.
	Provider *ProviderInfo

	FileName string
	FileSize int64
	Status   dealstatus.Status

	DataSetID       *uint64
	PieceCID        *cid.Cid
	PieceSize       uint64
	PieceID         *uint64
	TransactionHash string

	ServiceTypes  []string
	AddonMetadata AddonMetadata

	UploadStartedAt *time.Time
	UploadEndedAt   *time.Time
	PieceAddedAt    *time.Time
	DealConfirmedAt *time.Time

	IngestLatencyMs     int64
	IngestThroughputBps int64
	ChainLatencyMs      int64
	DealLatencyMs       int64

	ErrorMessage string
	ErrorCode    string
	RetryCount   int

	Ipni Verification
}

func NewDeal(provider ProviderInfo, wallet string, fileName string, fileSize int64, serviceTypes []string, md AddonMetadata, now time.Time) *Deal {
	return &Deal{
		ID:              uuid.New(),
		CreatedAt:       now,
		UpdatedAt:       now,
		ProviderAddress: provider.Address,
		WalletAddress:   wallet,
		Provider:        &provider,
		FileName:        fileName,
		FileSize:        fileSize,
		Status:          dealstatus.Pending,
		ServiceTypes:    serviceTypes,
		AddonMetadata:   md,
	}
}

// Transition moves the deal to the next lifecycle status. Terminal states are
// never left and non-terminal states never regress.
func (d *Deal) Transition(next dealstatus.Status) error {
	if !d.Status.CanTransition(next) {
		return fmt.Errorf("deal %s cannot move from %s to %s", d.ID, d.Status, next)
	}
	d.Status = next
	return nil
}

// Fail marks the deal as FAILED and records the error. A deal that has
// already reached a terminal state is left unchanged.
func (d *Deal) Fail(err error) {
	if d.Status.IsTerminal() {
		return
	}
	d.Status = dealstatus.Failed
	d.ErrorMessage = errorMessage(err)
	d.ErrorCode = ErrorCode(err)
}

// errorMessage drops the backend error wrapper: the operation is reflected
// in the deal's timestamps and the provider in its address.
func errorMessage(err error) string {
	var backendErr *BackendError
	if errors.As(err, &backendErr) && backendErr.Err != nil {
		return backendErr.Err.Error()
	}
	return err.Error()
}

// Snapshot returns a copy of the deal that can be handed to code running
// concurrently with the orchestrator.
func (d *Deal) Snapshot() Deal {
	cp := *d
	cp.ServiceTypes = append([]string(nil), d.ServiceTypes...)
	if d.AddonMetadata != nil {
		cp.AddonMetadata = make(AddonMetadata, len(d.AddonMetadata))
		for k, v := range d.AddonMetadata {
			cp.AddonMetadata[k] = v
		}
	}
	if d.Provider != nil {
		prov := *d.Provider
		cp.Provider = &prov
	}
	return cp
}

// ErrorCode classifies an error for the deal record.
func ErrorCode(err error) string {
	var cfgErr *ConfigurationError
	var pipeErr *PipelineError
	var backendErr *BackendError
	var persistErr *PersistenceError
	var verifErr *VerificationError
	switch {
	case errors.As(err, &cfgErr):
		return "CONFIGURATION"
	case errors.As(err, &pipeErr):
		return "PIPELINE"
	case errors.As(err, &backendErr):
		return "BACKEND"
	case errors.As(err, &persistErr):
		return "PERSISTENCE"
	case errors.As(err, &verifErr):
		return "VERIFICATION"
	default:
		return "UNKNOWN"
	}
}
