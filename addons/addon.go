package addons

import (
	"context"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("addons")

// Context is the state of one preprocessing run. It is owned by the pipeline
// and handed to each addon in turn.
type Context struct {
	Config types.DealConfig
	// The payload as transformed by the addons that ran so far
	Data []byte
	Size int64
	// Metadata produced by the addons that ran so far, keyed by addon name
	Metadata types.AddonMetadata
}

// Output is what an addon returns from Preprocess
type Output struct {
	Data     []byte
	Size     int64
	Metadata interface{}
}

// Addon is a preprocessing strategy. Name is used as the metadata namespace
// key and lower Priority values run first.
type Addon interface {
	Name() string
	Priority() int
	IsApplicable(cfg types.DealConfig) bool
	Preprocess(ctx context.Context, pc *Context) (*Output, error)
}

// ConfigExporter is implemented by addons that add provider-visible
// configuration. It is called after every applicable addon has run, with the
// complete metadata.
type ConfigExporter interface {
	ProviderConfig(md types.AddonMetadata) (types.ProviderConfig, error)
}

// Validator is implemented by addons that check their own output before the
// pipeline moves on to the next addon.
type Validator interface {
	Validate(out *Output) error
}

// UploadCompleteHook is implemented by addons that act once the provider has
// received the whole payload. The deal is a snapshot and must not be saved.
type UploadCompleteHook interface {
	OnUploadComplete(ctx context.Context, deal types.Deal) error
}

// DealPersistedHook is implemented by addons that act once the deal has been
// saved in its final state.
type DealPersistedHook interface {
	OnDealPersisted(ctx context.Context, deal types.Deal) error
}
