package addons

import (
	"context"

	"github.com/filecoin-project/dealbot/storagemarket/types"
)

const CDNName = "cdn"

// Data set metadata key that asks the provider to serve the data set through
// its CDN
const WithCDNKey = "withCDN"

type CDNMetadata struct {
	Enabled bool `json:"enabled"`
}

// CDN requests CDN retrieval for the data set. The payload is not changed.
type CDN struct{}

var _ Addon = (*CDN)(nil)
var _ ConfigExporter = (*CDN)(nil)

func NewCDN() *CDN {
	return &CDN{}
}

func (c *CDN) Name() string {
	return CDNName
}

func (c *CDN) Priority() int {
	return 20
}

func (c *CDN) IsApplicable(cfg types.DealConfig) bool {
	return cfg.EnableCDN
}

func (c *CDN) Preprocess(_ context.Context, pc *Context) (*Output, error) {
	return &Output{
		Data:     pc.Data,
		Size:     pc.Size,
		Metadata: &CDNMetadata{Enabled: true},
	}, nil
}

func (c *CDN) ProviderConfig(types.AddonMetadata) (types.ProviderConfig, error) {
	cfg := types.NewProviderConfig()
	cfg.DataSet[WithCDNKey] = ""
	return cfg, nil
}
