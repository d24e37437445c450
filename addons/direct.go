package addons

import (
	"context"

	"github.com/filecoin-project/dealbot/storagemarket/types"
)

const DirectName = "direct"

// DirectMetadata is recorded by the direct addon
type DirectMetadata struct {
	Size int64 `json:"size"`
}

// Direct passes the payload through unchanged. It is the default addon and
// only runs when no other addon applies.
type Direct struct{}

var _ Addon = (*Direct)(nil)

func NewDirect() *Direct {
	return &Direct{}
}

func (d *Direct) Name() string {
	return DirectName
}

func (d *Direct) Priority() int {
	return 0
}

func (d *Direct) IsApplicable(types.DealConfig) bool {
	return false
}

func (d *Direct) Preprocess(_ context.Context, pc *Context) (*Output, error) {
	return &Output{
		Data:     pc.Data,
		Size:     pc.Size,
		Metadata: &DirectMetadata{Size: pc.Size},
	}, nil
}
