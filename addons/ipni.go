package addons

import (
	"context"
	"errors"
	"fmt"

	"github.com/filecoin-project/dealbot/ipnimonitor"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	chunk "github.com/ipfs/boxo/chunker"
	ihelper "github.com/ipfs/boxo/ipld/unixfs/importer/helpers"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
)

const IpniName = "ipni"

// Piece and data set metadata keys understood by providers that index pieces
// and announce them to IPNI
const (
	WithIPFSIndexingKey = "withIPFSIndexing"
	IPFSRootCIDKey      = "ipfsRootCID"
)

// IpniMetadata is recorded by the ipni addon
type IpniMetadata struct {
	RootCID   cid.Cid   `json:"rootCID"`
	BlockCIDs []cid.Cid `json:"blockCIDs"`
	CarSize   int64     `json:"carSize"`
}

// Tracker starts background verification of a deal's IPNI announcements
type Tracker interface {
	Track(deal types.Deal, root cid.Cid, blocks []cid.Cid) *ipnimonitor.Task
}

type IpniOptions struct {
	ChunkSize int64
	MaxLinks  int
}

func DefaultIpniOptions() IpniOptions {
	return IpniOptions{
		ChunkSize: chunk.DefaultBlockSize,
		MaxLinks:  ihelper.DefaultLinksPerBlock,
	}
}

// Ipni packs the payload into a UnixFS CAR so that providers can index its
// blocks and announce them to IPNI. Once the upload completes it hands the
// deal to the verification tracker.
type Ipni struct {
	opts    IpniOptions
	tracker Tracker
}

var _ Addon = (*Ipni)(nil)
var _ ConfigExporter = (*Ipni)(nil)
var _ Validator = (*Ipni)(nil)
var _ UploadCompleteHook = (*Ipni)(nil)

func NewIpni(opts IpniOptions, tracker Tracker) *Ipni {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunk.DefaultBlockSize
	}
	if opts.MaxLinks <= 0 {
		opts.MaxLinks = ihelper.DefaultLinksPerBlock
	}
	return &Ipni{opts: opts, tracker: tracker}
}

func (i *Ipni) Name() string {
	return IpniName
}

func (i *Ipni) Priority() int {
	return 10
}

func (i *Ipni) IsApplicable(cfg types.DealConfig) bool {
	return cfg.EnableIpni
}

func (i *Ipni) Preprocess(ctx context.Context, pc *Context) (*Output, error) {
	cf, err := buildCar(ctx, pc.Data, i.opts.ChunkSize, i.opts.MaxLinks)
	if err != nil {
		return nil, err
	}

	log.Debugw("built car", "root", cf.Root, "blocks", len(cf.Blocks)+1, "size", len(cf.Data))
	return &Output{
		Data: cf.Data,
		Size: int64(len(cf.Data)),
		Metadata: &IpniMetadata{
			RootCID:   cf.Root,
			BlockCIDs: cf.Blocks,
			CarSize:   int64(len(cf.Data)),
		},
	}, nil
}

func (i *Ipni) Validate(out *Output) error {
	md, ok := out.Metadata.(*IpniMetadata)
	if !ok {
		return fmt.Errorf("unexpected metadata type %T", out.Metadata)
	}
	if !md.RootCID.Defined() {
		return errors.New("car has no root cid")
	}
	// a unixfs root is a dag-pb node, or a raw leaf for single chunk files
	switch codec := multicodec.Code(md.RootCID.Prefix().Codec); codec {
	case multicodec.DagPb, multicodec.Raw:
	default:
		return fmt.Errorf("car root %s has codec %s, expected unixfs", md.RootCID, codec)
	}
	if md.CarSize <= 0 || md.CarSize != int64(len(out.Data)) {
		return fmt.Errorf("car size %d does not match data length %d", md.CarSize, len(out.Data))
	}
	return nil
}

func (i *Ipni) ProviderConfig(md types.AddonMetadata) (types.ProviderConfig, error) {
	imd, err := ipniMetadata(md)
	if err != nil {
		return types.ProviderConfig{}, err
	}

	cfg := types.NewProviderConfig()
	cfg.DataSet[WithIPFSIndexingKey] = ""
	cfg.Piece[WithIPFSIndexingKey] = ""
	cfg.Piece[IPFSRootCIDKey] = imd.RootCID.String()
	return cfg, nil
}

func (i *Ipni) OnUploadComplete(_ context.Context, deal types.Deal) error {
	imd, err := ipniMetadata(deal.AddonMetadata)
	if err != nil {
		return err
	}
	if i.tracker == nil {
		return errors.New("no verification tracker configured")
	}

	// The task outlives the deal creation call, so it is not tied to ctx
	task := i.tracker.Track(deal, imd.RootCID, imd.BlockCIDs)
	log.Infow("started ipni verification", "id", deal.ID, "provider", deal.ProviderAddress, "root", imd.RootCID, "task", task.DealID)
	return nil
}

func ipniMetadata(md types.AddonMetadata) (*IpniMetadata, error) {
	v, ok := md[IpniName]
	if !ok {
		return nil, &types.ConfigurationError{Addon: IpniName, Err: errors.New("missing ipni metadata")}
	}
	imd, ok := v.(*IpniMetadata)
	if !ok {
		return nil, &types.ConfigurationError{Addon: IpniName, Err: fmt.Errorf("unexpected ipni metadata type %T", v)}
	}
	return imd, nil
}
