package addons

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ipfs/boxo/blockservice"
	bstore "github.com/ipfs/boxo/blockstore"
	chunk "github.com/ipfs/boxo/chunker"
	offline "github.com/ipfs/boxo/exchange/offline"
	"github.com/ipfs/boxo/ipld/merkledag"
	"github.com/ipfs/boxo/ipld/unixfs/importer/balanced"
	ihelper "github.com/ipfs/boxo/ipld/unixfs/importer/helpers"
	"github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	ipldformat "github.com/ipfs/go-ipld-format"
	"github.com/ipld/go-car/v2"
	"github.com/ipld/go-car/v2/storage"
)

type carFile struct {
	Root cid.Cid
	// Every block in the CAR except the root, in depth-first order
	Blocks []cid.Cid
	Data   []byte
}

// buildCar imports data as a UnixFS file and serializes the resulting DAG as
// a CARv1 with the file's root as the only root.
func buildCar(ctx context.Context, data []byte, chunkSize int64, maxLinks int) (*carFile, error) {
	bs := bstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
	dagSvc := merkledag.NewDAGService(blockservice.New(bs, offline.Exchange(bs)))

	root, err := writeUnixfsDAG(ctx, data, dagSvc, chunkSize, maxLinks)
	if err != nil {
		return nil, fmt.Errorf("building unixfs dag: %w", err)
	}

	var buf bytes.Buffer
	cw, err := storage.NewWritable(&buf, []cid.Cid{root}, car.WriteAsCarV1(true))
	if err != nil {
		return nil, fmt.Errorf("creating car writer: %w", err)
	}

	var blocks []cid.Cid
	seen := make(map[cid.Cid]struct{})
	var walk func(c cid.Cid) error
	walk = func(c cid.Cid) error {
		if _, ok := seen[c]; ok {
			return nil
		}
		seen[c] = struct{}{}

		nd, err := dagSvc.Get(ctx, c)
		if err != nil {
			return fmt.Errorf("getting block %s: %w", c, err)
		}
		if err := cw.Put(ctx, c.KeyString(), nd.RawData()); err != nil {
			return fmt.Errorf("writing block %s to car: %w", c, err)
		}
		if c != root {
			blocks = append(blocks, c)
		}
		for _, l := range nd.Links() {
			if err := walk(l.Cid); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}

	if err := cw.Finalize(); err != nil {
		return nil, fmt.Errorf("finalizing car: %w", err)
	}

	return &carFile{Root: root, Blocks: blocks, Data: buf.Bytes()}, nil
}

func writeUnixfsDAG(ctx context.Context, data []byte, into ipldformat.DAGService, chunkSize int64, maxLinks int) (cid.Cid, error) {
	prefix, err := merkledag.PrefixForCidVersion(1)
	if err != nil {
		return cid.Undef, err
	}

	bufferedDS := ipldformat.NewBufferedDAG(ctx, into)
	params := ihelper.DagBuilderParams{
		Maxlinks:   maxLinks,
		RawLeaves:  true,
		CidBuilder: prefix,
		Dagserv:    bufferedDS,
	}

	db, err := params.New(chunk.NewSizeSplitter(bytes.NewReader(data), chunkSize))
	if err != nil {
		return cid.Undef, err
	}

	nd, err := balanced.Layout(db)
	if err != nil {
		return cid.Undef, err
	}

	if err := bufferedDS.Commit(); err != nil {
		return cid.Undef, err
	}

	return nd.Cid(), nil
}
