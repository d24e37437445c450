package pdp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// storageContext is a data set with one provider
type storageContext struct {
	client    *Client
	provider  types.ProviderInfo
	base      *url.URL
	dataSetID uint64
}

var _ types.StorageContext = (*storageContext)(nil)

func (s *storageContext) DataSetID() uint64 {
	return s.dataSetID
}

// Upload sends the piece to the provider, waits for it to be parked, adds
// it to the data set and waits for the add message to be confirmed.
func (s *storageContext) Upload(ctx context.Context, data []byte, cb types.UploadCallbacks, pieceMetadata map[string]string) (*types.UploadResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "pdp.upload", trace.WithAttributes(
		attribute.String("provider", s.provider.Address),
		attribute.Int("size", len(data)),
	))
	defer span.End()

	pc, err := generatePieceCommitment(data)
	if err != nil {
		return nil, err
	}

	if err := s.uploadPiece(ctx, data, pc); err != nil {
		return nil, err
	}
	if err := s.waitParked(ctx, pc); err != nil {
		return nil, err
	}

	log.Infow("piece uploaded", "provider", s.provider.Address, "pieceCid", pc.PieceCID, "size", len(data))
	if cb.OnUploadComplete != nil {
		cb.OnUploadComplete(pc.PieceCID)
	}

	txHash, status, err := s.addPiece(ctx, pc, pieceMetadata)
	if err != nil {
		return nil, err
	}

	log.Infow("piece add submitted", "provider", s.provider.Address, "dataSetId", s.dataSetID, "tx", txHash)
	if cb.OnPieceAdded != nil {
		cb.OnPieceAdded(txHash)
	}

	pieceID, err := s.waitPieceConfirmed(ctx, status)
	if err != nil {
		return nil, err
	}

	return &types.UploadResult{
		PieceCid: pc.PieceCID,
		Size:     pc.PaddedSize,
		PieceID:  pieceID,
	}, nil
}

func (s *storageContext) uploadPiece(ctx context.Context, data []byte, pc *pieceCommitment) error {
	c := s.client
	req := createPieceRequest{Check: pc.check(int64(len(data)))}
	resp, err := c.doJSON(ctx, http.MethodPost, resolve(s.base, "/pdp/piece"), req, http.StatusOK, http.StatusCreated)
	if err != nil {
		return fmt.Errorf("creating piece upload: %w", err)
	}

	// the provider already has the piece
	if resp.StatusCode == http.StatusOK {
		log.Debugw("piece already present", "provider", s.provider.Address, "pieceCid", pc.PieceCID)
		return nil
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return errors.New("creating piece upload: response has no Location header")
	}
	_, err = c.do(ctx, http.MethodPut, resolve(s.base, location), bytes.NewReader(data), "application/octet-stream", http.StatusOK, http.StatusNoContent)
	if err != nil {
		return fmt.Errorf("uploading piece: %w", err)
	}
	return nil
}

func (s *storageContext) waitParked(ctx context.Context, pc *pieceCommitment) error {
	c := s.client
	u := resolve(s.base, "/pdp/piece?pieceCid="+url.QueryEscape(pc.PieceCID.String()))
	return c.poll(ctx, "piece to be parked", func(ctx context.Context) (bool, error) {
		resp, err := c.do(ctx, http.MethodGet, u, nil, "", http.StatusOK, http.StatusNotFound)
		if err != nil {
			return false, err
		}
		if resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		var found pieceLookupResponse
		if err := decodeJSON(resp, &found); err != nil {
			return false, err
		}
		if found.PieceCID != pc.PieceCID.String() {
			return false, fmt.Errorf("provider reported piece %s, expected %s", found.PieceCID, pc.PieceCID)
		}
		return true, nil
	})
}

// addPiece adds the piece to the data set and returns the add transaction
// hash together with the url to poll for its status
func (s *storageContext) addPiece(ctx context.Context, pc *pieceCommitment, pieceMetadata map[string]string) (string, string, error) {
	c := s.client
	extra, err := c.signer.AddPiecesExtraData(ctx, s.dataSetID, pc.PieceCID, pieceMetadata)
	if err != nil {
		return "", "", fmt.Errorf("signing add pieces extra data: %w", err)
	}

	req := addPiecesRequest{
		Pieces: []addPiece{{
			PieceCID:  pc.PieceCID.String(),
			SubPieces: []subPiece{{SubPieceCID: pc.PieceCID.String()}},
		}},
		ExtraData: encodeExtraData(extra),
	}
	u := resolve(s.base, "/pdp/data-sets/"+strconv.FormatUint(s.dataSetID, 10)+"/pieces")
	resp, err := c.doJSON(ctx, http.MethodPost, u, req, http.StatusCreated)
	if err != nil {
		return "", "", fmt.Errorf("adding piece to data set %d: %w", s.dataSetID, err)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", "", errors.New("adding piece: response has no Location header")
	}
	return path.Base(location), resolve(s.base, location), nil
}

func (s *storageContext) waitPieceConfirmed(ctx context.Context, statusURL string) (uint64, error) {
	var pieceID uint64
	err := s.client.poll(ctx, "piece addition", func(ctx context.Context) (bool, error) {
		var st pieceAdditionStatus
		if err := s.client.getJSON(ctx, statusURL, &st); err != nil {
			return false, err
		}
		if st.AddMessageOK != nil && !*st.AddMessageOK {
			return false, fmt.Errorf("add pieces message %s failed (tx status %s)", st.TxHash, st.TxStatus)
		}
		if len(st.ConfirmedPieceIDs) == 0 {
			return false, nil
		}
		pieceID = st.ConfirmedPieceIDs[0]
		return true, nil
	})
	return pieceID, err
}
