package pdp

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	commcid "github.com/filecoin-project/go-fil-commcid"
	commp "github.com/filecoin-project/go-fil-commp-hashhash"
	"github.com/ipfs/go-cid"
)

const (
	commpHashName = "sha2-256-trunc254-padded"
	// smallest payload the commP calculator accepts
	minPiecePayload = 65
)

type pieceCommitment struct {
	PieceCID   cid.Cid
	Digest     []byte
	PaddedSize uint64
}

func (pc *pieceCommitment) check(rawSize int64) pieceCheck {
	return pieceCheck{Name: commpHashName, Hash: hex.EncodeToString(pc.Digest), Size: rawSize}
}

// generatePieceCommitment computes the piece CID of data. Payloads shorter
// than the commP minimum are zero padded.
func generatePieceCommitment(data []byte) (*pieceCommitment, error) {
	cp := new(commp.Calc)

	if _, err := io.Copy(cp, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("writing data to commp calculator: %w", err)
	}
	if len(data) < minPiecePayload {
		pad := make([]byte, minPiecePayload-len(data))
		if _, err := cp.Write(pad); err != nil {
			return nil, fmt.Errorf("padding commp calculator: %w", err)
		}
	}

	rawCommP, paddedSize, err := cp.Digest()
	if err != nil {
		return nil, fmt.Errorf("computing commp: %w", err)
	}

	c, err := commcid.DataCommitmentV1ToCID(rawCommP)
	if err != nil {
		return nil, fmt.Errorf("converting commp to cid: %w", err)
	}

	return &pieceCommitment{PieceCID: c, Digest: rawCommP, PaddedSize: paddedSize}, nil
}
