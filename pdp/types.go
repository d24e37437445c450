package pdp

import "time"

type createDataSetRequest struct {
	RecordKeeper string `json:"recordKeeper"`
	ExtraData    string `json:"extraData"`
}

type dataSetCreationStatus struct {
	CreateMessageHash string  `json:"createMessageHash"`
	DataSetCreated    bool    `json:"dataSetCreated"`
	Service           string  `json:"service"`
	TxStatus          string  `json:"txStatus"`
	OK                *bool   `json:"ok"`
	DataSetID         *uint64 `json:"dataSetId,omitempty"`
}

type pieceCheck struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

type createPieceRequest struct {
	Check pieceCheck `json:"check"`
}

type pieceLookupResponse struct {
	PieceCID string `json:"pieceCid"`
}

type subPiece struct {
	SubPieceCID string `json:"subPieceCid"`
}

type addPiece struct {
	PieceCID  string     `json:"pieceCid"`
	SubPieces []subPiece `json:"subPieces"`
}

type addPiecesRequest struct {
	Pieces    []addPiece `json:"pieces"`
	ExtraData string     `json:"extraData"`
}

type pieceAdditionStatus struct {
	TxHash            string   `json:"txHash"`
	TxStatus          string   `json:"txStatus"`
	DataSetID         uint64   `json:"dataSetId"`
	PieceCount        int      `json:"pieceCount"`
	AddMessageOK      *bool    `json:"addMessageOk"`
	ConfirmedPieceIDs []uint64 `json:"confirmedPieceIds,omitempty"`
}

type pieceStatusResponse struct {
	PieceCID    string     `json:"pieceCid"`
	Indexed     bool       `json:"indexed"`
	Advertised  bool       `json:"advertised"`
	Retrieved   bool       `json:"retrieved"`
	RetrievedAt *time.Time `json:"retrievedAt,omitempty"`
}
