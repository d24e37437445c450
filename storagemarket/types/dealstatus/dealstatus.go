package dealstatus

import "fmt"

// Status is the primary lifecycle state of a deal.
type Status int

const (
	Pending Status = iota
	Uploaded
	PieceAdded
	DealCreated
	Failed
)

var names = map[Status]string{
	Pending:     "PENDING",
	Uploaded:    "UPLOADED",
	PieceAdded:  "PIECE_ADDED",
	DealCreated: "DEAL_CREATED",
	Failed:      "FAILED",
}

var strToStatus map[string]Status

func init() {
	strToStatus = make(map[string]Status, len(names))
	for s, str := range names {
		strToStatus[str] = s
	}
}

func (s Status) String() string {
	return names[s]
}

// All returns every status in lifecycle order
func All() []Status {
	return []Status{Pending, Uploaded, PieceAdded, DealCreated, Failed}
}

// IsTerminal is true for DEAL_CREATED and FAILED.
func (s Status) IsTerminal() bool {
	return s == DealCreated || s == Failed
}

// CanTransition reports whether moving from s to next keeps the lifecycle
// monotonic. FAILED is reachable from every non-terminal state.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == Failed {
		return true
	}
	return next > s
}

func FromString(str string) (Status, error) {
	s, ok := strToStatus[str]
	if !ok {
		return Pending, fmt.Errorf("unrecognized deal status %s", str)
	}
	return s, nil
}

// IpniStatus is the verification sub-state of a deal.
type IpniStatus int

const (
	IpniPending IpniStatus = iota
	IpniSPIndexed
	IpniSPAdvertised
	IpniSPReceivedRetrieveRequest
	IpniVerified
	IpniFailed
)

var ipniNames = map[IpniStatus]string{
	IpniPending:                   "PENDING",
	IpniSPIndexed:                 "SP_INDEXED",
	IpniSPAdvertised:              "SP_ADVERTISED",
	IpniSPReceivedRetrieveRequest: "SP_RECEIVED_RETRIEVE_REQUEST",
	IpniVerified:                  "VERIFIED",
	IpniFailed:                    "FAILED",
}

var strToIpni map[string]IpniStatus

func init() {
	strToIpni = make(map[string]IpniStatus, len(ipniNames))
	for s, str := range ipniNames {
		strToIpni[str] = s
	}
}

func (s IpniStatus) String() string {
	return ipniNames[s]
}

func (s IpniStatus) IsTerminal() bool {
	return s == IpniVerified || s == IpniFailed
}

// CanTransition reports whether moving from s to next keeps the verification
// state monotonic.
func (s IpniStatus) CanTransition(next IpniStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == IpniFailed {
		return true
	}
	return next > s
}

func IpniFromString(str string) (IpniStatus, error) {
	s, ok := strToIpni[str]
	if !ok {
		return IpniPending, fmt.Errorf("unrecognized ipni status %s", str)
	}
	return s, nil
}
