package fielddef

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/ipfs/go-cid"
)

type FieldDefinition interface {
	FieldPtr() interface{}
	Marshall() (interface{}, error)
	Unmarshall() error
}

type FieldDef struct {
	F interface{}
}

var _ FieldDefinition = (*FieldDef)(nil)

func (fd *FieldDef) FieldPtr() interface{} {
	return fd.F
}

func (fd *FieldDef) Marshall() (interface{}, error) {
	return fd.F, nil
}

func (fd *FieldDef) Unmarshall() error {
	return nil
}

type CidPtrFieldDef struct {
	cidStr sql.NullString
	F      **cid.Cid
}

func (fd *CidPtrFieldDef) FieldPtr() interface{} {
	return &fd.cidStr
}

func (fd *CidPtrFieldDef) Marshall() (interface{}, error) {
	if (*fd.F) == nil {
		return nil, nil
	}
	return (*fd.F).String(), nil
}

func (fd *CidPtrFieldDef) Unmarshall() error {
	if !fd.cidStr.Valid {
		return nil
	}

	c, err := cid.Parse(fd.cidStr.String)
	if err != nil {
		return fmt.Errorf("parsing CID from string '%s': %w", fd.cidStr.String, err)
	}

	*fd.F = &c
	return nil
}

type StatusFieldDef struct {
	Marshalled string
	F          *dealstatus.Status
}

func (fd *StatusFieldDef) FieldPtr() interface{} {
	return &fd.Marshalled
}

func (fd *StatusFieldDef) Marshall() (interface{}, error) {
	return fd.F.String(), nil
}

func (fd *StatusFieldDef) Unmarshall() error {
	s, err := dealstatus.FromString(fd.Marshalled)
	if err != nil {
		return fmt.Errorf("parsing deal status from string '%s': %w", fd.Marshalled, err)
	}

	*fd.F = s
	return nil
}

type IpniStatusFieldDef struct {
	Marshalled string
	F          *dealstatus.IpniStatus
}

func (fd *IpniStatusFieldDef) FieldPtr() interface{} {
	return &fd.Marshalled
}

func (fd *IpniStatusFieldDef) Marshall() (interface{}, error) {
	return fd.F.String(), nil
}

func (fd *IpniStatusFieldDef) Unmarshall() error {
	s, err := dealstatus.IpniFromString(fd.Marshalled)
	if err != nil {
		return fmt.Errorf("parsing ipni status from string '%s': %w", fd.Marshalled, err)
	}

	*fd.F = s
	return nil
}

// JSONFieldDef stores any JSON-serializable value (slices, maps) in a TEXT
// column. F must be a pointer.
type JSONFieldDef struct {
	Marshalled sql.NullString
	F          interface{}
}

func (fd *JSONFieldDef) FieldPtr() interface{} {
	return &fd.Marshalled
}

func (fd *JSONFieldDef) Marshall() (interface{}, error) {
	bz, err := json.Marshal(fd.F)
	if err != nil {
		return nil, fmt.Errorf("marshalling json field: %w", err)
	}
	return string(bz), nil
}

func (fd *JSONFieldDef) Unmarshall() error {
	if !fd.Marshalled.Valid || fd.Marshalled.String == "" {
		return nil
	}

	if err := json.Unmarshal([]byte(fd.Marshalled.String), fd.F); err != nil {
		return fmt.Errorf("unmarshalling json field '%s': %w", fd.Marshalled.String, err)
	}
	return nil
}
