// Package fakestore is a minimal stand-in for the external record store DerefMap depends on but
// never implements (§1, §6): just enough RecordId/IdGenerator plumbing to create record
// identities, plus a small in-memory content store for demos and tests to compute "indexed value
// depends on these other records" relationships against.
//
// Grounded on the teacher's EntBase/Ent identity model (ent.go) and go-uuid's UUID type, the way
// ents.gen.go/examples use uuid.MustGen() for unique fields. Not an attempt to reimplement the
// teacher's full CRUD/versioning/index machinery — DerefMap's own indexes replace that here.
package fakestore

import (
	"fmt"
	"sort"

	"github.com/rsms/derefmap"
	uuid "github.com/rsms/go-uuid"
)

// RecordId is a fakestore-native implementation of derefmap.RecordId: a 16-byte master uuid plus
// zero or more named variant-property axes.
type RecordId struct {
	master   uuid.UUID
	variants []derefmap.VariantProperty
}

// NewMasterId returns a fresh RecordId with a random master uuid and no variant properties.
func NewMasterId() RecordId {
	return RecordId{master: uuid.MustGen()}
}

// WithVariants returns a copy of id carrying the given variant properties, sorted by name so two
// RecordIds built from the same (master, properties) pair always compare byte-equal.
func (id RecordId) WithVariants(properties map[string]string) RecordId {
	out := RecordId{master: id.master, variants: make([]derefmap.VariantProperty, 0, len(properties))}
	for name, value := range properties {
		out.variants = append(out.variants, derefmap.VariantProperty{Name: name, Value: value})
	}
	sort.Slice(out.variants, func(i, j int) bool { return out.variants[i].Name < out.variants[j].Name })
	return out
}

// kindMaster and kindVariant are the two leading discriminator bytes a RecordId's byte form can
// start with: ToBytes()[0] tells FromBytes whether variant-property pairs follow the master uuid.
const (
	kindMaster  = 0
	kindVariant = 1
)

// ToBytes implements derefmap.RecordId. Byte 0 is the kind discriminator, byte 1 is the first
// byte of the master uuid — together the two-byte prefix the key codec stores verbatim ahead of
// the terminated remainder (§4.1). The rest is the remaining 15 master uuid bytes, followed by
// one length-prefixed (name, value) pair per variant property.
func (id RecordId) ToBytes() []byte {
	kind := byte(kindMaster)
	if len(id.variants) > 0 {
		kind = kindVariant
	}
	buf := make([]byte, 0, 16+1+32*len(id.variants))
	buf = append(buf, kind)
	buf = append(buf, id.master[:]...)
	for _, vp := range id.variants {
		buf = appendLenPrefixedString(buf, vp.Name)
		buf = appendLenPrefixedString(buf, vp.Value)
	}
	return buf
}

// Master implements derefmap.RecordId.
func (id RecordId) Master() derefmap.RecordId {
	return RecordId{master: id.master}
}

// VariantProperties implements derefmap.RecordId.
func (id RecordId) VariantProperties() []derefmap.VariantProperty {
	return id.variants
}

// String renders the master uuid and variant properties for logging/debugging.
func (id RecordId) String() string {
	if len(id.variants) == 0 {
		return id.master.String()
	}
	return fmt.Sprintf("%s%v", id.master.String(), id.variants)
}

func appendLenPrefixedString(buf []byte, s string) []byte {
	n := len(s)
	buf = append(buf, byte(n>>8), byte(n))
	return append(buf, s...)
}

func readLenPrefixedString(data []byte) (s string, rest []byte, err error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("fakestore: truncated length prefix")
	}
	n := int(data[0])<<8 | int(data[1])
	data = data[2:]
	if len(data) < n {
		return "", nil, fmt.Errorf("fakestore: truncated string field (want %d, have %d)", n, len(data))
	}
	return string(data[:n]), data[n:], nil
}

// IdGenerator implements derefmap.IdGenerator against fakestore.RecordId's byte form.
type IdGenerator struct{}

// FromBytes implements derefmap.IdGenerator.
func (IdGenerator) FromBytes(data []byte) (derefmap.RecordId, error) {
	if len(data) < 17 {
		return nil, fmt.Errorf("fakestore: record id too short (%d bytes)", len(data))
	}
	kind := data[0]
	var master uuid.UUID
	copy(master[:], data[1:17])
	rest := data[17:]

	id := RecordId{master: master}
	for len(rest) > 0 {
		var name, value string
		var err error
		name, rest, err = readLenPrefixedString(rest)
		if err != nil {
			return nil, err
		}
		value, rest, err = readLenPrefixedString(rest)
		if err != nil {
			return nil, err
		}
		id.variants = append(id.variants, derefmap.VariantProperty{Name: name, Value: value})
	}
	if kind == kindMaster && len(id.variants) != 0 {
		return nil, fmt.Errorf("fakestore: master-kind record id carries variant properties")
	}
	return id, nil
}

// SchemaIdFromBytes implements derefmap.IdGenerator.
func (IdGenerator) SchemaIdFromBytes(data []byte) (derefmap.SchemaId, error) {
	var id derefmap.SchemaId
	if len(data) != 16 {
		return id, fmt.Errorf("fakestore: schema id must be 16 bytes, got %d", len(data))
	}
	copy(id[:], data)
	return id, nil
}

// NewSchemaId returns a fresh random SchemaId, the way examples/mem/main.go mints uuid.MustGen()
// values for unique ent fields.
func NewSchemaId() derefmap.SchemaId {
	u := uuid.MustGen()
	var id derefmap.SchemaId
	copy(id[:], u[:])
	return id
}
