package derefmap

import "fmt"

// SchemaId is an opaque 16-byte identifier derived from a 128-bit UUID. It is used for field
// types, record types, and version tags (vtags) alike — the core never distinguishes between
// these roles, it only compares SchemaId values for byte equality.
type SchemaId [16]byte

// String returns the canonical 8-4-4-4-12 hex UUID text form.
func (id SchemaId) String() string {
	var b [36]byte
	hexEncode(b[0:8], id[0:4])
	b[8] = '-'
	hexEncode(b[9:13], id[4:6])
	b[13] = '-'
	hexEncode(b[14:18], id[6:8])
	b[18] = '-'
	hexEncode(b[19:23], id[8:10])
	b[23] = '-'
	hexEncode(b[24:36], id[10:16])
	return string(b[:])
}

// ParseSchemaId parses the canonical 8-4-4-4-12 hex UUID text form.
func ParseSchemaId(s string) (SchemaId, error) {
	var id SchemaId
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return id, fmt.Errorf("derefmap: malformed schema id %q", s)
	}
	groups := [5][2]int{{0, 8}, {9, 13}, {14, 18}, {19, 23}, {24, 36}}
	dst := id[:]
	for _, g := range groups {
		n, err := hexDecode(dst, s[g[0]:g[1]])
		if err != nil {
			return id, fmt.Errorf("derefmap: malformed schema id %q: %w", s, err)
		}
		dst = dst[n:]
	}
	return id, nil
}

// Bytes returns the raw 16 bytes of the schema id.
func (id SchemaId) Bytes() []byte { return id[:] }

func hexEncode(dst, src []byte) {
	const digits = "0123456789abcdef"
	j := 0
	for _, v := range src {
		dst[j] = digits[v>>4]
		dst[j+1] = digits[v&0x0f]
		j += 2
	}
}

func hexDecode(dst []byte, src string) (int, error) {
	n := len(src) / 2
	for i := 0; i < n; i++ {
		hi, err := hexNibble(src[i*2])
		if err != nil {
			return 0, err
		}
		lo, err := hexNibble(src[i*2+1])
		if err != nil {
			return 0, err
		}
		dst[i] = hi<<4 | lo
	}
	return n, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}
	return 0, fmt.Errorf("invalid hex byte %q", c)
}

// VariantProperty is a single named axis of a record identity (e.g. "lang" -> "en").
type VariantProperty struct {
	Name  string
	Value string
}

// RecordId is the contract the external record store provides for a record's identity (§6).
// DerefMap never constructs these itself: it receives them from callers and from IdGenerator.
type RecordId interface {
	// ToBytes returns the round-trippable byte form of this record id, as produced by the
	// record store's own id generator. For a master id (no variant properties) this is the
	// byte form stored in forward rows; for a full id it is the byte form stored as the
	// key of forward rows.
	ToBytes() []byte

	// Master returns the RecordId with variant properties stripped, i.e. just the master
	// identity. Calling Master() on an already-master id returns an equivalent value.
	Master() RecordId

	// VariantProperties returns the ordered (by name) variant-property axes of this record
	// id. A master id returns an empty slice.
	VariantProperties() []VariantProperty
}

// IdGenerator is the external collaborator (§6) that knows how to round-trip RecordId and
// SchemaId values to and from their byte forms. DerefMap only decodes bytes it previously wrote
// itself (the master portion of a depending record, and the dependant identifier), so this is a
// narrow contract.
type IdGenerator interface {
	FromBytes(data []byte) (RecordId, error)
	SchemaIdFromBytes(data []byte) (SchemaId, error)
}

// DependingRecord is (recordId, vtag): the thing a dependant's indexed value was computed from.
// Equality is over both fields; values are passed by copy across the DerefMap API.
type DependingRecord struct {
	RecordId RecordId
	VTag     SchemaId
}

// Entry pairs a DependingRecord with the set of additional variant dimensions the dependant's
// dependency on it is widened over (§4.6). MoreDimensionedVariants holds dimension names only;
// order is not significant.
type Entry struct {
	Depending               DependingRecord
	MoreDimensionedVariants []string
}
