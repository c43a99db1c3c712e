package derefmap

// Key Codec (C1): order-preserving binary encoding of a composite key.
//
// Two primitives:
//
//   - fixed-length byte field (length L): stored verbatim.
//   - variable-length byte field with a fixed prefix of length P: the first P bytes are stored
//     verbatim in the leading positions of the key (so ordering by that prefix is lexicographic
//     and unaffected by the variable encoder's escape byte), followed by the remaining bytes
//     using a terminated, order-preserving variable-length encoding.
//
// The terminated encoding escapes 0x00 as 0x00 0xFF and terminates the field with 0x00 0x01.
// This is the same scheme CockroachDB/FoundationDB-style ordered key encoders use for
// order-preserving byte strings: every 0x00 in the payload is distinguishable from the
// terminator, and the encoding of any byte string is lexicographically ordered the same as the
// byte string itself, because 0x01 < 0xFF so a terminated prefix always sorts before any
// continuation of it.

const (
	escByte  = 0x00
	escCont  = 0xFF // 0x00 0xFF means "a literal 0x00 byte, more to come"
	escTerm  = 0x01 // 0x00 0x01 means "end of field"
)

// recordIdKeyPrefixLen is the number of leading bytes of a record id's byte form that are
// stored verbatim ahead of the terminated remainder in a composite key. Per §4.1: byte 0 is a
// type discriminator, byte 1 is the first byte of the user-chosen identifier.
const recordIdKeyPrefixLen = 2

// appendTerminatedBytes appends data to dst using the escape+terminate scheme above.
func appendTerminatedBytes(dst []byte, data []byte) []byte {
	for _, c := range data {
		if c == escByte {
			dst = append(dst, escByte, escCont)
		} else {
			dst = append(dst, c)
		}
	}
	return append(dst, escByte, escTerm)
}

// readTerminatedBytes consumes one terminated field from src, returning the decoded bytes and
// the remainder of src after the terminator. Returns ErrCorruptEncoding if src ends before a
// terminator is found.
func readTerminatedBytes(src []byte) (data, rest []byte, err error) {
	out := make([]byte, 0, len(src))
	i := 0
	for i < len(src) {
		c := src[i]
		if c != escByte {
			out = append(out, c)
			i++
			continue
		}
		if i+1 >= len(src) {
			return nil, nil, corruptf("truncated escape sequence at offset %d", i)
		}
		switch src[i+1] {
		case escCont:
			out = append(out, escByte)
			i += 2
		case escTerm:
			return out, src[i+2:], nil
		default:
			return nil, nil, corruptf("bad escape byte 0x%02x at offset %d", src[i+1], i+1)
		}
	}
	return nil, nil, corruptf("unterminated field (%d bytes consumed, no terminator)", i)
}

// appendVarBytesPrefixed appends a variable-length byte field whose first prefixLen bytes are
// stored verbatim (unescaped) ahead of the terminated remainder. data must be at least
// prefixLen bytes long.
func appendVarBytesPrefixed(dst []byte, data []byte, prefixLen int) ([]byte, error) {
	if len(data) < prefixLen {
		return nil, corruptf("record id byte form too short (%d bytes, need prefix of %d)",
			len(data), prefixLen)
	}
	dst = append(dst, data[:prefixLen]...)
	return appendTerminatedBytes(dst, data[prefixLen:]), nil
}

// readVarBytesPrefixed is the inverse of appendVarBytesPrefixed.
func readVarBytesPrefixed(src []byte, prefixLen int) (data, rest []byte, err error) {
	if len(src) < prefixLen {
		return nil, nil, corruptf("key too short for %d-byte prefix", prefixLen)
	}
	prefix := src[:prefixLen]
	tail, rest, err := readTerminatedBytes(src[prefixLen:])
	if err != nil {
		return nil, nil, err
	}
	data = make([]byte, 0, prefixLen+len(tail))
	data = append(data, prefix...)
	data = append(data, tail...)
	return data, rest, nil
}

// appendFixed16 appends a fixed 16-byte field verbatim (used for vtags / schema ids).
func appendFixed16(dst []byte, v SchemaId) []byte {
	return append(dst, v[:]...)
}

// readFixed16 consumes a fixed 16-byte field from src.
func readFixed16(src []byte) (v SchemaId, rest []byte, err error) {
	if len(src) < 16 {
		return v, nil, corruptf("key too short for 16-byte field (%d bytes left)", len(src))
	}
	copy(v[:], src[:16])
	return v, src[16:], nil
}

// encodeForwardKey builds the forward index key: (var-bytes dependant id, prefix=2; fixed-16
// dependant vtag).
func encodeForwardKey(dependantId []byte, dependantVTag SchemaId) ([]byte, error) {
	dst := make([]byte, 0, len(dependantId)+2+16)
	dst, err := appendVarBytesPrefixed(dst, dependantId, recordIdKeyPrefixLen)
	if err != nil {
		return nil, err
	}
	dst = appendFixed16(dst, dependantVTag)
	return dst, nil
}

// encodeBackwardKey builds the backward index key: (var-bytes depending master id, prefix=2;
// fixed-16 depending vtag).
func encodeBackwardKey(dependingMasterId []byte, dependingVTag SchemaId) ([]byte, error) {
	dst := make([]byte, 0, len(dependingMasterId)+2+16)
	dst, err := appendVarBytesPrefixed(dst, dependingMasterId, recordIdKeyPrefixLen)
	if err != nil {
		return nil, err
	}
	dst = appendFixed16(dst, dependingVTag)
	return dst, nil
}

// decodeForwardKey is the inverse of encodeForwardKey. Provided for completeness/testing; the
// core never needs to decode a key it issued the query with, only the rows it gets back.
func decodeForwardKey(key []byte) (dependantId []byte, dependantVTag SchemaId, err error) {
	dependantId, rest, err := readVarBytesPrefixed(key, recordIdKeyPrefixLen)
	if err != nil {
		return nil, SchemaId{}, err
	}
	dependantVTag, rest, err = readFixed16(rest)
	if err != nil {
		return nil, SchemaId{}, err
	}
	if len(rest) != 0 {
		return nil, SchemaId{}, corruptf("trailing %d bytes after forward key", len(rest))
	}
	return dependantId, dependantVTag, nil
}
