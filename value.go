package derefmap

import "sort"

// Value Codec (C2): encoding of the payloads stored alongside forward and backward keys.
//
// Forward row value: the depending records the dependant's indexed value was computed from, one
// terminated (var-bytes master id, fixed-16 vtag) pair per depending record, concatenated. Order
// is insertion order as produced by UpdateDependencies; callers must not rely on it.
//
// Backward row "fields" value: the set<SchemaId> of field types the dependant's value drew on
// from this particular depending record, as a flat concatenation of 16-byte SchemaIds. Fixed
// width per element means no escaping is needed — unlike key fields, these values are never
// compared byte-for-byte for ordering, only decoded in full.
//
// Backward row "pattern" value: the VariantPropertiesPattern, as a sequence of terminated
// (name, value-or-null) pairs. A null value is written as the reserved null marker instead of a
// terminated string.

// serializeDependingRecords encodes the forward row payload.
func serializeDependingRecords(records []DependingRecord) []byte {
	var b buffer
	for _, r := range records {
		masterBytes := r.RecordId.Master().ToBytes()
		b = appendTerminatedBytes(b, masterBytes)
		b.writeFixed16(r.VTag)
	}
	return b.bytes()
}

// deserializeDependingRecords decodes the forward row payload. gen is used to turn each encoded
// master id back into a RecordId.
func deserializeDependingRecords(data []byte, gen IdGenerator) ([]DependingRecord, error) {
	var out []DependingRecord
	rest := data
	for len(rest) > 0 {
		var masterBytes []byte
		var err error
		masterBytes, rest, err = readTerminatedBytes(rest)
		if err != nil {
			return nil, err
		}
		var vtag SchemaId
		vtag, rest, err = readFixed16(rest)
		if err != nil {
			return nil, err
		}
		masterId, err := gen.FromBytes(masterBytes)
		if err != nil {
			return nil, corruptf("decoding master record id: %v", err)
		}
		out = append(out, DependingRecord{RecordId: masterId, VTag: vtag})
	}
	return out, nil
}

// serializeFields encodes a backward row's "fields" value.
func serializeFields(fields schemaIdSet) []byte {
	var b buffer
	for _, f := range fields {
		b.writeFixed16(f)
	}
	return b.bytes()
}

// deserializeFields decodes a backward row's "fields" value.
func deserializeFields(data []byte) (schemaIdSet, error) {
	if len(data)%16 != 0 {
		return nil, corruptf("fields value length %d is not a multiple of 16", len(data))
	}
	var out schemaIdSet
	for i := 0; i < len(data); i += 16 {
		var id SchemaId
		copy(id[:], data[i:i+16])
		out = append(out, id)
	}
	return out, nil
}

// nullMarker is the reserved sentinel written in place of a terminated string when encoding a
// wildcard (nil) pattern value.
const nullMarker = 0x02

// serializeVariantPropertiesPattern encodes a backward row's "pattern" value. The pattern's
// dimension names are written in sorted order so the encoding is deterministic regardless of the
// order the caller built the map in.
func serializeVariantPropertiesPattern(pattern VariantPropertiesPattern) []byte {
	names := make([]string, 0, len(pattern))
	for name := range pattern {
		names = append(names, name)
	}
	sort.Strings(names)

	var b buffer
	for _, name := range names {
		b = appendTerminatedBytes(b, []byte(name))
		if v := pattern[name]; v != nil {
			b = appendTerminatedBytes(b, []byte(*v))
		} else {
			b.writeByte(escByte)
			b.writeByte(nullMarker)
		}
	}
	return b.bytes()
}

// deserializeVariantPropertiesPattern decodes a backward row's "pattern" value.
func deserializeVariantPropertiesPattern(data []byte) (VariantPropertiesPattern, error) {
	pattern := make(VariantPropertiesPattern)
	rest := data
	for len(rest) > 0 {
		var nameBytes []byte
		var err error
		nameBytes, rest, err = readTerminatedBytes(rest)
		if err != nil {
			return nil, err
		}
		name := string(nameBytes)

		if len(rest) >= 2 && rest[0] == escByte && rest[1] == nullMarker {
			pattern[name] = nil
			rest = rest[2:]
			continue
		}
		var valueBytes []byte
		valueBytes, rest, err = readTerminatedBytes(rest)
		if err != nil {
			return nil, err
		}
		value := string(valueBytes)
		pattern[name] = &value
	}
	return pattern, nil
}
