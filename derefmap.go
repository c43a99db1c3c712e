package derefmap

import (
	"context"
	"sync"

	"github.com/rsms/go-log"
)

// DependencyMultimap is the new-dependencies argument to UpdateDependencies: a map from
// DependingRecord to the set of field types the dependant's value drew from it, built up one
// Entry at a time in the order the caller discovered them.
//
// Two Entries can name the same DependingRecord but different MoreDimensionedVariants (widening
// the match pattern over different axes); per the representative-entry rule, the first Entry
// Put for a given DependingRecord wins and later ones only contribute to its Fields set.
type DependencyMultimap struct {
	order []depKey
	byKey map[depKey]*multimapValue
}

// depKey is the comparable identity of a DependingRecord: (depending.master bytes, vtag).
// DependingRecord itself can't be a map key because its RecordId field is an interface whose
// concrete type (e.g. fakestore.RecordId, which holds a []VariantProperty) is not comparable —
// hashing it would panic. depKey is derived the same way diffDependingRecords tells two
// DependingRecords apart.
type depKey struct {
	master string
	vtag   SchemaId
}

func depKeyOf(dr DependingRecord) depKey {
	return depKey{master: string(dr.RecordId.Master().ToBytes()), vtag: dr.VTag}
}

type multimapValue struct {
	rep    DependingRecord
	entry  Entry
	fields schemaIdSet
}

// NewDependencyMultimap returns an empty multimap.
func NewDependencyMultimap() *DependencyMultimap {
	return &DependencyMultimap{byKey: make(map[depKey]*multimapValue)}
}

// Put records that the dependant's value for the given SchemaId (field type) was computed using
// entry.Depending, matched under entry.MoreDimensionedVariants.
func (m *DependencyMultimap) Put(entry Entry, field SchemaId) {
	key := depKeyOf(entry.Depending)
	v, ok := m.byKey[key]
	if !ok {
		v = &multimapValue{rep: entry.Depending, entry: entry}
		m.byKey[key] = v
		m.order = append(m.order, key)
	}
	v.fields.Add(field)
}

// Keys returns the distinct DependingRecords put into the multimap, in first-insertion order.
func (m *DependencyMultimap) Keys() []DependingRecord {
	out := make([]DependingRecord, len(m.order))
	for i, k := range m.order {
		out[i] = m.byKey[k].rep
	}
	return out
}

// Entry returns the representative Entry for a DependingRecord: the one first Put for it.
func (m *DependencyMultimap) Entry(dr DependingRecord) Entry {
	return m.byKey[depKeyOf(dr)].entry
}

// Fields returns the set of SchemaIds put against a DependingRecord.
func (m *DependencyMultimap) Fields(dr DependingRecord) schemaIdSet {
	return m.byKey[depKeyOf(dr)].fields
}

// DerefMap is a durable, bidirectional index over dependency relationships between records in an
// external record store (§1-§2). It owns two tables in an ordered key-value store — forward and
// backward — addressed through the IndexBackend contract (C4); it never touches record bodies.
//
// Mirrors the teacher's EntStorage split of responsibilities: DerefMap plays the role of the
// storage layer driving CalcStorageIndexEdits-style diffs, IndexBackend plays the role of the
// underlying key-value store.
type DerefMap struct {
	forward  IndexBackend
	backward IndexBackend
	idgen    IdGenerator
	log      *log.Logger
}

// BackendOpener constructs the two IndexBackend tables a DerefMap needs for one index name. It is
// the hook an IndexBackend implementation (memkv, rediskv) provides so Create/Delete can derive
// table identifiers the way the teacher's EntStorage derives entKey/indexKey strings.
type BackendOpener interface {
	// OpenForward returns (creating if needed) the forward table for the named index.
	OpenForward(ctx context.Context, indexName string) (IndexBackend, error)

	// OpenBackward returns (creating if needed) the backward table for the named index.
	OpenBackward(ctx context.Context, indexName string) (IndexBackend, error)

	// DropForward and DropBackward remove a previously-opened table and all its rows.
	DropForward(ctx context.Context, indexName string) error
	DropBackward(ctx context.Context, indexName string) error
}

// Create opens (creating backing storage as needed) the forward/backward table pair for
// indexName, named per the teacher's entKey/indexKey convention as "deref-forward-<indexName>"
// and "deref-backward-<indexName>".
func Create(ctx context.Context, opener BackendOpener, indexName string, idgen IdGenerator, logger *log.Logger) (*DerefMap, error) {
	fwd, err := opener.OpenForward(ctx, indexName)
	if err != nil {
		return nil, err
	}
	bwd, err := opener.OpenBackward(ctx, indexName)
	if err != nil {
		return nil, err
	}
	return &DerefMap{forward: fwd, backward: bwd, idgen: idgen, log: logger}, nil
}

// Delete removes both tables of indexName and all their rows.
func Delete(ctx context.Context, opener BackendOpener, indexName string) error {
	if err := opener.DropForward(ctx, indexName); err != nil {
		return err
	}
	return opener.DropBackward(ctx, indexName)
}

// UpdateDependencies implements the §4.4 update protocol for one dependant record: it replaces
// whatever depending records were previously recorded for (dependant, vtag) with the set
// described by newDeps, leaving the backward index at every point either equal to or a subset of
// what the forward row says (§4.4, crash-safety).
//
// Safe to call concurrently for distinct (dependant, vtag) pairs. Concurrent calls for the same
// pair are not safe and must be serialized by the caller (§5) — DerefMap holds no lock here that
// would do it for them.
func (d *DerefMap) UpdateDependencies(
	ctx context.Context,
	dependant RecordId,
	dependantVTag SchemaId,
	newDeps *DependencyMultimap,
) error {
	fwdKey, err := encodeForwardKey(dependant.ToBytes(), dependantVTag)
	if err != nil {
		return err
	}

	oldRecords, err := d.readForwardRow(ctx, fwdKey)
	if err != nil {
		return err
	}

	newRecords := make([]DependingRecord, len(newDeps.Keys()))
	for i, dr := range newDeps.Keys() {
		newRecords[i] = dr
	}

	removed, added := diffDependingRecords(oldRecords, newRecords)

	// Step 1: shrink the backward index first, so a crash leaves it a subset of the forward
	// row rather than a superset (§4.4).
	for _, dr := range removed {
		if err := d.removeBackwardEntry(ctx, dependant, dr); err != nil {
			return err
		}
	}

	// Step 2: overwrite the forward row to reflect the new set.
	if len(newRecords) == 0 {
		if err := d.forward.RemoveEntry(ctx, fwdKey); err != nil {
			return err
		}
	} else {
		if err := d.forward.AddEntry(ctx, IndexEntry{
			Key:   fwdKey,
			Value: serializeDependingRecords(newRecords),
		}); err != nil {
			return err
		}
	}

	// Step 3: grow the backward index to match.
	for _, dr := range added {
		entry := newDeps.Entry(dr)
		fields := newDeps.Fields(dr)
		if err := d.addBackwardEntry(ctx, dependant, entry, fields); err != nil {
			return err
		}
	}

	if d.log != nil {
		d.log.Debug("updated dependencies for %x vtag=%s: -%d +%d",
			dependant.ToBytes(), dependantVTag, len(removed), len(added))
	}
	return nil
}

// readForwardRow reads the at-most-one forward row for fwdKey. More than one row is an
// InvariantViolation (§4.4): the forward table's key is exactly (dependant, vtag), so a
// conforming backend can never return two rows for an equality query on it.
func (d *DerefMap) readForwardRow(ctx context.Context, fwdKey []byte) ([]DependingRecord, error) {
	cursor, err := d.forward.PerformQuery(ctx, fwdKey)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	row := cursor.Row()

	if cursor.Next(ctx) {
		return nil, invariantf("more than one forward row for a single (dependant, vtag) key")
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	records, err := deserializeDependingRecords(row.Value, d.idgen)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// diffDependingRecords partitions old vs new by (master bytes, vtag) identity (§4.4): records
// present in old but not new are "removed", present in new but not old are "added". A record
// unchanged across both is neither.
func diffDependingRecords(old, new []DependingRecord) (removed, added []DependingRecord) {
	key := func(dr DependingRecord) [2]string {
		return [2]string{string(dr.RecordId.Master().ToBytes()), string(dr.VTag[:])}
	}
	oldSet := make(map[[2]string]DependingRecord, len(old))
	for _, dr := range old {
		oldSet[key(dr)] = dr
	}
	newSet := make(map[[2]string]bool, len(new))
	for _, dr := range new {
		newSet[key(dr)] = true
	}
	for _, dr := range old {
		if !newSet[key(dr)] {
			removed = append(removed, dr)
		}
	}
	for _, dr := range new {
		if _, ok := oldSet[key(dr)]; !ok {
			added = append(added, dr)
		}
	}
	return removed, added
}

func (d *DerefMap) addBackwardEntry(
	ctx context.Context, dependant RecordId, entry Entry, fields schemaIdSet,
) error {
	bwdKey, err := encodeBackwardKey(entry.Depending.RecordId.Master().ToBytes(), entry.Depending.VTag)
	if err != nil {
		return err
	}
	pattern := BuildPattern(entry.Depending.RecordId.VariantProperties(), entry.MoreDimensionedVariants)

	return d.backward.AddEntry(ctx, IndexEntry{
		Key:   backwardRowKey(bwdKey, dependant),
		Value: encodeBackwardValue(fields, pattern),
	})
}

func (d *DerefMap) removeBackwardEntry(
	ctx context.Context, dependant RecordId, dr DependingRecord,
) error {
	bwdKey, err := encodeBackwardKey(dr.RecordId.Master().ToBytes(), dr.VTag)
	if err != nil {
		return err
	}
	return d.backward.RemoveEntry(ctx, backwardRowKey(bwdKey, dependant))
}

// backwardRowKey extends the (depending.master, depending.vtag) backward key with the dependant's
// own identity, so the many rows that share a backward key (§3: one per dependant) each address
// a distinct row in the backend.
func backwardRowKey(bwdKey []byte, dependant RecordId) []byte {
	var b buffer
	b = append(b, bwdKey...)
	b = appendTerminatedBytes(b, dependant.ToBytes())
	return b.bytes()
}

// encodeBackwardValue packs a backward row's fields-set and pattern into one value: a 4-byte
// big-endian length prefix for the fields section followed by the fields bytes, then the pattern
// bytes filling the rest.
func encodeBackwardValue(fields schemaIdSet, pattern VariantPropertiesPattern) []byte {
	fieldsBytes := serializeFields(fields)
	patternBytes := serializeVariantPropertiesPattern(pattern)

	var b buffer
	var lenPrefix [4]byte
	writeUint32BE(lenPrefix[:], uint32(len(fieldsBytes)))
	b.write(lenPrefix[:])
	b.write(fieldsBytes)
	b.write(patternBytes)
	return b.bytes()
}

func decodeBackwardValue(data []byte) (schemaIdSet, VariantPropertiesPattern, error) {
	if len(data) < 4 {
		return nil, nil, corruptf("backward value too short for length prefix (%d bytes)", len(data))
	}
	n := readUint32BE(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, corruptf("backward value fields section truncated (want %d, have %d)", n, len(data))
	}
	fields, err := deserializeFields(data[:n])
	if err != nil {
		return nil, nil, err
	}
	pattern, err := deserializeVariantPropertiesPattern(data[n:])
	if err != nil {
		return nil, nil, err
	}
	return fields, pattern, nil
}

// FindDependantsOf implements the §4.5 query protocol: it returns the dependants whose indexed
// value was computed (at least in part) using the given field of the given depending record,
// restricted to backward rows whose stored variant-properties pattern matches variantProperties.
func (d *DerefMap) FindDependantsOf(
	ctx context.Context,
	depending RecordId,
	dependingVTag SchemaId,
	field SchemaId,
	variantProperties []VariantProperty,
) (*DependantCursor, error) {
	bwdKey, err := encodeBackwardKey(depending.Master().ToBytes(), dependingVTag)
	if err != nil {
		return nil, err
	}
	backend, err := d.backward.PerformQuery(ctx, bwdKey)
	if err != nil {
		return nil, err
	}
	return &DependantCursor{
		ctx:       ctx,
		backend:   backend,
		idgen:     d.idgen,
		field:     field,
		variants:  variantProperties,
		keyPrefix: bwdKey,
	}, nil
}

// DependantCursor walks the dependants matching a FindDependantsOf query, filtering rows
// client-side by field membership and pattern match. It holds a single "next" slot shared by
// HasNext and Next under mutual exclusion (§4.7): it is single-pass and not safe for concurrent
// use by multiple goroutines.
type DependantCursor struct {
	ctx       context.Context
	backend   BackendCursor
	idgen     IdGenerator
	field     SchemaId
	variants  []VariantProperty
	keyPrefix []byte

	mu      sync.Mutex
	next    RecordId
	hasNext bool
	primed  bool
	err     error
	closed  bool
}

// HasNext reports whether a further call to Next will return a row. It is idempotent: calling it
// repeatedly without an intervening Next does not advance the underlying backend cursor.
func (c *DependantCursor) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.primed {
		c.advanceLocked()
	}
	return c.hasNext
}

// Next returns the dependant RecordId found by the most recent HasNext, advancing past it. If no
// HasNext has filled the slot since the last Next, Next scans for the next matching row itself.
// When no row is left it returns a nil RecordId together with the error, if any, that ended the
// scan.
func (c *DependantCursor) Next() (RecordId, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.primed {
		c.advanceLocked()
	}
	if !c.hasNext {
		return nil, c.err
	}
	id := c.next
	c.primed = false
	return id, nil
}

// advanceLocked scans forward past rows that don't match the requested field/pattern, stopping
// at the next row that does (or at end of the underlying backend cursor).
func (c *DependantCursor) advanceLocked() {
	c.primed = true
	for c.backend.Next(c.ctx) {
		row := c.backend.Row()

		dependantBytes, rest, err := readTerminatedBytes(row.Key[len(c.keyPrefix):])
		if err != nil {
			c.err = err
			c.hasNext = false
			return
		}
		if len(rest) != 0 {
			c.err = corruptf("trailing %d bytes in backward row key", len(rest))
			c.hasNext = false
			return
		}

		fields, pattern, err := decodeBackwardValue(row.Value)
		if err != nil {
			c.err = err
			c.hasNext = false
			return
		}
		if !fields.Has(c.field) {
			continue
		}
		if !pattern.Matches(c.variants) {
			continue
		}

		dependant, err := c.idgen.FromBytes(dependantBytes)
		if err != nil {
			c.err = corruptf("decoding dependant record id: %v", err)
			c.hasNext = false
			return
		}
		c.next = dependant
		c.hasNext = true
		return
	}
	if err := c.backend.Err(); err != nil {
		c.err = err
	}
	c.hasNext = false
}

// Err returns the error, if any, that caused the most recent HasNext to return false.
func (c *DependantCursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close releases the underlying backend cursor. Close is idempotent.
func (c *DependantCursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.backend.Close()
}
