package derefmap

import "context"

// IndexEntry is one row of an index table as seen through the backend contract: an opaque key
// and an opaque value, both already encoded by the codecs in this package. The backend never
// interprets either.
type IndexEntry struct {
	Key   []byte
	Value []byte
}

// IndexBackend is the thin contract (C4) an ordered key-value store must satisfy to back one
// table (forward or backward) of a DerefMap. It mirrors the teacher's EntStorage split between a
// memory implementation (memorystorage.go / mem/storage.go) and a Redis implementation
// (redis/entstorage.go): a handful of verbs, no query planner, no transactions exposed to the
// caller beyond what AddEntry/RemoveEntry imply for a single row.
type IndexBackend interface {
	// AddEntry writes entry, replacing any existing value for the same key.
	AddEntry(ctx context.Context, entry IndexEntry) error

	// RemoveEntry deletes the row with the given key, if any. Removing an absent key is not an
	// error.
	RemoveEntry(ctx context.Context, key []byte) error

	// PerformQuery returns every row whose key has keyPrefix as a prefix (§4.3: equality
	// conditions on a prefix of key fields). The forward read in UpdateDependencies passes a
	// full (dependant, vtag) key, matching at most one row; the backward scan in
	// FindDependantsOf passes a full (depending.master, vtag) key, matching every dependant row
	// filed under it. Mirrors the teacher's ZRANGEBYLEX-over-boundary-markers pattern
	// (redis/redis.go ZRangeEntIdsCmd) for a non-unique index, generalized to any prefix. The
	// returned cursor must be closed by the caller.
	PerformQuery(ctx context.Context, keyPrefix []byte) (BackendCursor, error)
}

// BackendCursor iterates the rows returned by PerformQuery. It is not safe for concurrent use,
// matching the single-pass, single-agent cursor semantics of §4.7.
type BackendCursor interface {
	// Next advances the cursor and reports whether a row is available. Next must be called
	// before the first Row.
	Next(ctx context.Context) bool

	// Row returns the row the most recent successful Next advanced to.
	Row() IndexEntry

	// Err returns the first error encountered by Next, if any.
	Err() error

	// Close releases resources held by the cursor. Close is idempotent.
	Close() error
}
