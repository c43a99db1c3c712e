// Package rediskv is a Redis-backed derefmap.IndexBackend, grounded on the teacher's redis
// package (redis/entstorage.go, redis/redis.go): a *radix.Pool connection, ZADD/ZRANGEBYLEX for a
// sorted, prefix-scannable key set, and a companion Hash for the key's payload — the same
// "sorted set carries membership/order, hash carries the row" split the teacher's non-unique
// index uses (ZADD for the index, HSET/HGETALL for the ent body).
package rediskv

import (
	"context"

	"github.com/mediocregopher/radix/v3"
	"github.com/rsms/derefmap"
	"github.com/rsms/go-log"
)

// Redis wraps a radix.Pool the way the teacher's redis.Redis does, minus the read/write
// connection splitting DerefMap's access pattern doesn't need (every DerefMap call here is
// either a point write or a point/prefix read against the same server).
type Redis struct {
	Logger *log.Logger
	pool   *radix.Pool
}

// Open connects to a single redis server.
func (r *Redis) Open(addr string, connPoolSize int) error {
	pool, err := radix.NewPool("tcp", addr, connPoolSize)
	if err != nil {
		return err
	}
	r.pool = pool
	if r.Logger != nil {
		r.Logger.Info("connected to %s", addr)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r.pool == nil {
		return nil
	}
	err := r.pool.Close()
	r.pool = nil
	return err
}

func (r *Redis) do(a radix.Action) error {
	return r.pool.Do(a)
}

// keysSetName and valuesHashName are the two redis keys backing one IndexBackend table: a sorted
// set carrying the ordered key membership (for prefix scans), and a hash carrying key -> value.
func keysSetName(table string) string    { return table + "#keys" }
func valuesHashName(table string) string { return table + "#values" }

// Store opens IndexBackend tables against a Redis connection. Its Open/Drop methods name the
// tables "deref-forward-<indexName>" / "deref-backward-<indexName>", matching the teacher's
// entKey/indexKey naming convention.
type Store struct {
	redis *Redis
}

// NewStore wraps an already-open *Redis connection.
func NewStore(r *Redis) *Store {
	return &Store{redis: r}
}

func (s *Store) OpenForward(ctx context.Context, indexName string) (derefmap.IndexBackend, error) {
	return &table{redis: s.redis, name: "deref-forward-" + indexName}, nil
}

func (s *Store) OpenBackward(ctx context.Context, indexName string) (derefmap.IndexBackend, error) {
	return &table{redis: s.redis, name: "deref-backward-" + indexName}, nil
}

func (s *Store) DropForward(ctx context.Context, indexName string) error {
	return s.drop("deref-forward-" + indexName)
}

func (s *Store) DropBackward(ctx context.Context, indexName string) error {
	return s.drop("deref-backward-" + indexName)
}

func (s *Store) drop(name string) error {
	var exists int
	if err := s.redis.do(radix.Cmd(&exists, "EXISTS", keysSetName(name))); err != nil {
		return err
	}
	if exists == 0 {
		return derefmap.ErrIndexNotFound
	}
	return s.redis.do(radix.Cmd(nil, "DEL", keysSetName(name), valuesHashName(name)))
}

type table struct {
	redis *Redis
	name  string
}

func (t *table) AddEntry(ctx context.Context, entry derefmap.IndexEntry) error {
	member := string(entry.Key)
	if err := t.redis.do(radix.FlatCmd(nil, "ZADD", keysSetName(t.name), 0, member)); err != nil {
		return err
	}
	return t.redis.do(radix.FlatCmd(nil, "HSET", valuesHashName(t.name), member, entry.Value))
}

func (t *table) RemoveEntry(ctx context.Context, key []byte) error {
	member := string(key)
	if err := t.redis.do(radix.FlatCmd(nil, "ZREM", keysSetName(t.name), member)); err != nil {
		return err
	}
	return t.redis.do(radix.FlatCmd(nil, "HDEL", valuesHashName(t.name), member))
}

// PerformQuery lists every member of the keys set from keyPrefix onward (ZRANGEBYLEX "[prefix"
// "+", the unbounded-above range the teacher's ZRangeEntIdsCmd avoids by using a tight exclusive
// upper bound; here the upper bound can't be tightened the same way because our keys contain
// 0xFF as a legitimate escape byte, not just as a separator). It then filters client-side,
// stopping at the first member that no longer has keyPrefix as a byte-prefix, which scan order
// guarantees will be everything that matches.
func (t *table) PerformQuery(ctx context.Context, keyPrefix []byte) (derefmap.BackendCursor, error) {
	var members []string
	rangeStart := "[" + string(keyPrefix)
	err := t.redis.do(radix.Cmd(&members, "ZRANGEBYLEX", keysSetName(t.name), rangeStart, "+"))
	if err != nil {
		return nil, err
	}

	matching := members[:0:0]
	started := false
	for _, m := range members {
		if hasBytesPrefix(m, keyPrefix) {
			started = true
			matching = append(matching, m)
		} else if started {
			break
		}
	}
	if len(matching) == 0 {
		return &cursor{}, nil
	}

	values := make([][]byte, len(matching))
	args := make([]string, 0, 1+len(matching))
	args = append(args, valuesHashName(t.name))
	args = append(args, matching...)
	if err := t.redis.do(radix.Cmd(&values, "HMGET", args...)); err != nil {
		return nil, err
	}

	rows := make([]derefmap.IndexEntry, len(matching))
	for i, m := range matching {
		rows[i] = derefmap.IndexEntry{Key: []byte(m), Value: values[i]}
	}
	return &cursor{rows: rows, pos: -1}, nil
}

func hasBytesPrefix(s string, prefix []byte) bool {
	if len(s) < len(prefix) {
		return false
	}
	return s[:len(prefix)] == string(prefix)
}

type cursor struct {
	rows []derefmap.IndexEntry
	pos  int
	err  error
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.pos+1 >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

func (c *cursor) Row() derefmap.IndexEntry { return c.rows[c.pos] }
func (c *cursor) Err() error               { return c.err }
func (c *cursor) Close() error             { return nil }
