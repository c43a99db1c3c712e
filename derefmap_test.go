package derefmap_test

import (
	"context"
	"testing"

	"github.com/rsms/derefmap"
	"github.com/rsms/derefmap/fakestore"
	"github.com/rsms/derefmap/memkv"
	"github.com/rsms/go-testutil"
)

func newDerefMap(t *testing.T) *derefmap.DerefMap {
	ctx := context.Background()
	dm, err := derefmap.Create(ctx, memkv.NewStore(), "test", fakestore.IdGenerator{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return dm
}

func drainDependants(t *testing.T, c *derefmap.DependantCursor) []string {
	defer c.Close()
	var out []string
	for c.HasNext() {
		id, err := c.Next()
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, id.(fakestore.RecordId).String())
	}
	if err := c.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

// Scenario 1: add one dependency.
func TestAddOneDependency(t *testing.T) {
	assert := testutil.NewAssert(t)
	ctx := context.Background()
	dm := newDerefMap(t)

	r1 := fakestore.NewMasterId()
	r2 := fakestore.NewMasterId()
	v1 := fakestore.NewSchemaId()
	f1 := fakestore.NewSchemaId()
	f2 := fakestore.NewSchemaId()

	deps := derefmap.NewDependencyMultimap()
	deps.Put(derefmap.Entry{Depending: derefmap.DependingRecord{RecordId: r2, VTag: v1}}, f1)
	assert.Ok("update succeeds", dm.UpdateDependencies(ctx, r1, v1, deps) == nil)

	got := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r2, v1, f1, nil)))
	assert.Ok("yields r1", len(got) == 1 && got[0] == r1.String())

	gotF2 := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r2, v1, f2, nil)))
	assert.Ok("f2 yields nothing", len(gotF2) == 0)
}

// Scenario 2: wildcard match.
func TestWildcardMatch(t *testing.T) {
	assert := testutil.NewAssert(t)
	ctx := context.Background()
	dm := newDerefMap(t)

	r1 := fakestore.NewMasterId()
	m := fakestore.NewMasterId().WithVariants(map[string]string{"lang": "en"})
	v1 := fakestore.NewSchemaId()
	f1 := fakestore.NewSchemaId()

	deps := derefmap.NewDependencyMultimap()
	deps.Put(derefmap.Entry{
		Depending:               derefmap.DependingRecord{RecordId: m, VTag: v1},
		MoreDimensionedVariants: []string{"country"},
	}, f1)
	assert.Ok("update succeeds", dm.UpdateDependencies(ctx, r1, v1, deps) == nil)

	wide := m.WithVariants(map[string]string{"lang": "en", "country": "us"})
	got := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, wide, v1, f1, wide.VariantProperties())))
	assert.Ok("wildcard matches", len(got) == 1 && got[0] == r1.String())

	narrow := m // just {lang: en}
	gotNarrow := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, narrow, v1, f1, narrow.VariantProperties())))
	assert.Ok("cardinality mismatch rejects", len(gotNarrow) == 0)
}

// Scenario 3: remove dependency.
func TestRemoveDependency(t *testing.T) {
	assert := testutil.NewAssert(t)
	ctx := context.Background()
	dm := newDerefMap(t)

	r1 := fakestore.NewMasterId()
	r2 := fakestore.NewMasterId()
	v1 := fakestore.NewSchemaId()
	f1 := fakestore.NewSchemaId()

	deps := derefmap.NewDependencyMultimap()
	deps.Put(derefmap.Entry{Depending: derefmap.DependingRecord{RecordId: r2, VTag: v1}}, f1)
	assert.Ok("add succeeds", dm.UpdateDependencies(ctx, r1, v1, deps) == nil)

	assert.Ok("clear succeeds", dm.UpdateDependencies(ctx, r1, v1, derefmap.NewDependencyMultimap()) == nil)

	got := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r2, v1, f1, nil)))
	assert.Ok("yields nothing after removal", len(got) == 0)
}

// Scenario 4: swap dependency.
func TestSwapDependency(t *testing.T) {
	assert := testutil.NewAssert(t)
	ctx := context.Background()
	dm := newDerefMap(t)

	r1 := fakestore.NewMasterId()
	r2 := fakestore.NewMasterId()
	r3 := fakestore.NewMasterId()
	v1 := fakestore.NewSchemaId()
	f1 := fakestore.NewSchemaId()

	deps1 := derefmap.NewDependencyMultimap()
	deps1.Put(derefmap.Entry{Depending: derefmap.DependingRecord{RecordId: r2, VTag: v1}}, f1)
	assert.Ok("first update succeeds", dm.UpdateDependencies(ctx, r1, v1, deps1) == nil)

	deps2 := derefmap.NewDependencyMultimap()
	deps2.Put(derefmap.Entry{Depending: derefmap.DependingRecord{RecordId: r3, VTag: v1}}, f1)
	assert.Ok("swap succeeds", dm.UpdateDependencies(ctx, r1, v1, deps2) == nil)

	gotOld := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r2, v1, f1, nil)))
	assert.Ok("old depending no longer matched", len(gotOld) == 0)

	gotNew := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r3, v1, f1, nil)))
	assert.Ok("new depending matched", len(gotNew) == 1 && gotNew[0] == r1.String())
}

// Scenario 5: two dependants via the same field.
func TestTwoDependantsViaSameField(t *testing.T) {
	assert := testutil.NewAssert(t)
	ctx := context.Background()
	dm := newDerefMap(t)

	r1 := fakestore.NewMasterId()
	r4 := fakestore.NewMasterId()
	r2 := fakestore.NewMasterId()
	v1 := fakestore.NewSchemaId()
	f1 := fakestore.NewSchemaId()

	deps1 := derefmap.NewDependencyMultimap()
	deps1.Put(derefmap.Entry{Depending: derefmap.DependingRecord{RecordId: r2, VTag: v1}}, f1)
	assert.Ok("r1 update succeeds", dm.UpdateDependencies(ctx, r1, v1, deps1) == nil)

	deps4 := derefmap.NewDependencyMultimap()
	deps4.Put(derefmap.Entry{Depending: derefmap.DependingRecord{RecordId: r2, VTag: v1}}, f1)
	assert.Ok("r4 update succeeds", dm.UpdateDependencies(ctx, r4, v1, deps4) == nil)

	got := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r2, v1, f1, nil)))
	assert.Ok("both dependants present", len(got) == 2)
	assert.Ok("contains r1", contains(got, r1.String()))
	assert.Ok("contains r4", contains(got, r4.String()))
}

// Scenario 6: multi-field.
func TestMultiField(t *testing.T) {
	assert := testutil.NewAssert(t)
	ctx := context.Background()
	dm := newDerefMap(t)

	r1 := fakestore.NewMasterId()
	r2 := fakestore.NewMasterId()
	v1 := fakestore.NewSchemaId()
	f1 := fakestore.NewSchemaId()
	f2 := fakestore.NewSchemaId()
	f3 := fakestore.NewSchemaId()

	deps := derefmap.NewDependencyMultimap()
	entry := derefmap.Entry{Depending: derefmap.DependingRecord{RecordId: r2, VTag: v1}}
	deps.Put(entry, f1)
	deps.Put(entry, f2)
	assert.Ok("update succeeds", dm.UpdateDependencies(ctx, r1, v1, deps) == nil)

	got1 := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r2, v1, f1, nil)))
	assert.Ok("f1 yields r1", len(got1) == 1 && got1[0] == r1.String())

	got2 := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r2, v1, f2, nil)))
	assert.Ok("f2 yields r1", len(got2) == 1 && got2[0] == r1.String())

	got3 := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r2, v1, f3, nil)))
	assert.Ok("f3 yields nothing", len(got3) == 0)
}

func TestIdempotence(t *testing.T) {
	assert := testutil.NewAssert(t)
	ctx := context.Background()
	dm := newDerefMap(t)

	r1 := fakestore.NewMasterId()
	r2 := fakestore.NewMasterId()
	v1 := fakestore.NewSchemaId()
	f1 := fakestore.NewSchemaId()

	deps := derefmap.NewDependencyMultimap()
	deps.Put(derefmap.Entry{Depending: derefmap.DependingRecord{RecordId: r2, VTag: v1}}, f1)

	assert.Ok("first update succeeds", dm.UpdateDependencies(ctx, r1, v1, deps) == nil)
	assert.Ok("second identical update succeeds", dm.UpdateDependencies(ctx, r1, v1, deps) == nil)

	got := drainDependants(t, mustCursor(t, dm.FindDependantsOf(ctx, r2, v1, f1, nil)))
	assert.Ok("state observationally unchanged", len(got) == 1 && got[0] == r1.String())
}

func mustCursor(t *testing.T, c *derefmap.DependantCursor, err error) *derefmap.DependantCursor {
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}
