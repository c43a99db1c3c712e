package derefmap

import (
	"testing"

	"github.com/rsms/go-testutil"
)

func TestPatternReflexivity(t *testing.T) {
	assert := testutil.NewAssert(t)

	v := []VariantProperty{{Name: "lang", Value: "en"}, {Name: "country", Value: "us"}}
	pattern := BuildPattern(v, nil)
	assert.Ok("matches itself", pattern.Matches(v))
}

func TestPatternWildcard(t *testing.T) {
	assert := testutil.NewAssert(t)

	v := []VariantProperty{{Name: "lang", Value: "en"}, {Name: "country", Value: "us"}}
	pattern := BuildPattern(v, []string{"lang", "country"})

	assert.Ok("matches any value under wildcard names", pattern.Matches(v))
	assert.Ok("matches a different value under wildcard names", pattern.Matches([]VariantProperty{
		{Name: "lang", Value: "sv"}, {Name: "country", Value: "se"},
	}))
}

func TestPatternPartialWildcard(t *testing.T) {
	assert := testutil.NewAssert(t)

	v := []VariantProperty{{Name: "lang", Value: "en"}, {Name: "country", Value: "us"}}
	pattern := BuildPattern(v, []string{"country"})

	assert.Ok("matches when lang is exact and country varies", pattern.Matches([]VariantProperty{
		{Name: "lang", Value: "en"}, {Name: "country", Value: "se"},
	}))
	assert.Ok("rejects when lang differs", !pattern.Matches([]VariantProperty{
		{Name: "lang", Value: "sv"}, {Name: "country", Value: "us"},
	}))
}

func TestPatternCardinalityDiscrimination(t *testing.T) {
	assert := testutil.NewAssert(t)

	pattern := VariantPropertiesPattern{"n": strptr("v1")}
	assert.Ok("rejects superset", !pattern.Matches([]VariantProperty{
		{Name: "n", Value: "v1"}, {Name: "m", Value: "v2"},
	}))
}

func TestPatternKeySetMismatch(t *testing.T) {
	assert := testutil.NewAssert(t)

	pattern := VariantPropertiesPattern{"n": strptr("v1")}
	assert.Ok("rejects disjoint key set", !pattern.Matches([]VariantProperty{
		{Name: "m", Value: "v1"},
	}))
}

func strptr(s string) *string { return &s }
