package derefmap

// VariantPropertiesPattern (C6) describes which variant-property values a backward row applies
// to. A nil value for a name is a wildcard: it matches any value present under that name on the
// depending record's identity. Matching requires exact cardinality and key-set agreement (§4.6):
// a pattern never matches an identity with a different set of dimension names, wildcard or not.
type VariantPropertiesPattern map[string]*string

// BuildPattern constructs the pattern a backward row stores for one Entry: every variant property
// of the depending record's full identity is carried over, then every name in
// moreDimensionedVariants is set to a wildcard — whether or not it was already present. The
// latter is how a dependant can match depending identities that carry dimensions the depending
// record named in the update didn't have (§3, §4.6).
func BuildPattern(depending []VariantProperty, moreDimensionedVariants []string) VariantPropertiesPattern {
	pattern := make(VariantPropertiesPattern, len(depending)+len(moreDimensionedVariants))
	for _, vp := range depending {
		v := vp.Value
		pattern[vp.Name] = &v
	}
	for _, name := range moreDimensionedVariants {
		pattern[name] = nil
	}
	return pattern
}

// Matches reports whether this pattern matches a depending record's variant properties, per
// §4.6: same cardinality, same key set, and for every name either the pattern holds a wildcard or
// the exact same value.
func (p VariantPropertiesPattern) Matches(properties []VariantProperty) bool {
	if len(properties) != len(p) {
		return false
	}
	for _, vp := range properties {
		want, ok := p[vp.Name]
		if !ok {
			return false
		}
		if want != nil && *want != vp.Value {
			return false
		}
	}
	return true
}
