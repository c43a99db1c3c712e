package derefmap

import "sort"

// schemaIdSet is a list of SchemaId values treated as a set: no duplicates, insertion order not
// preserved once Sort is called.
//
// Adapted from the teacher's idSet/IdSet (uint64 element, space-separated text encoding); here
// the element is a 16-byte SchemaId and the encoding is flat concatenation, since SchemaId values
// are already fixed-width and binary.
type schemaIdSet []SchemaId

func (s schemaIdSet) Has(id SchemaId) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

func (s *schemaIdSet) Add(id SchemaId) {
	for _, v := range *s {
		if v == id {
			return
		}
	}
	*s = append(*s, id)
}

func (s *schemaIdSet) Del(id SchemaId) {
	for i, v := range *s {
		if v == id {
			copy((*s)[i:], (*s)[i+1:])
			*s = (*s)[:len(*s)-1]
			return
		}
	}
}

func (s schemaIdSet) Sort() {
	sort.Slice(s, func(i, j int) bool {
		return lessSchemaId(s[i], s[j])
	})
}

func lessSchemaId(a, b SchemaId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
