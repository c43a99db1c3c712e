// Command derefmap-demo walks through the scenarios a DerefMap is meant to serve: indexing one
// record's dependency on another, then asking which records would need re-indexing after a
// change. It is a demo, not a CLI surface for the core library.
package main

import (
	"context"
	"fmt"

	"github.com/rsms/derefmap"
	"github.com/rsms/derefmap/fakestore"
	"github.com/rsms/derefmap/memkv"
	"github.com/rsms/go-log"
)

func main() {
	ctx := context.Background()

	gen := fakestore.IdGenerator{}
	store := memkv.NewStore()

	dm, err := derefmap.Create(ctx, store, "titles", gen, log.RootLogger)
	if err != nil {
		panic(err)
	}

	fieldTitle := fakestore.NewSchemaId()
	vtag1 := fakestore.NewSchemaId()

	r1 := fakestore.NewMasterId() // a page that renders another page's title
	r2 := fakestore.NewMasterId() // the page whose title is being rendered

	// r1's rendered value at vtag1 depends on r2's title field.
	deps := derefmap.NewDependencyMultimap()
	deps.Put(derefmap.Entry{
		Depending: derefmap.DependingRecord{RecordId: r2, VTag: vtag1},
	}, fieldTitle)

	if err := dm.UpdateDependencies(ctx, r1, vtag1, deps); err != nil {
		panic(err)
	}

	cursor, err := dm.FindDependantsOf(ctx, r2, vtag1, fieldTitle, nil)
	if err != nil {
		panic(err)
	}
	defer cursor.Close()

	for cursor.HasNext() {
		dependant, err := cursor.Next()
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s must be re-indexed because %s's title changed\n", dependant, r2)
	}
	if err := cursor.Err(); err != nil {
		panic(err)
	}
}
