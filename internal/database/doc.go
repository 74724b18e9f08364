// Package database is the persistent store of the offline reader.
//
// # Collections
//
//	books      # one row per cached book, keyed by book_id
//	chapters   # (book_id, chapter_index), secondary index on book_id
//	images     # (book_id, path), secondary index on book_id
//	outbox     # queued highlight/progress mutations, keyed by id
//	settings   # store name and schema version
//
// # Usage
//
//	db := database.New("./offline-reader.db")
//	defer db.Close()
//
//	book, err := db.GetBook(ctx, "b1")
//	n, err := db.DeleteAllByBook(ctx, database.CollectionChapters, "b1")
//
// # Consistency
//
// Every operation is atomic on its own collection. Nothing is atomic across
// collections: removing a book is three independent deletes, so callers that
// need a cascade go through the maintenance package, which orders the steps so
// the book row is removed last.
//
// Getters return freshly scanned values. Changing a returned record has no
// effect until it is written back with the matching Save method.
package database
