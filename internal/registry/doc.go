// Package registry holds the durable mapping from media id to MediaRecord.
//
// Two backends are provided: a single JSON document (the default) and a
// SQLite table. Both are accessed through Registry, which serialises
// every read-modify-write behind one mutex.
package registry
