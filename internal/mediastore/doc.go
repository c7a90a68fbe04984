// Package mediastore keeps uploaded and converted media on local disk under
// content-addressed names: the first 128 bits of the BLAKE2b-256 digest in
// hex, followed by the original extension.
//
// Writes go to a hidden temp file in the same directory and are renamed into
// place, so a reader never observes a partially written file under a final
// name. Stat and Open retry NFS stale handles via the filesystem package.
package mediastore
