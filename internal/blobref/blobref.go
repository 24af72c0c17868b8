// Package blobref declares the non-RDF binary store interface the
// core consumes (spec §6.2): the core never holds blob bytes, only a
// content digest carried as a Literal term. The pair-tree filesystem
// store implementing this interface is an external collaborator and
// is out of scope for this module.
package blobref

import "io"

// Store puts and retrieves content-addressed blobs by digest. The
// core only ever calls Put to obtain a digest to store as a Literal,
// and Open to stream a blob back out; it never inspects the digest
// format itself.
type Store interface {
	Put(r io.Reader) (digest string, err error)
	Open(digest string) (io.ReadCloser, error)
}
