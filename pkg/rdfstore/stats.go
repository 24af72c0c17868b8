package rdfstore

import "github.com/ldpstore/quadstore/internal/kv"

// Stats summarizes a store's size for the CLI `stats` command and
// collaborators probing store.stats() (spec §6.3).
type Stats struct {
	NumTriples int
	Env        kv.Stats
}
