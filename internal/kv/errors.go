package kv

import "errors"

// Error kinds per spec §7. These are returned as sentinels (wrapped
// with fmt.Errorf("...: %w", ...) at call sites) rather than modeled
// as a custom error-struct hierarchy, matching the teacher's own
// plain-error style (pkg/store.ErrNotFound, ErrTransactionRO).
var (
	ErrNotFound          = errors.New("kv: not found")
	ErrKeyExists         = errors.New("kv: key exists")
	ErrKeySpaceExhausted = errors.New("kv: key space exhausted")
	ErrMapFull           = errors.New("kv: map full")
	ErrReadersFull       = errors.New("kv: readers full")
	ErrBadTxn            = errors.New("kv: transaction is closed or read-only")
	ErrCorrupted         = errors.New("kv: corrupted")
	ErrTooManySubDBs     = errors.New("kv: max_dbs exceeded")
	ErrKeyWidthMismatch  = errors.New("kv: environment key width does not match this binary")
	ErrInvalidDupKeyLen  = errors.New("kv: logical key length does not match declared dup key length")
)
