package kv

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/ldpstore/quadstore/internal/codec"
)

const headerFormatVersion = 1

// headerKey is the single physical badger key the environment header
// lives at. It is chosen outside the 1-byte subDB-prefix space (see
// subdb.go) so it can never collide with a registered subDB.
var headerKey = []byte{0xff, 'h', 'd', 'r'}

// Header is persisted on first bootstrap and re-validated on every
// subsequent Open, implementing the Design Notes' requirement that a
// mismatched binary (different key width) refuses to open the store.
type Header struct {
	Version  byte
	KeyWidth byte
	Seed     [16]byte
}

func (h Header) encode() []byte {
	buf := make([]byte, 2+16)
	buf[0] = h.Version
	buf[1] = h.KeyWidth
	copy(buf[2:], h.Seed[:])
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) != 2+16 {
		return Header{}, fmt.Errorf("%w: malformed header record", ErrCorrupted)
	}
	var h Header
	h.Version = buf[0]
	h.KeyWidth = buf[1]
	copy(h.Seed[:], buf[2:])
	return h, nil
}

// loadOrCreateHeader reads the environment header, bootstrapping it
// from opts on a fresh environment.
func loadOrCreateHeader(db *badger.DB, opts Options) (Header, error) {
	var out Header
	err := db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(headerKey)
		if err == badger.ErrKeyNotFound {
			if !opts.Create {
				return fmt.Errorf("%w: environment has no header and Create=false", ErrCorrupted)
			}
			h := Header{
				Version:  headerFormatVersion,
				KeyWidth: byte(opts.KeyWidth),
				Seed:     opts.HashSeed,
			}
			out = h
			return txn.Set(headerKey, h.encode())
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		h, err := decodeHeader(raw)
		if err != nil {
			return err
		}
		if codec.Width(h.KeyWidth) != opts.KeyWidth {
			return fmt.Errorf("%w: store was created with key width %d, binary uses %d",
				ErrKeyWidthMismatch, h.KeyWidth, opts.KeyWidth)
		}
		out = h
		return nil
	})
	return out, err
}

// hashSeedUint64 mirrors the folding codec.Codec uses internally. No
// code in this package calls it.
func hashSeedUint64(seed [16]byte) uint64 {
	return binary.BigEndian.Uint64(seed[:8]) ^ binary.BigEndian.Uint64(seed[8:])
}
