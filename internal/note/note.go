package note

import (
	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/jam"
)

// Version is the note wire-format version (spec §3).
type Version int

const (
	V0 Version = iota
	V1
	V2
)

// Name is a note's two-part identifier. First is the commitment to the
// spend condition's lock_root (see FirstName); Last is opaque output of
// the chain's build step, pinned by test vectors but not independently
// derived here (spec §9, open question).
type Name struct {
	First digest.Digest `json:"first"`
	Last  digest.Digest `json:"last"`
}

// Note is the chain's spendable unit (spec §3).
type Note struct {
	Version      Version       `json:"version"`
	OriginPage   uint32        `json:"origin_page"`
	Name         Name          `json:"name"`
	NoteDataHash digest.Digest `json:"note_data_hash"`
	Assets       uint64        `json:"assets"`
}

// ID computes the store's stable primary key for a note: the hash of its
// full two-part name. name.first alone is shared by every note under the
// same lock, so the store keys on the commitment to both halves rather
// than first name alone.
func (n Note) ID() digest.Digest {
	return digest.HashNoun(jam.Encode(jam.List(jam.Digest(n.Name.First), jam.Digest(n.Name.Last))))
}
