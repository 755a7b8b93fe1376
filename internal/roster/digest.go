package roster

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
)

const digestPrefix = "sha256:"

// Digest returns a content digest of the roster. Participants are serialised
// in roster order, every field length-prefixed, so that re-reading the same
// rows from another file format yields the same value while any addition,
// removal, reordering or field change yields a different one.
func Digest(r *Roster) string {
	h := sha256.New()

	n := 0
	if r != nil {
		n = len(r.Participants)
	}
	writeField(h, strconv.Itoa(n))

	if r != nil {
		for _, p := range r.Participants {
			writeField(h, p.ID)
			writeField(h, p.Name)
			writeField(h, p.Email)
			writeField(h, p.Role.String())
			writeField(h, p.Wants)
			writeField(h, p.Offers)
			writeField(h, p.Level.String())
			writeField(h, strconv.FormatBool(p.Matched))
		}
	}

	return digestPrefix + hex.EncodeToString(h.Sum(nil))
}

// HasChanged reports whether the roster differs from the one that produced
// previous. An empty previous digest always counts as a change.
func HasChanged(r *Roster, previous string) bool {
	previous = strings.TrimSpace(previous)
	if previous == "" {
		return true
	}
	return Digest(r) != previous
}

func writeField(h hash.Hash, s string) {
	h.Write([]byte(strconv.Itoa(len(s))))
	h.Write([]byte{':'})
	h.Write([]byte(s))
}
