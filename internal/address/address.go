// Package address derives multi-sig addresses from a signer set and threshold.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

const (
	// Prefix distinguishes multi-sig addresses from single-key addresses.
	Prefix = "msig"

	versionByte byte = 0x4D
	hashLength       = 20
)

// Derive returns the address of the (signers, threshold) pair. The result does
// not depend on the order of signers.
//
// Each identity is length-prefixed before hashing so that different signer
// sets can never concatenate to the same byte string.
func Derive(signers []string, threshold int) string {
	sorted := make([]string, len(signers))
	copy(sorted, signers)
	sort.Strings(sorted)

	h := sha256.New()
	var buf [8]byte
	for _, s := range sorted {
		binary.BigEndian.PutUint32(buf[:4], uint32(len(s)))
		h.Write(buf[:4])
		h.Write([]byte(s))
	}
	binary.BigEndian.PutUint64(buf[:], uint64(threshold))
	h.Write(buf[:])
	sum := h.Sum(nil)

	return Prefix + base58.CheckEncode(sum[:hashLength], versionByte)
}

// IsValid reports whether addr is a well-formed multi-sig address.
func IsValid(addr string) bool {
	if !strings.HasPrefix(addr, Prefix) {
		return false
	}
	decoded, version, err := base58.CheckDecode(strings.TrimPrefix(addr, Prefix))
	if err != nil {
		return false
	}
	return version == versionByte && len(decoded) == hashLength
}
