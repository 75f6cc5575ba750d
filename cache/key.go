package cache

import (
	"crypto/sha1"
	"fmt"
	"net/http"

	"github.com/ericselin/httpintercept/rfc9111"
)

// namespaceUUID is the fixed namespace used to derive primary keys as a
// deterministic, version-5-style (namespaced SHA-1) UUID from the request
// URL, so the same URL always maps to the same opaque key across restarts.
var namespaceUUID = [16]byte{
	0x6b, 0xa7, 0xb8, 0x10, 0x9d, 0xad, 0x11, 0xd1,
	0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8,
}

// PrimaryKey derives a stable key for all cached variants of req's URL.
func PrimaryKey(req *http.Request) string {
	return v5UUID(req.URL.String())
}

// v5UUID computes a version-5 (namespaced SHA-1) UUID for name, without
// taking a dependency on google/uuid's v5 helper (which this module does
// use, but only for request IDs - see DESIGN.md).
func v5UUID(name string) string {
	h := sha1.New()
	h.Write(namespaceUUID[:])
	h.Write([]byte(name))
	sum := h.Sum(nil)

	sum[6] = (sum[6] & 0x0f) | 0x50 // version 5
	sum[8] = (sum[8] & 0x3f) | 0x80 // RFC 4122 variant

	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}

// SecondaryKey derives the address of a single cached body/entry: the
// primary key combined with the sorted "name:value" pairs (lowercased
// names, values as sent) of the request header fields nominated by the
// stored response's Vary header.
func SecondaryKey(req *http.Request, varyHeader []string) string {
	primary := PrimaryKey(req)
	pairs := rfc9111.VaryKeys(req, varyHeader)
	name := primary
	for _, p := range pairs {
		name += "\n" + p
	}
	return v5UUID(name)
}
