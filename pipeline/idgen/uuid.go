package idgen

import "github.com/google/uuid"

// UUIDGenerator produces RFC 4122 v4 UUIDs using github.com/google/uuid.
// Offered as an alternate to XID for callers that need interoperability
// with systems already standardized on UUIDs.
type UUIDGenerator struct{}

// UUID is the package-level alternate generator instance.
var UUID Generator = UUIDGenerator{}

func (UUIDGenerator) New() string {
	return uuid.NewString()
}
