package idgen

import "github.com/rs/xid"

// XIDGenerator produces 20-character, lexically sortable, globally unique
// IDs using github.com/rs/xid. This is the default generator; UUID is
// offered as an alternate.
type XIDGenerator struct{}

// XID is the package-level default XIDGenerator instance.
var XID Generator = XIDGenerator{}

func (XIDGenerator) New() string {
	return xid.New().String()
}
