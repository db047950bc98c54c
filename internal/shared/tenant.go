package shared

import (
	"net/http"
	"strconv"
)

// OwnerHeader carries the tenant identifier resolved by the edge proxy.
// Core functions never read ambient request state; handlers extract the owner
// here and pass it down explicitly.
const OwnerHeader = "X-Owner-ID"

// OwnerFromRequest parses the tenant id from the request headers.
func OwnerFromRequest(r *http.Request) (int64, error) {
	raw := r.Header.Get(OwnerHeader)
	if raw == "" {
		return 0, Validationf("missing %s header", OwnerHeader)
	}
	owner, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || owner <= 0 {
		return 0, Validationf("invalid %s header", OwnerHeader)
	}
	return owner, nil
}
