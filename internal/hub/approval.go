package hub

import "github.com/google/uuid"

// NewApprovalID mints an opaque approval id for callers that don't
// supply their own. An upstream may also pre-issue one inside its
// safety-assessment payload, so minting is the caller's fallback, not
// the hub's default.
//
// The approval path itself has no dedicated dispatch logic beyond this:
// Hub.Approve (dispatcher.go) builds a tools/approve envelope and routes
// its response through the same shape handling as a unary tools/call.
func NewApprovalID() string {
	return uuid.NewString()
}
