package domain

// AccessPolicy decides whether an acting identity may touch another owner's
// resources. Identities are opaque caller-supplied strings; authentication is
// out of scope.
type AccessPolicy interface {
	// CanAccess reports whether actingID may view or mutate resources owned
	// by resourceOwnerID.
	CanAccess(actingID, resourceOwnerID string) bool

	// IsAdmin reports whether actingID may browse and manage any owner's
	// tree.
	IsAdmin(actingID string) bool
}
