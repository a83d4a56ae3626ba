package domain

// Principal is the identity resolved for a single request: either a
// concrete user or NoUser (legacy single-user mode).
//
// The zero value is NoUser.
type Principal struct {
	userID string
}

// NoUser is the principal of legacy/single-user requests.
// It carries no ownership scoping.
var NoUser = Principal{}

// UserPrincipal returns the principal of an authenticated user.
// An empty id yields NoUser.
func UserPrincipal(userID string) Principal {
	return Principal{userID: userID}
}

// UserID returns the user id and true for a concrete identity.
func (p Principal) UserID() (string, bool) {
	return p.userID, p.userID != ""
}

// IsNoUser reports whether the principal is the legacy "no user" sentinel.
func (p Principal) IsNoUser() bool {
	return p.userID == ""
}

// OwnerRef returns the value to stamp into an owner column:
// nil for NoUser, the user id otherwise.
func (p Principal) OwnerRef() *string {
	if p.userID == "" {
		return nil
	}
	id := p.userID
	return &id
}

// String implements fmt.Stringer for log fields.
func (p Principal) String() string {
	if p.userID == "" {
		return "no-user"
	}
	return p.userID
}
