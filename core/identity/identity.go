// Package identity abstracts the external user directory consulted for
// audit and display names.
package identity

import "context"

// SystemUser stamps transitions performed by the coordinator itself.
const SystemUser = "system"

// User is the directory's view of an account.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Directory resolves user ids for audit annotations.
type Directory interface {
	ResolveUser(ctx context.Context, id string) (User, error)
}

// StaticDirectory is a fixed in-memory directory, used in tests and as a
// stand-in when no identity service is wired. Unknown ids resolve to an
// anonymous user rather than an error.
type StaticDirectory map[string]User

// ResolveUser implements Directory.
func (d StaticDirectory) ResolveUser(_ context.Context, id string) (User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return User{ID: id, Name: id, Role: "unknown"}, nil
}
