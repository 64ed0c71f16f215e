package policy

import "github.com/khanghh/krealm/model"

type IdentityKind int

const (
	IdentityUser IdentityKind = iota + 1
	IdentityClient
)

// Identity is the authenticated caller of an admin operation, either a user
// or a client acting through its service account.
type Identity struct {
	kind   IdentityKind
	user   *model.User
	client *model.Client
}

func NewUserIdentity(user *model.User) Identity {
	return Identity{kind: IdentityUser, user: user}
}

func NewClientIdentity(client *model.Client) Identity {
	return Identity{kind: IdentityClient, client: client}
}

func (i Identity) Kind() IdentityKind {
	return i.kind
}

func (i Identity) User() *model.User {
	return i.user
}

func (i Identity) Client() *model.Client {
	return i.client
}

func (i Identity) ID() string {
	switch i.kind {
	case IdentityUser:
		return i.user.ID
	case IdentityClient:
		return i.client.ID
	}
	return ""
}

func (i Identity) RealmID() string {
	switch i.kind {
	case IdentityUser:
		return i.user.RealmID
	case IdentityClient:
		return i.client.RealmID
	}
	return ""
}
