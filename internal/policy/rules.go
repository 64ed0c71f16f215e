package policy

import "github.com/khanghh/krealm/internal/permissions"

// Rule is an action guarded by holding at least one of the listed permissions.
type Rule struct {
	Action   string
	Required []permissions.Permission
}

var (
	ViewRealm = Rule{"view realm", []permissions.Permission{permissions.ManageRealm, permissions.ViewRealm}}
	// ManageRealm also guards realm creation, checked against the master realm.
	ManageRealm = Rule{"manage realm", []permissions.Permission{permissions.ManageRealm}}

	ViewClients   = Rule{"view clients", []permissions.Permission{permissions.ManageRealm, permissions.ManageClients, permissions.ViewClients}}
	ManageClients = Rule{"manage clients", []permissions.Permission{permissions.ManageRealm, permissions.ManageClients}}

	ViewRoles   = Rule{"view roles", []permissions.Permission{permissions.ManageRealm, permissions.ManageRoles, permissions.ViewRoles}}
	ManageRoles = Rule{"manage roles", []permissions.Permission{permissions.ManageRealm, permissions.ManageRoles}}

	ViewUsers   = Rule{"view users", []permissions.Permission{permissions.ManageRealm, permissions.ManageUsers, permissions.ViewUsers}}
	ManageUsers = Rule{"manage users", []permissions.Permission{permissions.ManageRealm, permissions.ManageUsers}}

	ViewWebhooks   = Rule{"view webhooks", []permissions.Permission{permissions.ManageRealm, permissions.ManageWebhooks, permissions.ViewWebhooks}}
	ManageWebhooks = Rule{"manage webhooks", []permissions.Permission{permissions.ManageRealm, permissions.ManageWebhooks}}
)
