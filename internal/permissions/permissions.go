package permissions

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

var ErrUnknownPermission = errors.New("unknown permission")

// Permission is a single administrative capability, one bit of a 64-bit mask.
type Permission uint64

const (
	CreateClient Permission = 1 << iota
	ManageAuthorization
	ManageClients
	ManageEvents
	ManageIdentityProviders
	ManageRealm
	ManageUsers
	ManageRoles
	QueryClients
	QueryGroups
	QueryRealms
	QueryUsers
	ViewAuthorization
	ViewClients
	ViewEvents
	ViewIdentityProviders
	ViewRealm
	ViewUsers
	ViewRoles
	ManageWebhooks
	ViewWebhooks
)

var permissionNames = map[Permission]string{
	CreateClient:            "create_client",
	ManageAuthorization:     "manage_authorization",
	ManageClients:           "manage_clients",
	ManageEvents:            "manage_events",
	ManageIdentityProviders: "manage_identity_providers",
	ManageRealm:             "manage_realm",
	ManageUsers:             "manage_users",
	ManageRoles:             "manage_roles",
	QueryClients:            "query_clients",
	QueryGroups:             "query_groups",
	QueryRealms:             "query_realms",
	QueryUsers:              "query_users",
	ViewAuthorization:       "view_authorization",
	ViewClients:             "view_clients",
	ViewEvents:              "view_events",
	ViewIdentityProviders:   "view_identity_providers",
	ViewRealm:               "view_realm",
	ViewUsers:               "view_users",
	ViewRoles:               "view_roles",
	ManageWebhooks:          "manage_webhooks",
	ViewWebhooks:            "view_webhooks",
}

var permissionsByName = func() map[string]Permission {
	m := make(map[string]Permission, len(permissionNames))
	for p, name := range permissionNames {
		m[name] = p
	}
	return m
}()

// knownMask has every defined capability bit set.
var knownMask = func() uint64 {
	var mask uint64
	for p := range permissionNames {
		mask |= uint64(p)
	}
	return mask
}()

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("permission(%#x)", uint64(p))
}

// Parse returns the permission with the given snake_case name.
func Parse(name string) (Permission, error) {
	p, ok := permissionsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPermission, name)
	}
	return p, nil
}

// ParseNames converts a list of names to a permission set, failing on the first unknown name.
func ParseNames(names []string) (Permissions, error) {
	var set Permissions
	for _, name := range names {
		p, err := Parse(name)
		if err != nil {
			return 0, err
		}
		set |= Permissions(p)
	}
	return set, nil
}

// Permissions is a set of capabilities backed by a bitfield.
type Permissions uint64

// FromBitfield decodes a stored mask. Bits that do not name a known capability are dropped.
func FromBitfield(mask uint64) Permissions {
	return Permissions(mask & knownMask)
}

// Of builds a set from individual permissions.
func Of(perms ...Permission) Permissions {
	var set Permissions
	for _, p := range perms {
		set |= Permissions(p)
	}
	return FromBitfield(uint64(set))
}

// All returns the set of every known capability.
func All() Permissions {
	return Permissions(knownMask)
}

func (s Permissions) Bits() uint64 {
	return uint64(s)
}

func (s Permissions) IsEmpty() bool {
	return s == 0
}

func (s Permissions) Has(p Permission) bool {
	return uint64(s)&uint64(p) != 0
}

// HasOneOf reports whether at least one of the required permissions is held.
func (s Permissions) HasOneOf(required ...Permission) bool {
	for _, p := range required {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every required permission is held.
func (s Permissions) HasAll(required ...Permission) bool {
	for _, p := range required {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

func (s Permissions) Union(other Permissions) Permissions {
	return s | other
}

// List returns the held permissions in ascending bit order.
func (s Permissions) List() []Permission {
	mask := uint64(s) & knownMask
	list := make([]Permission, 0, bits.OnesCount64(mask))
	for mask != 0 {
		bit := mask & -mask
		list = append(list, Permission(bit))
		mask &^= bit
	}
	return list
}

func (s Permissions) Names() []string {
	list := s.List()
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.String()
	}
	return names
}

func (s Permissions) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *Permissions) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseNames(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
