package webhooks

import (
	"fmt"

	"github.com/khanghh/krealm/model"
)

// Trigger names an event a webhook can subscribe to.
type Trigger string

const (
	UserCreated            Trigger = "user.created"
	UserUpdated            Trigger = "user.updated"
	UserDeleted            Trigger = "user.deleted"
	UserBulkDeleted        Trigger = "user.bulk_deleted"
	UserRoleAssigned       Trigger = "user.assign.role"
	UserRoleUnassigned     Trigger = "user.unassign.role"
	UserCredentialsDeleted Trigger = "user.credentials.deleted"
	AuthResetPassword      Trigger = "auth.reset_password"
	ClientCreated          Trigger = "client.created"
	ClientUpdated          Trigger = "client.updated"
	ClientDeleted          Trigger = "client.deleted"
	ClientRoleCreated      Trigger = "client.role.created"
	ClientRoleUpdated      Trigger = "client.role.updated"
	RedirectURICreated     Trigger = "redirect_uri.created"
	RedirectURIUpdated     Trigger = "redirect_uri.updated"
	RedirectURIDeleted     Trigger = "redirect_uri.deleted"
	RoleCreated            Trigger = "role.created"
	RoleUpdated            Trigger = "role.updated"
	RoleDeleted            Trigger = "role.deleted"
	RealmCreated           Trigger = "realm.created"
	RealmUpdated           Trigger = "realm.updated"
	RealmDeleted           Trigger = "realm.deleted"
	RealmSettingsUpdated   Trigger = "realm.settings.updated"
	WebhookCreated         Trigger = "webhook.created"
	WebhookUpdated         Trigger = "webhook.updated"
	WebhookDeleted         Trigger = "webhook.deleted"
)

var knownTriggers = map[Trigger]struct{}{
	UserCreated: {}, UserUpdated: {}, UserDeleted: {}, UserBulkDeleted: {},
	UserRoleAssigned: {}, UserRoleUnassigned: {}, UserCredentialsDeleted: {}, AuthResetPassword: {},
	ClientCreated: {}, ClientUpdated: {}, ClientDeleted: {}, ClientRoleCreated: {}, ClientRoleUpdated: {},
	RedirectURICreated: {}, RedirectURIUpdated: {}, RedirectURIDeleted: {},
	RoleCreated: {}, RoleUpdated: {}, RoleDeleted: {},
	RealmCreated: {}, RealmUpdated: {}, RealmDeleted: {}, RealmSettingsUpdated: {},
	WebhookCreated: {}, WebhookUpdated: {}, WebhookDeleted: {},
}

func ParseTrigger(name string) (Trigger, error) {
	t := Trigger(name)
	if _, ok := knownTriggers[t]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTrigger, name)
	}
	return t, nil
}

// ParseTriggers validates and de-duplicates trigger names, keeping their order.
func ParseTriggers(names []string) ([]string, error) {
	seen := make(map[Trigger]bool, len(names))
	triggers := make([]string, 0, len(names))
	for _, name := range names {
		t, err := ParseTrigger(name)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		triggers = append(triggers, string(t))
	}
	if len(triggers) == 0 {
		return nil, ErrNoTriggers
	}
	return triggers, nil
}

func subscribed(webhook *model.Webhook, trigger Trigger) bool {
	for _, t := range webhook.Triggers {
		if Trigger(t) == trigger {
			return true
		}
	}
	return false
}
