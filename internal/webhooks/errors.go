package webhooks

import (
	"errors"
	"fmt"

	"github.com/khanghh/krealm/model"
)

var (
	ErrWebhookNotFound = fmt.Errorf("webhook %w", model.ErrNotFound)
	ErrInvalidEndpoint = errors.New("invalid webhook endpoint")
	ErrUnknownTrigger  = errors.New("unknown webhook trigger")
	ErrNoTriggers      = errors.New("webhook must subscribe to at least one trigger")
)
