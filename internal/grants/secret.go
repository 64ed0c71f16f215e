package grants

import (
	"crypto/hmac"

	"github.com/khanghh/krealm/model"
)

// secretMatches compares the presented secret with the client's in constant time.
// Public clients never match.
func secretMatches(client *model.Client, presented string) bool {
	if client.Secret == nil || presented == "" {
		return false
	}
	return hmac.Equal([]byte(*client.Secret), []byte(presented))
}
