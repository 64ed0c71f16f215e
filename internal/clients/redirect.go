package clients

import (
	"regexp"
	"strings"

	"github.com/khanghh/krealm/model"
)

func compileRedirectPattern(value string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + value + ")$")
}

func validateRedirectURI(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrInvalidRedirectURI
	}
	if _, err := compileRedirectPattern(value); err != nil {
		return "", ErrInvalidRedirectURI
	}
	return value, nil
}

// RedirectAllowed reports whether candidate equals one of the enabled URIs or
// matches it as an anchored regular expression.
func RedirectAllowed(uris []*model.RedirectURI, candidate string) bool {
	if candidate == "" {
		return false
	}
	for _, uri := range uris {
		if !uri.Enabled {
			continue
		}
		if uri.Value == candidate {
			return true
		}
		re, err := compileRedirectPattern(uri.Value)
		if err == nil && re.MatchString(candidate) {
			return true
		}
	}
	return false
}
