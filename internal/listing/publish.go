package listing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// AllowedDomains are the sites a listing link may be published from.
var AllowedDomains = []string{"cian.ru", "avito.ru"}

var (
	ErrUnsupportedDomain = errors.New("unsupported listing domain")
	ErrNoListingID       = errors.New("listing id not found in link")
)

// PublishLink is a listing link that passed the domain check.
type PublishLink struct {
	Host string
	ID   string
}

// ParsePublishLink checks that raw points at an allowed site and pulls the
// listing id (first run of five or more digits) out of it.
func ParsePublishLink(raw string) (PublishLink, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return PublishLink{}, fmt.Errorf("%w: %q", ErrUnsupportedDomain, raw)
	}
	host := strings.ToLower(u.Hostname())
	if !allowedHost(host) {
		return PublishLink{}, fmt.Errorf("%w: %s (allowed: %s)", ErrUnsupportedDomain, host, strings.Join(AllowedDomains, ", "))
	}
	id, ok := ExtractID(raw)
	if !ok {
		return PublishLink{}, ErrNoListingID
	}
	return PublishLink{Host: host, ID: id}, nil
}

func allowedHost(host string) bool {
	for _, d := range AllowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
