package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/gate-remote/gate-go/pkg/version"
)

const (
	// ServiceType is the DNS-SD service type of gate-web.
	ServiceType = "_gate-web._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default gate-web HTTP port.
	DefaultPort = 8080

	// DefaultInstance is the instance name used when none is configured.
	DefaultInstance = "gate-web"

	// APIVersion is the advertised API version.
	APIVersion = version.Current

	// DefaultAPIPath is the advertised API base path.
	DefaultAPIPath = "/api/v1"
)

// TXT record keys.
const (
	TXTKeyVersion = "v"
	TXTKeyAPIPath = "api"
	TXTKeyBackend = "store"
	TXTKeyID      = "id"
)

const (
	// BrowseTimeout is the default timeout for a one-shot browse.
	BrowseTimeout = 5 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrEmptyInstanceName   = errors.New("empty instance name")
	ErrNotAdvertising      = errors.New("not advertising")
	ErrNotFound            = errors.New("service not found")
)

// Info is what an advertiser publishes.
type Info struct {
	Instance string
	Port     uint16
	APIPath  string
	Backend  string
	ID       string
}

// Service is one discovered gate-web instance.
type Service struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []string
	Version   string
	APIPath   string
	Backend   string
	ID        string
}

// URL returns the HTTP base URL of the service's API, preferring the first
// address and falling back to the host name.
func (s *Service) URL() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(int(s.Port))) + s.APIPath
}

// Compatible reports whether this build can talk to the service's API.
// A versioned base path ("/api/vN") must match the current major too.
func (s *Service) Compatible() bool {
	if !version.CompatibleWith(s.Version) {
		return false
	}
	if major, err := version.MajorFromAPIPath(s.APIPath); err == nil {
		return major == version.MustCurrent().Major
	}
	return true
}
