// Package platform resolves tenant data sources into live monitoring
// platform connectors.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurahq/aura/pkg/zabbix"
)

// Connector is the capability the report pipeline requires of a monitoring
// platform client: one authenticated request/response call. Implementations
// must be safe for concurrent use.
type Connector interface {
	Get(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// DataSource is one configured platform endpoint belonging to a tenant.
// Credentials is a free-form bundle; each platform factory picks out the
// keys it understands (url, token, user, password).
type DataSource struct {
	ID          int64
	ClientID    int64
	Platform    string
	Credentials map[string]string
}

// Factory builds a connector from a data source's credential bundle.
// Construction may fail (missing or invalid credentials); the caller treats
// that platform as unavailable rather than aborting.
type Factory func(ds DataSource, timeout time.Duration, logger zerolog.Logger) (Connector, error)

// Registry maps platform names to connector factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in platforms registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("zabbix", newZabbixConnector)
	return r
}

// Register adds a platform factory. Platform names are case-insensitive.
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToLower(name)] = f
}

// Platforms returns the registered platform names, sorted.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect builds a connector for the given data source.
func (r *Registry) Connect(ds DataSource, timeout time.Duration, logger zerolog.Logger) (Connector, error) {
	f, ok := r.factories[strings.ToLower(ds.Platform)]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", ds.Platform)
	}
	return f(ds, timeout, logger)
}

func newZabbixConnector(ds DataSource, timeout time.Duration, logger zerolog.Logger) (Connector, error) {
	return zabbix.NewClient(zabbix.ClientConfig{
		URL:       ds.Credentials["url"],
		Token:     ds.Credentials["token"],
		User:      ds.Credentials["user"],
		Password:  ds.Credentials["password"],
		VerifySSL: ds.Credentials["verify_ssl"] == "true",
		Timeout:   timeout,
		Logger:    logger,
	})
}
