package platform

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct{}

func (stubConnector) Get(context.Context, string, any) (json.RawMessage, error) { return nil, nil }

func TestRegistryConnect(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func(DataSource, time.Duration, zerolog.Logger) (Connector, error) {
		return stubConnector{}, nil
	})

	conn, err := r.Connect(DataSource{Platform: "Stub"}, time.Second, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, conn, "platform names are case-insensitive")

	_, err = r.Connect(DataSource{Platform: "nagios"}, time.Second, zerolog.Nop())
	require.Error(t, err)
}

func TestRegistryConstructionFailure(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", func(DataSource, time.Duration, zerolog.Logger) (Connector, error) {
		return nil, errors.New("bad credentials")
	})

	_, err := r.Connect(DataSource{Platform: "broken"}, time.Second, zerolog.Nop())
	require.Error(t, err)
}

func TestZabbixFactoryValidatesCredentials(t *testing.T) {
	r := NewRegistry()
	assert.Contains(t, r.Platforms(), "zabbix")

	// No URL, no token: construction must fail without aborting anything.
	_, err := r.Connect(DataSource{Platform: "zabbix", Credentials: map[string]string{}}, time.Second, zerolog.Nop())
	require.Error(t, err)
}
