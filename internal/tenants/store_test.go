package tenants

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "tenants.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClientRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.CreateClient(ctx, "Acme Corp")
	require.NoError(t, err)

	client, err := s.GetClient(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", client.Name)

	_, err = s.GetClient(ctx, id+999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListClientsSorted(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, name := range []string{"Zulu", "Alpha", "Mike"} {
		_, err := s.CreateClient(ctx, name)
		require.NoError(t, err)
	}

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 3)
	assert.Equal(t, "Alpha", clients[0].Name)
	assert.Equal(t, "Zulu", clients[2].Name)
}

func TestDataSources(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	clientID, err := s.CreateClient(ctx, "Acme Corp")
	require.NoError(t, err)

	creds := map[string]string{"url": "https://zbx.example.com", "token": "secret"}
	_, err = s.AddDataSource(ctx, clientID, "zabbix", creds)
	require.NoError(t, err)

	sources, err := s.ListDataSources(ctx, clientID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "zabbix", sources[0].Platform)
	assert.Equal(t, creds, sources[0].Credentials)
	assert.Equal(t, clientID, sources[0].ClientID)
}

func TestDeleteClientCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	clientID, err := s.CreateClient(ctx, "Acme Corp")
	require.NoError(t, err)
	_, err = s.AddDataSource(ctx, clientID, "zabbix", map[string]string{"url": "u", "token": "t"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteClient(ctx, clientID))

	_, err = s.GetClient(ctx, clientID)
	assert.ErrorIs(t, err, ErrNotFound)

	sources, err := s.ListDataSources(ctx, clientID)
	require.NoError(t, err)
	assert.Empty(t, sources)
}
