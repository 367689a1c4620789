package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurahq/aura/internal/collector"
	"github.com/aurahq/aura/internal/platform"
)

// fakeConnector answers the three Zabbix methods the CPU collector uses.
type fakeConnector struct {
	responses map[string]any
	failOn    string
}

func (f *fakeConnector) Get(_ context.Context, method string, _ any) (json.RawMessage, error) {
	if method == f.failOn {
		return nil, errors.New("connector failure")
	}
	resp, ok := f.responses[method]
	if !ok {
		return nil, fmt.Errorf("unexpected method %s", method)
	}
	return json.Marshal(resp)
}

func healthyConnector() *fakeConnector {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeConnector{responses: map[string]any{
		"item.get": []map[string]string{{"itemid": "i0", "hostid": "h0"}},
		"host.get": []map[string]string{{"hostid": "h0", "name": "web-01"}},
		"history.get": []map[string]string{
			{"itemid": "i0", "clock": fmt.Sprintf("%d", base.Unix()), "value": "42.5"},
			{"itemid": "i0", "clock": fmt.Sprintf("%d", base.Add(time.Hour).Unix()), "value": "55.0"},
		},
	}}
}

// platformsWith overrides the zabbix factory so no real network is touched.
func platformsWith(conn platform.Connector, constructionErr error) *platform.Registry {
	r := platform.NewRegistry()
	r.Register("zabbix", func(platform.DataSource, time.Duration, zerolog.Logger) (platform.Connector, error) {
		if constructionErr != nil {
			return nil, constructionErr
		}
		return conn, nil
	})
	return r
}

func testGenerator(t *testing.T, platforms *platform.Registry) (*Generator, string) {
	t.Helper()
	workDir := t.TempDir()
	builder, err := NewDocumentBuilder(workDir, zerolog.Nop())
	require.NoError(t, err)

	gen := NewGenerator(builder, platforms, collector.DefaultRegistry(), GeneratorConfig{
		ChunkSize:        5,
		ConnectorTimeout: time.Second,
	}, zerolog.Nop())
	return gen, workDir
}

func testTenant() Tenant {
	return Tenant{
		ID:   1,
		Name: "Acme Corp",
		Sources: []platform.DataSource{
			{ID: 1, ClientID: 1, Platform: "zabbix", Credentials: map[string]string{"url": "http://example", "token": "t"}},
		},
	}
}

func testRequest(modules ...collector.ModuleInstance) Request {
	return Request{
		ReportName: "Monthly Report",
		ClientID:   1,
		HostIDs:    []string{"h0"},
		StartDate:  "2025-03-01",
		EndDate:    "2025-03-07",
		Modules:    modules,
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	gen, workDir := testGenerator(t, platformsWith(healthyConnector(), nil))

	path, err := gen.Generate(context.Background(), testTenant(), testRequest(
		collector.ModuleInstance{Type: "cpu", Title: "CPU Overview"},
		collector.ModuleInstance{Type: "cpu", Title: "CPU Top Consumers", Config: collector.ModuleConfig{Analysis: collector.AnalysisTopN}},
	))
	require.NoError(t, err)
	require.NotEmpty(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// Cover plus one page per module.
	pages, err := gen.builder.PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)

	// Only the final artifact may remain in the working directory.
	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, info.Name(), entries[0].Name())

	assert.Contains(t, path, "Monthly_Report_Acme_Corp_")
}

func TestGenerateConnectorConstructionFailure(t *testing.T) {
	gen, workDir := testGenerator(t, platformsWith(nil, errors.New("bad credentials")))

	path, err := gen.Generate(context.Background(), testTenant(), testRequest(
		collector.ModuleInstance{Type: "cpu", Title: "CPU Overview"},
	))
	require.NoError(t, err, "an unavailable platform is not a report-level failure")
	assert.Empty(t, path)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateModuleFailureDowngradesToNoData(t *testing.T) {
	conn := healthyConnector()
	conn.failOn = "item.get"
	gen, _ := testGenerator(t, platformsWith(conn, nil))

	path, err := gen.Generate(context.Background(), testTenant(), testRequest(
		collector.ModuleInstance{Type: "cpu", Title: "CPU Overview"},
	))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestGenerateUnknownModuleSkipped(t *testing.T) {
	gen, _ := testGenerator(t, platformsWith(healthyConnector(), nil))

	path, err := gen.Generate(context.Background(), testTenant(), testRequest(
		collector.ModuleInstance{Type: "does-not-exist", Title: "Mystery"},
		collector.ModuleInstance{Type: "cpu", Title: "CPU Overview"},
	))
	require.NoError(t, err)
	assert.NotEmpty(t, path, "unregistered module types are skipped, not fatal")
}

func TestGenerateNoModules(t *testing.T) {
	gen, _ := testGenerator(t, platformsWith(healthyConnector(), nil))

	path, err := gen.Generate(context.Background(), testTenant(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestGenerateInvalidDateRange(t *testing.T) {
	gen, _ := testGenerator(t, platformsWith(healthyConnector(), nil))

	req := testRequest(collector.ModuleInstance{Type: "cpu"})
	req.StartDate = "2025-03-07"
	req.EndDate = "2025-03-01"

	_, err := gen.Generate(context.Background(), testTenant(), req)
	require.Error(t, err)
}

func TestGenerateMissingDatesDisablesHistoryModules(t *testing.T) {
	gen, _ := testGenerator(t, platformsWith(healthyConnector(), nil))

	req := testRequest(collector.ModuleInstance{Type: "cpu"})
	req.StartDate = ""
	req.EndDate = ""

	// The CPU module needs a time range; without one it yields no data.
	path, err := gen.Generate(context.Background(), testTenant(), req)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestRenderFailureCleansWorkDir(t *testing.T) {
	gen, workDir := testGenerator(t, platformsWith(healthyConnector(), nil))

	// The second module's key has no registered template, so its fragment
	// fails after the first one has already been written.
	results := []collected{
		{key: "cpu", instance: collector.ModuleInstance{Type: "cpu", Title: "CPU"}, result: &collector.Result{}},
		{key: "ghost", instance: collector.ModuleInstance{Type: "ghost", Title: "Ghost"}, result: &collector.Result{}},
	}

	_, _, err := gen.renderPass(results, RenderContext{ReportName: "Monthly Report", ClientName: "Acme Corp"})
	require.Error(t, err)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed render pass must remove every fragment it produced")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Monthly_Report", sanitizeName("Monthly Report"))
	assert.Equal(t, "report", sanitizeName("///"))
	assert.Equal(t, "Q1_2025", sanitizeName("  Q1/2025  "))
}

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("2025-03-01", "2025-03-07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), start)
	// End date is inclusive: the range covers the whole final day.
	assert.Equal(t, time.Date(2025, 3, 7, 23, 59, 59, 0, time.UTC), end)

	start, end, err = parseRange("", "")
	require.NoError(t, err)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())

	_, _, err = parseRange("2025-03-07", "2025-03-01")
	require.Error(t, err)
}
