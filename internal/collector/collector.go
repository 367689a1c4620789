// Package collector defines the pluggable analysis modules that turn raw
// time-series data into report sections.
package collector

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurahq/aura/internal/history"
	"github.com/aurahq/aura/internal/platform"
)

// ModuleConfig holds the module-local options from the request layer.
// Visibility flags default to visible when absent.
type ModuleConfig struct {
	Analysis     string `json:"analysis,omitempty"`
	Value        int    `json:"value,omitempty"`
	ShowInsights *bool  `json:"showInsights,omitempty"`
	ShowChart    *bool  `json:"showChart,omitempty"`
	ShowTable    *bool  `json:"showTable,omitempty"`
	NewPage      bool   `json:"newPage,omitempty"`
}

// Analysis kinds understood by collectors.
const (
	AnalysisAverage  = "average"
	AnalysisTopN     = "top_n"
	AnalysisTimeline = "timeline"
)

func visible(flag *bool) bool { return flag == nil || *flag }

// InsightsVisible reports whether insight findings should be produced.
func (c ModuleConfig) InsightsVisible() bool { return visible(c.ShowInsights) }

// ChartVisible reports whether a chart should be produced.
func (c ModuleConfig) ChartVisible() bool { return visible(c.ShowChart) }

// TableVisible reports whether a table should be produced.
func (c ModuleConfig) TableVisible() bool { return visible(c.ShowTable) }

// AnalysisKind returns the configured analysis, defaulting to average.
func (c ModuleConfig) AnalysisKind() string {
	switch c.Analysis {
	case AnalysisTopN, AnalysisTimeline:
		return c.Analysis
	default:
		return AnalysisAverage
	}
}

// ModuleInstance is one configured analysis block in a report layout.
type ModuleInstance struct {
	Type   string       `json:"type"`
	Title  string       `json:"title"`
	Config ModuleConfig `json:"config"`
}

// Severity classifies an insight finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityElevated Severity = "elevated"
	SeverityNormal   Severity = "normal"
)

// Insight is a human-readable finding derived from threshold checks.
type Insight struct {
	Severity Severity
	Text     string
}

// Table is an aggregated result table ready for rendering.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ChartKind selects the chart shape drawn for a result.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
)

// Chart holds the series a fragment template draws.
type Chart struct {
	Kind   ChartKind
	Labels []string
	Values []float64
	YLabel string
}

// Result is the output of one collect call. A nil *Result means the module
// produced no data and is omitted from the report.
type Result struct {
	Table    *Table
	Chart    *Chart
	Insights []Insight
}

// Env carries the per-request collaborators a collector needs. Connectors
// are shared read-only across concurrent collections.
type Env struct {
	Conn    platform.Connector
	History *history.Fetcher
	HostIDs []string
	Start   time.Time
	End     time.Time
	Logger  zerolog.Logger
}

// Collector is one pluggable analysis module.
type Collector interface {
	// Platform names the monitoring platform this collector draws from.
	Platform() string

	// IsSupported probes cheaply whether any relevant metric items exist
	// for the given hosts. Connector errors mean "unsupported".
	IsSupported(ctx context.Context, conn platform.Connector, hostIDs []string) bool

	// Collect produces the module's result, or nil when no data qualifies.
	Collect(ctx context.Context, env Env, inst ModuleInstance) (*Result, error)
}

// Registration pairs a collector implementation with its display metadata.
type Registration struct {
	Collector Collector
	Name      string
}

// ModuleInfo describes one registered module for the validation API.
type ModuleInfo struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
}

// Registry is the static module-key to implementation mapping. Adding a
// module is a registration, not a pipeline edit.
type Registry struct {
	modules map[string]Registration
}

// DefaultRegistry returns a registry with the built-in modules.
func DefaultRegistry() *Registry {
	r := &Registry{modules: make(map[string]Registration)}
	r.Register("cpu", Registration{Collector: &CPUCollector{}, Name: "CPU Utilization"})
	return r
}

// Register adds a module under the given key.
func (r *Registry) Register(key string, reg Registration) {
	r.modules[key] = reg
}

// Resolve looks up a module by key.
func (r *Registry) Resolve(key string) (Registration, bool) {
	reg, ok := r.modules[key]
	return reg, ok
}

// List returns the registered modules sorted by key.
func (r *Registry) List() []ModuleInfo {
	infos := make([]ModuleInfo, 0, len(r.modules))
	for key, reg := range r.modules {
		infos = append(infos, ModuleInfo{Key: key, Name: reg.Name, Platform: reg.Collector.Platform()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}
