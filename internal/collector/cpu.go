package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/aurahq/aura/internal/platform"
)

// Thresholds for CPU insight findings, in percent.
const (
	cpuCriticalMax  = 95.0
	cpuWarningMax   = 85.0
	cpuSustainedAvg = 75.0
)

const defaultTopN = 5

// cpuItemKeys match both agent and SNMP processor-load items.
var cpuItemKeys = []string{"system.cpu.util", "hrProcessorLoad"}

// CPUCollector analyses CPU utilization across the selected hosts.
type CPUCollector struct{}

// Platform implements Collector.
func (c *CPUCollector) Platform() string { return "zabbix" }

type cpuItem struct {
	ItemID string `json:"itemid"`
	HostID string `json:"hostid"`
}

type hostEntry struct {
	HostID string `json:"hostid"`
	Name   string `json:"name"`
}

// IsSupported implements Collector with a bounded-result existence probe.
func (c *CPUCollector) IsSupported(ctx context.Context, conn platform.Connector, hostIDs []string) bool {
	if len(hostIDs) == 0 {
		return false
	}
	raw, err := conn.Get(ctx, "item.get", map[string]any{
		"output":      []string{"itemid"},
		"hostids":     hostIDs,
		"search":      map[string]any{"key_": cpuItemKeys},
		"searchByAny": true,
		"limit":       1,
	})
	if err != nil {
		return false
	}
	var items []cpuItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	return len(items) > 0
}

// hostSeries accumulates the coerced samples for one host.
type hostSeries struct {
	name    string
	values  []float64
	samples []sample
}

type sample struct {
	at    time.Time
	value float64
}

// Collect implements Collector. It returns nil when no CPU items resolve or
// no numeric history survives coercion.
func (c *CPUCollector) Collect(ctx context.Context, env Env, inst ModuleInstance) (*Result, error) {
	raw, err := env.Conn.Get(ctx, "item.get", map[string]any{
		"output":      []string{"itemid", "hostid"},
		"hostids":     env.HostIDs,
		"search":      map[string]any{"key_": cpuItemKeys},
		"searchByAny": true,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve cpu items: %w", err)
	}
	var items []cpuItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode cpu items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	itemIDs := make([]string, 0, len(items))
	for _, it := range items {
		itemIDs = append(itemIDs, it.ItemID)
	}

	records, err := env.History.Fetch(ctx, itemIDs, 0, env.Start, env.End)
	if err != nil {
		return nil, fmt.Errorf("fetch cpu history: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	hostNames, err := c.hostNames(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("resolve host names: %w", err)
	}
	itemHost := make(map[string]string, len(items))
	for _, it := range items {
		itemHost[it.ItemID] = hostNames[it.HostID]
	}

	// Coerce values and group by host, preserving first-appearance order.
	series := make(map[string]*hostSeries)
	var hostOrder []string
	for _, rec := range records {
		host := itemHost[rec.ItemID]
		if host == "" {
			continue
		}
		value, err := strconv.ParseFloat(rec.Value, 64)
		if err != nil {
			continue
		}
		clock, err := strconv.ParseInt(rec.Clock, 10, 64)
		if err != nil {
			continue
		}
		hs, ok := series[host]
		if !ok {
			hs = &hostSeries{name: host}
			series[host] = hs
			hostOrder = append(hostOrder, host)
		}
		hs.values = append(hs.values, value)
		hs.samples = append(hs.samples, sample{at: time.Unix(clock, 0), value: value})
	}
	if len(hostOrder) == 0 {
		return nil, nil
	}

	result := &Result{}
	cfg := inst.Config

	if cfg.InsightsVisible() {
		result.Insights = c.insights(hostOrder, series)
	}

	if cfg.ChartVisible() || cfg.TableVisible() {
		table, chart := c.aggregate(cfg, hostOrder, series)
		if cfg.TableVisible() {
			result.Table = table
		}
		// A chart without an aggregated table has nothing to plot.
		if cfg.ChartVisible() && table != nil {
			result.Chart = chart
		}
	}

	return result, nil
}

func (c *CPUCollector) hostNames(ctx context.Context, env Env) (map[string]string, error) {
	raw, err := env.Conn.Get(ctx, "host.get", map[string]any{
		"output":  []string{"hostid", "name"},
		"hostids": env.HostIDs,
	})
	if err != nil {
		return nil, err
	}
	var hosts []hostEntry
	if err := json.Unmarshal(raw, &hosts); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(hosts))
	for _, h := range hosts {
		names[h.HostID] = h.Name
	}
	return names, nil
}

type hostStats struct {
	host string
	min  float64
	max  float64
	mean float64
}

func describe(hostOrder []string, series map[string]*hostSeries) []hostStats {
	stats := make([]hostStats, 0, len(hostOrder))
	for _, host := range hostOrder {
		hs := series[host]
		st := hostStats{host: host, min: math.Inf(1), max: math.Inf(-1)}
		var sum float64
		for _, v := range hs.values {
			st.min = math.Min(st.min, v)
			st.max = math.Max(st.max, v)
			sum += v
		}
		st.mean = sum / float64(len(hs.values))
		stats = append(stats, st)
	}
	return stats
}

// insights emits threshold findings per host, and a single normal finding
// when nothing triggered across the whole dataset.
func (c *CPUCollector) insights(hostOrder []string, series map[string]*hostSeries) []Insight {
	var findings []Insight
	for _, st := range describe(hostOrder, series) {
		switch {
		case st.max > cpuCriticalMax:
			findings = append(findings, Insight{
				Severity: SeverityCritical,
				Text:     fmt.Sprintf("Host %q peaked at %.2f%% CPU utilization, indicating a high risk of saturation.", st.host, st.max),
			})
		case st.max > cpuWarningMax:
			findings = append(findings, Insight{
				Severity: SeverityWarning,
				Text:     fmt.Sprintf("Host %q peaked at %.2f%% CPU utilization; the workload deserves investigation.", st.host, st.max),
			})
		}
		if st.mean > cpuSustainedAvg {
			findings = append(findings, Insight{
				Severity: SeverityElevated,
				Text:     fmt.Sprintf("Host %q averaged %.2f%% CPU utilization, suggesting sustained load that may need more capacity.", st.host, st.mean),
			})
		}
	}
	if len(findings) == 0 {
		findings = append(findings, Insight{
			Severity: SeverityNormal,
			Text:     "CPU utilization stayed within normal operating limits across all selected hosts.",
		})
	}
	return findings
}

func (c *CPUCollector) aggregate(cfg ModuleConfig, hostOrder []string, series map[string]*hostSeries) (*Table, *Chart) {
	switch cfg.AnalysisKind() {
	case AnalysisTimeline:
		return c.aggregateTimeline(series)
	case AnalysisTopN:
		n := cfg.Value
		if n <= 0 {
			n = defaultTopN
		}
		return c.aggregateTopN(hostOrder, series, n)
	default:
		return c.aggregateAverage(hostOrder, series)
	}
}

func (c *CPUCollector) aggregateAverage(hostOrder []string, series map[string]*hostSeries) (*Table, *Chart) {
	stats := describe(hostOrder, series)
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].mean > stats[j].mean })

	table := &Table{Columns: []string{"Host", "Average CPU (%)"}}
	chart := &Chart{Kind: ChartBar, YLabel: "Average CPU (%)"}
	for _, st := range stats {
		table.Rows = append(table.Rows, []string{st.host, format2(st.mean)})
		chart.Labels = append(chart.Labels, st.host)
		chart.Values = append(chart.Values, round2(st.mean))
	}
	return table, chart
}

func (c *CPUCollector) aggregateTopN(hostOrder []string, series map[string]*hostSeries, n int) (*Table, *Chart) {
	stats := describe(hostOrder, series)
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].mean > stats[j].mean })
	if len(stats) > n {
		stats = stats[:n]
	}

	table := &Table{Columns: []string{"Host", "Min CPU (%)", "Max CPU (%)", "Average CPU (%)"}}
	chart := &Chart{Kind: ChartBar, YLabel: "Average CPU (%)"}
	for _, st := range stats {
		table.Rows = append(table.Rows, []string{st.host, format2(st.min), format2(st.max), format2(st.mean)})
		chart.Labels = append(chart.Labels, st.host)
		chart.Values = append(chart.Values, round2(st.mean))
	}
	return table, chart
}

func (c *CPUCollector) aggregateTimeline(series map[string]*hostSeries) (*Table, *Chart) {
	type daily struct {
		sum   float64
		count int
	}
	byDay := make(map[string]*daily)
	for _, hs := range series {
		for _, s := range hs.samples {
			day := s.at.Format("2006-01-02")
			d, ok := byDay[day]
			if !ok {
				d = &daily{}
				byDay[day] = d
			}
			d.sum += s.value
			d.count++
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	table := &Table{Columns: []string{"Date", "Average CPU (%)"}}
	chart := &Chart{Kind: ChartLine, YLabel: "Average CPU (%)"}
	for _, day := range days {
		d := byDay[day]
		mean := d.sum / float64(d.count)
		table.Rows = append(table.Rows, []string{day, format2(mean)})
		chart.Labels = append(chart.Labels, day)
		chart.Values = append(chart.Values, round2(mean))
	}
	return table, chart
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func format2(v float64) string { return strconv.FormatFloat(round2(v), 'f', 2, 64) }
