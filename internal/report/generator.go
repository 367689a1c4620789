package report

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aurahq/aura/internal/collector"
	"github.com/aurahq/aura/internal/history"
	"github.com/aurahq/aura/internal/platform"
)

const dateLayout = "2006-01-02"

// Tenant is the client the report is generated for, with its configured
// platform data sources.
type Tenant struct {
	ID      int64
	Name    string
	Sources []platform.DataSource
}

// Request is the whole-report configuration as consumed from the request
// layer. Dates are inclusive calendar days, YYYY-MM-DD; when absent, modules
// requiring a time range produce no data.
type Request struct {
	ReportName string                     `json:"reportName"`
	ClientID   int64                      `json:"clientId"`
	HostIDs    []string                   `json:"hosts"`
	StartDate  string                     `json:"startDate"`
	EndDate    string                     `json:"endDate"`
	Modules    []collector.ModuleInstance `json:"modules"`
}

// GeneratorConfig tunes the pipeline.
type GeneratorConfig struct {
	ChunkSize          int
	ConnectorTimeout   time.Duration
	CollectConcurrency int
}

// Generator orchestrates connector resolution, module collection and the
// two-pass document flow.
type Generator struct {
	builder   *DocumentBuilder
	platforms *platform.Registry
	modules   *collector.Registry
	cfg       GeneratorConfig
	logger    zerolog.Logger
}

// NewGenerator wires a generator from its collaborators.
func NewGenerator(builder *DocumentBuilder, platforms *platform.Registry, modules *collector.Registry, cfg GeneratorConfig, logger zerolog.Logger) *Generator {
	if cfg.CollectConcurrency <= 0 {
		cfg.CollectConcurrency = 4
	}
	builder.RegisterModuleTemplates(modules)
	return &Generator{
		builder:   builder,
		platforms: platforms,
		modules:   modules,
		cfg:       cfg,
		logger:    logger.With().Str("component", "generator").Logger(),
	}
}

// collected pairs one module's result with its instance metadata.
type collected struct {
	key      string
	instance collector.ModuleInstance
	result   *collector.Result
}

// Generate produces the final report artifact and returns its path. An
// empty path with a nil error means no module produced data. On error all
// temporary fragments created so far have been removed.
func (g *Generator) Generate(ctx context.Context, tenant Tenant, req Request) (string, error) {
	runID := ulid.Make().String()
	logger := g.logger.With().Str("run", runID).Str("tenant", tenant.Name).Logger()

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return "", err
	}

	conns := g.resolveConnectors(tenant, logger)

	results := g.collect(ctx, conns, req, start, end, logger)
	if len(results) == 0 {
		logger.Info().Msg("No module produced data, skipping report")
		return "", nil
	}

	global := RenderContext{
		ReportName: reportName(req.ReportName),
		ClientName: tenant.Name,
		StartDate:  displayDate(start),
		EndDate:    displayDate(end),
	}

	// Draft pass: render everything once to learn the total page count.
	draftFrags, draftCover, err := g.renderPass(results, global)
	if err != nil {
		return "", err
	}

	coverPages := g.countOrZero(draftCover)
	fragPages := make([]int, len(draftFrags))
	total := coverPages
	for i, path := range draftFrags {
		fragPages[i] = g.countOrZero(path)
		total += fragPages[i]
	}
	g.builder.Cleanup(append(draftFrags, draftCover))

	logger.Debug().Int("totalPages", total).Int("modules", len(results)).Msg("Draft pass complete")

	// Final pass: same content, with the total page count and per-fragment
	// offsets baked into every context.
	global.TotalPages = total
	offset := coverPages
	finalFrags, finalCover, err := g.renderPassWithOffsets(results, global, fragPages, &offset)
	if err != nil {
		return "", err
	}

	outputName := fmt.Sprintf("%s_%s_%s.pdf",
		sanitizeName(global.ReportName), sanitizeName(tenant.Name), uuid.NewString()[:8])

	path, err := g.builder.Merge(finalFrags, finalCover, outputName)
	if err != nil {
		return "", err
	}

	logger.Info().Str("path", path).Int("pages", total).Msg("Report generated")
	return path, nil
}

// resolveConnectors builds one connector per distinct platform among the
// tenant's data sources. Construction failures make that platform
// unavailable, nothing more.
func (g *Generator) resolveConnectors(tenant Tenant, logger zerolog.Logger) map[string]platform.Connector {
	conns := make(map[string]platform.Connector)
	for _, ds := range tenant.Sources {
		name := strings.ToLower(ds.Platform)
		if _, ok := conns[name]; ok {
			continue
		}
		conn, err := g.platforms.Connect(ds, g.cfg.ConnectorTimeout, logger)
		if err != nil {
			logger.Error().Err(err).Str("platform", ds.Platform).Msg("Platform connector unavailable")
			continue
		}
		conns[name] = conn
	}
	return conns
}

// collect runs every resolvable module instance, in request order, with
// bounded concurrency. A module failure downgrades to "no data for this
// module".
func (g *Generator) collect(ctx context.Context, conns map[string]platform.Connector, req Request, start, end time.Time, logger zerolog.Logger) []collected {
	slots := make([]*collected, len(req.Modules))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.cfg.CollectConcurrency)

	for i, inst := range req.Modules {
		reg, ok := g.modules.Resolve(inst.Type)
		if !ok {
			logger.Warn().Str("module", inst.Type).Msg("Unknown module type, skipping")
			continue
		}
		conn, ok := conns[strings.ToLower(reg.Collector.Platform())]
		if !ok {
			logger.Warn().Str("module", inst.Type).Str("platform", reg.Collector.Platform()).Msg("Platform unavailable, skipping module")
			continue
		}

		group.Go(func() error {
			env := collector.Env{
				Conn:    conn,
				History: history.NewFetcher(conn, g.cfg.ChunkSize, logger),
				HostIDs: req.HostIDs,
				Start:   start,
				End:     end,
				Logger:  logger,
			}
			result, err := safeCollect(groupCtx, reg.Collector, env, inst)
			if err != nil {
				logger.Warn().Err(err).Str("module", inst.Type).Msg("Module collection failed, treating as no data")
				return nil
			}
			if result != nil {
				slots[i] = &collected{key: inst.Type, instance: inst, result: result}
			}
			return nil
		})
	}
	_ = group.Wait()

	results := make([]collected, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			results = append(results, *c)
		}
	}
	return results
}

// safeCollect shields the pipeline from panicking collectors.
func safeCollect(ctx context.Context, c collector.Collector, env collector.Env, inst collector.ModuleInstance) (result *collector.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("collector panic: %v", r)
		}
	}()
	return c.Collect(ctx, env, inst)
}

// renderPass renders one fragment per module plus the cover. On error it
// removes everything rendered so far.
func (g *Generator) renderPass(results []collected, global RenderContext) ([]string, string, error) {
	zero := make([]int, len(results))
	offset := 0
	return g.renderPassWithOffsets(results, global, zero, &offset)
}

func (g *Generator) renderPassWithOffsets(results []collected, global RenderContext, fragPages []int, offset *int) ([]string, string, error) {
	frags := make([]string, 0, len(results))
	for i, c := range results {
		ctx := global
		ctx.Title = moduleTitle(c.instance)
		ctx.NewPage = c.instance.Config.NewPage
		ctx.Result = c.result
		ctx.ModuleName = c.key
		ctx.PageOffset = *offset

		path, err := g.builder.RenderFragment(c.key, &ctx)
		if err != nil {
			g.builder.Cleanup(frags)
			return nil, "", err
		}
		frags = append(frags, path)
		*offset += fragPages[i]
	}

	coverCtx := global
	cover, err := g.builder.RenderCover(&coverCtx)
	if err != nil {
		g.builder.Cleanup(frags)
		return nil, "", err
	}
	return frags, cover, nil
}

func (g *Generator) countOrZero(path string) int {
	n, err := g.builder.PageCount(path)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Draft fragment unreadable, counting zero pages")
		return 0
	}
	return n
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	if startDate == "" || endDate == "" {
		return time.Time{}, time.Time{}, nil
	}
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s is after end date %s", startDate, endDate)
	}
	// End date is inclusive.
	return start, end.Add(24*time.Hour - time.Second), nil
}

func displayDate(t time.Time) string {
	if t.IsZero() {
		return "N/D"
	}
	return t.Format("02/01/2006")
}

func reportName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Analysis Report"
	}
	return name
}

func moduleTitle(inst collector.ModuleInstance) string {
	if strings.TrimSpace(inst.Title) == "" {
		return "Analysis"
	}
	return inst.Title
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitizeName(name string) string {
	s := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "report"
	}
	return s
}
