// Package api exposes the report pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aurahq/aura/internal/collector"
	"github.com/aurahq/aura/internal/platform"
	"github.com/aurahq/aura/internal/report"
	"github.com/aurahq/aura/internal/tenants"
)

// ReportService generates reports; satisfied by *report.Generator.
type ReportService interface {
	Generate(ctx context.Context, tenant report.Tenant, req report.Request) (string, error)
}

// TenantStore resolves tenants and their data sources.
type TenantStore interface {
	GetClient(ctx context.Context, id int64) (tenants.Client, error)
	ListDataSources(ctx context.Context, clientID int64) ([]platform.DataSource, error)
}

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	service          ReportService
	store            TenantStore
	modules          *collector.Registry
	platforms        *platform.Registry
	connectorTimeout time.Duration
	reportTimeout    time.Duration
	logger           zerolog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(service ReportService, store TenantStore, modules *collector.Registry, platforms *platform.Registry, connectorTimeout, reportTimeout time.Duration, logger zerolog.Logger) *Handlers {
	return &Handlers{
		service:          service,
		store:            store,
		modules:          modules,
		platforms:        platforms,
		connectorTimeout: connectorTimeout,
		reportTimeout:    reportTimeout,
		logger:           logger.With().Str("component", "api").Logger(),
	}
}

// Router builds the HTTP mux.
func (h *Handlers) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/modules", h.handleListModules)
	mux.HandleFunc("POST /api/modules/validate", h.handleValidateModules)
	mux.HandleFunc("POST /api/reports", h.handleGenerateReport)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// handleListModules serves the module registry so the request layer can
// validate layouts before submitting them.
func (h *Handlers) handleListModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.modules.List())
}

type validateModulesRequest struct {
	ClientID int64    `json:"clientId"`
	HostIDs  []string `json:"hosts"`
}

// handleValidateModules reports which modules can produce data for a
// client's hosts by probing each collector against the client's platform
// connectors. Modules whose platform is unavailable are simply absent from
// the response.
func (h *Handlers) handleValidateModules(w http.ResponseWriter, r *http.Request) {
	var req validateModulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, reportResponse{Status: "error", Error: "invalid request body"})
		return
	}

	ctx := r.Context()
	client, err := h.store.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, reportResponse{Status: "error", Error: "unknown client"})
			return
		}
		h.logger.Error().Err(err).Int64("client", req.ClientID).Msg("Failed to load client")
		writeJSON(w, http.StatusInternalServerError, reportResponse{Status: "error", Error: "failed to load client"})
		return
	}

	sources, err := h.store.ListDataSources(ctx, client.ID)
	if err != nil {
		h.logger.Error().Err(err).Int64("client", client.ID).Msg("Failed to load data sources")
		writeJSON(w, http.StatusInternalServerError, reportResponse{Status: "error", Error: "failed to load data sources"})
		return
	}

	conns := make(map[string]platform.Connector)
	for _, ds := range sources {
		name := strings.ToLower(ds.Platform)
		if _, ok := conns[name]; ok {
			continue
		}
		conn, err := h.platforms.Connect(ds, h.connectorTimeout, h.logger)
		if err != nil {
			h.logger.Warn().Err(err).Str("platform", ds.Platform).Msg("Platform connector unavailable")
			continue
		}
		conns[name] = conn
	}

	supported := make([]collector.ModuleInfo, 0)
	for _, info := range h.modules.List() {
		reg, ok := h.modules.Resolve(info.Key)
		if !ok {
			continue
		}
		conn, ok := conns[strings.ToLower(info.Platform)]
		if !ok {
			continue
		}
		if reg.Collector.IsSupported(ctx, conn, req.HostIDs) {
			supported = append(supported, info)
		}
	}
	writeJSON(w, http.StatusOK, supported)
}

type reportResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (h *Handlers) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req report.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, reportResponse{Status: "error", Error: "invalid request body"})
		return
	}

	ctx := r.Context()
	client, err := h.store.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, reportResponse{Status: "error", Error: "unknown client"})
			return
		}
		h.logger.Error().Err(err).Int64("client", req.ClientID).Msg("Failed to load client")
		writeJSON(w, http.StatusInternalServerError, reportResponse{Status: "error", Error: "failed to load client"})
		return
	}

	sources, err := h.store.ListDataSources(ctx, client.ID)
	if err != nil {
		h.logger.Error().Err(err).Int64("client", client.ID).Msg("Failed to load data sources")
		writeJSON(w, http.StatusInternalServerError, reportResponse{Status: "error", Error: "failed to load data sources"})
		return
	}

	if h.reportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.reportTimeout)
		defer cancel()
	}

	start := time.Now()
	path, err := h.service.Generate(ctx, report.Tenant{ID: client.ID, Name: client.Name, Sources: sources}, req)
	reportDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		reportOutcomes.WithLabelValues("error").Inc()
		h.logger.Error().Err(err).Int64("client", client.ID).Msg("Report generation failed")
		writeJSON(w, http.StatusInternalServerError, reportResponse{Status: "error", Error: err.Error()})
	case path == "":
		reportOutcomes.WithLabelValues("no_data").Inc()
		writeJSON(w, http.StatusOK, reportResponse{Status: "no_data"})
	default:
		reportOutcomes.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, reportResponse{Status: "ok", Path: path})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
