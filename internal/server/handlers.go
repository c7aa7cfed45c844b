package server

import (
	"net/http"
	"strings"

	"github.com/jonathan/propoto-agents/internal/apierr"
	"github.com/jonathan/propoto-agents/internal/gamma"
	"github.com/jonathan/propoto-agents/internal/llm"
	"github.com/jonathan/propoto-agents/internal/logging"
	"github.com/jonathan/propoto-agents/internal/proposal"
)

// ServiceVersion is reported by GET /.
const ServiceVersion = "1.0.0"

type ingestRequest struct {
	URL string `json:"url"`
}

type agentRequest struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

type modelsResponse struct {
	Models  []llm.Model `json:"models"`
	Default string      `json:"default"`
}

type templatesResponse struct {
	Templates []proposal.Template `json:"templates"`
}

type themesResponse struct {
	Themes []gamma.Theme `json:"themes"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "Propoto API",
		"version": ServiceVersion,
		"agents":  []string{"proposal", "knowledge", "sales"},
	})
}

// handleHealth reports liveness and which integrations have credentials.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	env := s.cfg.Providers
	if env == nil {
		env = map[string]bool{}
	}
	s.jsonResponse(w, r, http.StatusOK, map[string]any{
		"status":      "healthy",
		"environment": env,
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, r, http.StatusOK, modelsResponse{
		Models:  llm.Models(),
		Default: llm.DefaultModelKey,
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, r, http.StatusOK, templatesResponse{Templates: proposal.Templates()})
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.PresentationEnabled || s.deps.Themes == nil || !s.deps.Themes.Enabled() {
		s.errorResponse(w, r, apierr.Unavailable(
			"Presentation rendering is disabled. Set PRESENTATION_ENABLED and GAMMA_API_KEY to enable Gamma themes."))
		return
	}
	themes := s.deps.Themes.ListThemes(r.Context())
	if themes == nil {
		themes = []gamma.Theme{}
	}
	s.jsonResponse(w, r, http.StatusOK, themesResponse{Themes: themes})
}

func (s *Server) handleGenerateProposal(w http.ResponseWriter, r *http.Request) {
	if s.deps.Proposals == nil {
		s.errorResponse(w, r, apierr.Configuration("Proposal agent is not configured"))
		return
	}
	var req proposal.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	ctx := logging.WithAgent(r.Context(), "proposal")
	resp, err := s.deps.Proposals.Generate(ctx, req)
	if err != nil {
		s.errorResponse(w, r.WithContext(ctx), err)
		return
	}
	s.jsonResponse(w, r, http.StatusOK, resp)
}

func (s *Server) handleIngestKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.deps.Knowledge == nil {
		s.errorResponse(w, r, apierr.Configuration("Knowledge agent is not configured"))
		return
	}
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	ctx := logging.WithAgent(r.Context(), "knowledge")
	resp, err := s.deps.Knowledge.Ingest(ctx, strings.TrimSpace(req.URL))
	if err != nil {
		s.errorResponse(w, r.WithContext(ctx), err)
		return
	}
	s.jsonResponse(w, r, http.StatusOK, resp)
}

func (s *Server) handleFindLeads(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sales == nil {
		s.errorResponse(w, r, apierr.Configuration("Sales agent is not configured"))
		return
	}
	var req agentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	ctx := logging.WithAgent(r.Context(), "sales")
	resp, err := s.deps.Sales.FindLeads(ctx, strings.TrimSpace(req.Prompt))
	if err != nil {
		s.errorResponse(w, r.WithContext(ctx), err)
		return
	}
	s.jsonResponse(w, r, http.StatusOK, resp)
}
