package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/agent"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/auth"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/config"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/pipeline"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/store"
)

const maxBodyBytes = 1 << 20 // 1MB

type Server struct {
	cfg        config.Config
	db         store.Store
	validation *agent.Executor
	reflection *agent.Executor
	registry   *pipeline.Registry
	runner     *pipeline.Runner
	verifier   *auth.Verifier
}

func New(cfg config.Config, db store.Store, validation, reflection *agent.Executor, registry *pipeline.Registry, runner *pipeline.Runner, verifier *auth.Verifier) *Server {
	return &Server{
		cfg:        cfg,
		db:         db,
		validation: validation,
		reflection: reflection,
		registry:   registry,
		runner:     runner,
		verifier:   verifier,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Get("/capabilities", s.handleCapabilities)

	r.Group(func(r chi.Router) {
		r.Use(s.verifier.Middleware)
		r.Post("/agents/config-validation/invoke", s.invokeHandler(s.validation))
		r.Post("/agents/reflection/invoke", s.invokeHandler(s.reflection))
		r.Post("/pipelines/validate", s.handlePipelineValidate)
		r.Post("/pipelines/run", s.handlePipelineRun)
	})

	r.Get("/records/{id}", s.handleGetRecord)
	r.Get("/records", s.handleListRecords)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.db.Ping(ctx); err != nil {
		status["ok"] = false
		status["store"] = "down"
		status["error"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	status["store"] = "up"
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"capabilities": s.registry.Capabilities(),
	})
}

// invokeHandler adapts one agent executor to the transport: the request
// body is the raw agent input, the execution reference comes from the
// X-Execution-Ref header or falls back to the request id.
func (s *Server) invokeHandler(executor *agent.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			respondError(w, http.StatusBadRequest, contracts.ErrCodeValidationFailed, "read body: "+err.Error())
			return
		}

		executionRef := r.Header.Get("X-Execution-Ref")
		if executionRef == "" {
			executionRef = middleware.GetReqID(r.Context())
		}

		result := executor.Invoke(r.Context(), body, executionRef)
		respondJSON(w, invocationStatusCode(result), result)
	}
}

func invocationStatusCode(result contracts.InvocationResult) int {
	switch {
	case result.Status == contracts.InvocationSuccess:
		return http.StatusOK
	case result.ErrorCode == contracts.ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handlePipelineValidate(w http.ResponseWriter, r *http.Request) {
	var spec contracts.PipelineSpec
	if err := decodeJSON(w, r, &spec); err != nil {
		respondError(w, http.StatusBadRequest, contracts.ErrCodeValidationFailed, err.Error())
		return
	}
	order, err := s.registry.ExecutionOrder(spec)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":          true,
		"executionOrder": order,
	})
}

func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, contracts.ErrCodeValidationFailed, err.Error())
		return
	}
	if req.ExecutionRef == "" {
		req.ExecutionRef = middleware.GetReqID(r.Context())
	}
	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, contracts.ErrCodeValidationFailed, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.db.GetDecisionRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "RECORD_NOT_FOUND", "no record with id "+id)
			return
		}
		respondError(w, http.StatusInternalServerError, contracts.ErrCodePersistenceError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agentId")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, contracts.ErrCodeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}
	records, err := s.db.ListDecisionRecords(r.Context(), agentID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, contracts.ErrCodePersistenceError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
	})
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
		"code":  code,
	})
}
