package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diffbench/ingestoor/pkg/pipeline"
	"github.com/diffbench/ingestoor/pkg/store"
)

// Payloads above this size are refused outright.
const maxImportBody = 32 << 20

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// writePipelineError maps pipeline sentinel errors to 400 and everything
// else to 500.
func (s *server) writePipelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrMalformedBatch) ||
		errors.Is(err, pipeline.ErrInvalidMapping) ||
		errors.Is(err, pipeline.ErrUnknownStage) {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	s.log.WithError(err).Error("Pipeline operation failed")
	writeJSON(w, http.StatusInternalServerError,
		errorResponse{"internal error"})
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleImportRuns accepts a JSON array of raw run submissions.
func (s *server) handleImportRuns(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"reading request body"})

		return
	}

	result, err := s.pipeline.ImportRuns(r.Context(), payload)
	if err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCountRuns reports the raw run store size.
func (s *server) handleCountRuns(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountRuns(r.Context())
	if err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// handleProcessStage runs one stage processor by name.
func (s *server) handleProcessStage(w http.ResponseWriter, r *http.Request) {
	stage := pipeline.Stage(chi.URLParam(r, "stage"))

	result, err := s.pipeline.RunStage(r.Context(), stage)
	if err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleClassifyGPUs recomputes brand and laptop flags for every GPU row.
func (s *server) handleClassifyGPUs(w http.ResponseWriter, r *http.Request) {
	result, err := s.pipeline.ClassifyGPUs(r.Context())
	if err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleNormalizeAppNames rewrites app-detail names onto canonical names.
func (s *server) handleNormalizeAppNames(
	w http.ResponseWriter, r *http.Request,
) {
	var mapping pipeline.AppNameMapping
	if err := json.NewDecoder(r.Body).Decode(&mapping); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid mapping payload"})

		return
	}

	result, err := s.pipeline.NormalizeAppNames(r.Context(), mapping)
	if err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleMapModels links run details to the model dictionary.
func (s *server) handleMapModels(w http.ResponseWriter, r *http.Request) {
	result, err := s.pipeline.MapModels(r.Context())
	if err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

// modelMapEntry is one dictionary row in a seeding request.
type modelMapEntry struct {
	ModelName string  `json:"model_name"`
	BaseModel *string `json:"base_model,omitempty"`
}

// handleCreateModelMaps seeds model dictionary entries.
func (s *server) handleCreateModelMaps(
	w http.ResponseWriter, r *http.Request,
) {
	var entries []modelMapEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid model map payload"})

		return
	}

	rows := make([]*store.ModelMap, 0, len(entries))

	for _, entry := range entries {
		if entry.ModelName == "" {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"model_name is required"})

			return
		}

		rows = append(rows, &store.ModelMap{
			ModelName: entry.ModelName,
			BaseModel: entry.BaseModel,
		})
	}

	if err := s.store.CreateModelMaps(r.Context(), rows); err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"created_count": len(rows)})
}

// gpuBaseEntry is one canonical GPU in a seeding request.
type gpuBaseEntry struct {
	Name  string `json:"name"`
	Brand string `json:"brand,omitempty"`
}

// handleCreateGPUBase seeds a canonical GPU entry.
func (s *server) handleCreateGPUBase(w http.ResponseWriter, r *http.Request) {
	var entry gpuBaseEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid gpu base payload"})

		return
	}

	if entry.Name == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"name is required"})

		return
	}

	base := &store.GPUBase{
		Name:  entry.Name,
		Brand: store.Brand(entry.Brand),
	}

	if err := s.store.CreateGPUBase(r.Context(), base); err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]uint{"id": base.ID})
}

// gpuMapEntry links an observed device name to a canonical GPU.
type gpuMapEntry struct {
	GPUName   string `json:"gpu_name"`
	BaseGPUID uint   `json:"base_gpu_id"`
}

// handleCreateGPUMap seeds a device-name to canonical-GPU mapping.
func (s *server) handleCreateGPUMap(w http.ResponseWriter, r *http.Request) {
	var entry gpuMapEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid gpu map payload"})

		return
	}

	if entry.GPUName == "" || entry.BaseGPUID == 0 {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"gpu_name and base_gpu_id are required"})

		return
	}

	m := &store.GPUMap{
		GPUName:   entry.GPUName,
		BaseGPUID: &entry.BaseGPUID,
	}

	if err := s.store.CreateGPUMap(r.Context(), m); err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]uint{"id": m.ID})
}

// handleAnalyzeAppDetails reports identity-field null-ness buckets.
func (s *server) handleAnalyzeAppDetails(
	w http.ResponseWriter, r *http.Request,
) {
	analysis, err := s.pipeline.AnalyzeAppDetails(r.Context())
	if err != nil {
		s.writePipelineError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, analysis)
}
