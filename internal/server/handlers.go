package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/katayori/internal/config"
	"github.com/hyperjump/katayori/internal/models"
	"github.com/hyperjump/katayori/internal/seat"
)

type scanRequest struct {
	Path  string `json:"path"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "path not found")
		return
	}
	s.logger.Debug("scan request", zap.String("path", abs))

	var n int
	if info.IsDir() {
		n, err = s.scanner.ScanDirectory(r.Context(), abs, req.Limit)
	} else {
		n, err = s.scanner.ScanFile(r.Context(), abs)
	}
	if err != nil {
		s.logger.Error("scan failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"path": abs, "records": n})
}

func (s *Server) handleRunExperiment(w http.ResponseWriter, r *http.Request) {
	var req models.ExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("experiment request",
		zap.Int("top_k", req.TopK),
		zap.Int("n_samples", req.NSamples),
		zap.Bool("parametric", req.Parametric))
	exp, err := s.experimenter.Run(r.Context(), &req)
	if err != nil {
		s.logger.Error("experiment failed", zap.Error(err))
		if errors.Is(err, seat.ErrDegenerate) || errors.Is(err, seat.ErrZeroStandardError) {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)
	exps, err := s.storage.ListExperiments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list experiments failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if exps == nil {
		exps = []*models.Experiment{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"experiments": exps})
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exp, err := s.storage.GetExperiment(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "experiment not found")
		return
	}
	s.respondJSON(w, http.StatusOK, exp)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	minCount := queryInt(r, "min_occurrences", s.cfg.NLP.MinOccurrences)
	stats, err := s.storage.EntityStats(r.Context(), minCount)
	if err != nil {
		s.logger.Error("entity stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stats == nil {
		stats = []models.EntityStat{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"entities": stats})
}

type entityContext struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func (s *Server) handleEntityContexts(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := queryInt(r, "limit", 20)
	hits, err := s.contexts.Contexts(r.Context(), name, limit)
	if err != nil {
		s.logger.Error("context search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]entityContext, 0, len(hits))
	for _, hit := range hits {
		rec, err := s.storage.GetRecord(r.Context(), hit.ID)
		if err != nil {
			// Index and storage can briefly disagree during a rescan.
			continue
		}
		out = append(out, entityContext{
			ID:      rec.ID,
			Source:  rec.Source,
			Content: rec.Content,
			Score:   hit.Score,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"name": name, "contexts": out})
}

func (s *Server) handleCorpusDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type directoryAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleCorpusDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req directoryAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("corpus add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("corpus add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistCorpusDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleCorpusDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("corpus remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("corpus remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistCorpusDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistCorpusDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	s.cfg.Corpus.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.cfg)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist corpus config", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordCount, err := s.storage.CountRecords(ctx)
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	obsCount, err := s.storage.CountObservations(ctx)
	if err != nil {
		s.logger.Error("status: count observations failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	indexed, err := s.contexts.DocCount()
	if err != nil {
		s.logger.Error("status: context doc count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"records":      recordCount,
		"observations": obsCount,
		"indexed":      indexed,
		"config": map[string]interface{}{
			"encoder":              s.cfg.Embedding.Kind,
			"embedding_dimensions": s.cfg.Embedding.Dimensions,
			"min_occurrences":      s.cfg.NLP.MinOccurrences,
			"top_k":                s.cfg.Experiment.TopK,
			"n_samples":            s.cfg.Experiment.NSamples,
			"database_path":        s.cfg.Storage.DatabasePath,
			"bleve_index_path":     s.cfg.Storage.BleveIndexPath,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
