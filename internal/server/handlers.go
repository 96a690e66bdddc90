package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
)

// textDocument is the JSON form of POST /api/v1/documents.
type textDocument struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// handleIngestDocument accepts a multipart upload in field "file", or a JSON
// body with the text of a document.
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var (
		name  string
		added int
		err   error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, formErr := r.FormFile("file")
		if formErr != nil {
			s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
			return
		}
		defer file.Close()
		name = header.Filename
		s.logger.Debug("Ingest upload", zap.String("name", name), zap.Int64("size", header.Size))
		added, err = s.indexer.IngestReader(r.Context(), file, name)
	} else {
		var doc textDocument
		if decodeErr := json.NewDecoder(r.Body).Decode(&doc); decodeErr != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(doc.Text) == "" {
			s.respondError(w, http.StatusBadRequest, "text cannot be empty")
			return
		}
		name = doc.Name
		added, err = s.indexer.IngestText(r.Context(), doc.Text, name)
	}
	if err != nil {
		s.logger.Error("Ingestion failed", zap.String("name", name), zap.Error(err))
		status := http.StatusInternalServerError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, storage.ErrDimensionMismatch):
			status = http.StatusConflict
		case errors.Is(err, indexer.ErrUnreadable):
			status = http.StatusUnprocessableEntity
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, models.IngestResult{Name: name, Added: added, Total: s.store.Len()})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("Chat request", zap.String("query", req.Query))
	s.respondJSON(w, http.StatusOK, s.assistant.Answer(r.Context(), req.Query))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	turns := s.assistant.Memory().All()
	if turns == nil {
		turns = []models.Turn{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"turns": turns,
		"size":  len(turns),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"collection":  s.store.Name(),
		"passages":    s.store.Len(),
		"dimensions":  s.store.Dimensions(),
		"memory_size": s.assistant.Memory().Size(),
	}
	if s.passages != nil {
		if n, err := s.passages.DocCount(); err == nil {
			resp["keyword_passages"] = n
		}
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"embedding_provider": s.config.Embedding.Provider,
			"generator_provider": s.config.Generator.Provider,
			"generator_model":    s.config.Generator.Model,
			"chunk_size":         s.config.Chunking.ChunkSize,
			"chunk_overlap":      s.config.Chunking.ChunkOverlap,
			"top_k":              s.config.Retrieval.TopK,
			"history_window":     s.config.Retrieval.HistoryWindow,
			"database_path":      s.config.Storage.DatabasePath(),
		}
		dbPath := s.config.Storage.DatabasePath()
		if diskBytes, err := storage.DiskUsageBytes(dbPath, dbPath+"-wal", dbPath+"-shm", s.config.Storage.KeywordIndexPath()); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handlePassages looks up stored passages: ?q=term&limit=10&fuzzy=true.
// mode=hybrid blends keyword and semantic relevance, weighted by
// keyword_weight and semantic_weight. In the default keyword mode an empty
// result carries a spelling suggestion when one exists.
func (s *Server) handlePassages(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := strings.TrimSpace(params.Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit := 10
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	fuzzy, _ := strconv.ParseBool(params.Get("fuzzy"))

	switch mode := params.Get("mode"); mode {
	case "hybrid":
		s.hybridPassages(w, r, &search.Query{Text: q, Limit: limit, Fuzzy: fuzzy})
		return
	case "", "keyword":
	default:
		s.respondError(w, http.StatusBadRequest, "unknown mode: "+mode)
		return
	}

	if s.passages == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword index not enabled")
		return
	}
	hits, err := s.passages.Search(r.Context(), q, limit, &keyword.SearchOptions{Fuzzy: fuzzy})
	if err != nil {
		s.logger.Error("Passage search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []*models.PassageHit{}
	}
	resp := map[string]interface{}{"query": q, "hits": hits}
	if len(hits) == 0 && s.speller != nil {
		if corrected, ok := s.speller.Correct(q); ok {
			resp["suggestion"] = corrected
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) hybridPassages(w http.ResponseWriter, r *http.Request, query *search.Query) {
	for name, dst := range map[string]*float64{
		"keyword_weight":  &query.KeywordWeight,
		"semantic_weight": &query.SemanticWeight,
	} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, name+" must be a number")
			return
		}
		*dst = f
	}
	if err := search.ProcessQuery(query); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.search.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("Hybrid passage search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": query.Text, "hits": results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
