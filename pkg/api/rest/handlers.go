package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/vectorlite/vectorlite"
	"github.com/vectorlite/vectorlite/internal/verrors"
	"github.com/vectorlite/vectorlite/pkg/search"
)

// Handler serves the REST surface directly over a vectorlite.DB —
// there is no separate gRPC hop, just the library contract.
type Handler struct {
	db *vectorlite.DB
}

// NewHandler creates a new REST API handler
func NewHandler(db *vectorlite.DB) *Handler {
	return &Handler{db: db}
}

// HealthCheck handles GET /v1/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "ok"}, http.StatusOK)
}

// GetStats handles GET /v1/stats and GET /v1/stats/{collection}
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/stats")
	coll := strings.TrimPrefix(path, "/")

	all := h.db.Stats()
	if coll == "" {
		writeJSON(w, all, http.StatusOK)
		return
	}
	stats, ok := all[coll]
	if !ok {
		writeError(w, fmt.Sprintf("collection %q not found", coll), http.StatusNotFound)
		return
	}
	writeJSON(w, stats, http.StatusOK)
}

// createCollectionRequest is the body of POST /v1/collections
type createCollectionRequest struct {
	Name   string `json:"name"`
	Dim    int    `json:"dim"`
	Metric string `json:"metric"`
}

// CreateCollection handles POST /v1/collections
func (h *Handler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	metric, err := parseMetric(req.Metric)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := vectorlite.DefaultConfig(req.Dim, metric)
	if err := h.db.CreateCollection(req.Name, cfg); err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, map[string]interface{}{"name": req.Name}, http.StatusCreated)
}

// ListCollections handles GET /v1/collections
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{"collections": h.db.ListCollections()}, http.StatusOK)
}

// DropCollection handles DELETE /v1/collections/{name}
func (h *Handler) DropCollection(w http.ResponseWriter, r *http.Request, coll string) {
	if r.Method != http.MethodDelete {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.db.DropCollection(coll); err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// insertRequest is the body of POST /v1/collections/{name}/vectors
type insertRequest struct {
	ID       string                 `json:"id"`
	Vector   []float32              `json:"vector"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Upsert   bool                   `json:"upsert,omitempty"`
}

// Insert handles POST /v1/collections/{name}/vectors
func (h *Handler) Insert(w http.ResponseWriter, r *http.Request, coll string) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	meta, err := encodeMetadata(req.Metadata)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Upsert {
		err = h.db.Upsert(coll, req.ID, req.Vector, meta)
	} else {
		err = h.db.Insert(coll, req.ID, req.Vector, meta)
	}
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, map[string]interface{}{"id": req.ID}, http.StatusCreated)
}

// Get handles GET /v1/collections/{name}/vectors/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, coll, id string) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rec, err := h.db.Get(coll, id)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, recordJSON(rec), http.StatusOK)
}

// Delete handles DELETE /v1/collections/{name}/vectors/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, coll, id string) {
	if r.Method != http.MethodDelete {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ok, err := h.db.Delete(coll, id)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	if !ok {
		writeError(w, fmt.Sprintf("id %q not found", id), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// searchRequest is the body of POST /v1/collections/{name}/search
type searchRequest struct {
	Vector       []float32   `json:"vector"`
	K            int         `json:"k"`
	EfSearch     int         `json:"ef_search,omitempty"`
	RerankFactor int         `json:"rerank_factor,omitempty"`
	Filter       *filterSpec `json:"filter,omitempty"`
}

// filterSpec is the JSON shape of a single equality/range/exists
// predicate, matching pkg/search's trimmed Filter vocabulary.
type filterSpec struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value,omitempty"`
	Min   interface{} `json:"min,omitempty"`
	Max   interface{} `json:"max,omitempty"`
}

func (fs *filterSpec) build() (search.Filter, error) {
	switch search.FilterOperator(fs.Op) {
	case search.OpEquals:
		return search.Eq(fs.Field, fs.Value), nil
	case search.OpNotEquals:
		return search.Ne(fs.Field, fs.Value), nil
	case search.OpGreaterThan:
		return search.Gt(fs.Field, fs.Value), nil
	case search.OpLessThan:
		return search.Lt(fs.Field, fs.Value), nil
	case search.OpGreaterOrEq:
		return search.Gte(fs.Field, fs.Value), nil
	case search.OpLessOrEq:
		return search.Lte(fs.Field, fs.Value), nil
	case search.OpRange:
		return search.Range(fs.Field, fs.Min, fs.Max), nil
	case search.OpExists:
		return search.Exists(fs.Field), nil
	default:
		return nil, fmt.Errorf("unknown filter op %q", fs.Op)
	}
}

// Search handles POST /v1/collections/{name}/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request, coll string) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	opts := vectorlite.SearchOptions{
		EfSearch:     req.EfSearch,
		RerankFactor: req.RerankFactor,
	}
	if req.Filter != nil {
		f, err := req.Filter.build()
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Filter = f
	}

	hits, err := h.db.Search(coll, req.Vector, req.K, opts)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	out := make([]map[string]interface{}, len(hits))
	for i, hit := range hits {
		var meta map[string]interface{}
		if len(hit.Metadata) > 0 {
			_ = json.Unmarshal(hit.Metadata, &meta)
		}
		out[i] = map[string]interface{}{
			"id":       hit.ExternalID,
			"score":    hit.Score,
			"metadata": meta,
		}
	}
	writeJSON(w, map[string]interface{}{"hits": out}, http.StatusOK)
}

// recordJSON converts a stored record into its wire shape.
func recordJSON(rec vectorlite.Record) map[string]interface{} {
	var meta map[string]interface{}
	if len(rec.Metadata) > 0 {
		_ = json.Unmarshal(rec.Metadata, &meta)
	}
	return map[string]interface{}{
		"id":       rec.ExternalID,
		"vector":   rec.Vector,
		"metadata": meta,
	}
}

func encodeMetadata(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func parseMetric(name string) (vectorlite.Metric, error) {
	switch strings.ToLower(name) {
	case "", "cosine":
		return vectorlite.Cosine, nil
	case "l2", "euclidean":
		return vectorlite.L2, nil
	case "dot":
		return vectorlite.Dot, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// statusForError maps the core's sentinel errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, verrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, verrors.ErrAlreadyExists), errors.Is(err, verrors.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, verrors.ErrDimMismatch), errors.Is(err, verrors.ErrInvalidConfig), errors.Is(err, verrors.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}

// ServeDocs serves the OpenAPI/Swagger documentation
func ServeDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	content, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		writeError(w, "OpenAPI spec not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// ServeSwaggerUI serves the Swagger UI HTML page
func ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	html := `<!DOCTYPE html>
<html>
<head>
    <title>vectorlite API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: "/docs/openapi.yaml",
                dom_id: '#swagger-ui',
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIBundle.SwaggerUIStandalonePreset
                ],
                layout: "BaseLayout"
            });
        };
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// ParseIntQuery parses an integer query parameter
func ParseIntQuery(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}
