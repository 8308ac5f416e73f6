package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/sports-support-rag/internal/config"
	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
	"github.com/kirillkom/sports-support-rag/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxUploadBytes  = 32 << 20
	maxJSONBodySize = 1 << 20
)

type Dependencies struct {
	Resolver  ports.QueryResolver
	Optimizer ports.QueryOptimizer
	QA        ports.QAAdministration
	Ingestor  ports.DocumentIngestor
	Documents ports.DocumentReader
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	cfg  config.Config
	deps Dependencies
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	return &Router{cfg: cfg, deps: deps}
}

// Handler wires the routes behind the middleware chain, outermost first:
// request id, access log, metrics, CORS, rate limit, backpressure, validation.
func (rt *Router) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.deps.Metrics != nil {
		mux.Handle("GET /metrics", rt.deps.Metrics.Handler())
	}
	mux.HandleFunc("POST /v1/query", rt.resolveQuery)
	mux.HandleFunc("POST /v1/query/batch", rt.resolveBatch)
	mux.HandleFunc("POST /v1/qa", rt.addQAPair)
	mux.HandleFunc("GET /v1/hot-queries", rt.hotQueries)
	mux.HandleFunc("GET /v1/status", rt.status)
	mux.HandleFunc("POST /v1/optimize", rt.optimize)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)

	var handler http.Handler = mux
	if rt.cfg.APIRequestValidation {
		validate, err := newRequestValidator(openAPIDocument)
		if err != nil {
			return nil, err
		}
		handler = validate(handler)
	}
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 100*time.Millisecond)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	handler = corsMiddleware(handler, rt.cfg.CORSAllowedOrigins)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func (q queryRequest) toDomain() domain.ResolutionRequest {
	return domain.ResolutionRequest{Query: q.Query, UserID: q.UserID, SessionID: q.SessionID}
}

func (rt *Router) resolveQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := rt.deps.Resolver.Resolve(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, res, "查询处理成功")
}

func (rt *Router) resolveBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []queryRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	batch := make([]domain.ResolutionRequest, 0, len(reqs))
	for _, q := range reqs {
		batch = append(batch, q.toDomain())
	}
	results, err := rt.deps.Resolver.ResolveBatch(r.Context(), batch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"results": results}, fmt.Sprintf("批量查询完成，共处理%d个查询", len(results)))
}

func (rt *Router) addQAPair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Category string `json:"category"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := rt.deps.QA.AddQAPair(r.Context(), req.Question, req.Answer, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, pair, "问答对添加成功")
}

func (rt *Router) hotQueries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "hot queries", err))
			return
		}
		limit = n
	}
	hot, err := rt.deps.QA.HotQueries(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"hot_queries": hot}, "热门查询获取成功")
}

func (rt *Router) status(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, rt.deps.QA.Status(r.Context()), "系统状态获取成功")
}

func (rt *Router) optimize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    string `json:"query"`
		Strategy string `json:"strategy"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	strategy := domain.Strategy(strings.ToLower(strings.TrimSpace(req.Strategy)))
	if strategy == "" {
		strategy = domain.StrategyAuto
	}
	result, err := rt.deps.Optimizer.Optimize(r.Context(), req.Query, strategy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, result, "查询优化完成")
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	doc, err := rt.deps.Ingestor.Upload(r.Context(), domain.UploadRequest{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Title:    r.FormValue("title"),
		Category: r.FormValue("category"),
	}, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusAccepted, doc, "文档已接收，等待处理")
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "get document", errors.New("document id is required")))
		return
	}
	doc, err := rt.deps.Documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, doc, "")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodySize))
	if err := dec.Decode(dst); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("invalid json")))
		return false
	}
	return true
}

func writeOK(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, mapErrorToHTTPStatus(err), err)
}

func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "status", status, "error", err)
	}
	writeJSON(w, status, envelope{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
