// Package httpd mounts one MCP Streamable HTTP endpoint per product under a
// single HTTP server, plus a health endpoint and a human-readable manifest.
// Session creation, the mcp-session-id handshake, and idle-session eviction
// are delegated to the MCP SDK's StreamableHTTPHandler; this package adds
// per-product routing, request-context propagation, CORS, and lifecycle.
package httpd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docbridge/mcp-docs/pkg/productconfig"
	"github.com/docbridge/mcp-docs/pkg/reqcontext"
)

// DefaultSessionTimeout is the idle duration after which the SDK evicts a
// session; matches the 30-minute sweep window.
const DefaultSessionTimeout = 30 * time.Minute

// Product is one mounted MCP endpoint: its resolved configuration and a
// per-session server constructor.
type Product struct {
	Resolved  *productconfig.Resolved
	GetServer func(*http.Request) *mcp.Server
}

type mountedProduct struct {
	product *Product
	handler http.Handler
}

// productRegistry is a concurrency-safe id-to-product map: one write per
// Mount call at startup, concurrent reads per inbound request thereafter.
type productRegistry struct {
	mu    sync.RWMutex
	items map[string]*mountedProduct
}

func newProductRegistry() *productRegistry {
	return &productRegistry{items: make(map[string]*mountedProduct)}
}

func (r *productRegistry) Register(id string, mp *mountedProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[id]; exists {
		return fmt.Errorf("product %q already mounted", id)
	}
	r.items[id] = mp
	return nil
}

func (r *productRegistry) Get(id string) (*mountedProduct, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mp, ok := r.items[id]
	return mp, ok
}

func (r *productRegistry) List() []*mountedProduct {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*mountedProduct, 0, len(r.items))
	for _, mp := range r.items {
		out = append(out, mp)
	}
	return out
}

// Config configures the HTTP server.
type Config struct {
	Addr           string
	Version        string
	SessionTimeout time.Duration
	Log            *slog.Logger
}

// Server dispatches /mcp/{product_id} to per-product MCP handlers, and
// serves /health and / alongside them.
type Server struct {
	addr           string
	version        string
	sessionTimeout time.Duration
	log            *slog.Logger

	products *productRegistry

	httpSrv *http.Server
}

// New constructs a Server. Call Mount for each product before Start.
func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}

	return &Server{
		addr:           cfg.Addr,
		version:        cfg.Version,
		sessionTimeout: timeout,
		log:            cfg.Log,
		products:       newProductRegistry(),
	}
}

// Mount registers one product's MCP endpoint at /mcp/{product_id}.
func (s *Server) Mount(p *Product) error {
	id := p.Resolved.Product.ID

	inner := mcp.NewStreamableHTTPHandler(p.GetServer, &mcp.StreamableHTTPOptions{
		SessionTimeout: s.sessionTimeout,
		Logger:         s.log,
	})

	mp := &mountedProduct{product: p, handler: s.requestContextMiddleware(id, inner)}
	return s.products.Register(id, mp)
}

// requestContextMiddleware attaches a reqcontext.RequestContext (product,
// session, request id, client info/IP) to each request before it reaches
// the MCP transport, and logs the dispatch at debug level. It deliberately
// does not buffer or replace the ResponseWriter so the underlying
// StreamableHTTP transport's chunked/SSE responses keep flushing.
func (s *Server) requestContextMiddleware(productID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rc := &reqcontext.RequestContext{
			Product:    productID,
			SessionID:  r.Header.Get("Mcp-Session-Id"),
			RequestID:  generateRequestID(),
			ClientInfo: r.Header.Get("User-Agent"),
			ClientIP:   clientIP(r),
		}
		ctx := reqcontext.WithRequestContext(r.Context(), rc)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.log.Debug("mcp http dispatch",
			"product", productID,
			"method", r.Method,
			"status", rec.status,
			"request_id", rc.RequestID,
			"session_id", rc.SessionID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// statusRecorder captures the response status for logging without
// buffering the body, preserving http.Flusher for streaming responses.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// router builds the chi mux: /mcp/{productID}, /health, and /.
func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Handle("/mcp/{productID}", s.dispatchProduct())
	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)

	return r
}

func (s *Server) dispatchProduct() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "productID")
		mp, ok := s.products.Get(id)
		if !ok {
			writeJSONRPCError(w, http.StatusNotFound, fmt.Sprintf("unknown product %q", id))
			return
		}
		mp.handler.ServeHTTP(w, r)
	}
}

func writeJSONRPCError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    -32001,
			"message": message,
		},
	})
}

// productInfo is the shape shared by /health and the / manifest.
type productInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Lang       string `json:"lang"`
	Collection string `json:"collection"`
	Endpoint   string `json:"endpoint"`
}

func (s *Server) listProducts() []productInfo {
	mounted := s.products.List()
	infos := make([]productInfo, 0, len(mounted))
	for _, mp := range mounted {
		infos = append(infos, productInfo{
			ID:         mp.product.Resolved.Product.ID,
			Name:       mp.product.Resolved.Product.Name,
			Lang:       mp.product.Resolved.Variant.Lang,
			Collection: mp.product.Resolved.Collection,
			Endpoint:   "/mcp/" + mp.product.Resolved.Product.ID,
		})
	}
	return infos
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(buildHealthPayload(s.listProducts(), s.version, time.Now()))
}

func buildHealthPayload(products []productInfo, version string, now time.Time) map[string]any {
	return map[string]any{
		"status":    "ok",
		"version":   version,
		"products":  products,
		"timestamp": now.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(buildManifestMarkdown(s.listProducts(), s.version)))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(buildHealthPayload(s.listProducts(), s.version, time.Now()))
}

func buildManifestMarkdown(products []productInfo, version string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# docbridge MCP service (%s)\n\n", version)
	if len(products) == 0 {
		b.WriteString("No products are currently mounted.\n")
		return b.String()
	}
	b.WriteString("| Product | Language | Endpoint |\n|---|---|---|\n")
	for _, p := range products {
		fmt.Fprintf(&b, "| %s | %s | `%s` |\n", p.Name, p.Lang, p.Endpoint)
	}
	b.WriteString("\n## Sample client configuration\n\n")
	for _, p := range products {
		fmt.Fprintf(&b, "```json\n{\n  \"mcpServers\": {\n    \"%s\": {\n      \"url\": \"%s\"\n    }\n  }\n}\n```\n\n", p.ID, p.Endpoint)
	}
	return b.String()
}

// corsMiddleware allows all origins and exposes mcp-session-id, per the
// service manifest's cross-origin MCP client requirement.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start runs the HTTP server until ctx is canceled, then shuts it down.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      corsMiddleware(s.router()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info("httpd starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the HTTP server, waiting at most 5 seconds for
// in-flight requests. The SDK's own session sweeper is not blocked by this.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	s.log.Info("httpd shutting down")
	return s.httpSrv.Shutdown(shutdownCtx)
}
