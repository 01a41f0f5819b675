// Package http exposes the writer and projector HTTP APIs.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/metrics"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/projector"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/service"
)

const maxBodyBytes = 1 << 20

// RouteRegistrar adds routes to a mux.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// NewRouter mounts the given handlers plus /metrics and wraps them in the
// shared middleware chain.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, handlers ...RouteRegistrar) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	for _, h := range handlers {
		h.RegisterRoutes(mux)
	}
	mux.Handle("GET /metrics", m.Handler())
	return EnableCORS(WithRequestID(WithLogging(logger, m, mux)))
}

// WriterHandler serves the catalog writer.
type WriterHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewWriterHandler(catalog *service.CatalogService, logger *slog.Logger) *WriterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WriterHandler{catalog: catalog, logger: logger}
}

func (h *WriterHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/products", h.handleCreateProduct)
	mux.HandleFunc("GET /api/products", h.handleGetProducts)
}

func (h *WriterHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	// Server-owned fields in the body (id, timestamps) are ignored.
	var in entity.ProductInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		var pubErr *service.PublishError
		switch {
		case errors.Is(err, entity.ErrInvalidProduct):
			WriteJSONError(w, http.StatusBadRequest, "invalid product", err.Error())
		case errors.As(err, &pubErr):
			h.logger.Error("Product stored but event not published",
				"product_id", pubErr.Product.ID,
				"request_id", RequestIDFromContext(r.Context()),
				"err", pubErr.Err)
			WriteJSONError(w, http.StatusInternalServerError, service.ErrPublishFailed.Error(), "")
		default:
			h.logger.Error("Failed to create product", "request_id", RequestIDFromContext(r.Context()), "err", err)
			WriteJSONError(w, http.StatusInternalServerError, "failed to create product", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *WriterHandler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	writeProducts(w, r, h.logger, products, err)
}

// Health reports the projector's lifecycle state.
type Health interface {
	State() projector.State
}

// ProjectorHandler serves the order-side projection.
type ProjectorHandler struct {
	projection *service.ProjectionService
	health     Health
	logger     *slog.Logger
}

func NewProjectorHandler(projection *service.ProjectionService, health Health, logger *slog.Logger) *ProjectorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectorHandler{projection: projection, health: health, logger: logger}
}

func (h *ProjectorHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.handleGetProducts)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *ProjectorHandler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.projection.ListProducts(r.Context())
	writeProducts(w, r, h.logger, products, err)
}

func (h *ProjectorHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := h.health.State()
	status := http.StatusOK
	if state != projector.StateRunning {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"subscriber": state.String()})
}

func writeProducts(w http.ResponseWriter, r *http.Request, logger *slog.Logger, products []entity.Product, err error) {
	if err != nil {
		logger.Error("Failed to get products", "request_id", RequestIDFromContext(r.Context()), "err", err)
		WriteJSONError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	if products == nil {
		products = []entity.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}
