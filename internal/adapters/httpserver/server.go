package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/storefront/internal/domain"
	"github.com/phenrril/storefront/internal/usecase"
)

// PaymentLookup resolves provider notifications back to orders.
type PaymentLookup interface {
	PaymentInfo(ctx context.Context, paymentID string) (domain.PaymentStatus, string, error)
	VerifyExternalRef(ext string) (string, bool)
}

type Deps struct {
	Products     *usecase.ProductUC
	Inventory    *usecase.InventoryUC
	Cart         *usecase.CartUC
	Orders       *usecase.OrderUC
	Reservations *usecase.ReservationUC
	Carts        domain.CartStore
	Payments     PaymentLookup

	// AdminToken guards the stock import and report routes. Empty disables them.
	AdminToken    string
	SecureCookies bool
	// TrustProxy honours X-Forwarded-For. Enable only behind a proxy that
	// overwrites or appends to it.
	TrustProxy    bool
}

type Server struct {
	mux          *http.ServeMux
	products     *usecase.ProductUC
	inventory    *usecase.InventoryUC
	cart         *usecase.CartUC
	orders       *usecase.OrderUC
	reservations *usecase.ReservationUC
	carts        domain.CartStore
	payments     PaymentLookup

	adminToken    string
	secureCookies bool
	trustProxy    bool
}

func New(d Deps) http.Handler {
	s := &Server{
		mux:           http.NewServeMux(),
		products:      d.Products,
		inventory:     d.Inventory,
		cart:          d.Cart,
		orders:        d.Orders,
		reservations:  d.Reservations,
		carts:         d.Carts,
		payments:      d.Payments,
		adminToken:    d.AdminToken,
		secureCookies: d.SecureCookies,
		trustProxy:    d.TrustProxy,
	}
	s.routes()
	return Chain(s.mux,
		RequestID,
		Logging,
		Recovery,
	)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/products/{id}/stock", s.apiProductStock)
	s.mux.HandleFunc("GET /api/products/{id}/price", s.apiProductPrice)
	s.mux.HandleFunc("POST /api/stock/bulk", s.apiBulkStock)
	s.mux.HandleFunc("GET /api/stock/report.xlsx", s.apiStockReport)
	s.mux.HandleFunc("POST /api/stock/import", s.apiStockImport)

	s.mux.HandleFunc("GET /cart", s.handleCart)
	s.mux.HandleFunc("POST /cart/items", s.handleCartAdd)
	s.mux.HandleFunc("DELETE /cart/items/{key}", s.handleCartRemove)
	s.mux.HandleFunc("POST /api/cart/validate", s.apiCartValidate)
	s.mux.HandleFunc("POST /api/checkout", s.apiCheckout)

	s.mux.HandleFunc("POST /api/reservations", s.apiReserve)
	s.mux.HandleFunc("POST /api/reservations/{id}/extend", s.apiReservationExtend)
	s.mux.HandleFunc("DELETE /api/reservations/{id}", s.apiReservationRelease)
	s.mux.HandleFunc("POST /api/reservations/{id}/fulfill", s.apiReservationFulfill)

	s.mux.HandleFunc("POST /webhooks/mp", s.webhookMP)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps usecase and domain errors onto status codes. Anything
// unrecognised is logged and reported as a 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rejected  *usecase.CartRejectedError
		short     *domain.InsufficientStockError
		payErr    *domain.PaymentError
		integrity *domain.IntegrityError
		txErr     *domain.TransactionError
		verr      domain.ValidationError
	)
	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "cart is invalid",
			"validation": rejected.Result,
			"errors":     rejected.Result.Errors(),
		})
	case errors.As(err, &short):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      short.Error(),
			"product_id": short.ProductID,
			"variant_id": short.VariantID,
			"requested":  short.Requested,
			"available":  short.Available,
		})
	case errors.As(err, &payErr):
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":    "payment failed",
			"reason":   payErr.Reason,
			"order_id": payErr.OrderID,
		})
	case errors.As(err, &integrity):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": integrity.Error()})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required to place orders"})
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests. Please try again later."})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrDuplicateVariant):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrCartInvalid):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.As(err, &txErr):
		zerolog.Ctx(r.Context()).Error().Err(err).Str("stage", txErr.Stage).Msg("order transaction")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "order could not be completed, please review your cart and retry"})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeJSON(r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	return dec.Decode(v)
}

// identity reads the customer resolved by the upstream auth layer and the
// client address used for anonymous rate limiting.
func (s *Server) identity(r *http.Request) domain.Identity {
	return domain.Identity{
		UserID: strings.TrimSpace(r.Header.Get("X-Customer-ID")),
		IP:     s.clientIP(r),
	}
}

// holderFor names the owner of carts and reservations.
func holderFor(id domain.Identity) string {
	if id.Authenticated() {
		return id.UserID
	}
	return id.LimitKey()
}

// clientIP is the peer address, or the hop the trusted proxy appended to
// X-Forwarded-For. Earlier entries are client supplied and ignored.
func (s *Server) clientIP(r *http.Request) string {
	if s.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			hops := strings.Split(fwd, ",")
			if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	return id, err == nil
}

func optionalUUID(s string) (*uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	tok := r.Header.Get("X-Admin-Token")
	if s.adminToken == "" || subtle.ConstantTimeCompare([]byte(tok), []byte(s.adminToken)) != 1 {
		log.Warn().Str("path", r.URL.Path).Str("ip", s.clientIP(r)).Msg("admin route denied")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return false
	}
	return true
}
