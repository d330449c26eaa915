package httpserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/storefront/internal/domain"
	"github.com/phenrril/storefront/internal/usecase"
)

func reservationJSON(res *domain.Reservation) map[string]any {
	return map[string]any{
		"id":         res.ID,
		"product_id": res.ProductID,
		"variant_id": res.VariantID,
		"quantity":   res.Quantity,
		"status":     res.Status,
		"expires_at": res.ExpiresAt,
	}
}

func (s *Server) apiReserve(w http.ResponseWriter, r *http.Request) {
	id := s.identity(r)
	if perm := s.cart.ValidateCartPermissions(r.Context(), id, usecase.CartOpModify); !perm.Allowed {
		writeError(w, r, perm.Err)
		return
	}
	var req struct {
		ProductID  uuid.UUID  `json:"product_id"`
		VariantID  *uuid.UUID `json:"variant_id"`
		Quantity   int        `json:"quantity"`
		TTLSeconds int        `json:"ttl_seconds"`
	}
	if err := decodeJSON(r, 4<<10, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "json"})
		return
	}
	res, err := s.reservations.Reserve(r.Context(), usecase.ReserveInput{
		Holder:    holderFor(id),
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationJSON(res))
}

func (s *Server) apiReservationExtend(w http.ResponseWriter, r *http.Request) {
	rid, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation id"})
		return
	}
	var req struct {
		TTLSeconds int `json:"ttl_seconds"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, 1<<10, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "json"})
			return
		}
	}
	res, err := s.reservations.Extend(r.Context(), rid, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationJSON(res))
}

func (s *Server) apiReservationRelease(w http.ResponseWriter, r *http.Request) {
	rid, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation id"})
		return
	}
	if err := s.reservations.Release(r.Context(), rid); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiReservationFulfill(w http.ResponseWriter, r *http.Request) {
	rid, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation id"})
		return
	}
	if err := s.reservations.Fulfill(r.Context(), rid); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": rid, "status": domain.ReservationFulfilled})
}
