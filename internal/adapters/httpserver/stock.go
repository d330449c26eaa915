package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/phenrril/storefront/internal/adapters/report"
	"github.com/phenrril/storefront/internal/domain"
)

const maxBulkIDs = 200

func (s *Server) apiProductStock(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}
	vid, err := optionalUUID(r.URL.Query().Get("variant_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid variant id"})
		return
	}
	p, err := s.products.GetByID(r.Context(), pid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var v *domain.Variant
	if vid != nil {
		for i := range p.Variants {
			if p.Variants[i].ID == *vid {
				v = &p.Variants[i]
				break
			}
		}
		if v == nil {
			writeError(w, r, domain.ErrNotFound)
			return
		}
	}
	d := s.inventory.DisplayStock(p, v)
	resp := map[string]any{
		"product_id":    p.ID,
		"variant_id":    vid,
		"has_stock":     s.inventory.HasStock(p),
		"quantity":      d.Quantity,
		"status":        d.Status,
		"human_message": d.Message,
	}
	if q := r.URL.Query().Get("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
			return
		}
		resp["quantity_check"] = s.inventory.ValidateQuantity(p, n, v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// apiProductPrice resolves the unit price by variant id or by an options
// object passed as JSON in the "options" query parameter.
func (s *Server) apiProductPrice(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}
	vid, err := optionalUUID(r.URL.Query().Get("variant_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid variant id"})
		return
	}
	var sel domain.Options
	if raw := r.URL.Query().Get("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sel); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "options must be a JSON object"})
			return
		}
	}
	q, err := s.products.GetPriceForVariant(r.Context(), pid, vid, sel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id":   pid,
		"variant_id":   q.VariantID,
		"price":        q.Price.StringFixed(2),
		"price_cents":  q.PriceCents,
		"has_override": q.HasOverride,
	})
}

func (s *Server) apiBulkStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductIDs []uuid.UUID `json:"product_ids"`
	}
	if err := decodeJSON(r, 16<<10, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "json"})
		return
	}
	if len(req.ProductIDs) > maxBulkIDs {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "too many products"})
		return
	}
	products := make([]domain.Product, 0, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		p, err := s.products.GetByID(r.Context(), id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		products = append(products, *p)
	}
	out, err := s.inventory.BulkCheckStock(r.Context(), products)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": out})
}

func (s *Server) apiStockReport(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	rows, err := s.inventory.StockReport(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := report.StockXLSX(rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := "stock-" + time.Now().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

// apiStockImport applies a restock sheet uploaded as the "file" form field.
// Rows are applied one by one; failures are reported without stopping.
func (s *Server) apiStockImport(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart"})
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file"})
		return
	}
	lines, problems, err := report.ParseRestock(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "xlsx: " + err.Error()})
		return
	}
	applied := 0
	for _, l := range lines {
		if err := s.products.Restock(r.Context(), l.ProductID, l.VariantID, l.Quantity); err != nil {
			problems = append(problems, "row "+strconv.Itoa(l.Row)+": "+err.Error())
			continue
		}
		applied++
	}
	zerolog.Ctx(r.Context()).Info().Int("applied", applied).Int("problems", len(problems)).Msg("restock import")
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "problems": problems})
}
