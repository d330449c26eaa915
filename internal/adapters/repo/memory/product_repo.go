package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/storefront/internal/domain"
)

type productRepo struct {
	s  *Store
	tx bool
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var out *domain.Product
	err := r.s.locked(r.tx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		p.Variants = variantsOf(st, id, false)
		out = &p
		return nil
	})
	return out, err
}

func (r *productRepo) FindVariant(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	var out *domain.Variant
	err := r.s.locked(r.tx, func(st *state) error {
		v, ok := st.variants[id]
		if !ok {
			return domain.ErrNotFound
		}
		v.Options = v.Options.Clone()
		out = &v
		return nil
	})
	return out, err
}

func (r *productRepo) ListVariants(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error) {
	var out []domain.Variant
	err := r.s.locked(r.tx, func(st *state) error {
		out = variantsOf(st, productID, false)
		return nil
	})
	return out, err
}

func (r *productRepo) ActiveVariantsFor(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]domain.Variant, error) {
	out := map[uuid.UUID][]domain.Variant{}
	err := r.s.locked(r.tx, func(st *state) error {
		for _, id := range productIDs {
			if vs := variantsOf(st, id, true); len(vs) > 0 {
				out[id] = vs
			}
		}
		return nil
	})
	return out, err
}

func (r *productRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	var out []domain.Product
	err := r.s.locked(r.tx, func(st *state) error {
		for _, p := range st.products {
			if f.ActiveOnly && !p.Active {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := int64(len(out))
	if f.PageSize > 0 {
		page := f.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * f.PageSize
		if start > len(out) {
			start = len(out)
		}
		end := start + f.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, err
}

func (r *productRepo) Save(ctx context.Context, p *domain.Product) error {
	return r.s.locked(r.tx, func(st *state) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.StockQuantity < 0 {
			return domain.ErrInsufficientStock
		}
		now := time.Now()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		cp := *p
		cp.Variants = nil
		st.products[p.ID] = cp
		return nil
	})
}

func (r *productRepo) SaveVariant(ctx context.Context, v *domain.Variant) error {
	return r.s.locked(r.tx, func(st *state) error {
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		if v.StockQuantity < 0 {
			return domain.ErrInsufficientStock
		}
		now := time.Now()
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
		if v.IsDefault {
			for id, sib := range st.variants {
				if sib.ProductID == v.ProductID && id != v.ID && sib.IsDefault {
					sib.IsDefault = false
					st.variants[id] = sib
				}
			}
		}
		cp := *v
		cp.Options = v.Options.Clone()
		st.variants[v.ID] = cp
		return nil
	})
}

func (r *productRepo) DecrementProductStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.s.locked(r.tx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		if p.StockQuantity < qty {
			return domain.ErrInsufficientStock
		}
		p.StockQuantity -= qty
		st.products[id] = p
		return nil
	})
}

func (r *productRepo) DecrementVariantStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.s.locked(r.tx, func(st *state) error {
		v, ok := st.variants[id]
		if !ok {
			return domain.ErrNotFound
		}
		if v.StockQuantity < qty {
			return domain.ErrInsufficientStock
		}
		v.StockQuantity -= qty
		st.variants[id] = v
		return nil
	})
}

// LockItem only checks existence; the store already runs one transaction at
// a time.
func (r *productRepo) LockItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) error {
	return r.s.locked(r.tx, func(st *state) error {
		if variantID != nil {
			if _, ok := st.variants[*variantID]; !ok {
				return domain.ErrNotFound
			}
			return nil
		}
		if _, ok := st.products[productID]; !ok {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *productRepo) IncrementProductStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.s.locked(r.tx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		p.StockQuantity += qty
		st.products[id] = p
		return nil
	})
}

func (r *productRepo) IncrementVariantStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.s.locked(r.tx, func(st *state) error {
		v, ok := st.variants[id]
		if !ok {
			return domain.ErrNotFound
		}
		v.StockQuantity += qty
		st.variants[id] = v
		return nil
	})
}

func variantsOf(st *state, productID uuid.UUID, activeOnly bool) []domain.Variant {
	out := []domain.Variant{}
	for _, v := range st.variants {
		if v.ProductID != productID || (activeOnly && !v.IsActive) {
			continue
		}
		v.Options = v.Options.Clone()
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
