package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/storefront/internal/domain"
)

type ProductRepo struct{ db *gorm.DB }

func NewProductRepo(db *gorm.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	if err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) FindVariant(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	var v domain.Variant
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *ProductRepo) ListVariants(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error) {
	var list []domain.Variant
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("created_at asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ActiveVariantsFor loads the active variants of many products in one query.
func (r *ProductRepo) ActiveVariantsFor(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]domain.Variant, error) {
	out := map[uuid.UUID][]domain.Variant{}
	if len(productIDs) == 0 {
		return out, nil
	}
	var list []domain.Variant
	if err := r.db.WithContext(ctx).
		Where("product_id IN ? AND is_active = ?", productIDs, true).
		Order("created_at asc").
		Find(&list).Error; err != nil {
		return nil, err
	}
	for _, v := range list {
		out[v.ProductID] = append(out[v.ProductID], v)
	}
	return out, nil
}

func (r *ProductRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	var list []domain.Product
	q := r.db.WithContext(ctx).Model(&domain.Product{})
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q = q.Order("name asc")
	if f.PageSize > 0 {
		if f.Page <= 0 {
			f.Page = 1
		}
		q = q.Offset((f.Page - 1) * f.PageSize).Limit(f.PageSize)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *ProductRepo) Save(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit("Variants").Save(p).Error
}

// SaveVariant clears the default flag of the siblings in the same transaction
// when v is the new default.
func (r *ProductRepo) SaveVariant(ctx context.Context, v *domain.Variant) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if v.IsDefault {
			if err := tx.Model(&domain.Variant{}).
				Where("product_id = ? AND id <> ? AND is_default = ?", v.ProductID, v.ID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Save(v).Error
	})
}

func (r *ProductRepo) DecrementProductStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.conditionalDecrement(ctx, &domain.Product{}, id, qty)
}

func (r *ProductRepo) DecrementVariantStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.conditionalDecrement(ctx, &domain.Variant{}, id, qty)
}

func (r *ProductRepo) IncrementProductStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.increment(ctx, &domain.Product{}, id, qty)
}

func (r *ProductRepo) IncrementVariantStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.increment(ctx, &domain.Variant{}, id, qty)
}

// LockItem takes a FOR UPDATE lock on the variant row, or the product row for
// simple products, so availability checks on one item run one at a time.
func (r *ProductRepo) LockItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) error {
	q := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Select("id")
	var err error
	if variantID != nil {
		err = q.Take(&domain.Variant{}, "id = ?", *variantID).Error
	} else {
		err = q.Take(&domain.Product{}, "id = ?", productID).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// conditionalDecrement is the only way stock goes down: the WHERE guard and
// the affected row count decide, so concurrent buyers cannot both take the
// last unit.
func (r *ProductRepo) conditionalDecrement(ctx context.Context, model any, id uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND stock_quantity >= ?", id, qty).
		UpdateColumns(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrInsufficientStock
}

func (r *ProductRepo) increment(ctx context.Context, model any, id uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Model(model).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
