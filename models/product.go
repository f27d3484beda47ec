package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/config"
	"github.com/tichatapp/tichat_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Product is a sellable catalog item. StockOnHand is decimal because
// weight-based units (libra, gramo) sell in fractions.
type Product struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:255;not null;index" json:"name" binding:"required"`
	Description  string          `gorm:"type:text" json:"description"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	StockOnHand  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stock_on_hand"`
	Category     string          `gorm:"size:100;default:'General'" json:"category"`
	Unit         string          `gorm:"size:50;default:'unidad'" json:"unit"`
	PhotoUrl     string          `gorm:"size:512" json:"photo_url"`
	ThumbnailUrl string          `gorm:"size:512" json:"thumbnail_url"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	StockOnHand  decimal.Decimal `json:"stock_on_hand"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit"`
	PhotoUrl     string          `json:"photo_url"`
	ThumbnailUrl string          `json:"thumbnail_url"`
}

func (input *NewProduct) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, id); err != nil {
			return err
		}
	}
	if input.UnitPrice.IsNegative() {
		return errors.New("unit price must not be negative")
	}
	if input.StockOnHand.IsNegative() {
		return errors.New("stock on hand must not be negative")
	}
	return nil
}

// applyDefaults fills the category/unit fallbacks used across all intake
// paths when the AI adapter could not suggest anything better.
func (input *NewProduct) applyDefaults() {
	if input.Category == "" {
		input.Category = "General"
	}
	if input.Unit == "" {
		input.Unit = "unidad"
	}
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	input.applyDefaults()

	product := Product{
		Name:         input.Name,
		Description:  input.Description,
		UnitPrice:    input.UnitPrice,
		StockOnHand:  input.StockOnHand,
		Category:     input.Category,
		Unit:         input.Unit,
		PhotoUrl:     input.PhotoUrl,
		ThumbnailUrl: input.ThumbnailUrl,
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	db := config.GetDB()

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	input.applyDefaults()

	var product Product
	if err := db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	product.Name = input.Name
	product.Description = input.Description
	product.UnitPrice = input.UnitPrice
	product.StockOnHand = input.StockOnHand
	product.Category = input.Category
	product.Unit = input.Unit
	if input.PhotoUrl != "" {
		product.PhotoUrl = input.PhotoUrl
	}
	if input.ThumbnailUrl != "" {
		product.ThumbnailUrl = input.ThumbnailUrl
	}

	if err := db.WithContext(ctx).Save(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a catalog item. Sale lines snapshot name and price,
// so historical sales keep rendering after the product is gone.
func DeleteProduct(ctx context.Context, id int) error {
	db := config.GetDB()

	result := db.WithContext(ctx).Delete(&Product{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	db := config.GetDB()

	var product Product
	if err := db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &product, nil
}

// ListProducts returns the catalog, optionally filtered by a name substring
// or category.
func ListProducts(ctx context.Context, name string, category string) ([]*Product, error) {
	db := config.GetDB()

	q := db.WithContext(ctx).Model(&Product{})
	if name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var products []*Product
	if err := q.Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// LowStockProducts returns items with stock_on_hand <= threshold, lowest first.
func LowStockProducts(ctx context.Context, threshold decimal.Decimal) ([]*Product, error) {
	db := config.GetDB()

	var products []*Product
	err := db.WithContext(ctx).
		Where("stock_on_hand <= ?", threshold).
		Order("stock_on_hand ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStockTx lowers a product's stock inside the caller's transaction,
// clamped at zero. A completed sale is never blocked because the recorded
// stock was off; the shopkeeper reconciles physical stock by hand. The row
// is locked FOR UPDATE so two finalizes hitting the same product serialize
// instead of overwriting each other's decrement.
func DecrementStockTx(tx *gorm.DB, ctx context.Context, productId int, qty decimal.Decimal) error {
	var product Product
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, productId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Product deleted between add and finalize: nothing to decrement.
			return nil
		}
		return err
	}

	newStock := product.StockOnHand.Sub(qty)
	if newStock.IsNegative() {
		newStock = decimal.Zero
	}

	return tx.WithContext(ctx).Model(&Product{}).
		Where("id = ?", productId).
		Update("stock_on_hand", newStock).Error
}
