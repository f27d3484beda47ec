package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/config"
	"github.com/tichatapp/tichat_backend/utils"
	"gorm.io/gorm"
)

// Sale is an immutable record of a finalized checkout. Status is the only
// field that changes after creation, and only through UpdateSaleStatus.
// CustomerId 0 means an anonymous counter sale ("mostrador").
type Sale struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	CustomerId         int             `gorm:"index;default:0" json:"customer_id"`
	CustomerName       string          `gorm:"size:100;not null" json:"customer_name"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
	DeliveryFeeApplied decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"delivery_fee_applied"`
	Total              decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	Date               time.Time       `gorm:"not null;index" json:"date"`
	Status             SaleStatus      `gorm:"size:20;not null;default:'pending'" json:"status"`
	Items              []SaleItem      `gorm:"foreignKey:SaleId" json:"items"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleItem snapshots a cart line at finalize time. Name and unit price are
// copied so the sale keeps rendering after catalog edits or deletions.
type SaleItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	SaleId    int             `gorm:"index;not null" json:"sale_id"`
	ProductId int             `gorm:"index;not null" json:"product_id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Unit      string          `gorm:"size:50" json:"unit"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (line SaleItem) LineTotal() decimal.Decimal {
	return line.UnitPrice.Mul(line.Quantity)
}

// CreateSaleTx appends a sale to the ledger inside the caller's transaction
// so stock decrements and the notification outbox row commit atomically with
// it.
func CreateSaleTx(tx *gorm.DB, ctx context.Context, sale *Sale) error {
	return tx.WithContext(ctx).Create(sale).Error
}

// UpdateSaleStatus sets the status unconditionally; all nine transitions of
// the 3x3 matrix are legal.
func UpdateSaleStatus(ctx context.Context, saleId int, status SaleStatus) (*Sale, error) {
	if !status.IsValid() {
		return nil, ErrorInvalidSaleStatus
	}

	db := config.GetDB()

	var sale Sale
	if err := db.WithContext(ctx).Preload("Items").First(&sale, saleId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&Sale{}).
		Where("id = ?", saleId).
		Update("status", status).Error; err != nil {
		return nil, err
	}
	sale.Status = status
	return &sale, nil
}

// SaleFilter is a conjunction of optional predicates. Start/End are
// inclusive by calendar day. Anonymous filters sales with no customer;
// it wins over CustomerId when both are set.
type SaleFilter struct {
	Status     SaleStatus
	CustomerId int
	Anonymous  bool
	Start      *time.Time
	End        *time.Time
}

// ListSales returns matching sales, newest first, items preloaded. No
// pagination: a corner store's ledger fits in one response.
func ListSales(ctx context.Context, filter SaleFilter) ([]*Sale, error) {
	db := config.GetDB()

	q := db.WithContext(ctx).Model(&Sale{}).Preload("Items")
	if filter.Status != "" {
		if !filter.Status.IsValid() {
			return nil, ErrorInvalidSaleStatus
		}
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Anonymous {
		q = q.Where("customer_id = 0")
	} else if filter.CustomerId > 0 {
		q = q.Where("customer_id = ?", filter.CustomerId)
	}
	if filter.Start != nil {
		dayStart := time.Date(filter.Start.Year(), filter.Start.Month(), filter.Start.Day(), 0, 0, 0, 0, filter.Start.Location())
		q = q.Where("date >= ?", dayStart)
	}
	if filter.End != nil {
		nextDay := time.Date(filter.End.Year(), filter.End.Month(), filter.End.Day(), 0, 0, 0, 0, filter.End.Location()).AddDate(0, 0, 1)
		q = q.Where("date < ?", nextDay)
	}

	var sales []*Sale
	if err := q.Order("date DESC").Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// AggregateRevenue sums totals over paid sales only. Pending money is not
// revenue yet and annulled sales never count.
func AggregateRevenue(ctx context.Context) (decimal.Decimal, error) {
	db := config.GetDB()

	var row struct {
		Revenue decimal.Decimal
	}
	err := db.WithContext(ctx).Model(&Sale{}).
		Select("COALESCE(SUM(total), 0) AS revenue").
		Where("status = ?", SaleStatusPaid).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Revenue, nil
}

type BestSellingProduct struct {
	Name      string          `json:"name"`
	UnitsSold decimal.Decimal `json:"units_sold"`
}

// BestSellingProducts ranks distinct item names by units sold across paid
// sales. Ties keep first-sold-first order (MIN(sale_items.id)).
func BestSellingProducts(ctx context.Context, limit int) ([]*BestSellingProduct, error) {
	if limit <= 0 {
		limit = 5
	}

	db := config.GetDB()

	var rows []*BestSellingProduct
	err := db.WithContext(ctx).
		Table("sale_items").
		Select("sale_items.name AS name, SUM(sale_items.quantity) AS units_sold").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sales.status = ?", SaleStatusPaid).
		Group("sale_items.name").
		Order("units_sold DESC, MIN(sale_items.id) ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DashboardSummary is the headline card row of the dashboard.
type DashboardSummary struct {
	ProductCount     int64           `json:"product_count"`
	TotalStockUnits  decimal.Decimal `json:"total_stock_units"`
	ConfirmedRevenue decimal.Decimal `json:"confirmed_revenue"`
	UnitsSold        decimal.Decimal `json:"units_sold"`
	AverageTicket    decimal.Decimal `json:"average_ticket"`
}

const dashboardSummaryCacheKey = "dashboard_summary"

func GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	var cached DashboardSummary
	if ok, err := config.GetRedisObject(dashboardSummaryCacheKey, &cached); err == nil && ok {
		return &cached, nil
	}

	db := config.GetDB()

	var summary DashboardSummary
	if err := db.WithContext(ctx).Model(&Product{}).Count(&summary.ProductCount).Error; err != nil {
		return nil, err
	}

	var stockRow struct {
		Units decimal.Decimal
	}
	if err := db.WithContext(ctx).Model(&Product{}).
		Select("COALESCE(SUM(stock_on_hand), 0) AS units").
		Scan(&stockRow).Error; err != nil {
		return nil, err
	}
	summary.TotalStockUnits = stockRow.Units

	var paidRow struct {
		Revenue decimal.Decimal
		Count   int64
	}
	if err := db.WithContext(ctx).Model(&Sale{}).
		Select("COALESCE(SUM(total), 0) AS revenue, COUNT(*) AS count").
		Where("status = ?", SaleStatusPaid).
		Scan(&paidRow).Error; err != nil {
		return nil, err
	}
	summary.ConfirmedRevenue = paidRow.Revenue

	var unitsRow struct {
		Units decimal.Decimal
	}
	if err := db.WithContext(ctx).
		Table("sale_items").
		Select("COALESCE(SUM(sale_items.quantity), 0) AS units").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sales.status = ?", SaleStatusPaid).
		Scan(&unitsRow).Error; err != nil {
		return nil, err
	}
	summary.UnitsSold = unitsRow.Units

	if paidRow.Count > 0 {
		summary.AverageTicket = paidRow.Revenue.DivRound(decimal.NewFromInt(paidRow.Count), 2)
	}

	_ = config.SetRedisObject(dashboardSummaryCacheKey, summary, 30*time.Second)
	return &summary, nil
}
