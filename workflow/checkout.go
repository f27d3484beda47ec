package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/tichatapp/tichat_backend/config"
	"github.com/tichatapp/tichat_backend/models"
	"github.com/tichatapp/tichat_backend/utils"
	"github.com/tichatapp/tichat_backend/whatsapp"
	"gorm.io/gorm"
)

// ErrFinalizeInProgress means another request holds the finalize lock for
// the same cart. The first one wins; the loser retries against an already
// emptied cart and gets ErrEmptyCart.
var ErrFinalizeInProgress = errors.New("finalize already in progress for this cart")

const finalizeLockTTL = 10 * time.Second

// DBCatalog is the production Catalog backed by the products table.
type DBCatalog struct{}

func (DBCatalog) LookupProduct(ctx context.Context, productId int) (*models.Product, error) {
	return models.GetProduct(ctx, productId)
}

// BuildSale turns a cart into the sale record Finalize persists. Anonymous
// counter sales are paid on the spot; customer sales start pending until the
// shopkeeper confirms payment.
func BuildSale(target CheckoutTarget, lines []CartLine, totals Totals, now time.Time) *models.Sale {
	sale := &models.Sale{
		CustomerId:         target.CustomerId,
		CustomerName:       target.CustomerName,
		Subtotal:           totals.Subtotal,
		DeliveryFeeApplied: totals.DeliveryFee,
		Total:              totals.Total,
		Date:               now,
		Status:             models.SaleStatusPending,
	}
	if target.Anonymous {
		sale.CustomerId = 0
		if sale.CustomerName == "" {
			sale.CustomerName = "Venta de mostrador"
		}
		sale.Status = models.SaleStatusPaid
	}
	for _, line := range lines {
		sale.Items = append(sale.Items, models.SaleItem{
			ProductId: line.ProductId,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Unit:      line.Unit,
		})
	}
	return sale
}

// Finalize converts the cart into a sale. The sale record, the stock
// decrements, and the notification outbox row commit in one transaction, so
// a crash mid-checkout leaves either a complete sale or none at all. A
// per-cart Redis lock keeps a double-tapped finalize from writing the sale
// twice.
func (m *CartManager) Finalize(ctx context.Context, cartId string) (*models.Sale, error) {
	locker := config.GetRedisLock()
	lock, err := locker.Obtain(ctx, "finalize_cart:"+cartId, finalizeLockTTL, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrFinalizeInProgress
		}
		return nil, err
	}
	defer lock.Release(context.WithoutCancel(ctx))

	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[cartId]
	if !ok {
		return nil, ErrCartNotFound
	}
	if !cart.Target.IsSet() {
		return nil, ErrNoTargetSelected
	}
	if len(cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	settings, err := models.GetShopSettings(ctx)
	if err != nil {
		return nil, err
	}

	totals := ComputeTotals(cart.Target, cart.Lines, settings)
	sale := BuildSale(cart.Target, cart.Lines, totals, time.Now())

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.CreateSaleTx(tx, ctx, sale); err != nil {
			return err
		}
		for _, line := range cart.Lines {
			if err := models.DecrementStockTx(tx, ctx, line.ProductId, line.Quantity); err != nil {
				return err
			}
		}
		if cart.Target.CustomerPhone == "" {
			return nil
		}

		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		body := whatsapp.RenderSaleMessage(sale, settings)
		record := models.SaleMessageRecord{
			SaleId:        sale.ID,
			Phone:         cart.Target.CustomerPhone,
			Body:          body,
			DeepLink:      whatsapp.DeepLink(cart.Target.CustomerPhone, body),
			CorrelationId: correlationId,
			PublishStatus: models.OutboxPublishStatusPending,
		}
		return tx.WithContext(ctx).Create(&record).Error
	})
	if err != nil {
		return nil, err
	}

	m.reset(cartId)
	_ = config.RemoveRedisKey("dashboard_summary")
	return sale, nil
}
