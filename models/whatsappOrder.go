package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/config"
	"github.com/tichatapp/tichat_backend/utils"
	"gorm.io/gorm"
)

// ParsedItem is one line the intake adapter extracted from an inbound
// message. ProductId is 0 when the text did not match a catalog item; the
// shopkeeper sorts that out before confirming.
type ParsedItem struct {
	ProductId int             `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Category  string          `json:"category"`
	Unit      string          `json:"unit"`
}

// ParsedItemList is stored as a JSON column; the lines are a throwaway
// suggestion, not relational data.
type ParsedItemList []ParsedItem

func (l ParsedItemList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *ParsedItemList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return errors.New("unsupported type for ParsedItemList")
}

// WhatsAppOrder is an inbound order waiting for the shopkeeper. Confirming
// one opens a checkout cart; the order itself never touches the ledger.
type WhatsAppOrder struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	CustomerPhone   string              `gorm:"size:20;not null;index" json:"customer_phone"`
	CustomerName    string              `gorm:"size:100" json:"customer_name"`
	OriginalMessage string              `gorm:"type:text" json:"original_message"`
	ParsedItems     ParsedItemList      `gorm:"type:json" json:"parsed_items"`
	Status          WhatsAppOrderStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReceivedAt      time.Time           `gorm:"not null" json:"received_at"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWhatsAppOrder struct {
	CustomerPhone   string
	CustomerName    string
	OriginalMessage string
	ParsedItems     ParsedItemList
	ReceivedAt      time.Time
}

func CreateWhatsAppOrder(ctx context.Context, input *NewWhatsAppOrder) (*WhatsAppOrder, error) {
	db := config.GetDB()

	name := input.CustomerName
	if name == "" {
		name = input.CustomerPhone
	}
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	order := WhatsAppOrder{
		CustomerPhone:   input.CustomerPhone,
		CustomerName:    name,
		OriginalMessage: input.OriginalMessage,
		ParsedItems:     input.ParsedItems,
		Status:          WhatsAppOrderStatusPending,
		ReceivedAt:      receivedAt,
	}
	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetWhatsAppOrder(ctx context.Context, id int) (*WhatsAppOrder, error) {
	db := config.GetDB()

	var order WhatsAppOrder
	if err := db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ListWhatsAppOrders returns orders newest first, optionally by status.
func ListWhatsAppOrders(ctx context.Context, status WhatsAppOrderStatus) ([]*WhatsAppOrder, error) {
	db := config.GetDB()

	q := db.WithContext(ctx).Model(&WhatsAppOrder{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var orders []*WhatsAppOrder
	if err := q.Order("received_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func setWhatsAppOrderStatus(ctx context.Context, id int, status WhatsAppOrderStatus) (*WhatsAppOrder, error) {
	order, err := GetWhatsAppOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != WhatsAppOrderStatusPending {
		return nil, errors.New("order already attended")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&WhatsAppOrder{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return nil, err
	}
	order.Status = status
	return order, nil
}

func ConfirmWhatsAppOrder(ctx context.Context, id int) (*WhatsAppOrder, error) {
	return setWhatsAppOrderStatus(ctx, id, WhatsAppOrderStatusConfirmed)
}

func RejectWhatsAppOrder(ctx context.Context, id int) (*WhatsAppOrder, error) {
	return setWhatsAppOrderStatus(ctx, id, WhatsAppOrderStatusRejected)
}
