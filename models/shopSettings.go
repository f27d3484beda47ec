package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/config"
	"gorm.io/gorm"
)

const shopSettingsCacheKey = "shop_settings"

// ShopSettings is a single-row table holding the store configuration the
// pricing engine and the WhatsApp notification renderer read on every
// checkout.
type ShopSettings struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	StoreName             string          `gorm:"size:255;not null;default:'Mi Tienda de Barrio'" json:"store_name"`
	Address               string          `gorm:"size:255" json:"address"`
	WelcomeMessage        string          `gorm:"type:text" json:"welcome_message"`
	OpeningTime           string          `gorm:"size:5;default:'08:00'" json:"opening_time"`
	ClosingTime           string          `gorm:"size:5;default:'20:00'" json:"closing_time"`
	DeliveryFee           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"delivery_fee"`
	DeliveryStaffCount    int             `gorm:"default:0" json:"delivery_staff_count"`
	HasFreeDeliveryOption *bool           `gorm:"not null;default:false" json:"has_free_delivery_option"`
	FreeDeliveryThreshold decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"free_delivery_threshold"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewShopSettings struct {
	StoreName             string          `json:"store_name" binding:"required"`
	Address               string          `json:"address"`
	WelcomeMessage        string          `json:"welcome_message"`
	OpeningTime           string          `json:"opening_time"`
	ClosingTime           string          `json:"closing_time"`
	DeliveryFee           decimal.Decimal `json:"delivery_fee"`
	DeliveryStaffCount    int             `json:"delivery_staff_count"`
	HasFreeDeliveryOption *bool           `json:"has_free_delivery_option" binding:"required"`
	FreeDeliveryThreshold decimal.Decimal `json:"free_delivery_threshold"`
}

// GetShopSettings returns the settings row, creating it with defaults on
// first use. Redis-cached; every checkout reads this.
func GetShopSettings(ctx context.Context) (*ShopSettings, error) {
	var cached ShopSettings
	if ok, err := config.GetRedisObject(shopSettingsCacheKey, &cached); err == nil && ok {
		return &cached, nil
	}

	db := config.GetDB()

	var settings ShopSettings
	err := db.WithContext(ctx).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = ShopSettings{
			StoreName:   "Mi Tienda de Barrio",
			OpeningTime: "08:00",
			ClosingTime: "20:00",
		}
		if err := db.WithContext(ctx).Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	_ = config.SetRedisObject(shopSettingsCacheKey, settings, time.Hour)
	return &settings, nil
}

func UpdateShopSettings(ctx context.Context, input *NewShopSettings) (*ShopSettings, error) {
	if input.DeliveryFee.IsNegative() {
		return nil, errors.New("delivery fee must not be negative")
	}
	if input.FreeDeliveryThreshold.IsNegative() {
		return nil, errors.New("free delivery threshold must not be negative")
	}

	settings, err := GetShopSettings(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()

	settings.StoreName = input.StoreName
	settings.Address = input.Address
	settings.WelcomeMessage = input.WelcomeMessage
	settings.OpeningTime = input.OpeningTime
	settings.ClosingTime = input.ClosingTime
	settings.DeliveryFee = input.DeliveryFee
	settings.DeliveryStaffCount = input.DeliveryStaffCount
	settings.HasFreeDeliveryOption = input.HasFreeDeliveryOption
	settings.FreeDeliveryThreshold = input.FreeDeliveryThreshold

	if err := db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, err
	}

	_ = config.RemoveRedisKey(shopSettingsCacheKey)
	return settings, nil
}
