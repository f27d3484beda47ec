package models

import (
	"context"
	"errors"
	"time"

	"github.com/tichatapp/tichat_backend/config"
	"github.com/tichatapp/tichat_backend/utils"
	"gorm.io/gorm"
)

// Customer is a known neighbor of the store. Phone is the WhatsApp number
// used for checkout notifications and inbound order matching.
type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Nickname  string    `gorm:"size:100;not null" json:"nickname" binding:"required"`
	Phone     string    `gorm:"size:20;not null;index" json:"phone" binding:"required"`
	Address   string    `gorm:"size:255" json:"address"`
	IdNumber  string    `gorm:"size:50" json:"id_number"`
	Email     string    `gorm:"size:100" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name     string `json:"name" binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Address  string `json:"address"`
	IdNumber string `json:"id_number"`
	Email    string `json:"email"`
}

func (input *NewCustomer) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, id); err != nil {
			return err
		}
	}
	if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
		return errors.New("phone number is not a valid WhatsApp number")
	}
	if err := utils.ValidateUnique[Customer](ctx, "phone", input.Phone, id); err != nil {
		return errors.New("phone number already belongs to another customer")
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	db := config.GetDB()

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		Name:     input.Name,
		Nickname: input.Nickname,
		Phone:    input.Phone,
		Address:  input.Address,
		IdNumber: input.IdNumber,
		Email:    input.Email,
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	db := config.GetDB()

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	var customer Customer
	if err := db.WithContext(ctx).First(&customer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	customer.Name = input.Name
	customer.Nickname = input.Nickname
	customer.Phone = input.Phone
	customer.Address = input.Address
	customer.IdNumber = input.IdNumber
	customer.Email = input.Email

	if err := db.WithContext(ctx).Save(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func DeleteCustomer(ctx context.Context, id int) error {
	db := config.GetDB()

	result := db.WithContext(ctx).Delete(&Customer{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	db := config.GetDB()

	var customer Customer
	if err := db.WithContext(ctx).First(&customer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func ListCustomers(ctx context.Context) ([]*Customer, error) {
	db := config.GetDB()

	var customers []*Customer
	if err := db.WithContext(ctx).Order("nickname ASC").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// FindCustomerByPhone matches an inbound WhatsApp sender to a known customer.
// Numbers are compared digits-only so formatting differences don't matter.
func FindCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	db := config.GetDB()

	digits := utils.DigitsOnly(phone)
	if digits == "" {
		return nil, utils.ErrorRecordNotFound
	}

	var customers []*Customer
	if err := db.WithContext(ctx).Find(&customers).Error; err != nil {
		return nil, err
	}
	for _, c := range customers {
		if utils.DigitsOnly(c.Phone) == digits {
			return c, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}
