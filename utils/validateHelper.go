package utils

import (
	"context"
	"reflect"

	"github.com/tichatapp/tichat_backend/config"
)

// ValidateResourceId checks that a row with the given id exists.
func ValidateResourceId[T any](ctx context.Context, id any) error {
	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ResourceCountWhere[T any](ctx context.Context, cond string, values ...any) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).Where(cond, values...).Count(&count).Error
	return count, err
}

// ValidateUnique rejects a value already used in the column, ignoring exceptId
// (pass zero on create).
func ValidateUnique[T any](ctx context.Context, column string, value any, exceptId any) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, column+" = ? AND id != ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrorDuplicateValue
	}
	return nil
}
