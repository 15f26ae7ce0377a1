package stock

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when an operation references a product the ledger does not track.
type NotFoundError struct {
	Product string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %q not found in stock", e.Product)
}

// ValidationError 呼叫端傳入的數量或產品代碼不合法，不會送到資料庫
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("stock storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
