package stock

import "errors"

var (
	ErrNotFound   = errors.New("stock: record not found")
	ErrValidation = errors.New("stock: validation failed")
)
