package services

import "errors"

var (
	ErrProductNotFound = errors.New("product_not_found")
	ErrOrderNotFound   = errors.New("order_not_found")
)
