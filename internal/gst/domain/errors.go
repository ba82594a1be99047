package domain

import "errors"

var (
	ErrInvalidCategoryCode = errors.New("invalid_category_code")
	ErrInvalidCategoryName = errors.New("invalid_category_name")
	ErrInvalidRateSlab     = errors.New("invalid_rate_slab")
	ErrInvalidCessRate     = errors.New("invalid_cess_rate")
	ErrInvalidHSNCode      = errors.New("invalid_hsn_code")
	ErrUnknownCategory     = errors.New("unknown_category")
	ErrCategoryExists      = errors.New("category_exists")
	ErrNotFound            = errors.New("not_found")
)
