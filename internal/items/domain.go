// Package items owns stock items and the alert reconciliation that keeps
// Low Stock / Out of Stock / Expired alerts consistent with every stock
// mutation.
package items

import (
	"errors"
	"time"
)

// AlertType enumerates stock alert categories.
type AlertType string

const (
	// AlertLowStock flags stock at or below the threshold but above zero.
	AlertLowStock AlertType = "Low Stock"
	// AlertOutOfStock flags stock exactly at zero.
	AlertOutOfStock AlertType = "Out of Stock"
	// AlertExpired flags stock past its expiry date. One-shot: stock
	// changes never resolve it.
	AlertExpired AlertType = "Expired"
)

// Item models a stock item.
type Item struct {
	ID           int64      `json:"item_id"`
	Code         string     `json:"item_code"`
	Name         string     `json:"item_name"`
	CategoryID   int64      `json:"category_id"`
	Brand        string     `json:"brand,omitempty"`
	UOM          string     `json:"uom"`
	UnitCost     float64    `json:"unit_cost"`
	SellingPrice float64    `json:"selling_price"`
	Stock        int        `json:"stock_quantity"`
	Threshold    int        `json:"threshold_quantity"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	SupplierID   int64      `json:"supplier_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// StockAlert models one alert row. At most one unresolved alert per
// (item, type) may exist at any time.
type StockAlert struct {
	ID        int64     `json:"alert_id"`
	ItemID    int64     `json:"item_id"`
	Type      AlertType `json:"alert_type"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateItemInput carries fields for a new item.
type CreateItemInput struct {
	Code         string `validate:"required"`
	Name         string `validate:"required"`
	CategoryID   int64  `validate:"required,gt=0"`
	Brand        string
	UOM          string
	UnitCost     float64 `validate:"gte=0"`
	SellingPrice float64 `validate:"gte=0"`
	Stock        int     `validate:"gte=0"`
	Threshold    int     `validate:"gte=0"`
	ExpiryDate   *time.Time
	SupplierID   int64 `validate:"required,gt=0"`
}

// UpdateItemInput carries the editable fields of an existing item,
// including stock and threshold. Both trigger reconciliation.
type UpdateItemInput struct {
	Code         string `validate:"required"`
	Name         string `validate:"required"`
	CategoryID   int64  `validate:"required,gt=0"`
	Brand        string
	UOM          string
	UnitCost     float64 `validate:"gte=0"`
	SellingPrice float64 `validate:"gte=0"`
	Stock        int     `validate:"gte=0"`
	Threshold    int     `validate:"gte=0"`
	ExpiryDate   *time.Time
	SupplierID   int64 `validate:"required,gt=0"`
}

// AdjustStockInput is a signed manual stock adjustment.
type AdjustStockInput struct {
	Delta  int    `validate:"required"`
	Reason string `validate:"required"`
}

// ListFilter narrows item listings.
type ListFilter struct {
	SupplierID int64
	Search     string
	Limit      int
	Offset     int
}

var (
	// ErrNotFound indicates the item does not exist.
	ErrNotFound = errors.New("items: item not found")
	// ErrDuplicateCode indicates the item code is already taken.
	ErrDuplicateCode = errors.New("items: item code already exists")
	// ErrInsufficientStock indicates the adjustment would drive stock
	// negative.
	ErrInsufficientStock = errors.New("items: insufficient stock")
	// ErrValidation wraps input validation failures.
	ErrValidation = errors.New("items: validation failed")
)
