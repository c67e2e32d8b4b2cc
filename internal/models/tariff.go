package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// TARIFF GROUP (DATE ACCESSION)
// ============================================================================

type TariffGroup struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PublishedAt Date      `json:"published_at" db:"published_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TariffEntry is a single category -> rate row. PublishedAt is read from the
// owning group by join and is never written through the entry.
type TariffEntry struct {
	ID           uuid.UUID `json:"id" db:"id"`
	GroupID      uuid.UUID `json:"group_id" db:"group_id"`
	CategoryType string    `json:"category_type" db:"category_type"`
	Rate         float64   `json:"rate" db:"rate"`
	CreatedAt    time.Time `json:"-" db:"created_at"`
	PublishedAt  Date      `json:"published_at" db:"published_at"`
}

// ============================================================================
// REQUESTS / RESPONSES
// ============================================================================

// TariffBase is a stored category and rate. An empty category label is a
// valid label.
type TariffBase struct {
	CategoryType string  `json:"category_type" validate:"max=20"`
	Rate         float64 `json:"rate" validate:"gte=0,lte=1"`
}

// UpdateTariffRequest uses pointers so an absent field fails validation
// instead of decoding to its zero value.
type UpdateTariffRequest struct {
	CategoryType *string  `json:"category_type" validate:"required,max=20"`
	Rate         *float64 `json:"rate" validate:"required,gte=0,lte=1"`
}

// TariffGroupInput is one date key of a bulk submission.
type TariffGroupInput struct {
	PublishedAt Date
	Tariffs     []TariffBase
}

type TariffResponse struct {
	ID          uuid.UUID    `json:"id"`
	PublishedAt Date         `json:"published_at"`
	Tariffs     []TariffBase `json:"tariffs"`
}

type InsuranceCostRequest struct {
	DeclaredValue *float64 `json:"declared_value" validate:"required,gte=0"`
	CategoryType  *string  `json:"category_type" validate:"required,max=20"`
	PublishedAt   Date     `json:"published_at"`
}

type InsuranceCostResponse struct {
	DeclaredValue float64 `json:"declared_value"`
	CategoryType  string  `json:"category_type"`
	PublishedAt   Date    `json:"published_at"`
	Rate          float64 `json:"rate"`
	InsuranceCost float64 `json:"insurance_cost"`
}

type DeleteTariffResponse struct {
	Message string `json:"message"`
}
