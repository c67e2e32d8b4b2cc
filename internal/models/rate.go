package models

import (
	"time"

	"github.com/google/uuid"
)

type RateDate struct {
	ID            uuid.UUID `json:"id" db:"id"`
	EffectiveDate Date      `json:"effective_date" db:"effective_date"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Rate struct {
	ID           uuid.UUID `json:"id" db:"id"`
	RateDateID   uuid.UUID `json:"rate_date_id" db:"rate_date_id"`
	CategoryType string    `json:"category_type" db:"category_type"`
	Rate         float64   `json:"rate" db:"rate"`
	CreatedAt    time.Time `json:"-" db:"created_at"`
}

type RateBase struct {
	CategoryType string  `json:"category_type" validate:"required,max=32"`
	Rate         float64 `json:"rate" validate:"gte=0,lte=1"`
}

type RateDateInput struct {
	EffectiveDate Date
	Rates         []RateBase
}

type RateResponse struct {
	ID            uuid.UUID  `json:"id"`
	EffectiveDate Date       `json:"effective_date"`
	Rates         []RateBase `json:"rates"`
}
