package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Category string  `json:"category_type" validate:"required,max=5"`
	Rate     float64 `json:"rate" validate:"gte=0,lte=1"`
}

func TestValidateStruct_Valid(t *testing.T) {
	assert.Empty(t, ValidateStruct(sample{Category: "Glass", Rate: 1}))
	assert.Empty(t, ValidateStruct(sample{Category: "a", Rate: 0}))
}

func TestValidateStruct_ReportsJSONFieldNames(t *testing.T) {
	errs := ValidateStruct(sample{Category: "toolong", Rate: 1.5})

	assert.Len(t, errs, 2)
	assert.Equal(t, "category_type", errs[0].Field)
	assert.Equal(t, "must be at most 5 characters", errs[0].Message)
	assert.Equal(t, "rate", errs[1].Field)
	assert.Equal(t, "must be less than or equal to 1", errs[1].Message)
}

func TestJoinValidationErrors(t *testing.T) {
	out := JoinValidationErrors([]ValidationError{
		{Field: "rate", Message: "must be greater than or equal to 0"},
		{Message: "bad payload"},
	})
	assert.Equal(t, "rate must be greater than or equal to 0; bad payload", out)
}
