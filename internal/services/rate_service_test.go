package services

import (
	"context"
	"testing"

	"tariff-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateService_IngestBulk(t *testing.T) {
	repo := &memRateRepo{}
	svc := NewRateService(repo, nil)

	resp, err := svc.IngestBulk(context.Background(),
		[]byte(`{"2020-06-01": [{"category_type": "Glass", "rate": 0.04}], "2020-01-01": [{"category_type": "Other", "rate": 0.01}]}`))

	require.NoError(t, err)
	require.Len(t, resp, 2)
	assert.Equal(t, "2020-06-01", resp[0].EffectiveDate.String())
	assert.Equal(t, []models.RateBase{{CategoryType: "Other", Rate: 0.01}}, resp[1].Rates)
	assert.Len(t, repo.rates, 2)
}

func TestRateService_RejectsOutOfRange(t *testing.T) {
	repo := &memRateRepo{}
	svc := NewRateService(repo, nil)

	_, err := svc.IngestBulk(context.Background(),
		[]byte(`{"2020-06-01": [{"category_type": "Glass", "rate": 1.5}]}`))

	assert.ErrorIs(t, err, models.ErrMalformedInput)
	assert.Empty(t, repo.dates)
}

func TestRateService_UploadArchives(t *testing.T) {
	archive := &memArchive{}
	svc := NewRateService(&memRateRepo{}, archive)
	raw := []byte(`{"2020-06-01": [{"category_type": "Glass", "rate": 0.04}]}`)

	_, err := svc.UploadRates(context.Background(), "rates.json", raw)

	require.NoError(t, err)
	assert.Contains(t, archive.objects, "rates/rates.json")
}
