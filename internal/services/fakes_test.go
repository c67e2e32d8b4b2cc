package services

import (
	"context"
	"errors"
	"sync"

	"tariff-service/internal/event"
	"tariff-service/internal/models"

	"github.com/google/uuid"
)

// memTariffRepo keeps groups and entries in insertion order.
type memTariffRepo struct {
	mu        sync.Mutex
	groups    []models.TariffGroup
	entries   []models.TariffEntry
	inserts   int
	failOnDay string
	pingErr   error
}

func (r *memTariffRepo) InsertGroupWithEntries(_ context.Context, publishedAt models.Date, tariffs []models.TariffBase) (*models.TariffGroup, []models.TariffEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if publishedAt.String() == r.failOnDay {
		return nil, nil, errors.Join(models.ErrStorage, errors.New("connection reset"))
	}

	group := models.TariffGroup{ID: uuid.New(), PublishedAt: publishedAt}
	entries := make([]models.TariffEntry, 0, len(tariffs))
	for _, t := range tariffs {
		entries = append(entries, models.TariffEntry{
			ID:           uuid.New(),
			GroupID:      group.ID,
			CategoryType: t.CategoryType,
			Rate:         t.Rate,
			PublishedAt:  publishedAt,
		})
	}
	r.groups = append(r.groups, group)
	r.entries = append(r.entries, entries...)
	return &group, entries, nil
}

func (r *memTariffRepo) FindEntry(_ context.Context, publishedAt models.Date, categoryType string) (*models.TariffEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.PublishedAt.Equal(publishedAt.Time) && e.CategoryType == categoryType {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memTariffRepo) FindEntryByID(_ context.Context, id uuid.UUID) (*models.TariffEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memTariffRepo) UpdateEntry(_ context.Context, entry *models.TariffEntry) (*models.TariffEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == entry.ID {
			r.entries[i].CategoryType = entry.CategoryType
			r.entries[i].Rate = entry.Rate
			updated := r.entries[i]
			return &updated, nil
		}
	}
	return nil, models.ErrStorage
}

func (r *memTariffRepo) DeleteEntry(_ context.Context, entry *models.TariffEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == entry.ID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return models.ErrStorage
}

func (r *memTariffRepo) Ping(context.Context) error { return r.pingErr }

type memRateRepo struct {
	dates []models.RateDate
	rates []models.Rate
}

func (r *memRateRepo) InsertRateDateWithRates(_ context.Context, effectiveDate models.Date, rates []models.RateBase) (*models.RateDate, []models.Rate, error) {
	rd := models.RateDate{ID: uuid.New(), EffectiveDate: effectiveDate}
	out := make([]models.Rate, 0, len(rates))
	for _, in := range rates {
		out = append(out, models.Rate{ID: uuid.New(), RateDateID: rd.ID, CategoryType: in.CategoryType, Rate: in.Rate})
	}
	r.dates = append(r.dates, rd)
	r.rates = append(r.rates, out...)
	return &rd, out, nil
}

type recordingSink struct {
	mu       sync.Mutex
	messages []event.AuditMessage
	err      error
}

func (s *recordingSink) Enqueue(_ context.Context, message any, _ ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && !errors.Is(s.err, event.ErrFlushFailed) {
		return s.err
	}
	s.messages = append(s.messages, message.(event.AuditMessage))
	return s.err
}

func (s *recordingSink) actions() []event.ActionType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.ActionType, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Action)
	}
	return out
}

type mapCache struct {
	entries     map[string]models.TariffEntry
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]models.TariffEntry)}
}

func cacheKey(d models.Date, category string) string { return d.String() + "/" + category }

func (c *mapCache) GetEntry(_ context.Context, publishedAt models.Date, category string) (*models.TariffEntry, bool, error) {
	e, ok := c.entries[cacheKey(publishedAt, category)]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (c *mapCache) SetEntry(_ context.Context, entry *models.TariffEntry) error {
	c.entries[cacheKey(entry.PublishedAt, entry.CategoryType)] = *entry
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, publishedAt models.Date, categories ...string) error {
	for _, cat := range categories {
		key := cacheKey(publishedAt, cat)
		delete(c.entries, key)
		c.invalidated = append(c.invalidated, key)
	}
	return nil
}

type memArchive struct {
	objects map[string][]byte
	err     error
}

func (a *memArchive) ArchiveUpload(_ context.Context, kind, filename string, data []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	name := kind + "/" + filename
	a.objects[name] = data
	return name, nil
}
