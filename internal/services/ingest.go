package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tariff-service/internal/models"
)

// payloadRate accepts a JSON number or a numeric string.
type payloadRate float64

func (r *payloadRate) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return errors.New("rate must not be null")
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("rate %q is not a number", s)
		}
		*r = payloadRate(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = payloadRate(f)
	return nil
}

type payloadEntry struct {
	CategoryType *string      `json:"category_type"`
	Rate         *payloadRate `json:"rate"`
}

type datedEntries struct {
	date    models.Date
	entries []payloadEntry
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrMalformedInput, fmt.Sprintf(format, args...))
}

// parseDatedPayload walks {"YYYY-MM-DD": [{...}, ...], ...} token by token so
// the date keys come back in document order. A repeated date keeps its first
// position and takes the entries of its last occurrence.
func parseDatedPayload(raw []byte) ([]datedEntries, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, malformed("request body is not valid JSON")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, malformed("request body must be a JSON object keyed by date")
	}

	var (
		out   []datedEntries
		index = make(map[string]int)
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed("request body is not valid JSON")
		}
		key, _ := tok.(string)

		date, err := models.ParseDate(key)
		if err != nil {
			return nil, malformed("invalid date key %q, expected YYYY-MM-DD", key)
		}

		var entries []payloadEntry
		if err := dec.Decode(&entries); err != nil || entries == nil {
			return nil, malformed("entries for %s must be a list of objects with category_type and rate", key)
		}
		for i, e := range entries {
			if e.CategoryType == nil {
				return nil, malformed("entry %d for %s is missing category_type", i+1, key)
			}
			if e.Rate == nil {
				return nil, malformed("entry %d for %s is missing rate", i+1, key)
			}
		}

		if pos, seen := index[date.String()]; seen {
			out[pos].entries = entries
			continue
		}
		index[date.String()] = len(out)
		out = append(out, datedEntries{date: date, entries: entries})
	}

	if _, err := dec.Token(); err != nil {
		return nil, malformed("request body is not valid JSON")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("unexpected data after the JSON object")
	}
	return out, nil
}

// ParseTariffPayload turns a bulk tariff document into ordered group inputs.
func ParseTariffPayload(raw []byte) ([]models.TariffGroupInput, error) {
	dated, err := parseDatedPayload(raw)
	if err != nil {
		return nil, err
	}

	groups := make([]models.TariffGroupInput, 0, len(dated))
	for _, d := range dated {
		tariffs := make([]models.TariffBase, 0, len(d.entries))
		for _, e := range d.entries {
			tariffs = append(tariffs, models.TariffBase{
				CategoryType: *e.CategoryType,
				Rate:         float64(*e.Rate),
			})
		}
		groups = append(groups, models.TariffGroupInput{PublishedAt: d.date, Tariffs: tariffs})
	}
	return groups, nil
}

// ParseRatePayload is ParseTariffPayload for the rate resource.
func ParseRatePayload(raw []byte) ([]models.RateDateInput, error) {
	dated, err := parseDatedPayload(raw)
	if err != nil {
		return nil, err
	}

	inputs := make([]models.RateDateInput, 0, len(dated))
	for _, d := range dated {
		rates := make([]models.RateBase, 0, len(d.entries))
		for _, e := range d.entries {
			rates = append(rates, models.RateBase{
				CategoryType: *e.CategoryType,
				Rate:         float64(*e.Rate),
			})
		}
		inputs = append(inputs, models.RateDateInput{EffectiveDate: d.date, Rates: rates})
	}
	return inputs, nil
}
