package store

import (
	"database/sql"

	"codetrail/internal/pricing"
)

type rowQueryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

// lookupRateTx finds the newest-effective pricing row for the model's
// family. Rates are re-queried on every cost computation rather than
// cached, so pricing updates apply to the next write immediately.
func lookupRateTx(q rowQueryer, modelName string) (pricing.Rate, bool, error) {
	family := pricing.FamilyOf(modelName)
	if family == "" {
		return pricing.Rate{}, false, nil
	}

	var r pricing.Rate
	var effective string
	err := q.QueryRow(`
		SELECT model_family, input_cost_per_mtok, output_cost_per_mtok, effective_date
		FROM model_pricing
		WHERE model_family = ?
		ORDER BY effective_date DESC
		LIMIT 1
	`, family).Scan(&r.Family, &r.InputPerMTok, &r.OutputPerMTok, &effective)
	if err == sql.ErrNoRows {
		return pricing.Rate{}, false, nil
	}
	if err != nil {
		return pricing.Rate{}, false, err
	}
	return r, true, nil
}

// PricingRates returns every stored pricing row, newest first, for
// display tooling.
func (s *Store) PricingRates() ([]pricing.Rate, error) {
	rows, err := s.db.Query(`
		SELECT model_family, input_cost_per_mtok, output_cost_per_mtok, effective_date
		FROM model_pricing ORDER BY effective_date DESC, model_family
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rates []pricing.Rate
	for rows.Next() {
		var r pricing.Rate
		var effective string
		if err := rows.Scan(&r.Family, &r.InputPerMTok, &r.OutputPerMTok, &effective); err != nil {
			return nil, err
		}
		r.EffectiveDate = parseDate(effective)
		rates = append(rates, r)
	}
	return rates, rows.Err()
}
