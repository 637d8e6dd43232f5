package models

// AQCategory is the coarse air-quality label derived from average PM2.5
type AQCategory string

const (
	AQGood      AQCategory = "Good"
	AQModerate  AQCategory = "Moderate"
	AQUnhealthy AQCategory = "Unhealthy"
)

const (
	goodPM25Max     = 12.0
	moderatePM25Max = 35.4
)

// CategorizePM25 maps an average PM2.5 value to its category; nil stays nil.
// Boundaries are inclusive on the upper edge.
func CategorizePM25(avg *float64) *AQCategory {
	if avg == nil {
		return nil
	}

	var c AQCategory
	switch p := *avg; {
	case p <= goodPM25Max:
		c = AQGood
	case p <= moderatePM25Max:
		c = AQModerate
	default:
		c = AQUnhealthy
	}
	return &c
}

// ParseAQCategory matches a category name case-insensitively
func ParseAQCategory(s string) (AQCategory, bool) {
	switch NormalizeKey(s) {
	case "good":
		return AQGood, true
	case "moderate":
		return AQModerate, true
	case "unhealthy":
		return AQUnhealthy, true
	}
	return "", false
}

// CityStatsRow is one scanned row of the aggregation query
type CityStatsRow struct {
	CityID           int64    `db:"city_id"`
	City             string   `db:"city_name"`
	Country          string   `db:"country"`
	AvgTemp          *float64 `db:"avg_temp"`
	AvgPM25          *float64 `db:"avg_pm25"`
	Population       *int64   `db:"population"`
	ObservationCount int64    `db:"observation_count"`
	MeasurementCount int64    `db:"measurement_count"`
}

// CityStatsSummary is the per-city aggregate served to callers
type CityStatsSummary struct {
	City       string      `json:"city"`
	Country    string      `json:"country"`
	AvgTemp    *float64    `json:"avg_temp"`
	AvgPM25    *float64    `json:"avg_pm25"`
	Population *int64      `json:"population"`
	AQCategory *AQCategory `json:"aq_category"`
}

// ToSummary derives the category and drops the internal counters
func (r *CityStatsRow) ToSummary() CityStatsSummary {
	return CityStatsSummary{
		City:       r.City,
		Country:    r.Country,
		AvgTemp:    r.AvgTemp,
		AvgPM25:    r.AvgPM25,
		Population: r.Population,
		AQCategory: CategorizePM25(r.AvgPM25),
	}
}

// CityListOptions pages through canonical cities
type CityListOptions struct {
	Country string
	Limit   int
	Offset  int
}
