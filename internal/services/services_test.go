package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"city-stats-platform/internal/models"
	"city-stats-platform/internal/progress"
	"city-stats-platform/internal/repository"
	"city-stats-platform/internal/roster"
	"city-stats-platform/internal/testutil"
	"city-stats-platform/pkg/database"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }

func ts(hour int) *time.Time {
	t := time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

type fakeWeather struct {
	temps  map[string][]float64
	fail   map[string]error
	calls  map[string]int
	cancel context.CancelFunc
}

func (f *fakeWeather) FetchWeather(ctx context.Context, query string) (*models.WeatherRecord, error) {
	if f.cancel != nil {
		f.cancel()
	}
	if err := f.fail[query]; err != nil {
		return nil, err
	}
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	pair := roster.CityPair{FetchKey: query}
	temps := f.temps[query]
	n := f.calls[query]
	f.calls[query]++

	temp := 20.0
	if n < len(temps) {
		temp = temps[n]
	}
	return &models.WeatherRecord{
		CityName:    pair.Name(),
		Country:     pair.Country(),
		Latitude:    floatPtr(10),
		Longitude:   floatPtr(20),
		Timestamp:   ts(n),
		Temperature: floatPtr(temp),
	}, nil
}

type fakeAirQuality struct {
	values map[string][]float64
	calls  map[string]int
}

func (f *fakeAirQuality) FetchAirQuality(ctx context.Context, q models.AirQualityQuery) (*models.AirQualityRecord, error) {
	if q.Latitude == nil {
		return nil, errors.New("no coordinates")
	}
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	values, ok := f.values[q.City]
	if !ok {
		return nil, errors.New("no station")
	}
	n := f.calls[q.City]
	f.calls[q.City]++
	if n >= len(values) {
		n = len(values) - 1
	}
	return &models.AirQualityRecord{
		City:      q.City,
		Country:   q.Country,
		Location:  q.City + " Station",
		Timestamp: ts(f.calls[q.City]),
		Parameter: models.ParameterPM25,
		PM25:      floatPtr(values[n]),
		Unit:      "µg/m³",
	}, nil
}

type fakeMetadata struct {
	population map[string]int64
	err        error
}

func (f *fakeMetadata) FetchCityMetadata(ctx context.Context, q models.CityMetadataQuery) ([]models.CityMetadataRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	pop, ok := f.population[q.NamePrefix]
	if !ok {
		return []models.CityMetadataRecord{}, nil
	}
	return []models.CityMetadataRecord{{
		GeoDBID:    "geo-" + q.NamePrefix,
		Name:       q.NamePrefix + " City",
		Country:    q.CountryCode,
		Population: int64Ptr(pop),
	}}, nil
}

type testEnv struct {
	db        *database.DB
	repo      repository.CityRepository
	ingestion *IngestionService
	stats     *StatisticsService
	cursor    *progress.FileStore
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	logger := logging.NewNopLogger()
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	repo := repository.NewCityRepository(db, logger, collector)

	return &testEnv{
		db:        db,
		repo:      repo,
		ingestion: NewIngestionService(repo, logger, collector),
		stats:     NewStatisticsService(repo, logger, collector),
		cursor:    progress.NewFileStore(filepath.Join(t.TempDir(), "progress.json"), logger),
		logger:    logger,
		metrics:   collector,
	}
}

func (e *testEnv) pipeline(deps PipelineDeps, cfg PipelineConfig) *PipelineService {
	deps.Cursor = e.cursor
	deps.Repo = e.repo
	deps.Ingestion = e.ingestion
	deps.Statistics = e.stats
	return NewPipelineService(deps, cfg, e.logger, e.metrics)
}

var threeCities = []roster.CityPair{
	{FetchKey: "A,XX", DisplayName: "A"},
	{FetchKey: "B,XX", DisplayName: "B"},
	{FetchKey: "C,XX", DisplayName: "C"},
}

func TestIngestionService_StoreWeather(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	records := []models.WeatherRecord{
		{CityName: "Paris", Country: "FR", Timestamp: ts(1), Temperature: floatPtr(10)},
		{CityName: "", Country: "FR", Timestamp: ts(1)},
		{CityName: "Paris", Country: "FR", Timestamp: ts(1), Temperature: floatPtr(10)},
		{CityName: "Paris", Country: "FR", Timestamp: ts(2), Temperature: floatPtr(12)},
	}

	result, err := env.ingestion.StoreWeather(ctx, records)
	if err != nil {
		t.Fatalf("StoreWeather() error = %v", err)
	}

	if result.Received != 4 || result.Written != 2 || result.Duplicates != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v, want received 4, written 2, duplicates 1, skipped 1", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("got %d diagnostics, want 1", len(result.Errors))
	}

	if n, _ := env.repo.CountCities(ctx, ""); n != 1 {
		t.Errorf("CountCities() = %d, want 1", n)
	}
}

func TestIngestionService_StoreAirQuality(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.ingestion.StoreWeather(ctx, []models.WeatherRecord{{CityName: "Delhi", Country: "IN", Timestamp: ts(0)}}); err != nil {
		t.Fatal(err)
	}

	records := []models.AirQualityRecord{
		{City: "Delhi", Country: "IN", Location: "Anand Vihar", Timestamp: ts(0), PM25: floatPtr(150), Unit: "µg/m³"},
		{City: " delhi ", Location: "Anand Vihar", Timestamp: ts(1), PM25: floatPtr(170)},
		{City: "Atlantis", Location: "Deep", PM25: floatPtr(1)},
		{City: "Delhi", Location: ""},
	}

	result, err := env.ingestion.StoreAirQuality(ctx, records)
	if err != nil {
		t.Fatalf("StoreAirQuality() error = %v", err)
	}
	if result.Written != 2 || result.Skipped != 2 {
		t.Errorf("result = %+v, want written 2, skipped 2", result)
	}

	summaries, err := env.stats.ComputeCityStats(ctx)
	if err != nil {
		t.Fatalf("ComputeCityStats() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].AvgPM25 == nil || *summaries[0].AvgPM25 != 160 {
		t.Fatalf("summaries = %+v, want Delhi with avg 160", summaries)
	}
	if summaries[0].AQCategory == nil || *summaries[0].AQCategory != models.AQUnhealthy {
		t.Errorf("AQCategory = %v, want Unhealthy", summaries[0].AQCategory)
	}
}

func TestIngestionService_StoreCityMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.ingestion.StoreWeather(ctx, []models.WeatherRecord{{CityName: "New York", Country: "US", Timestamp: ts(0), Temperature: floatPtr(5)}}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.ingestion.StoreAirQuality(ctx, []models.AirQualityRecord{{City: "New York", Country: "US", Location: "Queens", Timestamp: ts(0), PM25: floatPtr(8)}}); err != nil {
		t.Fatal(err)
	}

	records := []models.CityMetadataRecord{
		{GeoDBID: "Q60", Name: "New York City", Country: "US", Population: int64Ptr(8804190), ResolveAs: &models.CityKey{Name: "New York", Country: "US"}},
		{Name: "Gotham", Country: "US", Population: int64Ptr(1)},
		{GeoDBID: "Q1"},
	}

	result, err := env.ingestion.StoreCityMetadata(ctx, records)
	if err != nil {
		t.Fatalf("StoreCityMetadata() error = %v", err)
	}
	if result.Written != 2 || result.Skipped != 1 {
		t.Errorf("result = %+v, want written 2, skipped 1", result)
	}
	if _, err := env.repo.GetCity(ctx, "Gotham", "US"); err != nil {
		t.Errorf("GetCity(Gotham) error = %v, want the city created from metadata", err)
	}

	summaries, err := env.stats.ComputeCityStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].Population == nil || *summaries[0].Population != 8804190 {
		t.Fatalf("summaries = %+v, want population 8804190", summaries)
	}
	if summaries[0].AQCategory == nil || *summaries[0].AQCategory != models.AQGood {
		t.Errorf("AQCategory = %v, want Good", summaries[0].AQCategory)
	}
}

func TestIngestionService_StoreCityMetadataCreatesCity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	records := []models.CityMetadataRecord{{
		GeoDBID:    "Q60",
		Name:       "Springfield",
		Country:    "US",
		Population: int64Ptr(150000),
		Latitude:   floatPtr(39.8),
		Longitude:  floatPtr(-89.6),
	}}

	result, err := env.ingestion.StoreCityMetadata(ctx, records)
	if err != nil {
		t.Fatalf("StoreCityMetadata() error = %v", err)
	}
	if result.Written != 1 || result.Skipped != 0 {
		t.Errorf("result = %+v, want written 1, skipped 0", result)
	}

	city, err := env.repo.GetCity(ctx, "Springfield", "US")
	if err != nil {
		t.Fatalf("GetCity() error = %v", err)
	}
	if city.Latitude == nil || *city.Latitude != 39.8 {
		t.Errorf("Latitude = %v, want 39.8 from the metadata record", city.Latitude)
	}

	// no weather or pm25 yet, so the city stays out of the summary
	summaries, err := env.stats.ComputeCityStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 0 {
		t.Fatalf("summaries = %+v, want none before weather and pm25 arrive", summaries)
	}

	if _, err := env.ingestion.StoreWeather(ctx, []models.WeatherRecord{{CityName: "Springfield", Country: "US", Timestamp: ts(0), Temperature: floatPtr(18)}}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.ingestion.StoreAirQuality(ctx, []models.AirQualityRecord{{City: "Springfield", Country: "US", Location: "Capitol", Timestamp: ts(0), PM25: floatPtr(9)}}); err != nil {
		t.Fatal(err)
	}

	summaries, err = env.stats.ComputeCityStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].Population == nil || *summaries[0].Population != 150000 {
		t.Fatalf("summaries = %+v, want Springfield with population 150000", summaries)
	}
	if n, _ := env.repo.CountCities(ctx, ""); n != 1 {
		t.Errorf("CountCities() = %d, want 1", n)
	}
}

func TestStatisticsService_SortsByCityThenCountry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	weather := []models.WeatherRecord{
		{CityName: "Paris", Country: "US", Timestamp: ts(0), Temperature: floatPtr(1)},
		{CityName: "Paris", Country: "FR", Timestamp: ts(0), Temperature: floatPtr(2)},
		{CityName: "Berlin", Country: "DE", Timestamp: ts(0), Temperature: floatPtr(3)},
	}
	aq := []models.AirQualityRecord{
		{City: "Paris", Country: "US", Location: "S1", Timestamp: ts(0), PM25: floatPtr(1)},
		{City: "Paris", Country: "FR", Location: "S2", Timestamp: ts(0), PM25: floatPtr(2)},
		{City: "Berlin", Country: "DE", Location: "S3", Timestamp: ts(0), PM25: floatPtr(3)},
	}
	if _, err := env.ingestion.StoreWeather(ctx, weather); err != nil {
		t.Fatal(err)
	}
	if _, err := env.ingestion.StoreAirQuality(ctx, aq); err != nil {
		t.Fatal(err)
	}

	summaries, err := env.stats.ComputeCityStats(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := [][2]string{{"Berlin", "DE"}, {"Paris", "FR"}, {"Paris", "US"}}
	if len(summaries) != len(want) {
		t.Fatalf("got %d summaries, want %d", len(summaries), len(want))
	}
	for i, w := range want {
		if summaries[i].City != w[0] || summaries[i].Country != w[1] {
			t.Errorf("summaries[%d] = %s/%s, want %s/%s", i, summaries[i].City, summaries[i].Country, w[0], w[1])
		}
	}

	moderate := FilterByCategory(summaries, models.AQModerate)
	if len(moderate) != 0 {
		t.Errorf("FilterByCategory(Moderate) = %d summaries, want 0", len(moderate))
	}
	if good := FilterByCategory(summaries, models.AQGood); len(good) != 3 {
		t.Errorf("FilterByCategory(Good) = %d summaries, want 3", len(good))
	}
}

func TestPipelineService_ResumesAcrossRuns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reportPath := filepath.Join(t.TempDir(), "results.txt")

	p := env.pipeline(PipelineDeps{
		Roster:     threeCities,
		Weather:    &fakeWeather{},
		AirQuality: &fakeAirQuality{values: map[string][]float64{"A": {5}, "B": {20}, "C": {50}}},
		Metadata:   &fakeMetadata{population: map[string]int64{"A": 1000}},
	}, PipelineConfig{BatchSize: 2, ReportPath: reportPath})

	tests := []struct {
		wantStart, wantNext, wantBatch int
		wantCities                     []string
	}{
		{0, 2, 2, []string{"A", "B"}},
		{2, 3, 1, []string{"A", "B", "C"}},
		{3, 3, 0, []string{"A", "B", "C"}},
	}

	for i, tt := range tests {
		result, err := p.Run(ctx)
		if err != nil {
			t.Fatalf("run %d: Run() error = %v", i+1, err)
		}
		if result.StartCursor != tt.wantStart || result.NextCursor != tt.wantNext || result.BatchSize != tt.wantBatch {
			t.Errorf("run %d: cursor %d->%d batch %d, want %d->%d batch %d",
				i+1, result.StartCursor, result.NextCursor, result.BatchSize, tt.wantStart, tt.wantNext, tt.wantBatch)
		}

		var got []string
		for _, s := range result.Summaries {
			got = append(got, s.City)
		}
		if len(got) != len(tt.wantCities) {
			t.Fatalf("run %d: summaries = %v, want %v", i+1, got, tt.wantCities)
		}
		for j := range got {
			if got[j] != tt.wantCities[j] {
				t.Errorf("run %d: summaries = %v, want %v", i+1, got, tt.wantCities)
				break
			}
		}

		stored, _ := env.cursor.Load(ctx)
		if stored.NextStart != tt.wantNext {
			t.Errorf("run %d: stored cursor = %d, want %d", i+1, stored.NextStart, tt.wantNext)
		}
		if result.ReportPath != reportPath {
			t.Errorf("run %d: ReportPath = %q", i+1, result.ReportPath)
		}
	}

	final, err := env.stats.ComputeCityStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	categories := map[string]models.AQCategory{"A": models.AQGood, "B": models.AQModerate, "C": models.AQUnhealthy}
	for _, s := range final {
		if s.AQCategory == nil || *s.AQCategory != categories[s.City] {
			t.Errorf("%s category = %v, want %s", s.City, s.AQCategory, categories[s.City])
		}
		if s.City == "A" && (s.Population == nil || *s.Population != 1000) {
			t.Errorf("A population = %v, want 1000", s.Population)
		}
		if s.City != "A" && s.Population != nil {
			t.Errorf("%s population = %d, want nil", s.City, *s.Population)
		}
	}

	status, err := p.Progress(ctx)
	if err != nil {
		t.Fatalf("Progress() error = %v", err)
	}
	if !status.Complete || status.Remaining != 0 || status.RosterSize != 3 {
		t.Errorf("Progress() = %+v, want complete", status)
	}
}

func TestPipelineService_AveragesAcrossRuns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	single := []roster.CityPair{{FetchKey: "A,XX", DisplayName: "A"}}

	weather := &fakeWeather{temps: map[string][]float64{"A,XX": {10, 20}}}
	aq := &fakeAirQuality{values: map[string][]float64{"A": {10, 30}}}

	for i := 0; i < 2; i++ {
		env.cursor = progress.NewFileStore(filepath.Join(t.TempDir(), "progress.json"), env.logger)
		p := env.pipeline(PipelineDeps{Roster: single, Weather: weather, AirQuality: aq}, PipelineConfig{BatchSize: 1})
		if _, err := p.Run(ctx); err != nil {
			t.Fatalf("run %d: Run() error = %v", i+1, err)
		}
	}

	summaries, err := env.stats.ComputeCityStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	s := summaries[0]
	if s.AvgTemp == nil || *s.AvgTemp != 15 || s.AvgPM25 == nil || *s.AvgPM25 != 20 {
		t.Errorf("averages = %v/%v, want 15/20", s.AvgTemp, s.AvgPM25)
	}
	if s.AQCategory == nil || *s.AQCategory != models.AQModerate {
		t.Errorf("AQCategory = %v, want Moderate", s.AQCategory)
	}
}

func TestPipelineService_FetchFailureSkipsCity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.pipeline(PipelineDeps{
		Roster:     threeCities,
		Weather:    &fakeWeather{fail: map[string]error{"B,XX": errors.New("timeout")}},
		AirQuality: &fakeAirQuality{values: map[string][]float64{"A": {5}, "B": {5}, "C": {5}}},
	}, PipelineConfig{BatchSize: 3})

	result, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.NextCursor != 3 {
		t.Errorf("NextCursor = %d, want 3", result.NextCursor)
	}
	if result.FetchFailures["weather"] != 1 || result.FetchFailures["air_quality"] != 1 {
		t.Errorf("FetchFailures = %v", result.FetchFailures)
	}
	if len(result.Summaries) != 2 {
		t.Errorf("got %d summaries, want 2 without B", len(result.Summaries))
	}
	if result.Metadata != nil {
		t.Error("metadata stage should not run without a source or fallback")
	}
}

func TestPipelineService_MetadataFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.pipeline(PipelineDeps{
		Roster:     threeCities,
		Weather:    &fakeWeather{},
		AirQuality: &fakeAirQuality{values: map[string][]float64{"A": {5}, "B": {5}, "C": {5}}},
		Metadata:   &fakeMetadata{err: errors.New("403 forbidden")},
	}, PipelineConfig{BatchSize: 3, MetadataFallback: true})

	result, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Metadata == nil || result.Metadata.Written != 3 {
		t.Fatalf("Metadata = %+v, want 3 fallback rows written", result.Metadata)
	}

	want := map[string]int64{"A": 150000, "B": 200000, "C": 250000}
	for _, s := range result.Summaries {
		if s.Population == nil || *s.Population != want[s.City] {
			t.Errorf("%s population = %v, want %d", s.City, s.Population, want[s.City])
		}
	}
}

func TestPipelineService_StoreFailureKeepsCursor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.db.ExecContext(ctx, "drop", "DROP TABLE weather_observations"); err != nil {
		t.Fatal(err)
	}

	p := env.pipeline(PipelineDeps{
		Roster:     threeCities,
		Weather:    &fakeWeather{},
		AirQuality: &fakeAirQuality{},
	}, PipelineConfig{BatchSize: 2})

	if _, err := p.Run(ctx); err == nil {
		t.Fatal("expected error when the store is missing a table")
	}

	stored, _ := env.cursor.Load(ctx)
	if stored.NextStart != 0 {
		t.Errorf("cursor advanced to %d after a failed store", stored.NextStart)
	}
}

func TestPipelineService_CancelledRunKeepsCursor(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := env.pipeline(PipelineDeps{
		Roster:     threeCities,
		Weather:    &fakeWeather{cancel: cancel},
		AirQuality: &fakeAirQuality{},
	}, PipelineConfig{BatchSize: 3})

	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	stored, _ := env.cursor.Load(context.Background())
	if stored.NextStart != 0 {
		t.Errorf("cursor advanced to %d after cancellation", stored.NextStart)
	}
}

func TestPipelineService_InvalidBatchSize(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(PipelineDeps{Roster: threeCities, Weather: &fakeWeather{}, AirQuality: &fakeAirQuality{}}, PipelineConfig{BatchSize: -1})

	if _, err := p.Run(context.Background()); !errors.Is(err, roster.ErrInvalidBatchSize) {
		t.Fatalf("Run() error = %v, want ErrInvalidBatchSize", err)
	}
}

func TestCityService_ListCities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	weather := []models.WeatherRecord{
		{CityName: "Tokyo", Country: "JP", Timestamp: ts(0)},
		{CityName: "Osaka", Country: "JP", Timestamp: ts(0)},
		{CityName: "Seoul", Country: "KR", Timestamp: ts(0)},
	}
	if _, err := env.ingestion.StoreWeather(ctx, weather); err != nil {
		t.Fatal(err)
	}

	svc := NewCityService(env.repo, env.logger, env.metrics)
	cities, total, err := svc.ListCities(ctx, models.CityListOptions{Country: "JP", Limit: 1})
	if err != nil {
		t.Fatalf("ListCities() error = %v", err)
	}
	if total != 2 || len(cities) != 1 || cities[0].Name != "Osaka" {
		t.Errorf("ListCities() = %d cities (first %v), total %d", len(cities), cities, total)
	}
	if err := svc.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
