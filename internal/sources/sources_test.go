package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"city-stats-platform/internal/models"
	"city-stats-platform/internal/roster"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

func testConfig(baseURL string) ProviderConfig {
	return ProviderConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func testDeps() (*logging.StructuredLogger, *metrics.Collector) {
	return logging.NewNopLogger(), metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
}

func floatPtr(v float64) *float64 { return &v }

const openWeatherBody = `{
	"coord": {"lon": -83.743, "lat": 42.2776},
	"weather": [{"id": 800, "main": "Clear", "description": "clear sky"}],
	"main": {"temp": 12.5, "feels_like": 11.2, "humidity": 60},
	"wind": {"speed": 3.6},
	"dt": 1700000000,
	"sys": {"country": "US"},
	"name": "Ann Arbor"
}`

func TestOpenWeatherClient_FetchWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather" {
			t.Errorf("path = %s, want /weather", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "Ann Arbor,US" || q.Get("appid") != "test-key" || q.Get("units") != "metric" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, openWeatherBody)
	}))
	defer server.Close()

	logger, collector := testDeps()
	client := NewOpenWeatherClient(testConfig(server.URL), logger, collector)

	record, err := client.FetchWeather(context.Background(), "Ann Arbor,US")
	if err != nil {
		t.Fatalf("FetchWeather() error = %v", err)
	}

	if record.CityName != "Ann Arbor" || record.Country != "US" {
		t.Errorf("key = %s/%s", record.CityName, record.Country)
	}
	if record.Temperature == nil || *record.Temperature != 12.5 {
		t.Errorf("Temperature = %v, want 12.5", record.Temperature)
	}
	if record.Latitude == nil || *record.Latitude != 42.2776 {
		t.Errorf("Latitude = %v", record.Latitude)
	}
	if record.WeatherMain != "Clear" {
		t.Errorf("WeatherMain = %q", record.WeatherMain)
	}
	if record.Timestamp == nil || !record.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Timestamp = %v", record.Timestamp)
	}
}

func TestOpenWeatherClient_MissingFieldsStayNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "Nowhere", "main": {"temp": 1.0}}`)
	}))
	defer server.Close()

	logger, collector := testDeps()
	record, err := NewOpenWeatherClient(testConfig(server.URL), logger, collector).FetchWeather(context.Background(), "Nowhere")
	if err != nil {
		t.Fatalf("FetchWeather() error = %v", err)
	}
	if record.Humidity != nil || record.WindSpeed != nil || record.Timestamp != nil || record.Latitude != nil {
		t.Errorf("absent fields should be nil: %+v", record)
	}
	if record.Country != "" || record.WeatherMain != "" {
		t.Errorf("absent strings should be empty: %+v", record)
	}
}

func TestOpenWeatherClient_MissingAPIKey(t *testing.T) {
	logger, collector := testDeps()
	cfg := testConfig("http://127.0.0.1:1")
	cfg.APIKey = ""

	_, err := NewOpenWeatherClient(cfg, logger, collector).FetchWeather(context.Background(), "Paris,FR")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("error = %v, want ErrMissingAPIKey", err)
	}
}

func TestHTTPClient_StatusHandling(t *testing.T) {
	tests := []struct {
		name          string
		statuses      []int
		wantErr       bool
		wantStatus    int
		wantTransient bool
		wantCalls     int32
	}{
		{"success", []int{200}, false, 0, false, 1},
		{"not found is not retried", []int{404}, true, 404, false, 1},
		{"server error recovers", []int{503, 200}, false, 0, false, 2},
		{"rate limit exhausts retries", []int{429, 429, 429}, true, 429, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tt.statuses[len(tt.statuses)-1]
				if int(n) <= len(tt.statuses) {
					status = tt.statuses[n-1]
				}
				w.WriteHeader(status)
				fmt.Fprint(w, openWeatherBody)
			}))
			defer server.Close()

			logger, collector := testDeps()
			_, err := NewOpenWeatherClient(testConfig(server.URL), logger, collector).FetchWeather(context.Background(), "Ann Arbor,US")

			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if err == nil {
				return
			}

			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ProviderError, got %T", err)
			}
			if pe.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", pe.StatusCode, tt.wantStatus)
			}
			if pe.IsTransient() != tt.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", pe.IsTransient(), tt.wantTransient)
			}
		})
	}
}

func TestHTTPClient_CircuitOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	logger, collector := testDeps()
	cfg := testConfig(server.URL)
	cfg.MaxRetries = 0
	client := NewOpenWeatherClient(cfg, logger, collector)

	for i := 0; i < 5; i++ {
		if _, err := client.FetchWeather(context.Background(), "X"); err == nil {
			t.Fatal("expected error from failing server")
		}
	}

	_, err := client.FetchWeather(context.Background(), "X")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrCircuitOpen", err)
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("server saw %d calls, want 5 before the breaker opened", got)
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, openWeatherBody)
	}))
	defer server.Close()

	logger, collector := testDeps()
	cfg := testConfig(server.URL)
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 0

	_, err := NewOpenWeatherClient(cfg, logger, collector).FetchWeather(context.Background(), "Slow")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError on timeout, got %v", err)
	}
	if !pe.IsTransient() {
		t.Error("timeouts should be transient")
	}
}

func TestOpenAQClient_FetchAirQuality(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("missing X-API-Key header")
		}
		q := r.URL.Query()
		if q.Get("coordinates") != "28.6139,77.2090" || q.Get("parameters_id") != "2" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"results": [{
			"id": 8118,
			"name": "New Delhi",
			"coordinates": {"latitude": 28.63576, "longitude": 77.22445},
			"sensors": [
				{"id": 100, "parameter": {"id": 1, "name": "pm10", "units": "µg/m³"}},
				{"id": 101, "parameter": {"id": 2, "name": "pm25", "units": "µg/m³"}}
			]
		}]}`)
	})
	mux.HandleFunc("/locations/8118/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [
			{"datetime": {"utc": "2024-03-01T10:00:00Z"}, "value": 250.0, "sensorsId": 100},
			{"datetime": {"utc": "2024-03-01T10:00:00Z"}, "value": 180.5, "sensorsId": 101}
		]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	logger, collector := testDeps()
	client := NewOpenAQClient(testConfig(server.URL), logger, collector)

	record, err := client.FetchAirQuality(context.Background(), models.AirQualityQuery{
		City:      "Delhi",
		Country:   "IN",
		Latitude:  floatPtr(28.6139),
		Longitude: floatPtr(77.2090),
	})
	if err != nil {
		t.Fatalf("FetchAirQuality() error = %v", err)
	}

	if record.City != "Delhi" || record.Country != "IN" || record.Location != "New Delhi" {
		t.Errorf("unexpected keys %+v", record)
	}
	if record.PM25 == nil || *record.PM25 != 180.5 {
		t.Errorf("PM25 = %v, want 180.5 from the pm25 sensor", record.PM25)
	}
	if record.Parameter != models.ParameterPM25 || record.Unit != "µg/m³" {
		t.Errorf("parameter/unit = %s/%s", record.Parameter, record.Unit)
	}
	if record.Timestamp == nil || record.Timestamp.Hour() != 10 {
		t.Errorf("Timestamp = %v", record.Timestamp)
	}
	if err := record.Validate(); err != nil {
		t.Errorf("record should be valid: %v", err)
	}
}

func TestOpenAQClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer server.Close()

	logger, collector := testDeps()
	client := NewOpenAQClient(testConfig(server.URL), logger, collector)

	_, err := client.FetchAirQuality(context.Background(), models.AirQualityQuery{City: "Atlantis"})
	if !errors.Is(err, ErrNoCoordinates) {
		t.Errorf("error = %v, want ErrNoCoordinates", err)
	}

	_, err = client.FetchAirQuality(context.Background(), models.AirQualityQuery{City: "Ocean", Latitude: floatPtr(0), Longitude: floatPtr(0)})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.IsTransient() {
		t.Error("an empty answer should not be transient")
	}
}

func TestGeoDBClient_FetchCityMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("namePrefix") != "New York" || q.Get("countryIds") != "US" || q.Get("sort") != "-population" || q.Get("hateoasMode") != "off" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-RapidAPI-Key") != "test-key" {
			t.Error("missing X-RapidAPI-Key header")
		}
		fmt.Fprint(w, `{"data": [
			{"id": 123214, "wikiDataId": "Q60", "city": "New York City", "name": "New York City",
			 "country": "United States of America", "countryCode": "US", "region": "New York",
			 "latitude": 40.67, "longitude": -73.94, "population": 8804190},
			{"id": "abc", "name": "New York Mills", "country": "United States of America",
			 "latitude": 46.5, "longitude": -95.3}
		]}`)
	}))
	defer server.Close()

	logger, collector := testDeps()
	client := NewGeoDBClient(testConfig(server.URL), logger, collector)

	records, err := client.FetchCityMetadata(context.Background(), models.CityMetadataQuery{NamePrefix: "New York", CountryCode: "US", Limit: 2})
	if err != nil {
		t.Fatalf("FetchCityMetadata() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.GeoDBID != "123214" || first.Name != "New York City" || first.Country != "US" || first.Region != "New York" {
		t.Errorf("unexpected first record %+v", first)
	}
	if first.Population == nil || *first.Population != 8804190 {
		t.Errorf("Population = %v", first.Population)
	}

	second := records[1]
	if second.GeoDBID != "abc" || second.Country != "United States of America" || second.Population != nil {
		t.Errorf("unexpected second record %+v", second)
	}
}

func TestGeoDBClient_NoKeyNoHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-RapidAPI-Key") != "" {
			t.Error("free service should not receive a RapidAPI key")
		}
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer server.Close()

	logger, collector := testDeps()
	cfg := testConfig(server.URL)
	cfg.APIKey = ""

	records, err := NewGeoDBClient(cfg, logger, collector).FetchCityMetadata(context.Background(), models.CityMetadataQuery{NamePrefix: "Oslo"})
	if err != nil {
		t.Fatalf("FetchCityMetadata() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestFallbackCityMetadata(t *testing.T) {
	tests := []struct {
		idx     int
		pair    roster.CityPair
		wantID  string
		wantPop int64
	}{
		{0, roster.CityPair{FetchKey: "Ann Arbor,US", DisplayName: "Ann Arbor"}, "local-0-Ann_Arbor", 150000},
		{3, roster.CityPair{FetchKey: "Paris,FR", DisplayName: "Paris"}, "local-3-Paris", 300000},
		{12, roster.CityPair{FetchKey: "Kansas City,US", DisplayName: "Kansas City"}, "local-12-Kansas_City", 250000},
	}

	for _, tt := range tests {
		got := FallbackCityMetadata(tt.pair, tt.idx)
		if got.GeoDBID != tt.wantID {
			t.Errorf("GeoDBID = %q, want %q", got.GeoDBID, tt.wantID)
		}
		if got.Population == nil || *got.Population != tt.wantPop {
			t.Errorf("Population = %v, want %d", got.Population, tt.wantPop)
		}
		if got.Country != tt.pair.Country() {
			t.Errorf("Country = %q, want %q", got.Country, tt.pair.Country())
		}
	}
}
