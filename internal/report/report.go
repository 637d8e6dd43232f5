package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"city-stats-platform/internal/models"
)

// Title heads every report
const Title = "City Statistics Results"

const unknownPopulation = "Unknown (no population data)"

var separator = strings.Repeat("-", 40)

// WriteText renders the summaries as a plain-text report, one block per city
func WriteText(w io.Writer, summaries []models.CityStatsSummary) error {
	printer := message.NewPrinter(language.English)
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, Title)
	fmt.Fprintln(bw, separator)

	for _, s := range summaries {
		fmt.Fprintf(bw, "City: %s\n", s.City)
		if s.Country != "" {
			fmt.Fprintf(bw, "Country: %s\n", s.Country)
		}
		fmt.Fprintf(bw, "Population: %s\n", formatPopulation(printer, s.Population))
		fmt.Fprintf(bw, "Average Temperature: %s\n", formatAverage(s.AvgTemp))
		fmt.Fprintf(bw, "Average PM2.5: %s\n", formatAverage(s.AvgPM25))
		fmt.Fprintf(bw, "Air Quality Category: %s\n", formatCategory(s.AQCategory))
		fmt.Fprintln(bw, separator)
	}

	return bw.Flush()
}

// WriteFile writes the report to path, replacing any previous report
func WriteFile(path string, summaries []models.CityStatsSummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := WriteText(f, summaries); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}

	return f.Close()
}

func formatPopulation(p *message.Printer, population *int64) string {
	if population == nil {
		return unknownPopulation
	}
	return p.Sprintf("%d", *population)
}

func formatAverage(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatCategory(c *models.AQCategory) string {
	if c == nil {
		return "N/A"
	}
	return string(*c)
}
