package main

import (
	"context"
	"fmt"
	"os"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/measures"
	"checkin-platform/internal/models"
	"checkin-platform/internal/reports"
	"checkin-platform/internal/services"
	"checkin-platform/pkg/logging"
)

// A fortnight of checkins covering annotated measures, serving defaults,
// a US brewery can and a checkin with nothing to go on.
const sampleExport = `[
  {"created_at": "2023-01-02 18:00:00", "comment": "Cracking [pint]", "serving_type": "Draft", "beer_abv": 4.3, "rating_score": "4", "beer_name": "Landlord", "beer_type": "Bitter - Best", "brewery_name": "Timothy Taylor", "brewery_country": "England", "venue_country": "England"},
  {"created_at": "2023-01-02 20:15:00", "comment": "", "serving_type": "Bottle", "beer_abv": "5.9", "rating_score": "3.75", "beer_name": "Jaipur", "beer_type": "IPA - English", "brewery_name": "Thornbridge", "brewery_country": "England", "venue_country": "England"},
  {"created_at": "2023-01-05 19:30:00", "comment": "[2/3 pint]", "serving_type": "Draft", "beer_abv": 7.2, "rating_score": "4.25", "beer_name": "Imperial Stout", "beer_type": "Stout - Imperial", "brewery_name": "Thornbridge", "brewery_country": "England", "venue_country": "England"},
  {"created_at": "2023-01-07 21:00:00", "comment": "Imported", "serving_type": "Can", "beer_abv": 6.5, "rating_score": "4.5", "beer_name": "Two Hearted", "beer_type": "IPA - American", "brewery_name": "Bell's", "brewery_country": "United States", "venue_country": ""},
  {"created_at": "2023-01-10 18:45:00", "comment": "tasting", "serving_type": "", "beer_abv": 5.0, "rating_score": "", "beer_name": "Mystery", "beer_type": "Lager - Pale", "brewery_name": "Unknown", "brewery_country": "England", "venue_country": "England"},
  {"created_at": "2023-01-13 17:30:00", "comment": "[half]", "serving_type": "Draft", "beer_abv": 4.3, "rating_score": "4", "beer_name": "Landlord", "beer_type": "Bitter - Best", "brewery_name": "Timothy Taylor", "brewery_country": "England", "venue_country": "England"}
]`

func main() {
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("CHECKIN PLATFORM - AGGREGATION DEMONSTRATION")
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println()

	logger := logging.NewStructuredLogger("demo", "1.0.0", logging.WarnLevel)
	ctx := context.Background()

	checkins, err := services.DecodeExport([]byte(sampleExport))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode sample: %v\n", err)
		os.Exit(1)
	}

	aggregator, err := aggregation.NewAggregator(aggregation.Config{Measures: measures.DefaultConfig()}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create aggregator: %v\n", err)
		os.Exit(1)
	}

	result, err := aggregator.Aggregate(ctx, checkins)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Aggregation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Checkins:        %d\n", result.Records)
	fmt.Printf("Skipped:         %d\n", result.Skipped)
	fmt.Printf("Initial region:  %s\n", result.InitialRegion)
	fmt.Printf("Period:          %s to %s\n", aggregation.DateKey(result.FirstDate), aggregation.DateKey(result.LastDate))
	fmt.Println()

	fmt.Println("Weekly")
	fmt.Println("─────────────────────────────────────────────────────────────")
	if err := reports.WriteCSV(os.Stdout, reports.KindWeekly, result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write weekly rows: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()

	fmt.Println("Styles")
	fmt.Println("─────────────────────────────────────────────────────────────")
	if err := reports.WriteCSV(os.Stdout, reports.KindStyles, result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write styles: %v\n", err)
		os.Exit(1)
	}

	if result.Estimate() != models.EstimateCertain {
		fmt.Println()
		for _, line := range reports.Legend {
			fmt.Println(line)
		}
	}
}
