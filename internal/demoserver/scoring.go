package demoserver

import (
	"fmt"
	"math"
	"strings"

	"github.com/truthinlistings/dashboard/internal/apiclient"
)

// The mock backend derives canned numbers from a few listing attributes so
// every risk tier can be produced on demand. It is not a fraud model.

var pressureWords = []string{"urgent", "advance", "wire", "token amount", "no visit"}

func scoreListing(in apiclient.ListingInput) apiclient.AnalysisResult {
	price := 0.1
	if in.AreaSqft > 0 {
		perSqft := in.Price / in.AreaSqft
		switch {
		case perSqft < 1000:
			price = 0.9
		case perSqft < 3000:
			price = 0.5
		}
	}

	text := 0.15
	desc := strings.ToLower(in.Description + " " + in.Title)
	hits := 0
	for _, w := range pressureWords {
		if strings.Contains(desc, w) {
			hits++
		}
	}
	text = math.Min(1, text+0.3*float64(hits))
	if len(strings.TrimSpace(in.Description)) < 30 {
		text = math.Min(1, text+0.2)
	}

	geo := 0.1
	if in.Latitude == 0 && in.Longitude == 0 {
		geo = 0.85
	}

	image := 0.2
	prob := round3(0.45*price + 0.35*text + 0.2*geo)

	result := apiclient.AnalysisResult{
		FraudProbability: prob,
		FraudTypes:       []string{},
		ModuleScores: apiclient.ModuleScores{
			{Name: "price_analysis", Score: round3(price)},
			{Name: "text_analysis", Score: round3(text)},
			{Name: "geo_analysis", Score: round3(geo)},
			{Name: "image_metadata", Score: image},
		},
	}

	result.Explanations = append(result.Explanations,
		fmt.Sprintf("Listing in %s, %s scored %.0f%% fraud likelihood.", in.Locality, in.City, prob*100))
	if price >= 0.5 {
		result.FraudTypes = append(result.FraudTypes, "price_manipulation")
		result.Explanations = append(result.Explanations,
			fmt.Sprintf("Price per sqft (%.0f) is far below the local cluster.", in.Price/math.Max(in.AreaSqft, 1)))
	}
	if hits > 0 {
		result.FraudTypes = append(result.FraudTypes, "pressure_tactics")
		result.Explanations = append(result.Explanations, "Description uses urgency or advance-payment language.")
	}
	if geo >= 0.5 {
		result.FraudTypes = append(result.FraudTypes, "location_mismatch")
		result.Explanations = append(result.Explanations, "Coordinates do not resolve to the stated locality.")
	}
	return result
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
