package demoserver

import (
	"time"

	"github.com/truthinlistings/dashboard/internal/apiclient"
)

var sampleListings = []apiclient.ListingInput{
	{
		Title:       "2BHK near metro, urgent sale",
		Description: "Owner abroad. Pay token amount by wire to book, no visit needed.",
		Price:       450000, AreaSqft: 900,
		City: "Mumbai", Locality: "Andheri West",
	},
	{
		Title:       "Spacious 3BHK with balcony",
		Description: "Well maintained flat in a gated society with power backup, covered parking and a children's play area.",
		Price:       9500000, AreaSqft: 1450,
		City: "Pune", Locality: "Baner",
		Latitude: 18.559, Longitude: 73.7868,
	},
	{
		Title:       "Studio apartment",
		Description: "Compact studio, close to IT park and shopping.",
		Price:       2200000, AreaSqft: 1000,
		City: "Bengaluru", Locality: "Whitefield",
		Latitude: 12.9698, Longitude: 77.75,
	},
}

func (s *DemoServer) seed() {
	base := time.Now().UTC().Add(-72 * time.Hour)
	for i, in := range sampleListings {
		s.store(in, scoreListing(in), base.Add(time.Duration(i)*24*time.Hour))
	}
}
