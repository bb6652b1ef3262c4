package results_test

import (
	"fmt"

	"github.com/alex-user-go/stayfinder/internal/feeds"
	"github.com/alex-user-go/stayfinder/internal/results"
)

func hotel(id, name string, rating float64, description string) feeds.HotelRecord {
	return feeds.HotelRecord{ID: id, Name: name, Rating: rating, Description: description}
}

func price(id string, p float64) feeds.PriceRecord {
	return feeds.PriceRecord{ID: id, Price: p, SearchRank: p / 100}
}

func stitched(name string, rating, p float64, description string) results.StitchedHotel {
	return results.StitchedHotel{
		HotelRecord: hotel(name, name, rating, description),
		Price:       &p,
	}
}

// fixture is the Cookie A / Milk B / Oreo C data set.
func fixtureHotels() []feeds.HotelRecord {
	return []feeds.HotelRecord{
		hotel("a", "Cookie A", 3.5, "Quiet rooms next to the old temple"),
		hotel("b", "Milk B", 1.5, "Budget stay near a Mosque and a church"),
		hotel("c", "Oreo C", 4.5, "Heritage building with a view of the temple"),
	}
}

func fixturePrices() []feeds.PriceRecord {
	return []feeds.PriceRecord{price("c", 2000), price("a", 500), price("b", 1000)}
}

func fixture() []results.StitchedHotel {
	return results.Stitch(fixtureHotels(), fixturePrices())
}

func allFilter() results.FilterState {
	return results.DefaultFilter(results.PriceRange{Min: 0, Max: 1e9})
}

func names(hs []results.StitchedHotel) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Name
	}
	return out
}

func prices(hs []results.StitchedHotel) []float64 {
	out := make([]float64, len(hs))
	for i, h := range hs {
		out[i] = *h.Price
	}
	return out
}

// manyHotels returns n priced hotels named h00, h01, ... with increasing prices.
func manyHotels(n int) ([]feeds.HotelRecord, []feeds.PriceRecord) {
	hs := make([]feeds.HotelRecord, n)
	ps := make([]feeds.PriceRecord, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("h%02d", i)
		hs[i] = hotel(id, id, float64(i%5)+0.5, "")
		ps[i] = price(id, float64(100+i))
	}
	return hs, ps
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
