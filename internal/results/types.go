// Package results turns the two raw feeds of a hotel search into the list a
// user sees: stitched by id, filtered, sorted and revealed a page at a time.
package results

import "github.com/alex-user-go/stayfinder/internal/feeds"

// PageSize is the number of hotels revealed per page.
const PageSize = 10

// StitchedHotel is a hotel joined with its price. Only priced hotels are ever stitched.
type StitchedHotel struct {
	feeds.HotelRecord
	Price      *float64 `json:"price,omitempty"`
	SearchRank *float64 `json:"searchRank,omitempty"`
}

// PriceRange is an inclusive price interval. Min > Max is legal and matches nothing.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Tag is a keyword matched against a hotel's free-text description.
type Tag string

const (
	TagMosque   Tag = "mosque"
	TagTemple   Tag = "temple"
	TagChurch   Tag = "church"
	TagHeritage Tag = "heritage"
)

// TagFlags selects which tags a hotel must mention.
type TagFlags struct {
	Mosque   bool `json:"mosque"`
	Temple   bool `json:"temple"`
	Church   bool `json:"church"`
	Heritage bool `json:"heritage"`
}

// Enabled returns the selected tags in a fixed order.
func (f TagFlags) Enabled() []Tag {
	var tags []Tag
	if f.Mosque {
		tags = append(tags, TagMosque)
	}
	if f.Temple {
		tags = append(tags, TagTemple)
	}
	if f.Church {
		tags = append(tags, TagChurch)
	}
	if f.Heritage {
		tags = append(tags, TagHeritage)
	}
	return tags
}

// FilterState holds the user-controlled predicates. Bounds are not normalized:
// MinStar > MaxStar or an inverted PriceRange yield no hotels.
type FilterState struct {
	MinStar    float64    `json:"min_star"`
	MaxStar    float64    `json:"max_star"`
	PriceRange PriceRange `json:"price_range"`
	Tags       TagFlags   `json:"tags"`
}

// DefaultFilter accepts every star rating and the given price range.
func DefaultFilter(full PriceRange) FilterState {
	return FilterState{MinStar: 0, MaxStar: 5, PriceRange: full}
}

// SortCriterion selects the order of the result list.
type SortCriterion string

const (
	PriceAscending   SortCriterion = "Price (Ascending)"
	PriceDescending  SortCriterion = "Price (Descending)"
	RatingAscending  SortCriterion = "Rating (Ascending)"
	RatingDescending SortCriterion = "Rating (Descending)"

	DefaultSort = PriceAscending
)

// Valid reports whether c is one of the known criteria.
func (c SortCriterion) Valid() bool {
	switch c {
	case PriceAscending, PriceDescending, RatingAscending, RatingDescending:
		return true
	}
	return false
}
