package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alex-user-go/stayfinder/internal/feeds"
	"github.com/alex-user-go/stayfinder/internal/results"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

// CreateSearchRequest starts a search session.
type CreateSearchRequest struct {
	DestinationID string `json:"destination_id" validate:"required"`
	Checkin       string `json:"checkin" validate:"required,datetime=2006-01-02"`
	Checkout      string `json:"checkout" validate:"required,datetime=2006-01-02"`
	Guests        string `json:"guests" validate:"required,guests"`
}

// Query converts the request into the upstream price query.
func (r CreateSearchRequest) Query() feeds.PriceQuery {
	return feeds.PriceQuery{
		DestinationID: r.DestinationID,
		Checkin:       r.Checkin,
		Checkout:      r.Checkout,
		Guests:        r.Guests,
	}
}

// FilterRequest replaces a session's filter.
type FilterRequest struct {
	MinStar    *float64          `json:"min_star" validate:"required,gte=0,lte=5"`
	MaxStar    *float64          `json:"max_star" validate:"required,gte=0,lte=5"`
	PriceRange PriceRangeRequest `json:"price_range"`
	Tags       results.TagFlags  `json:"tags"`
}

// PriceRangeRequest is a selected price interval. Min above Max is allowed and matches nothing.
type PriceRangeRequest struct {
	Min *float64 `json:"min" validate:"required,gte=0"`
	Max *float64 `json:"max" validate:"required,gte=0"`
}

// FilterState converts a validated request.
func (r FilterRequest) FilterState() results.FilterState {
	return results.FilterState{
		MinStar:    *r.MinStar,
		MaxStar:    *r.MaxStar,
		PriceRange: results.PriceRange{Min: *r.PriceRange.Min, Max: *r.PriceRange.Max},
		Tags:       r.Tags,
	}
}

// SortRequest changes a session's sort order.
type SortRequest struct {
	Criterion string `json:"criterion" validate:"required,sortcriterion"`
}

// guestsPattern matches a room spec such as "2" or "2|3": one positive count per room.
var guestsPattern = regexp.MustCompile(`^[1-9][0-9]*(\|[1-9][0-9]*)*$`)

// NewValidator returns a validator that knows the request rules of this API.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("guests", func(fl validator.FieldLevel) bool {
		return guestsPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("sortcriterion", func(fl validator.FieldLevel) bool {
		return results.SortCriterion(fl.Field().String()).Valid()
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(CreateSearchRequest)
		in, err1 := time.Parse(dateLayout, req.Checkin)
		out, err2 := time.Parse(dateLayout, req.Checkout)
		if err1 == nil && err2 == nil && !out.After(in) {
			sl.ReportError(req.Checkout, "checkout", "Checkout", "aftercheckin", "")
		}
	}, CreateSearchRequest{})
	return v
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError turns the first failed rule into a readable message.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "datetime":
		return fmt.Errorf("%s must be in YYYY-MM-DD format", field)
	case "guests":
		return fmt.Errorf("%s must be pipe-separated positive integers, one per room", field)
	case "sortcriterion":
		return fmt.Errorf("%s must be one of %q, %q, %q, %q", field,
			results.PriceAscending, results.PriceDescending, results.RatingAscending, results.RatingDescending)
	case "aftercheckin":
		return fmt.Errorf("%s must be after checkin", field)
	case "gte":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Errorf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Errorf("%s is invalid", field)
}
