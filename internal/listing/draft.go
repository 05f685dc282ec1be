package listing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/truthinlistings/dashboard/internal/apiclient"
)

// Field names, in form order. They match the listing_data JSON keys.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldAreaSqft    = "area_sqft"
	FieldCity        = "city"
	FieldLocality    = "locality"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
)

// Fields lists every form field in display order.
var Fields = []string{
	FieldTitle, FieldDescription, FieldPrice, FieldAreaSqft,
	FieldCity, FieldLocality, FieldLatitude, FieldLongitude,
}

// Draft is the form exactly as typed.
type Draft struct {
	Title       string
	Description string
	Price       string
	AreaSqft    string
	City        string
	Locality    string
	Latitude    string
	Longitude   string
}

func (d *Draft) slot(name string) *string {
	switch name {
	case FieldTitle:
		return &d.Title
	case FieldDescription:
		return &d.Description
	case FieldPrice:
		return &d.Price
	case FieldAreaSqft:
		return &d.AreaSqft
	case FieldCity:
		return &d.City
	case FieldLocality:
		return &d.Locality
	case FieldLatitude:
		return &d.Latitude
	case FieldLongitude:
		return &d.Longitude
	}
	return nil
}

// Set updates one field by name.
func (d *Draft) Set(name, value string) error {
	p := d.slot(name)
	if p == nil {
		return fmt.Errorf("unknown listing field %q", name)
	}
	*p = value
	return nil
}

// Get returns one field by name.
func (d Draft) Get(name string) string {
	if p := d.slot(name); p != nil {
		return *p
	}
	return ""
}

// FieldError is a problem with one form field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// ValidationErrors lists field problems in form order.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, ", ")
}

// For returns the message for field, if any.
func (v ValidationErrors) For(field string) string {
	for _, e := range v {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

type numberRule struct {
	min, max float64
	msg      string
	target   func(*apiclient.ListingInput) *float64
}

var numberRules = map[string]numberRule{
	FieldPrice: {0, math.Inf(1), "must not be negative",
		func(in *apiclient.ListingInput) *float64 { return &in.Price }},
	FieldAreaSqft: {0, math.Inf(1), "must not be negative",
		func(in *apiclient.ListingInput) *float64 { return &in.AreaSqft }},
	FieldLatitude: {-90, 90, "must be between -90 and 90",
		func(in *apiclient.ListingInput) *float64 { return &in.Latitude }},
	FieldLongitude: {-180, 180, "must be between -180 and 180",
		func(in *apiclient.ListingInput) *float64 { return &in.Longitude }},
}

// Validate checks every field and converts the draft into the API payload.
// Every field is required; the numeric ones must parse as finite numbers in
// range.
func (d Draft) Validate() (apiclient.ListingInput, ValidationErrors) {
	var in apiclient.ListingInput
	var errs ValidationErrors
	for _, name := range Fields {
		raw := strings.TrimSpace(d.Get(name))
		if raw == "" {
			errs = append(errs, FieldError{Field: name, Message: "is required"})
			continue
		}
		rule, numeric := numberRules[name]
		if !numeric {
			*textTarget(&in, name) = raw
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			errs = append(errs, FieldError{Field: name, Message: "must be a number"})
			continue
		}
		if f < rule.min || f > rule.max {
			errs = append(errs, FieldError{Field: name, Message: rule.msg})
			continue
		}
		*rule.target(&in) = f
	}
	return in, errs
}

func textTarget(in *apiclient.ListingInput, name string) *string {
	switch name {
	case FieldTitle:
		return &in.Title
	case FieldDescription:
		return &in.Description
	case FieldCity:
		return &in.City
	default:
		return &in.Locality
	}
}
