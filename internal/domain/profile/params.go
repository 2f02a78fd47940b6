package profile

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/refitt/refitt-api/internal/apierr"
)

// Coerce converts a query parameter value to the most specific scalar it
// represents: integer, float, boolean, nil or the string itself. NaN and
// infinities have no JSON form and stay strings.
func Coerce(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null", "none":
		return nil
	}
	return s
}

func single(params url.Values, key string) (string, error) {
	values := params[key]
	if len(values) != 1 {
		return "", apierr.Newf(apierr.ParameterInvalid, "Expected single value for parameter '%s'", key)
	}
	return values[0], nil
}

// ApplyUserParams updates u from query parameters. Known fields are set
// directly; anything else is stored in Data.
func ApplyUserParams(u *User, params url.Values) error {
	for key := range params {
		value, err := single(params, key)
		if err != nil {
			return err
		}
		switch key {
		case "id":
			return apierr.New(apierr.ParameterInvalid, "Cannot update 'id'")
		case "first_name":
			u.FirstName = value
		case "last_name":
			u.LastName = value
		case "email":
			u.Email = value
		case "alias":
			u.Alias = value
		default:
			setData(&u.Data, key, value)
		}
	}
	return nil
}

// ApplyFacilityParams updates f from query parameters. Known fields are set
// directly; anything else is stored in Data.
func ApplyFacilityParams(f *Facility, params url.Values) error {
	for key := range params {
		value, err := single(params, key)
		if err != nil {
			return err
		}
		var target *decimal.Decimal
		switch key {
		case "id":
			return apierr.New(apierr.ParameterInvalid, "Cannot update 'id'")
		case "name":
			f.Name = value
			continue
		case "latitude":
			target = &f.Latitude
		case "longitude":
			target = &f.Longitude
		case "elevation":
			target = &f.Elevation
		case "limiting_magnitude":
			target = &f.LimitingMagnitude
		default:
			setData(&f.Data, key, value)
			continue
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return apierr.Wrap(apierr.ParameterInvalid, err, "Expected number for parameter '"+key+"'")
		}
		*target = d
	}
	return nil
}

func setData(data *map[string]any, key, value string) {
	if *data == nil {
		*data = make(map[string]any)
	}
	(*data)[key] = Coerce(value)
}
