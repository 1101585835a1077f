package validator

import (
	"fmt"
	"net"
	"reflect"
	"regexp"
	"time"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Required fails on zero values.
var Required = newRule(func(v any) error {
	if isZeroValue(v) {
		return fmt.Errorf("is required")
	}
	return nil
})

// Identifier accepts SQL identifiers, optionally qualified once
// ("schema.table").
var Identifier = newRule(func(v any) error {
	s, ok := v.(string)
	if !ok || !identifierRegex.MatchString(s) {
		return fmt.Errorf("must be an identifier")
	}
	return nil
})

// HostPort accepts "host:port" addresses.
var HostPort = newRule(func(v any) error {
	s, _ := v.(string)
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("must be host:port")
	}
	return nil
})

// Range accepts numbers and durations between min and max inclusive.
func Range(min, max float64) Rule {
	return newRule(func(v any) error {
		val, ok := toFloat(v)
		if !ok || val < min || val > max {
			return fmt.Errorf("value must be between %v and %v", min, max)
		}
		return nil
	})
}

// Min accepts numbers and durations of at least min.
func Min(min float64) Rule {
	return newRule(func(v any) error {
		val, ok := toFloat(v)
		if !ok || val < min {
			return fmt.Errorf("value must be at least %v", min)
		}
		return nil
	})
}

// In accepts one of values.
func In(values ...any) Rule {
	return newRule(func(v any) error {
		for _, val := range values {
			if val == v {
				return nil
			}
		}
		return fmt.Errorf("value %v is not in the allowed list %v", v, values)
	})
}

// Regexp accepts strings matching pattern.
func Regexp(pattern string) Rule {
	re := regexp.MustCompile(pattern)
	return newRule(func(v any) error {
		s, ok := v.(string)
		if !ok || !re.MatchString(s) {
			return fmt.Errorf("does not match pattern")
		}
		return nil
	})
}

// Each applies rules to every element of a slice.
func Each(rules ...Rule) Rule {
	return newRule(func(v any) error {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			for _, r := range rules {
				if err := r.Validate(rv.Index(i).Interface()); err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
			}
		}
		return nil
	})
}

func toFloat(v any) (float64, bool) {
	if d, ok := v.(time.Duration); ok {
		return float64(d), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
