package validator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Validator is a function that validates a value and returns an error.
type Validator func(value any) error

// ValidationErrors maps field paths to their validation errors.
type ValidationErrors map[string][]error

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for _, field := range fields {
		for _, err := range v[field] {
			if sb.Len() > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(&sb, "%s: %v", field, err)
		}
	}
	return sb.String()
}

// Add records err under field.
func (v ValidationErrors) Add(field string, err error) {
	v[field] = append(v[field], err)
}

// Merge copies other into v, prefixing its fields.
func (v ValidationErrors) Merge(prefix string, other error) {
	if other == nil {
		return
	}
	errs, ok := other.(ValidationErrors)
	if !ok {
		v.Add(prefix, other)
		return
	}
	for field, list := range errs {
		v[prefix+"."+field] = append(v[prefix+"."+field], list...)
	}
}

// Err returns v as an error, or nil when it is empty.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Rule is a single validation rule.
type Rule interface {
	Validate(value any) error
	Msg(msg string) Rule
	Optional() Rule
	When(fn func(value any) bool) Rule
}

// rule is the shared Rule implementation; check returns the default
// error for a failing value.
type rule struct {
	check    func(value any) error
	msg      string
	optional bool
	when     func(value any) bool
}

func newRule(check func(value any) error) Rule {
	return &rule{check: check}
}

func (r *rule) Validate(v any) error {
	if r.when != nil && !r.when(v) {
		return nil
	}
	if r.optional && isZeroValue(v) {
		return nil
	}
	if err := r.check(v); err != nil {
		if r.msg != "" {
			return fmt.Errorf("%s", r.msg)
		}
		return err
	}
	return nil
}

func (r *rule) Msg(msg string) Rule         { nr := *r; nr.msg = msg; return &nr }
func (r *rule) Optional() Rule              { nr := *r; nr.optional = true; return &nr }
func (r *rule) When(fn func(any) bool) Rule { nr := *r; nr.when = fn; return &nr }

func isZeroValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return rv.IsZero()
}

// Rules maps field paths to validation rules. A path may reach into
// nested structs with dots, e.g. "Pool.MaxOpenConns".
type Rules map[string][]Rule

// Validate checks value, a struct or pointer to struct, against the rules.
// Fields are checked in path order and missing fields are skipped.
func (r Rules) Validate(value any) error {
	if value == nil {
		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("validator: value must be a struct or pointer to struct")
	}

	paths := make([]string, 0, len(r))
	for path := range r {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	errs := make(ValidationErrors)
	for _, path := range paths {
		field, ok := fieldByPath(rv, path)
		if !ok {
			continue
		}
		val := field.Interface()
		for _, rule := range r[path] {
			if err := rule.Validate(val); err != nil {
				errs.Add(path, err)
			}
		}
	}
	return errs.Err()
}

func fieldByPath(rv reflect.Value, path string) (reflect.Value, bool) {
	for _, name := range strings.Split(path, ".") {
		for rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return reflect.Value{}, false
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return reflect.Value{}, false
		}
		rv = rv.FieldByName(name)
		if !rv.IsValid() {
			return reflect.Value{}, false
		}
	}
	return rv, true
}

// Validate is a standalone validation function.
func Validate(value any, validators ...Validator) error {
	for _, validator := range validators {
		if err := validator(value); err != nil {
			return err
		}
	}
	return nil
}
