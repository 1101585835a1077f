package core

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// keyOf returns the form a key value is compared by, so that int64(5),
// "5" and float64(5) from different drivers or JSON all match. Nil keys
// never match anything.
func keyOf(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e18 {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return keyOf(float64(x))
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Ptr:
		if rv.IsNil() {
			return "", false
		}
		return keyOf(rv.Elem().Interface())
	}
	return fmt.Sprint(v), true
}

// keySet collects distinct key values in first-seen order.
type keySet struct {
	seen   map[string]struct{}
	values []any
}

func newKeySet(n int) *keySet {
	return &keySet{seen: make(map[string]struct{}, n), values: make([]any, 0, n)}
}

func (s *keySet) add(v any) {
	k, ok := keyOf(v)
	if !ok {
		return
	}
	if _, dup := s.seen[k]; dup {
		return
	}
	s.seen[k] = struct{}{}
	s.values = append(s.values, v)
}

func (s *keySet) has(v any) bool {
	k, ok := keyOf(v)
	if !ok {
		return false
	}
	_, found := s.seen[k]
	return found
}

func (s *keySet) len() int { return len(s.values) }
