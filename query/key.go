package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Key renders everything that decides which rows the spec reads. Names
// are quoted and every value carries its type, so two specs share a key
// only when they select the same thing. Eager loads are not part of it.
func (s Spec) Key() string {
	var sb strings.Builder
	sb.WriteString("table=")
	sb.WriteString(strconv.Quote(s.table))
	writeNames(&sb, " columns=", s.columns)
	for _, p := range s.predicates {
		sb.WriteByte(' ')
		p.writeKey(&sb)
	}
	writeNames(&sb, " order=", s.orders)
	if s.limitSet {
		fmt.Fprintf(&sb, " limit=%d", s.limit)
	}
	if s.offsetSet {
		fmt.Fprintf(&sb, " offset=%d", s.offset)
	}
	return sb.String()
}

func (p Predicate) writeKey(sb *strings.Builder) {
	if p.Or {
		sb.WriteString("OR ")
	} else {
		sb.WriteString("AND ")
	}
	if p.Op == OpRaw {
		sb.WriteString("raw ")
		sb.WriteString(strconv.Quote(p.Raw))
		sb.WriteByte(' ')
		writeValue(sb, p.Args)
		return
	}
	sb.WriteString(strconv.Quote(p.Column))
	sb.WriteByte(' ')
	sb.WriteString(p.Op.String())
	if p.Op == OpIsNull || p.Op == OpNotNull {
		return
	}
	sb.WriteByte(' ')
	writeValue(sb, p.Value)
}

func writeNames(sb *strings.Builder, label string, names []string) {
	if len(names) == 0 {
		return
	}
	sb.WriteString(label)
	for i, n := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Quote(n))
	}
}

// writeValue writes v as type:value. Slices are written element by
// element so that ["a b"] and ["a", "b"] differ.
func writeValue(sb *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("nil")
		return
	case string:
		sb.WriteString("string:")
		sb.WriteString(strconv.Quote(x))
		return
	case []byte:
		sb.WriteString("bytes:")
		sb.WriteString(strconv.Quote(string(x)))
		return
	case time.Time:
		sb.WriteString("time:")
		sb.WriteString(x.UTC().Format(time.RFC3339Nano))
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		sb.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeValue(sb, rv.Index(i).Interface())
		}
		sb.WriteByte(']')
	case reflect.Ptr:
		if rv.IsNil() {
			sb.WriteString("nil")
			return
		}
		writeValue(sb, rv.Elem().Interface())
	default:
		fmt.Fprintf(sb, "%T:%#v", v, v)
	}
}
