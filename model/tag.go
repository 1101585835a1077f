package model

import (
	"reflect"
	"strings"
	"time"
)

// Tag represents parsed jorm tags
type Tag struct {
	Column       string
	PrimaryKey   bool
	Name         string
	RelationType string
	ForeignKey   string
	References   string
	JoinTable    string
	JoinFK       string
	JoinRef      string
}

// ParseTag parses the "jorm" tag string. Parts are separated by spaces,
// commas or semicolons; values follow a colon.
func ParseTag(tagStr string) *Tag {
	tag := &Tag{}
	if tagStr == "" {
		return tag
	}

	parts := strings.FieldsFunc(tagStr, func(r rune) bool {
		return r == ' ' || r == ';' || r == ','
	})

	for _, part := range parts {
		kv := strings.SplitN(part, ":", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		var val string
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}

		switch key {
		case "column":
			tag.Column = val
		case "pk":
			tag.PrimaryKey = true
		case "name":
			tag.Name = val
		case "fk", "foreignkey", "foreign_key":
			tag.ForeignKey = val
		case "references", "local_key", "owner_key":
			tag.References = val
		case "join_table":
			tag.JoinTable = val
		case "join_fk":
			tag.JoinFK = val
		case "join_ref":
			tag.JoinRef = val
		case "relation":
			tag.RelationType = val
		case "has_one", "has_many", "belongs_to":
			tag.RelationType = key
		case "many2many", "many_to_many", "many_many":
			tag.RelationType = "many_to_many"
			if val != "" {
				tag.JoinTable = val
			}
		}
	}
	return tag
}

var timeType = reflect.TypeOf(time.Time{})

func isRelationField(field reflect.StructField, tag *Tag) bool {
	if tag.RelationType != "" || tag.JoinTable != "" {
		return true
	}
	elem := relatedType(field.Type)
	return tag.ForeignKey != "" && elem.Kind() == reflect.Struct && elem != timeType
}

func relatedType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Slice {
		t = t.Elem()
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
	}
	return t
}

// primaryKeyOf finds the column tagged pk on a struct type.
func primaryKeyOf(typ reflect.Type) string {
	if typ.Kind() != reflect.Struct {
		return DefaultPrimaryKey
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := ParseTag(f.Tag.Get("jorm"))
		if tag.PrimaryKey {
			if tag.Column != "" {
				return tag.Column
			}
			return camelToSnake(f.Name)
		}
	}
	return DefaultPrimaryKey
}

// columnName turns a Go field name such as UserID into user_id and leaves
// column names untouched.
func columnName(s string) string {
	if s == "" || strings.ToLower(s) == s {
		return s
	}
	return camelToSnake(s)
}

func parseRelation(owner reflect.Type, m *Model, field reflect.StructField, tag *Tag) (*Relation, error) {
	elem := relatedType(field.Type)

	kind := RelationBelongsTo
	switch {
	case tag.RelationType != "":
		k, err := ParseRelationKind(tag.RelationType)
		if err != nil {
			return nil, err
		}
		kind = k
	case tag.JoinTable != "":
		kind = RelationManyToMany
	case field.Type.Kind() == reflect.Slice:
		kind = RelationHasMany
	}

	name := tag.Name
	if name == "" {
		name = camelToSnake(field.Name)
	}

	rel := &Relation{
		Name:  name,
		Kind:  kind,
		Table: tableNameOf(elem),
	}

	switch kind {
	case RelationHasMany, RelationHasOne:
		rel.ForeignKey = columnName(tag.ForeignKey)
		if rel.ForeignKey == "" {
			rel.ForeignKey = camelToSnake(owner.Name()) + "_id"
		}
		rel.LocalKey = columnName(tag.References)
		if rel.LocalKey == "" {
			rel.LocalKey = m.PrimaryKey
		}

	case RelationBelongsTo:
		rel.LocalKey = columnName(tag.ForeignKey)
		if rel.LocalKey == "" {
			rel.LocalKey = camelToSnake(field.Name) + "_id"
		}
		rel.ForeignKey = columnName(tag.References)
		if rel.ForeignKey == "" {
			rel.ForeignKey = primaryKeyOf(elem)
		}

	case RelationManyToMany:
		rel.JoinTable = tag.JoinTable
		rel.JoinFK = tag.JoinFK
		if rel.JoinFK == "" {
			rel.JoinFK = camelToSnake(owner.Name()) + "_id"
		}
		rel.JoinRef = tag.JoinRef
		if rel.JoinRef == "" {
			rel.JoinRef = camelToSnake(elem.Name()) + "_id"
		}
		rel.LocalKey = m.PrimaryKey
		rel.ForeignKey = primaryKeyOf(elem)
	}

	return rel, rel.Validate()
}
