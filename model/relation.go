package model

import (
	"fmt"
	"strings"
)

type RelationKind int

const (
	RelationHasMany RelationKind = iota
	RelationBelongsTo
	RelationHasOne
	RelationManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case RelationHasMany:
		return "has_many"
	case RelationBelongsTo:
		return "belongs_to"
	case RelationHasOne:
		return "has_one"
	case RelationManyToMany:
		return "many_to_many"
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

// ToMany reports whether the relation attaches a sequence of records.
func (k RelationKind) ToMany() bool {
	return k == RelationHasMany || k == RelationManyToMany
}

// ParseRelationKind accepts the tag spellings of a relation kind.
func ParseRelationKind(s string) (RelationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "has_many", "hasmany":
		return RelationHasMany, nil
	case "belongs_to", "belongsto":
		return RelationBelongsTo, nil
	case "has_one", "hasone":
		return RelationHasOne, nil
	case "many_to_many", "many2many", "many_many", "belongs_to_many":
		return RelationManyToMany, nil
	}
	return 0, fmt.Errorf("unknown relation type: %s", s)
}

// Relation describes how records of one entity link to another table.
//
// LocalKey is always read from the parent record and ForeignKey from the
// related record:
//
//	has_many / has_one: parent.LocalKey (its primary key) = related.ForeignKey
//	belongs_to:         parent.LocalKey (e.g. user_id)    = related.ForeignKey (its primary key)
//	many_to_many:       parent.LocalKey = pivot.JoinFK, pivot.JoinRef = related.ForeignKey
type Relation struct {
	Name       string       // name the related records are attached under
	Kind       RelationKind // 关联类型
	Table      string       // related table
	LocalKey   string
	ForeignKey string
	JoinTable  string // 多对多中间表名
	JoinFK     string // 中间表外键（指向主表）
	JoinRef    string // 中间表引用键（指向关联表）
}

// HasMany declares parent.localKey = related.foreignKey with many matches.
func HasMany(name, table, foreignKey, localKey string) *Relation {
	return &Relation{Name: name, Kind: RelationHasMany, Table: table, ForeignKey: foreignKey, LocalKey: localKey}
}

// HasOne declares parent.localKey = related.foreignKey with one match.
func HasOne(name, table, foreignKey, localKey string) *Relation {
	return &Relation{Name: name, Kind: RelationHasOne, Table: table, ForeignKey: foreignKey, LocalKey: localKey}
}

// BelongsTo declares parent.foreignKey = related.ownerKey.
func BelongsTo(name, table, foreignKey, ownerKey string) *Relation {
	return &Relation{Name: name, Kind: RelationBelongsTo, Table: table, LocalKey: foreignKey, ForeignKey: ownerKey}
}

// ManyToMany declares a link through joinTable, where joinFK points at the
// parent and joinRef at the related table's "id".
func ManyToMany(name, table, joinTable, joinFK, joinRef string) *Relation {
	return &Relation{
		Name:       name,
		Kind:       RelationManyToMany,
		Table:      table,
		JoinTable:  joinTable,
		JoinFK:     joinFK,
		JoinRef:    joinRef,
		LocalKey:   "id",
		ForeignKey: "id",
	}
}

// Validate checks that every key the relation kind needs is present.
func (r *Relation) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("relation name is required")
	}
	if strings.Contains(r.Name, ".") {
		return fmt.Errorf("relation %s: name must not contain '.'", r.Name)
	}
	if r.Table == "" {
		return fmt.Errorf("relation %s: table is required", r.Name)
	}
	if r.LocalKey == "" || r.ForeignKey == "" {
		return fmt.Errorf("relation %s: local and foreign keys are required", r.Name)
	}
	if r.Kind == RelationManyToMany {
		if r.JoinTable == "" {
			return fmt.Errorf("many_to_many relation %s requires join_table", r.Name)
		}
		if r.JoinFK == "" || r.JoinRef == "" {
			return fmt.Errorf("many_to_many relation %s requires join_fk and join_ref", r.Name)
		}
	}
	return nil
}
