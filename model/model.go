package model

import (
	"fmt"
	"reflect"
	"sync"
	"unicode"
)

const (
	DefaultPrimaryKey = "id"
	DefaultPerPage    = 15
)

// Model is the metadata of one entity: where it lives, how it is keyed
// and which relations it declares.
type Model struct {
	Name       string
	Table      string
	PrimaryKey string
	PerPage    int

	relations map[string]*Relation
	order     []string
}

// New creates a model for table with the default primary key and page size.
func New(name, table string, relations ...*Relation) *Model {
	m := &Model{
		Name:       name,
		Table:      table,
		PrimaryKey: DefaultPrimaryKey,
		PerPage:    DefaultPerPage,
	}
	for _, r := range relations {
		m.AddRelation(r)
	}
	return m
}

// AddRelation declares r on the model, replacing one with the same name.
func (m *Model) AddRelation(r *Relation) *Model {
	if m.relations == nil {
		m.relations = make(map[string]*Relation)
	}
	if _, ok := m.relations[r.Name]; !ok {
		m.order = append(m.order, r.Name)
	}
	m.relations[r.Name] = r
	return m
}

// Relation looks up a declared relation by name.
func (m *Model) Relation(name string) (*Relation, bool) {
	r, ok := m.relations[name]
	return r, ok
}

// Relations returns the declared relations in declaration order.
func (m *Model) Relations() []*Relation {
	out := make([]*Relation, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.relations[name])
	}
	return out
}

func (m *Model) normalize() {
	if m.Table == "" {
		m.Table = m.Name
	}
	if m.Name == "" {
		m.Name = m.Table
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = DefaultPrimaryKey
	}
	if m.PerPage <= 0 {
		m.PerPage = DefaultPerPage
	}
}

// Validate checks the model and all of its relations.
func (m *Model) Validate() error {
	if m.Name == "" && m.Table == "" {
		return fmt.Errorf("%w: model needs a name or table", ErrInvalidModel)
	}
	for _, r := range m.Relations() {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidModel, m.Name, err)
		}
	}
	return nil
}

// TableNamer lets a struct pick its table name.
type TableNamer interface {
	TableName() string
}

// PerPager lets a struct pick its default page size.
type PerPager interface {
	PerPage() int
}

// Registry is the metadata table: entity name -> Model. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	types  map[reflect.Type]*Model
}

func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*Model),
		types:  make(map[reflect.Type]*Model),
	}
}

// Register validates and stores models under their names.
func (r *Registry) Register(models ...*Model) error {
	for _, m := range models {
		m.normalize()
		if err := m.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range models {
		r.models[m.Name] = m
	}
	return nil
}

// MustRegister is Register that panics on an invalid model.
func (r *Registry) MustRegister(models ...*Model) *Registry {
	if err := r.Register(models...); err != nil {
		panic(err)
	}
	return r
}

// Get returns the model registered under name.
func (r *Registry) Get(name string) (*Model, error) {
	r.mu.RLock()
	m, ok := r.models[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return m, nil
}

// Names lists the registered entity names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.models))
	for name := range r.models {
		out = append(out, name)
	}
	return out
}

// Parse derives a Model from a struct (or pointer to struct) and registers
// it. Parsed models are cached per type.
func (r *Registry) Parse(value any) (*Model, error) {
	if value == nil {
		return nil, fmt.Errorf("value is nil")
	}
	typ := reflect.TypeOf(value)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("value must be a struct or pointer to struct, got %s", typ.Kind())
	}

	r.mu.RLock()
	cached, ok := r.types[typ]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	m, err := parseModel(typ)
	if err != nil {
		return nil, err
	}
	if err := r.Register(m); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.types[typ] = m
	r.mu.Unlock()
	return m, nil
}

func parseModel(typ reflect.Type) (*Model, error) {
	m := New(tableNameOf(typ), tableNameOf(typ))
	if pp, ok := reflect.New(typ).Interface().(PerPager); ok && pp.PerPage() > 0 {
		m.PerPage = pp.PerPage()
	}

	m.PrimaryKey = primaryKeyOf(typ)

	for i := 0; i < typ.NumField(); i++ {
		structField := typ.Field(i)
		if !structField.IsExported() {
			continue
		}

		tag := ParseTag(structField.Tag.Get("jorm"))
		if tag.PrimaryKey || !isRelationField(structField, tag) {
			continue
		}

		rel, err := parseRelation(typ, m, structField, tag)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidModel, typ.Name(), structField.Name, err)
		}
		m.AddRelation(rel)
	}
	return m, nil
}

func tableNameOf(typ reflect.Type) string {
	if tn, ok := reflect.New(typ).Interface().(TableNamer); ok {
		return tn.TableName()
	}
	return camelToSnake(typ.Name())
}

func camelToSnake(s string) string {
	if s == "ID" {
		return "id"
	}
	var res []rune
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				res = append(res, '_')
			}
			res = append(res, unicode.ToLower(r))
		} else {
			res = append(res, r)
		}
	}
	return string(res)
}
