package model

// Definition declares an entity in configuration files.
type Definition struct {
	Name       string               `mapstructure:"name"`
	Table      string               `mapstructure:"table"`
	PrimaryKey string               `mapstructure:"primary_key"`
	PerPage    int                  `mapstructure:"per_page"`
	Relations  []RelationDefinition `mapstructure:"relations"`
}

// RelationDefinition declares one relation of an entity in configuration.
type RelationDefinition struct {
	Name       string `mapstructure:"name"`
	Kind       string `mapstructure:"kind"`
	Table      string `mapstructure:"table"`
	LocalKey   string `mapstructure:"local_key"`
	ForeignKey string `mapstructure:"foreign_key"`
	JoinTable  string `mapstructure:"join_table"`
	JoinFK     string `mapstructure:"join_fk"`
	JoinRef    string `mapstructure:"join_ref"`
}

// Build turns the definition into a Model. Missing keys get the same
// defaults as the relation constructors.
func (d Definition) Build() (*Model, error) {
	m := New(d.Name, d.Table)
	if d.PrimaryKey != "" {
		m.PrimaryKey = d.PrimaryKey
	}
	if d.PerPage > 0 {
		m.PerPage = d.PerPage
	}
	m.normalize()

	for _, rd := range d.Relations {
		kind, err := ParseRelationKind(rd.Kind)
		if err != nil {
			return nil, err
		}
		rel := &Relation{
			Name:       rd.Name,
			Kind:       kind,
			Table:      rd.Table,
			LocalKey:   rd.LocalKey,
			ForeignKey: rd.ForeignKey,
			JoinTable:  rd.JoinTable,
			JoinFK:     rd.JoinFK,
			JoinRef:    rd.JoinRef,
		}
		switch kind {
		case RelationHasMany, RelationHasOne:
			if rel.LocalKey == "" {
				rel.LocalKey = m.PrimaryKey
			}
			if rel.ForeignKey == "" {
				rel.ForeignKey = m.Table + "_id"
			}
		case RelationBelongsTo:
			if rel.LocalKey == "" {
				rel.LocalKey = rel.Name + "_id"
			}
			if rel.ForeignKey == "" {
				rel.ForeignKey = DefaultPrimaryKey
			}
		case RelationManyToMany:
			if rel.LocalKey == "" {
				rel.LocalKey = m.PrimaryKey
			}
			if rel.ForeignKey == "" {
				rel.ForeignKey = DefaultPrimaryKey
			}
		}
		m.AddRelation(rel)
	}
	return m, m.Validate()
}

// RegisterDefinitions builds and registers every definition.
func (r *Registry) RegisterDefinitions(defs ...Definition) error {
	for _, d := range defs {
		m, err := d.Build()
		if err != nil {
			return err
		}
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}
