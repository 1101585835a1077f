package main

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/shrek82/simplejorm/model"
)

type column struct {
	Name string
	PK   bool
}

type table struct {
	Name    string
	Columns []column
}

func (t table) primaryKey() string {
	for _, c := range t.Columns {
		if c.PK {
			return c.Name
		}
	}
	return ""
}

func fetchTables(ctx context.Context, db *sql.DB, driver string) ([]string, error) {
	var q string
	switch driver {
	case "sqlite3", "sqlite":
		q = "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	case "mysql":
		q = "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name"
	case "postgres", "pgx":
		q = "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema() ORDER BY tablename"
	default:
		return nil, fmt.Errorf("schema introspection is not supported for %s", driver)
	}

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func fetchColumns(ctx context.Context, db *sql.DB, driver, name string) ([]column, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch driver {
	case "sqlite3", "sqlite":
		rows, err = db.QueryContext(ctx, "SELECT name, pk FROM pragma_table_info("+quoteLiteral(name)+") ORDER BY cid")
	case "mysql":
		rows, err = db.QueryContext(ctx, `SELECT column_name, CASE WHEN column_key = 'PRI' THEN 1 ELSE 0 END
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`, name)
	case "postgres", "pgx":
		rows, err = db.QueryContext(ctx, `SELECT c.column_name,
				CASE WHEN tc.constraint_type = 'PRIMARY KEY' THEN 1 ELSE 0 END
			FROM information_schema.columns c
			LEFT JOIN information_schema.key_column_usage kcu
				ON c.table_name = kcu.table_name
				AND c.column_name = kcu.column_name
				AND c.table_schema = kcu.table_schema
			LEFT JOIN information_schema.table_constraints tc
				ON kcu.constraint_name = tc.constraint_name
				AND kcu.table_schema = tc.table_schema
				AND tc.constraint_type = 'PRIMARY KEY'
			WHERE c.table_name = $1 AND c.table_schema = current_schema()
			ORDER BY c.ordinal_position`, name)
	default:
		return nil, fmt.Errorf("schema introspection is not supported for %s", driver)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var (
			c  column
			pk int
		)
		if err := rows.Scan(&c.Name, &pk); err != nil {
			return nil, err
		}
		c.PK = pk > 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func introspect(ctx context.Context, db *sql.DB, driver string) ([]table, error) {
	names, err := fetchTables(ctx, db, driver)
	if err != nil {
		return nil, err
	}
	tables := make([]table, 0, len(names))
	for _, name := range names {
		cols, err := fetchColumns(ctx, db, driver, name)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", name, err)
		}
		tables = append(tables, table{Name: name, Columns: cols})
	}
	return tables, nil
}

// guessDefinitions derives entity definitions from table layouts: a column
// x_id pointing at a table x or xs becomes belongs_to plus the inverse
// has_many, and a table made only of two such columns becomes a pivot
// linking both sides many_to_many.
func guessDefinitions(tables []table, perPage int) []model.Definition {
	byName := make(map[string]table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	target := func(col string) (table, bool) {
		if !strings.HasSuffix(col, "_id") {
			return table{}, false
		}
		base := strings.TrimSuffix(col, "_id")
		for _, candidate := range []string{base, base + "s", base + "es"} {
			if t, ok := byName[candidate]; ok && t.primaryKey() != "" {
				return t, true
			}
		}
		return table{}, false
	}

	defs := make(map[string]*model.Definition, len(tables))
	var order []string
	for _, t := range tables {
		pk := t.primaryKey()
		if pk == "" {
			pk = model.DefaultPrimaryKey
		}
		defs[t.Name] = &model.Definition{Name: t.Name, Table: t.Name, PrimaryKey: pk, PerPage: perPage}
		order = append(order, t.Name)
	}
	addRelation := func(owner string, rel model.RelationDefinition) {
		def := defs[owner]
		for _, existing := range def.Relations {
			if existing.Name == rel.Name {
				return
			}
		}
		def.Relations = append(def.Relations, rel)
	}

	for _, t := range tables {
		var links []column
		pivot := true
		for _, c := range t.Columns {
			if c.PK && !strings.HasSuffix(c.Name, "_id") {
				continue
			}
			if _, ok := target(c.Name); ok {
				links = append(links, c)
			} else {
				pivot = false
			}
		}

		if pivot && len(links) == 2 {
			left, _ := target(links[0].Name)
			right, _ := target(links[1].Name)
			addRelation(left.Name, model.RelationDefinition{
				Name: right.Name, Kind: "many_to_many", Table: right.Name,
				LocalKey: left.primaryKey(), ForeignKey: right.primaryKey(),
				JoinTable: t.Name, JoinFK: links[0].Name, JoinRef: links[1].Name,
			})
			addRelation(right.Name, model.RelationDefinition{
				Name: left.Name, Kind: "many_to_many", Table: left.Name,
				LocalKey: right.primaryKey(), ForeignKey: left.primaryKey(),
				JoinTable: t.Name, JoinFK: links[1].Name, JoinRef: links[0].Name,
			})
			continue
		}

		for _, c := range links {
			parent, _ := target(c.Name)
			addRelation(t.Name, model.RelationDefinition{
				Name: strings.TrimSuffix(c.Name, "_id"), Kind: "belongs_to", Table: parent.Name,
				LocalKey: c.Name, ForeignKey: parent.primaryKey(),
			})
			if parent.Name != t.Name {
				addRelation(parent.Name, model.RelationDefinition{
					Name: t.Name, Kind: "has_many", Table: t.Name,
					LocalKey: parent.primaryKey(), ForeignKey: c.Name,
				})
			}
		}
	}

	sort.Strings(order)
	out := make([]model.Definition, 0, len(order))
	for _, name := range order {
		out = append(out, *defs[name])
	}
	return out
}

// definitionMaps renders definitions with their config keys.
func definitionMaps(defs []model.Definition) []map[string]any {
	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		m := map[string]any{
			"name":        d.Name,
			"table":       d.Table,
			"primary_key": d.PrimaryKey,
		}
		if d.PerPage > 0 {
			m["per_page"] = d.PerPage
		}
		if len(d.Relations) > 0 {
			rels := make([]map[string]any, 0, len(d.Relations))
			for _, r := range d.Relations {
				rm := map[string]any{
					"name":        r.Name,
					"kind":        r.Kind,
					"table":       r.Table,
					"local_key":   r.LocalKey,
					"foreign_key": r.ForeignKey,
				}
				if r.JoinTable != "" {
					rm["join_table"] = r.JoinTable
					rm["join_fk"] = r.JoinFK
					rm["join_ref"] = r.JoinRef
				}
				rels = append(rels, rm)
			}
			m["relations"] = rels
		}
		out = append(out, m)
	}
	return out
}
