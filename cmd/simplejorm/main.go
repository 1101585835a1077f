package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shrek82/simplejorm/config"
	"github.com/shrek82/simplejorm/core"
	"github.com/shrek82/simplejorm/query"
)

// options holds the flags shared by the query commands.
type options struct {
	configPath string
	driver     string
	dsn        string

	entity  string
	with    []string
	where   []string
	columns []string
	order   []string
	limit   int
	offset  int
	page    int
	perPage int
	orFail  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "simplejorm",
		Short:         "Read records and their relations as JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ./simplejorm.yaml if present)")
	pf.StringVar(&opts.driver, "driver", "", "override the configured driver")
	pf.StringVar(&opts.dsn, "dsn", "", "override the configured DSN")

	root.AddCommand(
		newGetCmd(opts),
		newFindCmd(opts),
		newCountCmd(opts),
		newPaginateCmd(opts),
		newSimplePaginateCmd(opts),
		newSchemaCmd(opts),
	)
	return root
}

func addQueryFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringVarP(&opts.entity, "entity", "e", "", "entity (or plain table) to query")
	f.StringSliceVarP(&opts.with, "with", "w", nil, "relations to load")
	f.StringArrayVar(&opts.where, "where", nil, `filter such as "age>=18", "name~al%", "id in 1,2"`)
	f.StringSliceVar(&opts.columns, "columns", nil, "columns to select")
	f.StringSliceVar(&opts.order, "order", nil, `order terms such as "name" or "id DESC"`)
	cmd.MarkFlagRequired("entity")
}

func addPageFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().IntVar(&opts.page, "page", 1, "page number, from 1")
	cmd.Flags().IntVar(&opts.perPage, "per-page", 0, "page size (default: the entity's)")
}

func (o *options) load() (*config.Config, error) {
	var overrides []config.Option
	if o.driver != "" {
		overrides = append(overrides, config.WithValue("driver", o.driver))
	}
	if o.dsn != "" {
		overrides = append(overrides, config.WithValue("dsn", o.dsn))
	}
	return config.Load(o.configPath, overrides...)
}

func (o *options) open() (*core.DB, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return cfg.Open()
}

// query builds the query the flags describe on db.
func (o *options) query(ctx context.Context, db *core.DB) (*core.Query, error) {
	var q *core.Query
	if _, err := db.Registry().Get(o.entity); err == nil {
		q = db.Entity(o.entity)
	} else {
		q = db.Table(o.entity)
	}
	q = q.WithContext(ctx)

	if len(o.columns) > 0 {
		q = q.Select(o.columns...)
	}
	preds := make([]query.Predicate, 0, len(o.where))
	for _, w := range o.where {
		p, err := parseWhere(w)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) > 0 {
		q = q.Filter(preds...)
	}
	if len(o.order) > 0 {
		q = q.OrderBy(o.order...)
	}
	for _, name := range o.with {
		q = q.With(strings.TrimSpace(name))
	}
	return q, q.Err()
}

// run opens the database, builds the query and prints what fn returns.
func (o *options) run(cmd *cobra.Command, fn func(q *core.Query) (any, error)) error {
	db, err := o.open()
	if err != nil {
		return err
	}
	defer db.Close()

	q, err := o.query(cmd.Context(), db)
	if err != nil {
		return err
	}
	v, err := fn(q)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), v)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newGetCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print every matching record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(q *core.Query) (any, error) {
				if opts.limit > 0 {
					q = q.Limit(opts.limit)
				}
				if opts.offset > 0 {
					q = q.Offset(opts.offset)
				}
				if opts.orFail {
					return q.FirstOrFail()
				}
				return q.Get()
			})
		},
	}
	addQueryFlags(cmd, opts)
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of records")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&opts.orFail, "first-or-fail", false, "print only the first record and fail when there is none")
	return cmd
}

func newFindCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find ID [ID...]",
		Short: "Look records up by primary key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]any, len(args))
			for i, a := range args {
				ids[i] = parseValue(a)
			}
			return opts.run(cmd, func(q *core.Query) (any, error) {
				switch {
				case len(ids) == 1 && opts.orFail:
					return q.FindOrFail(ids[0])
				case len(ids) == 1:
					return q.Find(ids[0])
				case opts.orFail:
					return q.FindManyOrFail(ids)
				}
				return q.FindMany(ids)
			})
		},
	}
	addQueryFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.orFail, "or-fail", false, "fail unless every key is found")
	return cmd
}

func newCountCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of matching records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(q *core.Query) (any, error) {
				return q.Count()
			})
		},
	}
	addQueryFlags(cmd, opts)
	return cmd
}

func newPaginateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paginate",
		Short: "Print one page with the total count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(q *core.Query) (any, error) {
				return q.Paginate(opts.perPage, opts.page)
			})
		},
	}
	addQueryFlags(cmd, opts)
	addPageFlags(cmd, opts)
	return cmd
}

func newSimplePaginateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simple-paginate",
		Short: "Print one page and whether another one follows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(q *core.Query) (any, error) {
				return q.SimplePaginate(opts.perPage, opts.page)
			})
		},
	}
	addQueryFlags(cmd, opts)
	addPageFlags(cmd, opts)
	return cmd
}

func newSchemaCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Guess entity definitions from the database schema",
		Long: "Reads the tables of the configured database and prints entity definitions\n" +
			"with belongs_to, has_many and many_to_many relations guessed from *_id columns.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			tables, err := introspect(ctx, sqlDB, cfg.Driver)
			if err != nil {
				return err
			}
			entities := definitionMaps(guessDefinitions(tables, 0))

			if out == "" {
				return printJSON(cmd.OutOrStdout(), map[string]any{"entities": entities})
			}
			v := viper.New()
			v.Set("entities", entities)
			if err := v.WriteConfigAs(out); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d entities to %s\n", len(entities), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the definitions to this file (yaml, json or toml) instead of stdout")
	return cmd
}
