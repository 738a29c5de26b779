package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/ui"
	"github.com/Godswilldev/nest-dynamic-gql-qb/cli/internal/watch"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/compiler"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/selection"
	"github.com/Godswilldev/nest-dynamic-gql-qb/resolver"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
)

// planFlags are the request flags shared by compile and query.
type planFlags struct {
	entity     string
	typeName   string
	returnType string
	query      string
	operation  string
	where      string
	order      []string
	take       int64
	skip       int64
}

func (f *planFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.entity, "entity", "e", "", "Root entity name")
	cmd.Flags().StringVarP(&f.typeName, "type", "t", "", "External type name used for field mappings (default: entity)")
	cmd.Flags().StringVar(&f.returnType, "return-type", "", "Type whose selection is read from the query (default: --type)")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "GraphQL document, or @file")
	cmd.Flags().StringVar(&f.operation, "operation", "", "Operation name when the document has several")
	cmd.Flags().StringVarP(&f.where, "where", "w", "", "JSON filter, or @file")
	cmd.Flags().StringSliceVar(&f.order, "order", nil, "Order terms as property[:asc|desc]")
	cmd.Flags().Int64Var(&f.take, "take", -1, "Maximum number of root rows")
	cmd.Flags().Int64Var(&f.skip, "skip", -1, "Number of root rows to skip")
	_ = cmd.MarkFlagRequired("entity")
}

func (f *planFlags) params() (resolver.Params, error) {
	query, err := readArg(f.query)
	if err != nil {
		return resolver.Params{}, fmt.Errorf("failed to read query: %w", err)
	}
	whereText, err := readArg(f.where)
	if err != nil {
		return resolver.Params{}, fmt.Errorf("failed to read filter: %w", err)
	}
	where, err := parseWhere(whereText)
	if err != nil {
		return resolver.Params{}, err
	}

	p := resolver.Params{
		Entity:         f.entity,
		TypeName:       f.typeName,
		ReturnTypeName: f.returnType,
		Request:        selection.Request{Query: query, OperationName: f.operation},
		Where:          func(map[string]any) compiler.Filter { return where },
		Order:          parseOrder(f.order),
	}
	if f.take >= 0 {
		n := uint64(f.take)
		p.Take = &n
	}
	if f.skip >= 0 {
		n := uint64(f.skip)
		p.Skip = &n
	}
	return p, nil
}

// newService loads the schema and registry and builds a resolver.
func newService(opts ...resolver.Option) (*schema.Catalog, *resolver.Service, error) {
	catalog, err := loadCatalog(cfg.SchemaPath)
	if err != nil {
		return nil, nil, err
	}
	reg, err := loadRegistry(catalog, cfg.RegistryPath)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]resolver.Option{resolver.WithCompilerOptions(compiler.WithRootAlias(cfg.RootAlias))}, opts...)
	return catalog, resolver.New(catalog, reg, opts...), nil
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a request into SQL",
	Long: `Compile the selection of a GraphQL request on an entity, plus an optional
JSON filter, into one SELECT and print it.`,
	Example: `  gqlqb compile -e User -q '{ users { email profile { bio } } }'
  gqlqb compile -e User -q @users.graphql -w '{"role":"admin"}' --explain`,
	Args: cobra.NoArgs,
	RunE: runCompile,
}

var (
	compileFlags   planFlags
	compileDialect string
	compileExplain bool
	compileWatch   bool
)

func init() {
	compileFlags.bind(compileCmd)
	compileCmd.Flags().StringVar(&compileDialect, "dialect", "", "SQL dialect: postgresql, mysql or sqlite (default: provider)")
	compileCmd.Flags().BoolVar(&compileExplain, "explain", false, "Describe aliases, joins and skipped fields")
	compileCmd.Flags().BoolVar(&compileWatch, "watch", false, "Recompile when the schema file changes")

	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	if !compileWatch {
		return compileOnce()
	}

	w, err := watch.NewWatcher(cfg.SchemaPath, func() error {
		ui.PrintSection(fmt.Sprintf("Compiling %s", cfg.SchemaPath))
		return compileOnce()
	})
	if err != nil {
		return err
	}
	w.OnError = func(err error) { ui.PrintError("%v", err) }
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ui.PrintInfo("Watching %s for changes (Ctrl+C to stop)", cfg.SchemaPath)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	<-ctx.Done()
	return nil
}

func compileOnce() error {
	params, err := compileFlags.params()
	if err != nil {
		return err
	}
	catalog, svc, err := newService()
	if err != nil {
		return err
	}

	dialectName := compileDialect
	if dialectName == "" {
		dialectName, _ = connectionInfo(cfg, catalog)
	}
	dialect, err := builder.ParseDialect(dialectName)
	if err != nil {
		return err
	}

	res, err := svc.Plan(params)
	if err != nil {
		return err
	}
	query, queryArgs, err := res.Query.ToSQL(dialect)
	if err != nil {
		return err
	}

	if compileExplain {
		return ui.PrintMarkdown(explainMarkdown(params.Entity, res, query, queryArgs))
	}
	ui.PrintCodeBlock(query, "sql")
	if len(queryArgs) > 0 {
		ui.PrintKeyValue("args", fmt.Sprint(queryArgs))
	}
	printSkips(res.Skipped)
	return nil
}

func printSkips(skips []compiler.Skip) {
	for _, s := range skips {
		ui.PrintWarning("skipped %s.%s: %s", s.Alias, s.Field, s.Reason)
	}
}

// explainMarkdown describes a compiled query as markdown.
func explainMarkdown(entity string, res *compiler.Result, query string, args []any) string {
	var b markdown
	b.line("# %s", entity)
	b.line("")
	b.line("| alias | parent | relation | properties |")
	b.line("| --- | --- | --- | --- |")
	for _, m := range res.Aliases {
		b.line("| %s | %s | %s | %s |", m.Alias, dash(m.ParentAlias), dash(m.RelationKey), dash(joinNames(m.EntityPropertyNames)))
	}

	if joins := res.Query.Joins(); len(joins) > 0 {
		b.line("")
		b.line("## Joins")
		b.line("")
		for _, j := range joins {
			b.line("- `%s` → `%s AS %s`", j.Relation, j.Table, j.Alias)
		}
	}

	if len(res.Skipped) > 0 {
		b.line("")
		b.line("## Skipped")
		b.line("")
		for _, s := range res.Skipped {
			b.line("- `%s.%s`: %s", s.Alias, s.Field, s.Reason)
		}
	}

	b.line("")
	b.line("## SQL")
	b.line("")
	b.line("```sql")
	b.line("%s", query)
	b.line("```")
	if len(args) > 0 {
		b.line("")
		b.line("Arguments: `%v`", args)
	}
	return b.String()
}
