// Package resolver resolves one entity request end to end: it builds the
// selection tree, compiles it with the filter into a single joined query,
// runs the query and folds the flat rows into nested objects.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Godswilldev/nest-dynamic-gql-qb/internal/debug"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/cache"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/compiler"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/reshape"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/selection"
	"github.com/Godswilldev/nest-dynamic-gql-qb/registry"
	"github.com/Godswilldev/nest-dynamic-gql-qb/schema"
	"github.com/Godswilldev/nest-dynamic-gql-qb/telemetry"
)

// DefaultSelection is used when a request selects nothing.
var DefaultSelection = []string{"id"}

// Fetcher runs a compiled query and returns its flat rows.
type Fetcher interface {
	FetchRows(ctx context.Context, q *builder.Select) ([]map[string]any, error)
}

// Order is one ordering term on a root property.
type Order struct {
	Property  string
	Direction builder.Direction
}

// Params describes one entity request.
type Params struct {
	// Entity names the root entity descriptor.
	Entity string
	// TypeName is the external type field mappings are looked up under.
	// Defaults to Entity.
	TypeName string
	// ReturnTypeName selects which typed selection of the request to use.
	// Defaults to TypeName.
	ReturnTypeName string
	// Request is parsed when Selection is nil.
	Request selection.Request
	// Selection is a pre-built selection tree.
	Selection selection.Tree
	// Where builds the filter from Args. When nil, Args["where"] is used if
	// it is an object.
	Where func(args map[string]any) compiler.Filter
	Args  map[string]any
	Order []Order
	Take  *uint64
	Skip  *uint64
}

// Service resolves entity requests. It is safe for concurrent use.
type Service struct {
	provider   schema.Provider
	registry   *registry.Registry
	compiler   *compiler.Compiler
	selections selection.Provider
	fetcher    Fetcher
	telemetry  *telemetry.Collector
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFetcher sets the executor queries run on.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithSelectionProvider overrides the GraphQL parser used for requests.
func WithSelectionProvider(p selection.Provider) Option {
	return func(s *Service) {
		s.selections = p
	}
}

// WithTelemetry records every request on c.
func WithTelemetry(c *telemetry.Collector) Option {
	return func(s *Service) {
		s.telemetry = c
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithCompilerOptions passes options to the underlying compiler.
func WithCompilerOptions(opts ...compiler.Option) Option {
	return func(s *Service) {
		s.compiler = compiler.New(s.provider, s.registry, opts...)
	}
}

// New creates a Service. Root descriptors come from provider and fall back
// to reg.
func New(provider schema.Provider, reg *registry.Registry, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		registry: reg,
		compiler: compiler.New(provider, reg),
		logger:   debug.Logger(),
	}
	s.selections = selection.NewParser(
		selection.WithTypeResolver(TypeResolver(provider, reg)),
		selection.WithDocumentCache(selection.NewDocumentCache(cache.DefaultSize)),
	)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan compiles p into a query without running it.
func (s *Service) Plan(p Params) (*compiler.Result, error) {
	root, err := s.descriptor(p.Entity)
	if err != nil {
		return nil, err
	}

	typeName := p.TypeName
	if typeName == "" {
		typeName = root.Name
	}
	tree, err := s.selection(p, typeName)
	if err != nil {
		return nil, err
	}

	res, err := s.compiler.Compile(root, typeName, tree, filterFor(p))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", p.Entity, err)
	}

	for _, o := range p.Order {
		col := builder.Column{Alias: res.RootAlias, Name: root.StorageName(o.Property)}
		res.Query.OrderBy(col, o.Direction)
	}
	if p.Take != nil {
		res.Query.Limit(*p.Take)
	}
	if p.Skip != nil {
		res.Query.Offset(*p.Skip)
	}
	return res, nil
}

// ResolveEntity runs p and returns one nested object per distinct root row.
func (s *Service) ResolveEntity(ctx context.Context, p Params) ([]map[string]any, error) {
	if s.fetcher == nil {
		return nil, ErrNoFetcher
	}

	logger := s.logger.With("request_id", uuid.NewString(), "entity", p.Entity)
	event := telemetry.Event{Entity: p.Entity}
	defer func() { s.telemetry.Record(event) }()

	start := time.Now()
	res, err := s.Plan(p)
	event.Compile = time.Since(start)
	if err != nil {
		event.Error = err
		logger.Error("compile failed", "error", err)
		return nil, err
	}
	for _, sk := range res.Skipped {
		event.Skips = append(event.Skips, string(sk.Reason))
	}

	start = time.Now()
	rows, err := s.fetcher.FetchRows(ctx, res.Query)
	event.Execute = time.Since(start)
	if err != nil {
		event.Error = err
		logger.Error("query failed", "error", err)
		return nil, fmt.Errorf("failed to fetch %s: %w", p.Entity, err)
	}

	start = time.Now()
	objects := reshape.Reshape(rows, res.Aliases, res.RootAlias, res.RootPrimaryKey)
	event.Reshape = time.Since(start)
	event.Rows = len(rows)
	event.Objects = len(objects)

	logger.Debug("resolved",
		"aliases", len(res.Aliases),
		"skipped", len(res.Skipped),
		"rows", len(rows),
		"objects", len(objects),
		"compile", event.Compile,
		"execute", event.Execute,
	)
	return objects, nil
}

func (s *Service) descriptor(name string) (*schema.Entity, error) {
	if s.provider != nil {
		e, err := s.provider.Entity(name)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, schema.ErrEntityNotFound) {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	if e, ok := s.registry.ResolveDescriptor(name); ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", schema.ErrEntityNotFound, name)
}

func (s *Service) selection(p Params, typeName string) (selection.Tree, error) {
	tree := p.Selection
	if tree == nil && p.Request.Query != "" {
		returnType := p.ReturnTypeName
		if returnType == "" {
			returnType = typeName
		}
		var err error
		tree, err = s.selections.Tree(p.Request, returnType)
		if err != nil {
			return nil, fmt.Errorf("failed to read selection: %w", err)
		}
	}
	if tree.Empty() {
		return selection.Leaf(DefaultSelection...), nil
	}
	return tree, nil
}

func filterFor(p Params) compiler.Filter {
	if p.Where != nil {
		return p.Where(p.Args)
	}
	switch w := p.Args["where"].(type) {
	case compiler.Filter:
		return w
	case map[string]any:
		return w
	default:
		return nil
	}
}
