package selection

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/Godswilldev/nest-dynamic-gql-qb/query/cache"
)

// Request is a GraphQL request as received from a client.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]any
	// Field is the response name of the root field to resolve. Empty means
	// the first root field of the operation.
	Field string
}

// Provider turns a request into the selection tree for one output type.
type Provider interface {
	Tree(req Request, typeName string) (Tree, error)
}

// TypeResolver names the output type of field on parentType. It returns ""
// when unknown.
type TypeResolver func(parentType, field string) string

// Parser builds selection trees from GraphQL documents without a schema.
// Plain fields are attributed to the type the TypeResolver reports; when it
// reports nothing they take the first type condition seen at that level.
type Parser struct {
	resolveType TypeResolver
	documents   *cache.LRU[string, *ast.QueryDocument]
}

var _ Provider = (*Parser)(nil)

// Option configures a Parser.
type Option func(*Parser)

// WithTypeResolver sets the resolver used to name nested selection types.
func WithTypeResolver(fn TypeResolver) Option {
	return func(p *Parser) {
		p.resolveType = fn
	}
}

// WithDocumentCache reuses parsed documents across requests with the same
// query text.
func WithDocumentCache(c *cache.LRU[string, *ast.QueryDocument]) Option {
	return func(p *Parser) {
		p.documents = c
	}
}

// NewDocumentCache creates a document cache for WithDocumentCache.
func NewDocumentCache(size int) *cache.LRU[string, *ast.QueryDocument] {
	return cache.New[string, *ast.QueryDocument](size)
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the root field of req. Its plain fields are attributed to
// typeName.
func (p *Parser) Parse(req Request, typeName string) (*Field, error) {
	doc, err := p.document(req.Query)
	if err != nil {
		return nil, err
	}

	op, err := pickOperation(doc, req.OperationName)
	if err != nil {
		return nil, err
	}

	c := &collector{
		doc:         doc,
		vars:        withDefaults(op, req.Variables),
		resolveType: p.resolveType,
	}

	roots := &groups{}
	c.walk(op.SelectionSet, "", roots, map[string]bool{})
	for _, g := range roots.list {
		for _, alias := range g.order {
			if req.Field == "" || alias == req.Field {
				return c.buildField(g.nodes[alias], typeName), nil
			}
		}
	}
	if req.Field != "" {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, req.Field)
	}
	return nil, ErrNoOperation
}

// Tree returns the selection of the root field for typeName, or for the
// first selected type when typeName was not selected.
func (p *Parser) Tree(req Request, typeName string) (Tree, error) {
	root, err := p.Parse(req, typeName)
	if err != nil {
		return nil, err
	}
	return root.For(typeName), nil
}

// ForField returns the sub-selection of fieldName inside the root field's
// selection for parentTypeName. It reports false when the field was not
// selected.
func (p *Parser) ForField(req Request, parentTypeName, fieldName string) (Tree, bool, error) {
	root, err := p.Parse(req, parentTypeName)
	if err != nil {
		return nil, false, err
	}
	for _, ts := range root.ByType {
		if ts.TypeName != parentTypeName {
			continue
		}
		if f := ts.Fields.Get(fieldName); f != nil {
			return f.Selection(), true, nil
		}
	}
	return nil, false, nil
}

func pickOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		if op := doc.Operations.ForName(name); op != nil {
			return op, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoOperation, name)
	}
	switch len(doc.Operations) {
	case 0:
		return nil, ErrNoOperation
	case 1:
		return doc.Operations[0], nil
	default:
		return nil, ErrAmbiguousOperation
	}
}

func withDefaults(op *ast.OperationDefinition, vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	for _, def := range op.VariableDefinitions {
		if _, ok := out[def.Variable]; ok || def.DefaultValue == nil {
			continue
		}
		if v, err := def.DefaultValue.Value(nil); err == nil {
			out[def.Variable] = v
		}
	}
	return out
}

// group holds the field nodes collected for one concrete type, keyed and
// ordered by response name.
type group struct {
	typeName string
	order    []string
	nodes    map[string][]*ast.Field
}

type groups struct {
	list []*group
}

func (gs *groups) get(typeName string) *group {
	for _, g := range gs.list {
		if g.typeName == typeName {
			return g
		}
	}
	g := &group{typeName: typeName, nodes: make(map[string][]*ast.Field)}
	gs.list = append(gs.list, g)
	return g
}

func (g *group) add(alias string, f *ast.Field) {
	if _, ok := g.nodes[alias]; !ok {
		g.order = append(g.order, alias)
	}
	g.nodes[alias] = append(g.nodes[alias], f)
}

type collector struct {
	doc         *ast.QueryDocument
	vars        map[string]any
	resolveType TypeResolver
}

// buildField converts the AST nodes sharing one response name into a Field.
func (c *collector) buildField(nodes []*ast.Field, typeName string) *Field {
	first := nodes[0]
	f := &Field{
		Name:  first.Name,
		Alias: responseName(first),
		Args:  c.arguments(first.Arguments),
	}

	if typeName == "" {
		typeName = c.firstCondition(nodes)
	}

	gs := &groups{}
	visited := make(map[string]bool)
	for _, n := range nodes {
		if len(n.SelectionSet) > 0 {
			c.walk(n.SelectionSet, typeName, gs, visited)
		}
	}

	for _, g := range gs.list {
		ts := TypeSelection{TypeName: g.typeName}
		for _, alias := range g.order {
			child := g.nodes[alias]
			childType := ""
			if c.resolveType != nil {
				childType = c.resolveType(g.typeName, child[0].Name)
			}
			ts.Fields = append(ts.Fields, c.buildField(child, childType))
		}
		f.ByType = append(f.ByType, ts)
	}
	return f
}

// walk collects the fields of set into gs under typeName, descending into
// fragments. A fragment whose type condition differs from typeName gets its
// own group.
func (c *collector) walk(set ast.SelectionSet, typeName string, gs *groups, visited map[string]bool) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if !c.shouldInclude(s.Directives) {
				continue
			}
			gs.get(typeName).add(responseName(s), s)

		case *ast.InlineFragment:
			if !c.shouldInclude(s.Directives) {
				continue
			}
			c.walk(s.SelectionSet, fragmentType(typeName, s.TypeCondition), gs, visited)

		case *ast.FragmentSpread:
			if !c.shouldInclude(s.Directives) || visited[s.Name] {
				continue
			}
			visited[s.Name] = true
			def := c.doc.Fragments.ForName(s.Name)
			if def == nil || !c.shouldInclude(def.Directives) {
				continue
			}
			c.walk(def.SelectionSet, fragmentType(typeName, def.TypeCondition), gs, visited)
		}
	}
}

// fragmentType decides which group a fragment's fields belong to.
func fragmentType(current, condition string) string {
	if condition == "" {
		return current
	}
	return condition
}

// firstCondition returns the first type condition among the fragments
// directly selected by nodes.
func (c *collector) firstCondition(nodes []*ast.Field) string {
	for _, n := range nodes {
		for _, sel := range n.SelectionSet {
			switch s := sel.(type) {
			case *ast.InlineFragment:
				if s.TypeCondition != "" {
					return s.TypeCondition
				}
			case *ast.FragmentSpread:
				if def := c.doc.Fragments.ForName(s.Name); def != nil && def.TypeCondition != "" {
					return def.TypeCondition
				}
			}
		}
	}
	return ""
}

func (c *collector) shouldInclude(directives ast.DirectiveList) bool {
	for _, d := range directives {
		switch d.Name {
		case "skip":
			if c.condition(d) {
				return false
			}
		case "include":
			if !c.condition(d) {
				return false
			}
		}
	}
	return true
}

func (c *collector) condition(d *ast.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, err := arg.Value.Value(c.vars)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (c *collector) arguments(args ast.ArgumentList) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for _, arg := range args {
		v, err := arg.Value.Value(c.vars)
		if err != nil {
			continue
		}
		out[arg.Name] = v
	}
	return out
}

func responseName(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func (p *Parser) document(query string) (*ast.QueryDocument, error) {
	load := func() (*ast.QueryDocument, error) {
		doc, err := parser.ParseQuery(&ast.Source{Name: "request", Input: query})
		if err != nil {
			return nil, fmt.Errorf("failed to parse query: %w", err)
		}
		return doc, nil
	}
	if p.documents == nil {
		return load()
	}
	return p.documents.GetOrLoad(query, load)
}
