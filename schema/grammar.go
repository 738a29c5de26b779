package schema

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// schemaLexer tokenizes the entity schema language.
var schemaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `\b(model|enum|datasource|generator)\b`},

	// Block attribute prefix (must come before single @)
	{Name: "BlockAttr", Pattern: `@@`},
	{Name: "FieldAttr", Pattern: `@`},

	{Name: "Punct", Pattern: `[{}()\[\]:,.=?]`},

	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},

	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "MultiLineComment", Pattern: `/\*(?:[^*]|\*[^/])*\*/`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

type rawFile struct {
	Pos   lexer.Position
	Items []*rawItem `@@*`
}

type rawItem struct {
	Model  *rawModel  `  @@`
	Enum   *rawEnum   `| @@`
	Config *rawConfig `| @@`
}

type rawModel struct {
	Pos        lexer.Position
	Name       string               `"model" @Ident`
	Fields     []*rawField          `"{" @@*`
	Attributes []*rawBlockAttribute `@@* "}"`
}

type rawEnum struct {
	Pos    lexer.Position
	Name   string   `"enum" @Ident`
	Values []string `"{" @Ident* "}"`
}

type rawConfig struct {
	Pos        lexer.Position
	Kind       string         `@("datasource" | "generator")`
	Name       string         `@Ident`
	Properties []*rawProperty `"{" @@* "}"`
}

type rawProperty struct {
	Key   string    `@Ident "="`
	Value *rawValue `@@`
}

type rawField struct {
	Pos        lexer.Position
	Name       string          `@Ident`
	Type       string          `@Ident`
	List       bool            `@("[" "]")?`
	Optional   bool            `@"?"?`
	Attributes []*rawAttribute `@@*`
}

type rawAttribute struct {
	Pos       lexer.Position
	Name      string         `"@" @Ident ( @"." @Ident )?`
	Arguments []*rawArgument `( "(" ( @@ ( "," @@ )* ","? )? ")" )?`
}

type rawBlockAttribute struct {
	Pos       lexer.Position
	Name      string         `"@@" @Ident`
	Arguments []*rawArgument `( "(" ( @@ ( "," @@ )* ","? )? ")" )?`
}

type rawArgument struct {
	Name  string    `( @Ident ":" )?`
	Value *rawValue `@@`
}

type rawValue struct {
	Call   *rawCall    `  @@`
	String *string     `| @String`
	Number *string     `| @Number`
	List   []*rawValue `| "[" ( @@ ( "," @@ )* )? "]"`
	Ident  *string     `| @Ident`
}

type rawCall struct {
	Name      string      `@Ident "("`
	Arguments []*rawValue `( @@ ( "," @@ )* )? ")"`
}

var schemaParser = participle.MustBuild[rawFile](
	participle.Lexer(schemaLexer),
	participle.Elide("Whitespace", "Comment", "MultiLineComment"),
	participle.Unquote("String"),
	participle.UseLookahead(4),
)

// strings returns the value as a list of identifiers or strings. A scalar
// becomes a one-element list.
func (v *rawValue) strings() []string {
	if v == nil {
		return nil
	}
	if v.List != nil {
		out := make([]string, 0, len(v.List))
		for _, item := range v.List {
			out = append(out, item.strings()...)
		}
		return out
	}
	if s, ok := v.scalar(); ok {
		return []string{s}
	}
	return nil
}

func (v *rawValue) scalar() (string, bool) {
	switch {
	case v == nil:
		return "", false
	case v.String != nil:
		return *v.String, true
	case v.Ident != nil:
		return *v.Ident, true
	case v.Number != nil:
		return *v.Number, true
	}
	return "", false
}

func (a *rawAttribute) argument(name string, position int) *rawValue {
	return argument(a.Arguments, name, position)
}

func (a *rawBlockAttribute) argument(name string, position int) *rawValue {
	return argument(a.Arguments, name, position)
}

// argument returns the named argument, or the positional argument at
// position when no argument carries that name.
func argument(args []*rawArgument, name string, position int) *rawValue {
	if name != "" {
		for _, arg := range args {
			if arg.Name == name {
				return arg.Value
			}
		}
	}
	positional := 0
	for _, arg := range args {
		if arg.Name != "" {
			continue
		}
		if positional == position {
			return arg.Value
		}
		positional++
	}
	return nil
}
