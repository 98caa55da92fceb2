package annotations

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// DirectivePrefix starts a keel comment directive such as //keel::service
const DirectivePrefix = "keel::"

// annotationList is the root of an annotation string: zero or more annotations
type annotationList struct {
	Annotations []*annotationNode `parser:"@@*"`
}

// annotationNode represents @Name or @Name(args)
type annotationNode struct {
	Pos  lexer.Position
	Name string     `parser:"'@' @Ident ( @'.' @Ident )*"`
	Args []*argNode `parser:"( '(' ( @@ ( ',' @@ )* )? ')' )?"`
}

// argNode represents a positional value or a key=value pair
type argNode struct {
	Key   *string    `parser:"( @Ident '=' )?"`
	Value *valueNode `parser:"@@"`
}

// valueNode represents a literal, identifier, list or nested map
type valueNode struct {
	String *string      `parser:"  @String"`
	Float  *float64     `parser:"| @Float"`
	Int    *int64       `parser:"| @Int"`
	Bool   *string      `parser:"| @('true' | 'false')"`
	Ident  *string      `parser:"| @Ident ( @'.' @Ident )*"`
	Map    []*entryNode `parser:"| '{' @@ ( ',' @@ )* '}'"`
	List   []*valueNode `parser:"| '{' ( @@ ( ',' @@ )* )? '}'"`
}

// entryNode represents one key=value entry of a nested map
type entryNode struct {
	Key   string     `parser:"@Ident '='"`
	Value *valueNode `parser:"@@"`
}

// Parser turns annotation strings into Instances using a schema registry
type Parser struct {
	parser   *participle.Parser[annotationList]
	registry Registry
}

var annotationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Float", Pattern: `[-+]?\d+\.\d+`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[@(),={}.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// NewParser creates a parser backed by registry. A nil registry means DefaultRegistry.
func NewParser(registry Registry) *Parser {
	if registry == nil {
		registry = DefaultRegistry()
	}

	parser := participle.MustBuild[annotationList](
		participle.Lexer(annotationLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(4),
	)

	return &Parser{
		parser:   parser,
		registry: registry,
	}
}

// Registry returns the schema registry used by the parser
func (p *Parser) Registry() Registry {
	return p.registry
}

// Parse parses every annotation in input. Unknown annotation names produce
// instances of an ad-hoc schema that is neither a qualifier nor a marker.
func (p *Parser) Parse(input string, location SourceLocation) ([]*Instance, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	ast, err := p.parser.ParseString(location.File, input)
	if err != nil {
		return nil, newSyntaxError(input, location, err)
	}

	result := make([]*Instance, 0, len(ast.Annotations))
	for _, node := range ast.Annotations {
		inst, err := p.build(node)
		if err != nil {
			return nil, err
		}
		inst.Location = location
		if location.Column > 0 {
			inst.Location.Column = location.Column + node.Pos.Column - 1
		}
		inst.Raw = input
		result = append(result, inst)
	}
	return result, nil
}

// MustParse is like Parse but panics on error
func (p *Parser) MustParse(input string) []*Instance {
	result, err := p.Parse(input, SourceLocation{})
	if err != nil {
		panic(err)
	}
	return result
}

func (p *Parser) build(node *annotationNode) (*Instance, error) {
	schema, ok := p.registry.Lookup(node.Name)
	if !ok {
		schema = adhocSchema(node)
	}

	values := make(map[string]Value, len(node.Args))
	positional := 0
	for _, arg := range node.Args {
		key := "value"
		if arg.Key != nil {
			key = *arg.Key
		} else {
			positional++
			if positional > 1 {
				return nil, newSchemaError(schema.Name, "", "only one positional value is allowed")
			}
		}
		if _, dup := values[key]; dup {
			return nil, newSchemaError(schema.Name, key, "parameter '%s' given twice", key)
		}
		values[key] = convertValue(arg.Value)
	}

	return NewInstance(schema, values)
}

// adhocSchema describes an annotation the registry does not know about
func adhocSchema(node *annotationNode) *Schema {
	params := make(map[string]ParameterSpec, len(node.Args))
	for _, arg := range node.Args {
		key := "value"
		if arg.Key != nil {
			key = *arg.Key
		}
		params[key] = ParameterSpec{Kind: convertValue(arg.Value).Kind()}
	}
	return &Schema{Name: node.Name, Parameters: params}
}

// convertValue converts a parsed value node to a Value
func convertValue(node *valueNode) Value {
	switch {
	case node == nil:
		return Value{}
	case node.String != nil:
		return StringValue(*node.String)
	case node.Float != nil:
		return FloatValue(*node.Float)
	case node.Int != nil:
		return IntValue(*node.Int)
	case node.Bool != nil:
		return BoolValue(*node.Bool == "true")
	case node.Ident != nil:
		return StringValue(*node.Ident)
	case node.Map != nil:
		dict := make(map[string]Value, len(node.Map))
		for _, entry := range node.Map {
			dict[entry.Key] = convertValue(entry.Value)
		}
		return MapValue(dict)
	default:
		items := make([]Value, len(node.List))
		for i, item := range node.List {
			items[i] = convertValue(item)
		}
		return ListValue(items...)
	}
}

// ParseDirective parses a comment directive of the form
//
//	//keel::service -Name=audit -Mode=Transient -Rank=10
//
// into an instance of the schema whose name matches the directive type
// (case-insensitively). Flags without a value are true for bool parameters and
// the declared default otherwise.
func (p *Parser) ParseDirective(comment string, location SourceLocation) (*Instance, error) {
	directive, remaining, err := splitDirective(comment)
	if err != nil {
		return nil, newSyntaxError(comment, location, err)
	}

	schema, ok := lookupFold(p.registry, directive)
	if !ok {
		return nil, newSyntaxError(comment, location, fmt.Errorf("unknown directive '%s'", directive))
	}

	values := make(map[string]Value)
	for _, part := range strings.Fields(remaining) {
		if !strings.HasPrefix(part, "-") {
			return nil, newSyntaxError(comment, location, fmt.Errorf("unexpected token '%s'", part))
		}
		part = strings.TrimPrefix(part, "-")

		key, raw, hasValue := strings.Cut(part, "=")
		spec, known := schema.Parameters[key]
		if !known {
			return nil, newSchemaError(schema.Name, key, "unknown parameter '%s'", key)
		}

		if !hasValue {
			switch {
			case spec.Kind == BoolKind:
				values[key] = BoolValue(true)
			case spec.DefaultValue.IsValid():
				values[key] = spec.DefaultValue
			default:
				return nil, newSchemaError(schema.Name, key, "parameter '%s' requires a value", key)
			}
			continue
		}

		v, err := convertDirectiveValue(raw, spec.Kind)
		if err != nil {
			return nil, newSchemaError(schema.Name, key, "parameter '%s': %v", key, err)
		}
		values[key] = v
	}

	inst, err := NewInstance(schema, values)
	if err != nil {
		return nil, err
	}
	inst.Location = location
	inst.Raw = comment
	return inst, nil
}

// IsDirective reports whether comment is a //keel:: directive
func IsDirective(comment string) bool {
	_, _, err := splitDirective(comment)
	return err == nil
}

// DirectiveType returns the directive name of a //keel:: comment, e.g. "service"
func DirectiveType(comment string) string {
	directive, _, err := splitDirective(comment)
	if err != nil {
		return ""
	}
	return directive
}

// DirectiveBody returns everything after the directive name
func DirectiveBody(comment string) string {
	_, remaining, err := splitDirective(comment)
	if err != nil {
		return ""
	}
	return remaining
}

func splitDirective(comment string) (directive, remaining string, err error) {
	content := strings.TrimSpace(comment)
	if !strings.HasPrefix(content, "//") {
		return "", "", fmt.Errorf("directive must start with '//'")
	}
	content = strings.TrimSpace(strings.TrimPrefix(content, "//"))

	if !strings.HasPrefix(content, DirectivePrefix) {
		return "", "", fmt.Errorf("directive must contain '%s' prefix", DirectivePrefix)
	}
	content = strings.TrimPrefix(content, DirectivePrefix)

	parts := strings.Fields(content)
	if len(parts) == 0 {
		return "", "", fmt.Errorf("empty directive")
	}

	directive = parts[0]
	remaining = strings.TrimSpace(strings.TrimPrefix(content, directive))
	return directive, remaining, nil
}

func convertDirectiveValue(raw string, kind Kind) (Value, error) {
	raw = trimQuotes(raw)
	switch kind {
	case StringKind:
		return StringValue(raw), nil
	case IntKind:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid integer '%s'", raw)
		}
		return IntValue(n), nil
	case FloatKind:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid number '%s'", raw)
		}
		return FloatValue(f), nil
	case BoolKind:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("invalid boolean '%s'", raw)
		}
		return BoolValue(b), nil
	case ListKind:
		if raw == "" {
			return StringsValue(), nil
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = trimQuotes(strings.TrimSpace(parts[i]))
		}
		return StringsValue(parts...), nil
	default:
		return Value{}, fmt.Errorf("%s parameters cannot be set from a directive", kind)
	}
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
