package grammar

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/structuredgen/gbnf/ast"
)

// SchemaOption configures the conversion of a JSON schema into a grammar.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	anyWhitespace bool
	indent        int
	itemSep       string
	keySep        string
	strict        bool
}

// WithAnyWhitespace controls whether the produced grammar allows
// arbitrary whitespace between JSON tokens. When disabled, the layout is
// fixed: compact by default, or pretty-printed via WithIndent. The
// default is enabled.
func WithAnyWhitespace(enable bool) SchemaOption {
	return func(c *schemaConfig) { c.anyWhitespace = enable }
}

// WithIndent fixes the layout to pretty-printed JSON with n-space
// indentation per nesting level. Implies WithAnyWhitespace(false).
func WithIndent(n int) SchemaOption {
	return func(c *schemaConfig) {
		c.anyWhitespace = false
		c.indent = n
	}
}

// WithSeparators overrides the item and key separators of the fixed
// layout, like the separators argument of Python's json.dump. Implies
// WithAnyWhitespace(false).
func WithSeparators(item, key string) SchemaOption {
	return func(c *schemaConfig) {
		c.anyWhitespace = false
		c.itemSep = item
		c.keySep = key
	}
}

// WithStrictMode controls strict conversion. In strict mode, the default,
// objects admit no properties beyond those declared unless the schema
// says otherwise, and arrays and objects must be non-empty. Outside
// strict mode both are relaxed.
func WithStrictMode(enable bool) SchemaOption {
	return func(c *schemaConfig) { c.strict = enable }
}

// JSONSchemaToEBNF converts a JSON schema document into grammar source
// text whose root rule matches exactly the JSON values the schema
// accepts. The supported subset covers type, properties, required,
// additionalProperties, items, prefixItems, enum, const, anyOf/oneOf and
// $ref into $defs/definitions; unsupported validation keywords within a
// recognized schema are ignored.
func JSONSchemaToEBNF(schema string, opts ...SchemaOption) (string, error) {
	cfg := schemaConfig{anyWhitespace: true, indent: -1, strict: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.itemSep == "" {
		if cfg.indent >= 0 {
			cfg.itemSep = ","
		} else {
			cfg.itemSep = ", "
		}
	}
	if cfg.keySep == "" {
		cfg.keySep = ": "
	}

	dec := json.NewDecoder(strings.NewReader(schema))
	dec.UseNumber()
	doc, err := decodeOrdered(dec)
	if err != nil {
		return "", fmt.Errorf("invalid JSON schema: %w", err)
	}

	c := &schemaConverter{cfg: cfg, doc: doc, refs: make(map[string]string)}
	ref, err := c.visit(doc, "root")
	if err != nil {
		return "", err
	}
	if ref != "root" {
		c.addRule("root", ref)
	}

	var sb strings.Builder
	for _, r := range c.basicBlock() {
		fmt.Fprintf(&sb, "%s ::= %s\n", r.name, r.body)
	}
	for _, r := range c.rules {
		fmt.Fprintf(&sb, "%s ::= %s\n", r.name, r.body)
	}
	return sb.String(), nil
}

// FromJSONSchema converts a JSON schema and compiles the result.
func FromJSONSchema(schema string, opts ...SchemaOption) (*Grammar, error) {
	src, err := JSONSchemaToEBNF(schema, opts...)
	if err != nil {
		return nil, err
	}
	return compileSource("json_schema.ebnf", src, "root")
}

const wsPattern = `[ \n\t]*`

type schemaRule struct {
	name, body string
}

type schemaConverter struct {
	cfg   schemaConfig
	doc   any
	rules []schemaRule
	refs  map[string]string
	level int
}

func (c *schemaConverter) addRule(name, body string) string {
	c.rules = append(c.rules, schemaRule{name: name, body: body})
	return name
}

func ebnfQuote(s string) string {
	return ast.QuoteLiteral([]byte(s))
}

// joinSeq joins sequence fragments, dropping empty ones.
func joinSeq(parts ...string) string {
	nz := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nz = append(nz, p)
		}
	}
	return strings.Join(nz, " ")
}

// layout returns the fragments placed after the opening bracket, before
// the closing bracket, between items, and between a key and its value,
// for a composite at the current nesting level.
func (c *schemaConverter) layout() (pre, post, item, key string) {
	if c.cfg.anyWhitespace {
		item = wsPattern + ` "," ` + wsPattern
		key = wsPattern + ` ":" ` + wsPattern
		return wsPattern, wsPattern, item, key
	}
	key = ebnfQuote(c.cfg.keySep)
	if c.cfg.indent >= 0 {
		pad := strings.Repeat(" ", (c.level+1)*c.cfg.indent)
		pre = ebnfQuote("\n" + pad)
		post = ebnfQuote("\n" + strings.Repeat(" ", c.level*c.cfg.indent))
		item = ebnfQuote(c.cfg.itemSep + "\n" + pad)
		return pre, post, item, key
	}
	return "", "", ebnfQuote(c.cfg.itemSep), key
}

// basicBlock returns the shared rules every converted schema depends on.
func (c *schemaConverter) basicBlock() []schemaRule {
	var pre, post, item, key string
	if c.cfg.anyWhitespace {
		pre, post = wsPattern, wsPattern
		item = wsPattern + ` "," ` + wsPattern
		key = wsPattern + ` ":" ` + wsPattern
	} else {
		item = `", "`
		key = `": "`
	}
	array := joinSeq(`"["`, pre, "basic_any", "("+joinSeq(item, "basic_any")+")*", post, `"]"`)
	object := joinSeq(`"{"`, pre, "basic_string", key, "basic_any",
		"("+joinSeq(item, "basic_string", key, "basic_any")+")*", post, `"}"`)
	if !c.cfg.strict {
		array = "(" + array + `) | "[" "]"`
		object = "(" + object + `) | "{" "}"`
	}
	return []schemaRule{
		{"basic_escape", `["\\/bfnrt] | "u" [A-Fa-f0-9] [A-Fa-f0-9] [A-Fa-f0-9] [A-Fa-f0-9]`},
		{"basic_string_sub", `"\"" | [^"\\\r\n] basic_string_sub | "\\" basic_escape basic_string_sub`},
		{"basic_any", "basic_number | basic_string | basic_boolean | basic_null | basic_array | basic_object"},
		{"basic_integer", `"0" | "-"? [1-9] [0-9]*`},
		{"basic_number", `("0" | "-"? [1-9] [0-9]*) ("." [0-9]+)? ([eE] [+-]? [0-9]+)?`},
		{"basic_string", `["] basic_string_sub`},
		{"basic_boolean", `"true" | "false"`},
		{"basic_null", `"null"`},
		{"basic_array", array},
		{"basic_object", object},
	}
}

// visit converts one schema node. It returns the name of an existing
// basic rule when the schema needs nothing more, and otherwise emits a
// rule called name and returns that.
func (c *schemaConverter) visit(schema any, name string) (string, error) {
	switch s := schema.(type) {
	case bool:
		if !s {
			return "", fmt.Errorf("schema at %s matches nothing", name)
		}
		return "basic_any", nil
	case *orderedMap:
		return c.visitMap(s, name)
	default:
		return "", fmt.Errorf("unsupported schema of type %T at %s", schema, name)
	}
}

func (c *schemaConverter) visitMap(m *orderedMap, name string) (string, error) {
	if ref, ok := m.get("$ref"); ok {
		path, ok := ref.(string)
		if !ok {
			return "", fmt.Errorf("non-string $ref at %s", name)
		}
		target, err := c.refRule(path)
		if err != nil {
			return "", err
		}
		return c.addRule(name, target), nil
	}
	if v, ok := m.get("enum"); ok {
		vals, ok := v.([]any)
		if !ok || len(vals) == 0 {
			return "", fmt.Errorf("enum at %s must be a non-empty array", name)
		}
		alts := make([]string, len(vals))
		for i, val := range vals {
			text, err := jsonText(val)
			if err != nil {
				return "", fmt.Errorf("enum value at %s: %w", name, err)
			}
			alts[i] = "(" + ebnfQuote(text) + ")"
		}
		return c.addRule(name, strings.Join(alts, " | ")), nil
	}
	if v, ok := m.get("const"); ok {
		text, err := jsonText(v)
		if err != nil {
			return "", fmt.Errorf("const value at %s: %w", name, err)
		}
		return c.addRule(name, ebnfQuote(text)), nil
	}
	if v, ok := m.get("anyOf"); ok {
		return c.visitCases(v, name)
	}
	if v, ok := m.get("oneOf"); ok {
		return c.visitCases(v, name)
	}

	switch typ := valueOf[string](m, "type"); typ {
	case "string":
		return "basic_string", nil
	case "integer":
		return "basic_integer", nil
	case "number":
		return "basic_number", nil
	case "boolean":
		return "basic_boolean", nil
	case "null":
		return "basic_null", nil
	case "array":
		return c.convertArray(m, name)
	case "object":
		return c.convertObject(m, name)
	case "":
		if _, ok := m.get("properties"); ok {
			return c.convertObject(m, name)
		}
		if _, ok := m.get("items"); ok {
			return c.convertArray(m, name)
		}
		if _, ok := m.get("prefixItems"); ok {
			return c.convertArray(m, name)
		}
		if tv, ok := m.get("type"); ok {
			if list, ok := tv.([]any); ok {
				return c.visitCases(list, name)
			}
		}
		return "basic_any", nil
	default:
		return "", fmt.Errorf("unsupported type %q at %s", typ, name)
	}
}

// visitCases converts an anyOf/oneOf branch list (or a type list, whose
// entries are type names) into a choice rule.
func (c *schemaConverter) visitCases(v any, name string) (string, error) {
	branches, ok := v.([]any)
	if !ok || len(branches) == 0 {
		return "", fmt.Errorf("alternatives at %s must be a non-empty array", name)
	}
	alts := make([]string, len(branches))
	for i, branch := range branches {
		var (
			ref string
			err error
		)
		if typ, isName := branch.(string); isName {
			sub := &orderedMap{keys: []string{"type"}, vals: map[string]any{"type": typ}}
			ref, err = c.visitMap(sub, fmt.Sprintf("%s_case_%d", name, i))
		} else {
			ref, err = c.visit(branch, fmt.Sprintf("%s_case_%d", name, i))
		}
		if err != nil {
			return "", err
		}
		alts[i] = ref
	}
	return c.addRule(name, strings.Join(alts, " | ")), nil
}

func (c *schemaConverter) convertArray(m *orderedMap, name string) (string, error) {
	pre, post, item, _ := c.layout()
	c.level++
	defer func() { c.level-- }()

	if pv, ok := m.get("prefixItems"); ok {
		prefix, ok := pv.([]any)
		if !ok {
			return "", fmt.Errorf("prefixItems at %s must be an array", name)
		}
		parts := []string{`"["`, pre}
		for i, sub := range prefix {
			if i > 0 {
				parts = append(parts, item)
			}
			ref, err := c.visit(sub, fmt.Sprintf("%s_item_%d", name, i))
			if err != nil {
				return "", err
			}
			parts = append(parts, ref)
		}
		if iv, ok := m.get("items"); ok {
			if allowed, isBool := iv.(bool); !isBool || allowed {
				ref, err := c.visit(iv, name+"_items")
				if err != nil {
					return "", err
				}
				parts = append(parts, "("+joinSeq(item, ref)+")*")
			}
		}
		parts = append(parts, post, `"]"`)
		return c.addRule(name, joinSeq(parts...)), nil
	}

	itemRef := "basic_any"
	if iv, ok := m.get("items"); ok {
		ref, err := c.visit(iv, name+"_items")
		if err != nil {
			return "", err
		}
		itemRef = ref
	}
	body := joinSeq(`"["`, pre, itemRef, "("+joinSeq(item, itemRef)+")*", post, `"]"`)
	if !c.cfg.strict {
		body = "(" + body + `) | "[" "]"`
	}
	return c.addRule(name, body), nil
}

func (c *schemaConverter) convertObject(m *orderedMap, name string) (string, error) {
	pre, post, item, key := c.layout()
	c.level++
	defer func() { c.level-- }()

	props, _ := valueOrNil(m, "properties").(*orderedMap)
	required := make(map[string]bool)
	if rv, ok := m.get("required"); ok {
		list, ok := rv.([]any)
		if !ok {
			return "", fmt.Errorf("required at %s must be an array", name)
		}
		for _, k := range list {
			ks, ok := k.(string)
			if !ok {
				return "", fmt.Errorf("required at %s must list property names", name)
			}
			required[ks] = true
		}
	}

	// Additional properties are admitted when the schema asks for them,
	// or outside strict mode when it does not forbid them.
	addlSchema, addlGiven := m.get("additionalProperties")
	allowAddl := addlGiven || !c.cfg.strict
	if forbid, ok := addlSchema.(bool); ok && !forbid {
		allowAddl = false
		addlGiven = false
	}

	var frags []string
	var keys []string
	if props != nil {
		for i, k := range props.keys {
			ref, err := c.visit(props.vals[k], fmt.Sprintf("%s_prop_%d", name, i))
			if err != nil {
				return "", err
			}
			jsonKey, err := jsonText(k)
			if err != nil {
				return "", err
			}
			frags = append(frags, joinSeq(ebnfQuote(jsonKey), key, ref))
			keys = append(keys, k)
		}
	}

	anyProp := ""
	if allowAddl {
		addlRef := "basic_any"
		if addlGiven {
			if _, isBool := addlSchema.(bool); !isBool {
				ref, err := c.visit(addlSchema, name+"_addl")
				if err != nil {
					return "", err
				}
				addlRef = ref
			}
		}
		anyProp = joinSeq("basic_string", key, addlRef)
	}

	n := len(frags)
	if n == 0 {
		if !allowAddl {
			return c.addRule(name, joinSeq(`"{"`, wsOnly(c.cfg.anyWhitespace), `"}"`)), nil
		}
		body := joinSeq(`"{"`, pre, anyProp, "("+joinSeq(item, anyProp)+")*", post, `"}"`)
		if !c.cfg.strict {
			body = "(" + body + `) | "{" "}"`
		}
		return c.addRule(name, body), nil
	}

	lastReq := -1
	for i, k := range keys {
		if required[k] {
			lastReq = i
		}
	}

	if lastReq >= 0 {
		parts := []string{`"{"`, pre}
		for i := 0; i < lastReq; i++ {
			if required[keys[i]] {
				parts = append(parts, frags[i], item)
			} else {
				parts = append(parts, "("+joinSeq(frags[i], item)+")?")
			}
		}
		parts = append(parts, frags[lastReq])
		for i := lastReq + 1; i < n; i++ {
			parts = append(parts, "("+joinSeq(item, frags[i])+")?")
		}
		if allowAddl {
			parts = append(parts, "("+joinSeq(item, anyProp)+")*")
		}
		parts = append(parts, post, `"}"`)
		return c.addRule(name, joinSeq(parts...)), nil
	}

	// Every property is optional: chain suffix rules so any non-empty
	// ordered subset of the properties is admitted.
	suffix := make([]string, n)
	suffix[n-1] = `""`
	if allowAddl {
		suffix[n-1] = c.addRule(fmt.Sprintf("%s_part_%d", name, n-1),
			"("+joinSeq(item, anyProp)+")*")
	}
	for i := n - 2; i >= 0; i-- {
		body := suffix[i+1] + " | " + joinSeq(item, frags[i+1], suffix[i+1])
		suffix[i] = c.addRule(fmt.Sprintf("%s_part_%d", name, i), body)
	}
	alts := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		alts = append(alts, "("+joinSeq(frags[i], suffix[i])+")")
	}
	if allowAddl {
		alts = append(alts, "("+joinSeq(anyProp, suffix[n-1])+")")
	}
	body := joinSeq(`"{"`, pre, "("+strings.Join(alts, " | ")+")", post, `"}"`)
	if !c.cfg.strict {
		body = "(" + body + `) | "{" "}"`
	}
	return c.addRule(name, body), nil
}

// refRule resolves a local $ref and converts its target once, naming the
// rule after the last path segment. Recursive references resolve to the
// rule name before the rule body exists; compilation is order-free, so
// that is fine.
func (c *schemaConverter) refRule(path string) (string, error) {
	if rn, ok := c.refs[path]; ok {
		return rn, nil
	}
	if !strings.HasPrefix(path, "#/") {
		return "", fmt.Errorf("unsupported $ref %q: only local references are supported", path)
	}
	segs := strings.Split(path[2:], "/")
	cur := c.doc
	for _, seg := range segs {
		om, ok := cur.(*orderedMap)
		if !ok {
			return "", fmt.Errorf("cannot resolve $ref %q", path)
		}
		cur, ok = om.get(seg)
		if !ok {
			return "", fmt.Errorf("cannot resolve $ref %q", path)
		}
	}

	rn := "defs_" + sanitizeRuleName(segs[len(segs)-1])
	c.refs[path] = rn
	ref, err := c.visit(cur, rn)
	if err != nil {
		return "", err
	}
	if ref != rn {
		c.addRule(rn, ref)
	}
	return rn, nil
}

func sanitizeRuleName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func wsOnly(anyWS bool) string {
	if anyWS {
		return wsPattern
	}
	return ""
}

// valueOf returns m[key] when it has type T, and the zero value otherwise.
func valueOf[T any](m *orderedMap, key string) T {
	var zero T
	v, ok := m.get(key)
	if !ok {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}

func valueOrNil(m *orderedMap, key string) any {
	v, _ := m.get(key)
	return v
}

// jsonText serializes a decoded JSON value back to its canonical compact
// text, for embedding enum and const values as literals.
func jsonText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case json.Number:
		return t.String(), nil
	case string:
		b, err := json.Marshal(t)
		return string(b), err
	case []any:
		elems := make([]string, len(t))
		for i, e := range t {
			s, err := jsonText(e)
			if err != nil {
				return "", err
			}
			elems[i] = s
		}
		return "[" + strings.Join(elems, ", ") + "]", nil
	case *orderedMap:
		pairs := make([]string, len(t.keys))
		for i, k := range t.keys {
			ks, err := jsonText(k)
			if err != nil {
				return "", err
			}
			vs, err := jsonText(t.vals[k])
			if err != nil {
				return "", err
			}
			pairs[i] = ks + ": " + vs
		}
		return "{" + strings.Join(pairs, ", ") + "}", nil
	default:
		return "", fmt.Errorf("cannot serialize %T", v)
	}
}

// orderedMap is a JSON object that remembers declaration order. Schema
// conversion is order-sensitive: properties appear in the grammar in the
// order the schema declares them.
type orderedMap struct {
	keys []string
	vals map[string]any
}

func (m *orderedMap) get(key string) (any, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeOrderedValue(dec, tok)
}

func decodeOrderedValue(dec *json.Decoder, tok json.Token) (any, error) {
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		m := &orderedMap{vals: make(map[string]any)}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			k, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, not a string", kt)
			}
			v, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			if _, dup := m.vals[k]; !dup {
				m.keys = append(m.keys, k)
			}
			m.vals[k] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return m, nil
	case '[':
		var arr []any
		for dec.More() {
			v, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, io.ErrUnexpectedEOF
	}
}
