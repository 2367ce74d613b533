package scanner

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"opsreg/internal/logging"
	"opsreg/internal/ops"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// extractor parses one file at a time and pulls operation declarations
// out of its syntax tree. The load-bearing safety property: extraction
// reads literals from the tree and never executes or evaluates anything.
type extractor struct {
	markers map[string]bool
	parser  *sitter.Parser
}

func newExtractor(markers map[string]bool) *extractor {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &extractor{markers: markers, parser: parser}
}

// extractFile parses path and returns its validated records and
// diagnostics. Parsing is isolated: a file that fails to parse yields a
// single diagnostic and an empty record list.
func (e *extractor) extractFile(ctx context.Context, path string) ([]ops.Record, []Diagnostic) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, []Diagnostic{{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}}
	}

	tree, err := e.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		logging.ScannerDebug("Parse failed for %s: %v", path, err)
		return nil, []Diagnostic{{File: path, Message: fmt.Sprintf("failed to parse: %v", err)}}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		logging.ScannerDebug("Skipping %s due to unparseable syntax tree", path)
		return nil, []Diagnostic{{File: path, Message: "skipping file due to unparseable syntax tree"}}
	}

	var records []ops.Record
	var diags []Diagnostic
	e.walkTree(root, path, content, &records, &diags)
	return records, diags
}

// walkTree visits every node looking for decorated definitions.
func (e *extractor) walkTree(node *sitter.Node, path string, src []byte, records *[]ops.Record, diags *[]Diagnostic) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "decorated_definition" {
			e.extractDecorated(child, path, src, records, diags)
		}
		e.walkTree(child, path, src, records, diags)
	}
}

// extractDecorated inspects the decorators of one decorated definition.
// A decorator qualifies when it is a call to a recognized marker
// identifier; the match is by call-site identifier name only.
func (e *extractor) extractDecorated(node *sitter.Node, path string, src []byte, records *[]ops.Record, diags *[]Diagnostic) {
	funcName := ""
	if def := node.ChildByFieldName("definition"); def != nil {
		if nameNode := def.ChildByFieldName("name"); nameNode != nil {
			funcName = nodeText(nameNode, src)
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		dec := node.NamedChild(i)
		if dec.Type() != "decorator" {
			continue
		}
		expr := dec.NamedChild(0)
		if expr == nil || expr.Type() != "call" {
			continue
		}
		fn := expr.ChildByFieldName("function")
		if fn == nil || fn.Type() != "identifier" || !e.markers[nodeText(fn, src)] {
			continue
		}

		if rec, ok := e.extractCall(expr, path, funcName, src, diags); ok {
			logging.ScannerDebug("Found op %s at %s:%d", rec.ID, path, int(expr.StartPoint().Row)+1)
			*records = append(*records, rec)
		}
	}
}

// extractCall turns one marker call into a validated record.
func (e *extractor) extractCall(call *sitter.Node, path, funcName string, src []byte, diags *[]Diagnostic) (ops.Record, bool) {
	kwargs := make(map[string]*sitter.Node)
	if args := call.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			arg := args.NamedChild(i)
			if arg.Type() != "keyword_argument" {
				continue
			}
			nameNode := arg.ChildByFieldName("name")
			valueNode := arg.ChildByFieldName("value")
			if nameNode != nil && valueNode != nil {
				kwargs[nodeText(nameNode, src)] = valueNode
			}
		}
	}

	// A candidate must supply description, name, path, and one of
	// params/parameters. Anything else is not a declaration.
	if kwargs["description"] == nil || kwargs["name"] == nil || kwargs["path"] == nil ||
		(kwargs["params"] == nil && kwargs["parameters"] == nil) {
		return ops.Record{}, false
	}

	name, ok := stringLiteral(kwargs["name"], src)
	if !ok {
		*diags = append(*diags, Diagnostic{File: path, Candidate: funcName, Field: "name",
			Message: "name must be a string literal"})
		return ops.Record{}, false
	}
	description, ok := stringLiteral(kwargs["description"], src)
	if !ok {
		*diags = append(*diags, Diagnostic{File: path, Candidate: name, Field: "description",
			Message: "description must be a string literal"})
		return ops.Record{}, false
	}
	url, ok := stringLiteral(kwargs["path"], src)
	if !ok {
		*diags = append(*diags, Diagnostic{File: path, Candidate: name, Field: "path",
			Message: "path must be a string literal"})
		return ops.Record{}, false
	}

	rec := ops.Record{
		Name:        name,
		Description: description,
		URL:         url,
		Tags:        extractTags(kwargs["tags"], src),
	}

	if m := kwargs["method"]; m != nil {
		rec.Method = renderString(literalValue(m, src))
	}
	if p := kwargs["params"]; p != nil {
		params, ok := extractParams(p, src)
		if !ok {
			*diags = append(*diags, Diagnostic{File: path, Candidate: name, Field: "params",
				Message: "params must be a mapping of string literal names to string literal descriptions"})
			return ops.Record{}, false
		}
		rec.Params = params
	}
	if p := kwargs["parameters"]; p != nil {
		if p.Type() == "dictionary" {
			rec.Parameters = literalValue(p, src)
		} else {
			rec.Parameters = map[string]any{}
		}
	}

	rec = ops.Normalize(rec)
	if errs := ops.Validate(rec); len(errs) > 0 {
		for _, fe := range errs {
			*diags = append(*diags, Diagnostic{File: path, Candidate: name, Field: fe.Field, Message: fe.Message})
		}
		return ops.Record{}, false
	}

	return rec, true
}

// extractTags pulls a list of tag strings. A non-list value yields nil
// (the record then gets the default tag); non-string elements are
// rendered as their source text.
func extractTags(node *sitter.Node, src []byte) []string {
	if node == nil || node.Type() != "list" {
		return nil
	}
	var tags []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		elt := node.NamedChild(i)
		if elt.Type() == "comment" {
			continue
		}
		if s, ok := stringLiteral(elt, src); ok {
			tags = append(tags, s)
		} else {
			tags = append(tags, nodeText(elt, src))
		}
	}
	return tags
}

// extractParams converts a flat {name: description} dict literal into
// the ordered parameter sequence. Both keys and values must be string
// literals; anything else disqualifies the whole candidate.
func extractParams(node *sitter.Node, src []byte) ([]ops.Param, bool) {
	if node.Type() != "dictionary" {
		return nil, false
	}
	params := []ops.Param{}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		pair := node.NamedChild(i)
		if pair.Type() != "pair" {
			continue
		}
		key, ok := stringLiteral(pair.ChildByFieldName("key"), src)
		if !ok {
			return nil, false
		}
		value, ok := stringLiteral(pair.ChildByFieldName("value"), src)
		if !ok {
			return nil, false
		}
		params = append(params, ops.Param{Name: key, Description: value})
	}
	return params, true
}

// literalValue converts a syntax node into a plain Go value. Strings,
// numbers, booleans, None and nested lists/dicts of literals convert
// exactly; any other expression is rendered as its source text rather
// than evaluated.
func literalValue(node *sitter.Node, src []byte) any {
	switch node.Type() {
	case "string":
		return unquoteString(nodeText(node, src))
	case "integer":
		if v, err := strconv.ParseInt(nodeText(node, src), 0, 64); err == nil {
			return v
		}
		return nodeText(node, src)
	case "float":
		if v, err := strconv.ParseFloat(nodeText(node, src), 64); err == nil {
			return v
		}
		return nodeText(node, src)
	case "true":
		return true
	case "false":
		return false
	case "none":
		return nil
	case "unary_operator":
		// Negative number literals parse as unary minus over a number.
		if arg := node.ChildByFieldName("argument"); arg != nil && strings.HasPrefix(nodeText(node, src), "-") {
			switch v := literalValue(arg, src).(type) {
			case int64:
				return -v
			case float64:
				return -v
			}
		}
		return nodeText(node, src)
	case "parenthesized_expression":
		if inner := node.NamedChild(0); inner != nil {
			return literalValue(inner, src)
		}
		return nodeText(node, src)
	case "list", "tuple", "set":
		out := []any{}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			elt := node.NamedChild(i)
			if elt.Type() == "comment" {
				continue
			}
			out = append(out, literalValue(elt, src))
		}
		return out
	case "dictionary":
		out := map[string]any{}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			pair := node.NamedChild(i)
			if pair.Type() != "pair" {
				continue
			}
			keyNode := pair.ChildByFieldName("key")
			valueNode := pair.ChildByFieldName("value")
			if keyNode == nil || valueNode == nil {
				continue
			}
			key, ok := stringLiteral(keyNode, src)
			if !ok {
				// Non-string keys are skipped, not evaluated.
				continue
			}
			out[key] = literalValue(valueNode, src)
		}
		return out
	default:
		// Best-effort textual form for non-literal expressions.
		return strings.TrimSpace(nodeText(node, src))
	}
}

// stringLiteral returns the unquoted value of a string literal node.
func stringLiteral(node *sitter.Node, src []byte) (string, bool) {
	if node == nil || node.Type() != "string" {
		return "", false
	}
	return unquoteString(nodeText(node, src)), true
}

// renderString flattens a literal value to its string form.
func renderString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// nodeText returns the source text covered by a node.
func nodeText(node *sitter.Node, src []byte) string {
	return string(src[node.StartByte():node.EndByte()])
}

// unquoteString strips Python string prefixes and quotes and resolves
// the common escape sequences. It never evaluates anything; f-string
// interpolations are left as-is.
func unquoteString(s string) string {
	// Strip prefix letters (r, b, f, u and combinations).
	i := 0
	for i < len(s) && s[i] != '"' && s[i] != '\'' {
		i++
	}
	raw := strings.HasPrefix(strings.ToLower(s[:i]), "r")
	body := s[i:]

	for _, q := range []string{`"""`, `'''`} {
		if len(body) >= 6 && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			body = body[3 : len(body)-3]
			if raw {
				return body
			}
			return unescape(body)
		}
	}
	if len(body) >= 2 && (body[0] == '"' || body[0] == '\'') && body[len(body)-1] == body[0] {
		body = body[1 : len(body)-1]
	}
	if raw {
		return body
	}
	return unescape(body)
}

// unescape resolves the escape sequences that appear in declaration
// strings; unrecognized escapes are kept verbatim.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
