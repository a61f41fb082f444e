// Package hclread converts Terraform HCL source into a generic
// map/slice representation that the extraction layer consumes.
//
// The shape mirrors what a generic block-to-mapping conversion produces:
// each top-level block type maps to a list of block bodies; labeled blocks
// nest one map level per label, so
//
//	resource "aws_security_group" "web" { ... }
//
// becomes {"resource": [{"aws_security_group": {"web": {...}}}]}. A nested
// block that appears once surfaces as a single map, a repeated one as a
// list of maps; consumers must tolerate both forms. Values are plain Go
// scalars, []any, and map[string]any. Expressions that cannot be evaluated
// statically (variable and resource references) degrade to their traversal
// text, e.g. "aws_vpc.main.id".
package hclread

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// ParseFile reads and parses one Terraform file. A nil map with a non-nil
// error is returned when the file cannot be read or parsed; callers treat
// parse failures as skippable (terraform validate covers syntax errors).
func ParseFile(path string) (map[string]any, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse parses Terraform source held in memory. filename is used only for
// diagnostics.
func Parse(src []byte, filename string) (map[string]any, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", filename, diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("parse %s: unexpected body type", filename)
	}

	out := make(map[string]any)
	for _, block := range body.Blocks {
		entry := labelledBody(block)
		existing, _ := out[block.Type].([]any)
		out[block.Type] = append(existing, entry)
	}
	return out, nil
}

// labelledBody wraps a block body in one map level per label, innermost
// last, so a two-label resource block yields {type: {name: body}}.
func labelledBody(block *hclsyntax.Block) any {
	entry := any(bodyToMap(block.Body))
	for i := len(block.Labels) - 1; i >= 0; i-- {
		entry = map[string]any{block.Labels[i]: entry}
	}
	return entry
}

func bodyToMap(body *hclsyntax.Body) map[string]any {
	out := make(map[string]any)

	for name, attr := range body.Attributes {
		out[name] = exprValue(attr.Expr)
	}

	for _, block := range body.Blocks {
		entry := labelledBody(block)
		switch existing := out[block.Type].(type) {
		case nil:
			out[block.Type] = entry
		case []any:
			out[block.Type] = append(existing, entry)
		default:
			out[block.Type] = []any{existing, entry}
		}
	}
	return out
}

// exprValue statically evaluates an expression. Composite expressions are
// walked element-wise so a list mixing literals and references keeps its
// literal members instead of failing whole.
func exprValue(expr hclsyntax.Expression) any {
	switch e := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		return traversalString(e.Traversal)
	case *hclsyntax.RelativeTraversalExpr:
		return traversalString(e.Traversal)
	case *hclsyntax.TupleConsExpr:
		items := make([]any, 0, len(e.Exprs))
		for _, item := range e.Exprs {
			items = append(items, exprValue(item))
		}
		return items
	case *hclsyntax.ObjectConsExpr:
		obj := make(map[string]any, len(e.Items))
		for _, item := range e.Items {
			key, diags := item.KeyExpr.Value(nil)
			if diags.HasErrors() || key.Type() != cty.String {
				continue
			}
			obj[key.AsString()] = exprValue(item.ValueExpr)
		}
		return obj
	case *hclsyntax.TemplateExpr:
		if val, diags := e.Value(nil); !diags.HasErrors() && val.IsKnown() {
			return ctyToGo(val)
		}
		// Interpolated references render as their source text.
		var sb strings.Builder
		for _, part := range e.Parts {
			switch v := exprValue(part).(type) {
			case string:
				sb.WriteString(v)
			default:
				sb.WriteString(fmt.Sprintf("%v", v))
			}
		}
		return sb.String()
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() || !val.IsKnown() {
		return nil
	}
	return ctyToGo(val)
}

func traversalString(traversal hcl.Traversal) string {
	var sb strings.Builder
	for _, step := range traversal {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			sb.WriteString(s.Name)
		case hcl.TraverseAttr:
			sb.WriteString(".")
			sb.WriteString(s.Name)
		case hcl.TraverseIndex:
			sb.WriteString(fmt.Sprintf("[%s]", indexKey(s.Key)))
		}
	}
	return sb.String()
}

func indexKey(key cty.Value) string {
	switch key.Type() {
	case cty.String:
		return key.AsString()
	case cty.Number:
		f, _ := key.AsBigFloat().Float64()
		return fmt.Sprintf("%d", int64(f))
	default:
		return ""
	}
}

func ctyToGo(val cty.Value) any {
	if val.IsNull() {
		return nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString()
	case ty == cty.Bool:
		return val.True()
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f)
		}
		return f
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		items := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, item := it.Element()
			items = append(items, ctyToGo(item))
		}
		return items
	case ty.IsObjectType() || ty.IsMapType():
		obj := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			key, item := it.Element()
			if key.Type() == cty.String {
				obj[key.AsString()] = ctyToGo(item)
			}
		}
		return obj
	default:
		return nil
	}
}
