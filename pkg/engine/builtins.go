package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/matgraph/pkg/graph"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms material script source before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: one-minus-x -> one_minus_x
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator).
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only when the hyphen sits between identifier characters; a lone
		// minus stays an operator.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Node references
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a spawned node so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	kind graph.NodeKind
	name string
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", strings.ToLower(n.kind.String()), n.name)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// A keyword directly followed by another keyword, or at the end of the
// list, is a flag.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			if _, next := isKW(args[i+1]); !next {
				result.kw[name] = args[i+1]
				i += 2
				continue
			}
		}
		result.kw[name] = zygo.SexpNull
		i++
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toFloat32s(args []zygo.Sexp, what string) ([]float32, error) {
	out := make([]float32, len(args))
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", what, i+1, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toBool treats a flag keyword, true and non-zero numbers as true.
func toBool(s zygo.Sexp) bool {
	if s == zygo.SexpNull {
		return true
	}
	if f, err := toFloat64(s); err == nil {
		return f != 0
	}
	return s.SexpString(nil) == "true"
}

// toNodeRef extracts a node reference.
func toNodeRef(s zygo.Sexp) (*sexpNodeRef, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref, nil
	}
	return nil, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builder accumulates the graph and instance values a script produces.
type builder struct {
	sys    *graph.System
	values map[string]graph.NodeData
}

// spawn creates a node of kind, applies the common :name keyword and records
// data as both the node payload and its instance value.
func (b *builder) spawn(kind graph.NodeKind, pa kwArgs, data graph.NodeData) (zygo.Sexp, error) {
	n, err := b.sys.Spawn(kind)
	if err != nil {
		return zygo.SexpNull, err
	}
	if v, ok := pa.kw["name"]; ok {
		name, err := toString(v)
		if err != nil {
			b.sys.DeleteNode(n.ID)
			return zygo.SexpNull, fmt.Errorf("name: %w", err)
		}
		n.Name = name
	}
	if data != nil {
		n.Data = data
		if kind.HasInstanceValue() {
			b.values[n.UUID] = data
		}
	}
	return &sexpNodeRef{id: n.ID, kind: kind, name: n.Name}, nil
}

// registerBuiltins installs the material DSL into a zygomys environment.
// The builtins operate on b, populating it during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// (material :name "Wood")
	env.AddFunction("material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		ref, err := b.spawn(graph.NodeMaterial, parseArgs(args), nil)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("material: %w", err)
		}
		return ref, nil
	})

	// (color r g b) or (color r g b a)
	env.AddFunction("color", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if n := len(pa.positional); n != 3 && n != 4 {
			return zygo.SexpNull, fmt.Errorf("color requires 3 or 4 components, got %d", n)
		}
		c, err := toFloat32s(pa.positional, "color")
		if err != nil {
			return zygo.SexpNull, err
		}
		rgba := graph.RGBA{R: c[0], G: c[1], B: c[2], A: 1}
		if len(c) == 4 {
			rgba.A = c[3]
		}
		return b.spawn(graph.NodeColor, pa, graph.ColorData{Color: rgba})
	})

	// (texture "textures/wood.png")
	env.AddFunction("texture", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("texture requires a path argument")
		}
		p, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("texture: path: %w", err)
		}
		return b.spawn(graph.NodeTexture, pa, graph.TextureData{Path: p})
	})

	// (slider 0.5) or (slider 3 :int true)
	env.AddFunction("slider", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var sd graph.SliderData
		if len(pa.positional) > 1 {
			return zygo.SexpNull, fmt.Errorf("slider takes at most one value, got %d", len(pa.positional))
		}
		if len(pa.positional) == 1 {
			f, err := toFloat64(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("slider: value: %w", err)
			}
			sd.Value = float32(f)
		}
		if v, ok := pa.kw["int"]; ok {
			sd.IntOnly = toBool(v)
		}
		return b.spawn(graph.NodeSlider, pa, sd)
	})

	// (one-minus-x), registered as one_minus_x after preprocessing.
	env.AddFunction("one_minus_x", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var d graph.OneMinusXData
		if v, ok := pa.kw["x"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("one-minus-x: x: %w", err)
			}
			d.X = float32(f)
		}
		return b.spawn(graph.NodeOneMinusX, pa, d)
	})

	// (multiply)
	env.AddFunction("multiply", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.spawn(graph.NodeMultiply, parseArgs(args), graph.MultiplyData{})
	})

	// (vec2 x y)
	env.AddFunction("vec2", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("vec2 requires exactly 2 arguments, got %d", len(pa.positional))
		}
		v, err := toFloat32s(pa.positional, "vec2")
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.spawn(graph.NodeVector2, pa, graph.Vector2Data{X: v[0], Y: v[1]})
	})

	// (connect from to slot) where slot is an input index of `to` or, when
	// `to` is the material root, a channel keyword such as :roughness.
	env.AddFunction("connect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("connect requires from, to and slot, got %d arguments", len(args))
		}
		from, err := toNodeRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: from: %w", err)
		}
		to, err := toNodeRef(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: to: %w", err)
		}
		src, dst := b.sys.FindNode(from.id), b.sys.FindNode(to.id)
		if src == nil || dst == nil {
			return zygo.SexpNull, fmt.Errorf("connect: node no longer exists")
		}
		if len(src.Outputs) == 0 {
			return zygo.SexpNull, fmt.Errorf("connect: %s has no output", src.Name)
		}

		slot, err := inputSlot(dst, args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: %w", err)
		}
		if _, err := b.sys.Link(src.Outputs[0], dst.Inputs[slot]); err != nil {
			return zygo.SexpNull, fmt.Errorf("connect %s -> %s[%d]: %w", src.Name, dst.Name, slot, err)
		}
		return to, nil
	})

	// (position node x y)
	env.AddFunction("position", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("position requires a node, x and y")
		}
		ref, err := toNodeRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("position: %w", err)
		}
		xy, err := toFloat32s(args[1:], "position")
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := b.sys.SetNodePosition(ref.id, graph.Vec2{X: xy[0], Y: xy[1]}); err != nil {
			return zygo.SexpNull, fmt.Errorf("position: %w", err)
		}
		return ref, nil
	})
}

// inputSlot resolves a slot argument against dst's inputs.
func inputSlot(dst *graph.Node, s zygo.Sexp) (int, error) {
	if f, err := toFloat64(s); err == nil {
		slot := int(f)
		if slot < 0 || slot >= len(dst.Inputs) {
			return 0, fmt.Errorf("%s has no input %d", dst.Name, slot)
		}
		return slot, nil
	}
	key, err := toKeywordString(s)
	if err != nil {
		return 0, fmt.Errorf("slot: %w", err)
	}
	if !dst.IsRoot {
		return 0, fmt.Errorf("channel %q used on non-root node %s", key, dst.Name)
	}
	ch, ok := graph.ParseChannel(key)
	if !ok {
		return 0, fmt.Errorf("unknown channel %q", key)
	}
	return int(ch), nil
}
