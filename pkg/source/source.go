// Package source reads YAML and JSON documents into accpack values. Mapping
// order in the input is kept, so encoding the result is deterministic.
package source

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/rawbytedev/accpack"
	"github.com/rawbytedev/accpack/internal/common"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxDepth = accpack.DefaultMaxDepth
	DefaultMaxNodes = 1 << 22
)

var (
	ErrTooDeep        = errors.New("source: document nesting too deep")
	ErrTooLarge       = errors.New("source: document expands to too many nodes")
	ErrUnknownTag     = errors.New("source: unsupported tag")
	ErrInvalidScalar  = errors.New("source: invalid scalar")
	ErrInvalidMerge   = errors.New("source: invalid merge key")
	ErrUnexpectedKind = errors.New("source: unexpected node kind")
)

// Parser converts YAML nodes to values. The zero value is usable.
type Parser struct {
	MaxDepth int // <= 0 means DefaultMaxDepth
	MaxNodes int // bounds alias expansion; <= 0 means DefaultMaxNodes
}

// Parse reads every document in r.
func Parse(r io.Reader) ([]accpack.Value, error) {
	return (&Parser{}).Parse(r)
}

func ParseBytes(data []byte) ([]accpack.Value, error) {
	return (&Parser{}).Parse(bytes.NewReader(data))
}

func ParseFile(path string) ([]accpack.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return (&Parser{}).Parse(f)
}

func (p *Parser) Parse(r io.Reader) ([]accpack.Value, error) {
	dec := yaml.NewDecoder(r)
	var out []accpack.Value
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		v, err := p.Node(&doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(out), err)
		}
		out = append(out, v)
	}
}

// Node converts a single YAML node tree.
func (p *Parser) Node(n *yaml.Node) (accpack.Value, error) {
	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	maxNodes := p.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	w := walker{maxDepth: maxDepth, budget: maxNodes}
	return w.node(n)
}

type walker struct {
	maxDepth int
	depth    int
	budget   int
}

func (w *walker) node(n *yaml.Node) (accpack.Value, error) {
	w.depth++
	defer func() { w.depth-- }()
	if w.depth > w.maxDepth {
		return nil, ErrTooDeep
	}
	w.budget--
	if w.budget < 0 {
		return nil, ErrTooLarge
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return accpack.Null{}, nil
		}
		return w.node(n.Content[0])
	case yaml.AliasNode:
		return w.node(n.Alias)
	case yaml.ScalarNode:
		return scalar(n)
	case yaml.SequenceNode:
		out := make(accpack.Seq, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := w.node(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(accpack.Map, 0, len(n.Content)/2)
		return w.mapping(n, out)
	default:
		return nil, fmt.Errorf("%w: %v at line %d", ErrUnexpectedKind, n.Kind, n.Line)
	}
}

func (w *walker) mapping(n *yaml.Node, out accpack.Map) (accpack.Map, error) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
			var err error
			if out, err = w.merge(v, out); err != nil {
				return nil, err
			}
			continue
		}
		key, err := w.node(k)
		if err != nil {
			return nil, err
		}
		val, err := w.node(v)
		if err != nil {
			return nil, err
		}
		out = appendEntry(out, key, val)
	}
	return out, nil
}

// merge inlines the mappings referenced by a "<<" key. Keys already present
// win over merged ones.
func (w *walker) merge(v *yaml.Node, out accpack.Map) (accpack.Map, error) {
	w.depth++
	defer func() { w.depth-- }()
	if w.depth > w.maxDepth {
		return nil, ErrTooDeep
	}
	for v.Kind == yaml.AliasNode {
		v = v.Alias
	}
	switch v.Kind {
	case yaml.MappingNode:
		merged, err := w.mapping(v, nil)
		if err != nil {
			return nil, err
		}
		for _, e := range merged {
			if k, ok := e.Key.(accpack.Text); ok {
				if _, exists := out.Get(string(k)); exists {
					continue
				}
			}
			out = append(out, e)
		}
		return out, nil
	case yaml.SequenceNode:
		for _, c := range v.Content {
			var err error
			if out, err = w.merge(c, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w at line %d", ErrInvalidMerge, v.Line)
	}
}

// appendEntry replaces an existing text key in place, otherwise appends.
func appendEntry(m accpack.Map, key, val accpack.Value) accpack.Map {
	if k, ok := key.(accpack.Text); ok {
		return m.Set(string(k), val)
	}
	return append(m, accpack.Entry{Key: key, Value: val})
}

func scalar(n *yaml.Node) (accpack.Value, error) {
	switch tag := n.ShortTag(); tag {
	case "!!null":
		return accpack.Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("%w: %q at line %d", ErrInvalidScalar, n.Value, n.Line)
		}
		return accpack.Bool(b), nil
	case "!!int":
		return parseInt(n)
	case "!!float":
		return parseFloat(n)
	case "!!str":
		return accpack.Text(n.Value), nil
	case "!!binary":
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return nil, fmt.Errorf("%w: binary at line %d: %v", ErrInvalidScalar, n.Line, err)
		}
		return accpack.Bytes(data), nil
	case "!!timestamp":
		return accpack.Text(n.Value), nil
	default:
		return nil, fmt.Errorf("%w %s at line %d", ErrUnknownTag, tag, n.Line)
	}
}

func parseInt(n *yaml.Node) (accpack.Value, error) {
	s := strings.ReplaceAll(n.Value, "_", "")
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		if i >= -common.MaxSafeInteger && i <= common.MaxSafeInteger {
			return accpack.Number(i), nil
		}
		return accpack.NewBigInt(i), nil
	}
	b, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("%w: int %q at line %d", ErrInvalidScalar, n.Value, n.Line)
	}
	return accpack.BigInt{Int: b}, nil
}

// parseFloat also receives integers too wide for 64 bits, which the YAML
// resolver tags as floats; those are kept exact.
func parseFloat(n *yaml.Node) (accpack.Value, error) {
	if n.Style&yaml.TaggedStyle == 0 && isIntegerLiteral(n.Value) {
		return parseInt(n)
	}
	switch strings.ToLower(n.Value) {
	case ".inf", "+.inf":
		return accpack.Number(math.Inf(1)), nil
	case "-.inf":
		return accpack.Number(math.Inf(-1)), nil
	case ".nan":
		return accpack.Number(math.NaN()), nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(n.Value, "_", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: float %q at line %d", ErrInvalidScalar, n.Value, n.Line)
	}
	return accpack.Number(f), nil
}

func isIntegerLiteral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	if s == "" {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}
