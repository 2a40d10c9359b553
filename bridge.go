package accpack

import (
	"cmp"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rawbytedev/accpack/internal/common"
)

var (
	bigIntType  = reflect.TypeOf(big.Int{})
	valueType   = reflect.TypeOf((*Value)(nil)).Elem()
	defaultPlan = newPlanCache()
)

type fieldPlan struct {
	fields []fieldInfo
}

type fieldInfo struct {
	idx       int
	name      string
	omitEmpty bool
}

type planCache struct {
	mu   sync.RWMutex
	plan map[reflect.Type]*fieldPlan
}

func newPlanCache() *planCache {
	return &planCache{plan: make(map[reflect.Type]*fieldPlan)}
}

func (c *planCache) get(t reflect.Type) *fieldPlan {
	c.mu.RLock()
	if plan, ok := c.plan[t]; ok {
		c.mu.RUnlock()
		return plan
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check
	if plan, ok := c.plan[t]; ok {
		return plan
	}

	plan := &fieldPlan{}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // skip unexported
		}
		name := sf.Name
		omit := false
		if tag, ok := sf.Tag.Lookup("accpack"); ok {
			if tag == "-" {
				continue
			}
			tagName, opts, _ := strings.Cut(tag, ",")
			if tagName != "" {
				name = tagName
			}
			omit = opts == "omitempty"
		}
		plan.fields = append(plan.fields, fieldInfo{idx: i, name: name, omitEmpty: omit})
	}
	c.plan[t] = plan
	return plan
}

// FromAny converts a Go value into a Value. Integers that a float64 holds
// exactly become Number, larger ones BigInt. Map entries are sorted by key;
// struct fields keep declaration order.
func FromAny(v any) (Value, error) {
	b := &bridge{plans: defaultPlan, visiting: make(map[visitKey]struct{})}
	return b.convert(reflect.ValueOf(v))
}

type visitKey struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type bridge struct {
	plans    *planCache
	visiting map[visitKey]struct{}
}

func (b *bridge) convert(v reflect.Value) (Value, error) {
	if !v.IsValid() {
		return Null{}, nil
	}
	if k := v.Kind(); k != reflect.Pointer && k != reflect.Interface && v.Type().Implements(valueType) {
		return v.Interface().(Value), nil
	}
	if v.Type() == bigIntType {
		n := v.Interface().(big.Int)
		return BigInt{Int: new(big.Int).Set(&n)}, nil
	}

	k := v.Kind()
	switch {
	case k == reflect.Bool:
		return Bool(v.Bool()), nil
	case common.IsIntKind(k):
		n := v.Int()
		if n >= -common.MaxSafeInteger && n <= common.MaxSafeInteger {
			return Number(n), nil
		}
		return NewBigInt(n), nil
	case common.IsUintKind(k):
		n := v.Uint()
		if n <= common.MaxSafeInteger {
			return Number(n), nil
		}
		return NewBigUint(n), nil
	case k == reflect.Float32 || k == reflect.Float64:
		return Number(v.Float()), nil
	case k == reflect.String:
		return Text(v.String()), nil
	}

	switch k {
	case reflect.Interface:
		if v.IsNil() {
			return Null{}, nil
		}
		return b.convert(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			return Null{}, nil
		}
		if v.Type().Elem() == bigIntType {
			return BigInt{Int: new(big.Int).Set(v.Interface().(*big.Int))}, nil
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if err := b.enter(key); err != nil {
			return nil, err
		}
		defer b.leave(key)
		return b.convert(v.Elem())
	case reflect.Slice:
		if v.IsNil() {
			return Null{}, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return Bytes(slices.Clone(v.Bytes())), nil
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}
		if err := b.enter(key); err != nil {
			return nil, err
		}
		defer b.leave(key)
		return b.convertList(v)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			out := make(Bytes, v.Len())
			for i := range out {
				out[i] = byte(v.Index(i).Uint())
			}
			return out, nil
		}
		return b.convertList(v)
	case reflect.Map:
		if v.IsNil() {
			return Null{}, nil
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if err := b.enter(key); err != nil {
			return nil, err
		}
		defer b.leave(key)
		return b.convertMap(v)
	case reflect.Struct:
		return b.convertStruct(v)
	default:
		return nil, newError(KindUnsupported, "Go type %s", v.Type())
	}
}

func (b *bridge) enter(key visitKey) error {
	if _, seen := b.visiting[key]; seen {
		return newError(KindCyclic, "%s refers back to itself", key.typ)
	}
	b.visiting[key] = struct{}{}
	return nil
}

func (b *bridge) leave(key visitKey) {
	delete(b.visiting, key)
}

func (b *bridge) convertList(v reflect.Value) (Value, error) {
	out := make(Seq, v.Len())
	for i := range out {
		item, err := b.convert(v.Index(i))
		if err != nil {
			return nil, withPath(err, "["+strconv.Itoa(i)+"]")
		}
		out[i] = item
	}
	return out, nil
}

func (b *bridge) convertMap(v reflect.Value) (Value, error) {
	type pair struct{ k, v reflect.Value }
	pairs := make([]pair, 0, v.Len())
	// NaN keys are only reachable through MapRange.
	for it := v.MapRange(); it.Next(); {
		pairs = append(pairs, pair{it.Key(), it.Value()})
	}

	kk := v.Type().Key().Kind()
	switch {
	case kk == reflect.String:
		slices.SortFunc(pairs, func(x, y pair) int { return cmp.Compare(x.k.String(), y.k.String()) })
	case common.IsIntKind(kk):
		slices.SortFunc(pairs, func(x, y pair) int { return cmp.Compare(x.k.Int(), y.k.Int()) })
	case common.IsUintKind(kk):
		slices.SortFunc(pairs, func(x, y pair) int { return cmp.Compare(x.k.Uint(), y.k.Uint()) })
	case kk == reflect.Float32 || kk == reflect.Float64:
		slices.SortFunc(pairs, func(x, y pair) int { return cmp.Compare(x.k.Float(), y.k.Float()) })
	case kk == reflect.Bool:
		slices.SortFunc(pairs, func(x, y pair) int {
			if x.k.Bool() == y.k.Bool() {
				return 0
			}
			if y.k.Bool() {
				return -1
			}
			return 1
		})
	default:
		return nil, newError(KindUnsupported, "map key type %s", v.Type().Key())
	}

	out := make(Map, 0, len(pairs))
	for _, p := range pairs {
		key, err := b.convert(p.k)
		if err != nil {
			return nil, withPath(err, "key["+strconv.Itoa(len(out))+"]")
		}
		val, err := b.convert(p.v)
		if err != nil {
			return nil, withPath(err, pathSegment(key, len(out)))
		}
		out = append(out, Entry{Key: key, Value: val})
	}
	return out, nil
}

func (b *bridge) convertStruct(v reflect.Value) (Value, error) {
	plan := b.plans.get(v.Type())
	out := make(Map, 0, len(plan.fields))
	for _, field := range plan.fields {
		fv := v.Field(field.idx)
		if field.omitEmpty && fv.IsZero() {
			continue
		}
		val, err := b.convert(fv)
		if err != nil {
			return nil, withPath(err, field.name)
		}
		out = append(out, KV(field.name, val))
	}
	return out, nil
}
