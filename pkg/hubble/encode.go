package hubble

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Transformer rewrites a value into one that encoding/json can represent.
type Transformer func(v any) (any, error)

var (
	marshalerType     = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Encoder serializes batches to JSON.
//
// Maps, slices and arrays are walked by the Encoder itself so that every
// element is checked against the transformer table. Any value whose type has
// a registered Transformer is replaced by the transformer's result; all other
// values are handed to encoding/json, which rejects types it cannot
// represent. Values nested inside structs are encoded by encoding/json.
//
// Register must not be called concurrently with Marshal.
type Encoder struct {
	transformers map[reflect.Type]Transformer
}

// NewEncoder returns an Encoder that writes time.Time and Date values as
// ISO-8601 strings.
func NewEncoder() *Encoder {
	e := &Encoder{transformers: make(map[reflect.Type]Transformer)}
	e.Register(reflect.TypeOf(time.Time{}), func(v any) (any, error) {
		return v.(time.Time).Format(time.RFC3339Nano), nil
	})
	e.Register(reflect.TypeOf(Date{}), func(v any) (any, error) {
		return v.(Date).String(), nil
	})
	return e
}

// Register sets the transformer used for values of type t, replacing any
// existing one.
func (e *Encoder) Register(t reflect.Type, fn Transformer) {
	e.transformers[t] = fn
}

// Marshal returns the JSON encoding of v. Self-referencing maps, slices
// and pointers fail with *json.UnsupportedValueError, as with encoding/json.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	st := &encodeState{enc: e, seen: make(map[visit]struct{})}
	if err := st.encode(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return st.buf.Bytes(), nil
}

// visit identifies a map, slice or pointer on the current encoding path.
// Slices sharing a backing array with a different length are distinct.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// encodeState holds the output and the path of containers for one Marshal.
type encodeState struct {
	enc  *Encoder
	buf  bytes.Buffer
	seen map[visit]struct{}
}

// enter records v on the path and returns the func that removes it again.
func (st *encodeState) enter(v reflect.Value) (func(), error) {
	key := visit{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		key.len = v.Len()
	}
	if _, ok := st.seen[key]; ok {
		return nil, &json.UnsupportedValueError{
			Value: v,
			Str:   "encountered a cycle via " + v.Type().String(),
		}
	}
	st.seen[key] = struct{}{}
	return func() { delete(st.seen, key) }, nil
}

func (st *encodeState) encode(v reflect.Value) error {
	if !v.IsValid() {
		st.buf.WriteString("null")
		return nil
	}

	if fn, ok := st.enc.transformers[v.Type()]; ok {
		out, err := fn(v.Interface())
		if err != nil {
			return fmt.Errorf("transform %s: %w", v.Type(), err)
		}
		ov := reflect.ValueOf(out)
		if ov.IsValid() && ov.Type() == v.Type() {
			return st.encodeDefault(ov)
		}
		return st.encode(ov)
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			st.buf.WriteString("null")
			return nil
		}
		return st.encode(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			st.buf.WriteString("null")
			return nil
		}
		// Keep pointer-receiver MarshalJSON methods working.
		if _, ok := st.enc.transformers[v.Elem().Type()]; !ok && v.Type().Implements(marshalerType) {
			return st.encodeDefault(v)
		}
		leave, err := st.enter(v)
		if err != nil {
			return err
		}
		defer leave()
		return st.encode(v.Elem())
	}

	if v.Type().Implements(marshalerType) {
		return st.encodeDefault(v)
	}

	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			st.buf.WriteString("null")
			return nil
		}
		leave, err := st.enter(v)
		if err != nil {
			return err
		}
		defer leave()
		return st.encodeMap(v)
	case reflect.Slice:
		if v.IsNil() {
			st.buf.WriteString("null")
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return st.encodeDefault(v)
		}
		leave, err := st.enter(v)
		if err != nil {
			return err
		}
		defer leave()
		return st.encodeList(v)
	case reflect.Array:
		return st.encodeList(v)
	default:
		return st.encodeDefault(v)
	}
}

func (st *encodeState) encodeMap(v reflect.Value) error {
	type entry struct {
		key   string
		value reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: key, value: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	st.buf.WriteByte('{')
	for i, en := range entries {
		if i > 0 {
			st.buf.WriteByte(',')
		}
		k, err := json.Marshal(en.key)
		if err != nil {
			return err
		}
		st.buf.Write(k)
		st.buf.WriteByte(':')
		if err := st.encode(en.value); err != nil {
			return err
		}
	}
	st.buf.WriteByte('}')
	return nil
}

func (st *encodeState) encodeList(v reflect.Value) error {
	st.buf.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			st.buf.WriteByte(',')
		}
		if err := st.encode(v.Index(i)); err != nil {
			return err
		}
	}
	st.buf.WriteByte(']')
	return nil
}

// mapKey resolves a map key the way encoding/json does.
func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.Type().Implements(textMarshalerType) {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", nil
		}
		b, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "", fmt.Errorf("marshal map key %s: %w", k.Type(), err)
		}
		return string(b), nil
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", &json.UnsupportedTypeError{Type: k.Type()}
}

func (st *encodeState) encodeDefault(v reflect.Value) error {
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return err
	}
	st.buf.Write(b)
	return nil
}
