package codec

import (
	"fmt"
	"maps"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
	"github.com/vinicius-lino-figueiredo/gedbq/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedbq/pkg/structure"
)

const (
	binaryGeneric = 0x00
	binaryUUID    = 0x04
)

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	decimalType  = reflect.TypeFor[apd.Decimal]()
	documentType = reflect.TypeFor[domain.Document]()
)

func exact(t reflect.Type) func(reflect.Type) bool {
	return func(x reflect.Type) bool { return x == t }
}

func kinds(ks ...reflect.Kind) func(reflect.Type) bool {
	return func(t reflect.Type) bool { return slices.Contains(ks, t.Kind()) }
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func unsupported(v any, t reflect.Type) error {
	return domain.ErrUnsupportedValue{Value: v, Target: t.String()}
}

// defaultTypes returns the built-in registrations. Order matters: the first
// matching entry wins.
func (c *Codec) defaultTypes() []domain.CodecType {
	return []domain.CodecType{
		{Tag: domain.TypeDuration, Match: exact(durationType), Encode: encodeDuration, Decode: decodeDuration},
		{Tag: domain.TypeDateTime, Match: exact(timeType), Encode: encodeTime, Decode: decodeTime},
		{Tag: domain.TypeGUID, Match: exact(uuidType), Encode: encodeUUID, Decode: decodeUUID},
		{Tag: domain.TypeDecimal, Match: exact(decimalType), Encode: encodeDecimal, Decode: decodeDecimal},
		{Tag: domain.TypeBytes, Match: isBytes, Encode: encodeBytes, Decode: decodeBytes},
		{Tag: domain.TypeEnum, Match: isEnum, Encode: encodeEnum, Decode: decodeInteger},
		{
			Tag:    domain.TypeInt32,
			Match:  kinds(reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16),
			Encode: encodeInt32,
			Decode: decodeInteger,
		},
		{
			Tag:    domain.TypeInt64,
			Match:  kinds(reflect.Int, reflect.Int64, reflect.Uint32),
			Encode: encodeInt64,
			Decode: decodeInteger,
		},
		{
			Tag:    domain.TypeUInt64,
			Match:  kinds(reflect.Uint, reflect.Uint64, reflect.Uintptr),
			Encode: encodeUint64,
			Decode: decodeUint64,
		},
		{Tag: domain.TypeDouble, Match: kinds(reflect.Float32, reflect.Float64), Encode: encodeDouble, Decode: decodeDouble},
		{Tag: domain.TypeString, Match: kinds(reflect.String), Encode: encodeString, Decode: decodeString},
		{Tag: domain.TypeBoolean, Match: kinds(reflect.Bool), Encode: encodeBool, Decode: decodeBool},
		{Tag: domain.TypeArray, Match: kinds(reflect.Slice, reflect.Array), Encode: c.encodeArray, Decode: c.decodeArray},
		{Tag: domain.TypeDocument, Match: isDocument, Encode: c.encodeDocument, Decode: c.decodeDocument},
	}
}

func encodeDuration(rv reflect.Value) (any, error) {
	return rv.Int(), nil
}

func decodeDuration(v any, t reflect.Type) (reflect.Value, error) {
	if s, ok := v.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return reflect.Value{}, unsupported(v, t)
		}
		return reflect.ValueOf(d), nil
	}
	n, ok := structure.AsInteger(v)
	if !ok {
		return reflect.Value{}, unsupported(v, t)
	}
	return reflect.ValueOf(time.Duration(n)), nil
}

func encodeTime(rv reflect.Value) (any, error) {
	return primitive.NewDateTimeFromTime(rv.Interface().(time.Time)), nil
}

func decodeTime(v any, t reflect.Type) (reflect.Value, error) {
	switch tm := v.(type) {
	case primitive.DateTime:
		return reflect.ValueOf(tm.Time().UTC()), nil
	case time.Time:
		return reflect.ValueOf(tm.UTC()), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, tm)
		if err != nil {
			return reflect.Value{}, unsupported(v, t)
		}
		return reflect.ValueOf(parsed.UTC()), nil
	case int64:
		return reflect.ValueOf(time.UnixMilli(tm).UTC()), nil
	}
	return reflect.Value{}, unsupported(v, t)
}

func encodeUUID(rv reflect.Value) (any, error) {
	u := rv.Interface().(uuid.UUID)
	return primitive.Binary{Subtype: binaryUUID, Data: slices.Clone(u[:])}, nil
}

func decodeUUID(v any, t reflect.Type) (reflect.Value, error) {
	var u uuid.UUID
	var err error
	switch b := v.(type) {
	case primitive.Binary:
		u, err = uuid.FromBytes(b.Data)
	case []byte:
		u, err = uuid.FromBytes(b)
	case string:
		u, err = uuid.Parse(b)
	case uuid.UUID:
		u = b
	default:
		return reflect.Value{}, unsupported(v, t)
	}
	if err != nil {
		return reflect.Value{}, domain.ErrUnsupportedValue{Value: v, Target: t.String(), Reason: err.Error()}
	}
	return reflect.ValueOf(u), nil
}

func encodeDecimal(rv reflect.Value) (any, error) {
	d := rv.Interface().(apd.Decimal)
	res, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return nil, domain.ErrUnsupportedValue{Value: d.String(), Target: "Decimal128", Reason: err.Error()}
	}
	return res, nil
}

func decodeDecimal(v any, t reflect.Type) (reflect.Value, error) {
	var s string
	switch d := v.(type) {
	case primitive.Decimal128:
		s = d.String()
	case string:
		s = d
	case float64:
		s = strconv.FormatFloat(d, 'g', -1, 64)
	case apd.Decimal:
		return reflect.ValueOf(d), nil
	default:
		n, ok := structure.AsInteger(v)
		if !ok {
			return reflect.Value{}, unsupported(v, t)
		}
		s = strconv.FormatInt(n, 10)
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return reflect.Value{}, domain.ErrUnsupportedValue{Value: v, Target: t.String(), Reason: err.Error()}
	}
	return reflect.ValueOf(*d), nil
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func encodeBytes(rv reflect.Value) (any, error) {
	if rv.IsNil() {
		return nil, nil
	}
	return primitive.Binary{Subtype: binaryGeneric, Data: slices.Clone(rv.Bytes())}, nil
}

func decodeBytes(v any, t reflect.Type) (reflect.Value, error) {
	var b []byte
	switch d := v.(type) {
	case primitive.Binary:
		b = d.Data
	case []byte:
		b = d
	case string:
		b = []byte(d)
	default:
		return reflect.Value{}, unsupported(v, t)
	}
	return reflect.ValueOf(slices.Clone(b)).Convert(t), nil
}

// isEnum matches named integer types.
func isEnum(t reflect.Type) bool {
	return isInteger(t) && t.PkgPath() != ""
}

func encodeEnum(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	}
	u := rv.Uint()
	if u > math.MaxInt64 {
		return nil, domain.ErrUnsupportedValue{Value: u, Target: "Enum", Reason: "value overflows int64"}
	}
	return int64(u), nil
}

func encodeInt32(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Uint8, reflect.Uint16:
		return int32(rv.Uint()), nil
	}
	return int32(rv.Int()), nil
}

func encodeInt64(rv reflect.Value) (any, error) {
	if rv.Kind() == reflect.Uint32 {
		return int64(rv.Uint()), nil
	}
	return rv.Int(), nil
}

func decodeInteger(v any, t reflect.Type) (reflect.Value, error) {
	n, ok := asInteger(v)
	if !ok {
		return reflect.Value{}, unsupported(v, t)
	}
	res := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if res.OverflowInt(n) {
			return reflect.Value{}, domain.ErrUnsupportedValue{Value: v, Target: t.String(), Reason: "value overflows"}
		}
		res.SetInt(n)
	default:
		if n < 0 || res.OverflowUint(uint64(n)) {
			return reflect.Value{}, domain.ErrUnsupportedValue{Value: v, Target: t.String(), Reason: "value overflows"}
		}
		res.SetUint(uint64(n))
	}
	return res, nil
}

// asInteger extends [structure.AsInteger] with Decimal128 values.
func asInteger(v any) (int64, bool) {
	if d, ok := v.(primitive.Decimal128); ok {
		bi, ok := decimalBigInt(d)
		if !ok || !bi.IsInt64() {
			return 0, false
		}
		return bi.Int64(), true
	}
	return structure.AsInteger(v)
}

func encodeUint64(rv reflect.Value) (any, error) {
	bi := new(big.Int).SetUint64(rv.Uint())
	d, ok := primitive.ParseDecimal128FromBigInt(bi, 0)
	if !ok {
		return nil, domain.ErrUnsupportedValue{Value: rv.Uint(), Target: "Decimal128"}
	}
	return d, nil
}

func decodeUint64(v any, t reflect.Type) (reflect.Value, error) {
	var u uint64
	switch d := v.(type) {
	case primitive.Decimal128:
		bi, ok := decimalBigInt(d)
		if !ok || !bi.IsUint64() {
			return reflect.Value{}, unsupported(v, t)
		}
		u = bi.Uint64()
	case uint64:
		u = d
	default:
		n, ok := structure.AsInteger(v)
		if !ok || n < 0 {
			return reflect.Value{}, unsupported(v, t)
		}
		u = uint64(n)
	}
	res := reflect.New(t).Elem()
	if res.OverflowUint(u) {
		return reflect.Value{}, domain.ErrUnsupportedValue{Value: v, Target: t.String(), Reason: "value overflows"}
	}
	res.SetUint(u)
	return res, nil
}

// decimalBigInt returns the exact integer value of d, if it has one.
func decimalBigInt(d primitive.Decimal128) (*big.Int, bool) {
	bi, exp, err := d.BigInt()
	if err != nil {
		return nil, false
	}
	switch {
	case exp > 0:
		bi.Mul(bi, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	case exp < 0:
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil)
		q, r := new(big.Int).QuoRem(bi, div, new(big.Int))
		if r.Sign() != 0 {
			return nil, false
		}
		bi = q
	}
	return bi, true
}

func encodeDouble(rv reflect.Value) (any, error) {
	return rv.Float(), nil
}

func decodeDouble(v any, t reflect.Type) (reflect.Value, error) {
	var f float64
	switch d := v.(type) {
	case float64:
		f = d
	case float32:
		f = float64(d)
	case primitive.Decimal128:
		parsed, err := strconv.ParseFloat(d.String(), 64)
		if err != nil {
			return reflect.Value{}, unsupported(v, t)
		}
		f = parsed
	default:
		n, ok := structure.AsInteger(v)
		if !ok {
			return reflect.Value{}, unsupported(v, t)
		}
		f = float64(n)
	}
	res := reflect.New(t).Elem()
	res.SetFloat(f)
	return res, nil
}

func encodeString(rv reflect.Value) (any, error) {
	return rv.String(), nil
}

func decodeString(v any, t reflect.Type) (reflect.Value, error) {
	s, ok := v.(string)
	if !ok {
		return reflect.Value{}, unsupported(v, t)
	}
	res := reflect.New(t).Elem()
	res.SetString(s)
	return res, nil
}

func encodeBool(rv reflect.Value) (any, error) {
	return rv.Bool(), nil
}

func decodeBool(v any, t reflect.Type) (reflect.Value, error) {
	b, ok := v.(bool)
	if !ok {
		return reflect.Value{}, unsupported(v, t)
	}
	res := reflect.New(t).Elem()
	res.SetBool(b)
	return res, nil
}

func (c *Codec) encodeArray(rv reflect.Value) (any, error) {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return nil, nil
	}
	res := make([]any, rv.Len())
	for n := range rv.Len() {
		v, err := c.encodeValue(rv.Index(n), domain.TypeUnknown)
		if err != nil {
			return nil, err
		}
		res[n] = v
	}
	return res, nil
}

func (c *Codec) decodeArray(v any, t reflect.Type) (reflect.Value, error) {
	src := reflect.ValueOf(v)
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return reflect.Value{}, unsupported(v, t)
	}
	var res reflect.Value
	if t.Kind() == reflect.Array {
		if src.Len() > t.Len() {
			return reflect.Value{}, domain.ErrUnsupportedValue{Value: v, Target: t.String(), Reason: "too many elements"}
		}
		res = reflect.New(t).Elem()
	} else {
		res = reflect.MakeSlice(t, src.Len(), src.Len())
	}
	for n := range src.Len() {
		elem, err := c.decodeValue(src.Index(n).Interface(), t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		res.Index(n).Set(elem)
	}
	return res, nil
}

// isDocument matches plain structs and maps with string keys.
func isDocument(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Map:
		return t.Key().Kind() == reflect.String
	case reflect.Struct:
		return !t.Implements(documentType) && !reflect.PointerTo(t).Implements(documentType)
	}
	return false
}

func (c *Codec) encodeDocument(rv reflect.Value) (any, error) {
	var elems []data.E
	if rv.Kind() == reflect.Map {
		if rv.IsNil() {
			return nil, nil
		}
		values := make(map[string]reflect.Value, rv.Len())
		for _, k := range rv.MapKeys() {
			values[k.String()] = rv.MapIndex(k)
		}
		for _, k := range slices.Sorted(maps.Keys(values)) {
			v, err := c.encodeValue(values[k], domain.TypeUnknown)
			if err != nil {
				return nil, err
			}
			elems = append(elems, data.E{Key: k, Value: v})
		}
	} else {
		for _, f := range structure.Fields(rv.Type()) {
			v, err := c.encodeValue(rv.FieldByIndex(f.Index), c.TypeOf(f.Type))
			if err != nil {
				return nil, err
			}
			elems = append(elems, data.E{Key: f.Name, Value: v})
		}
	}
	return data.NewDocument(elems)
}

func (c *Codec) decodeDocument(v any, t reflect.Type) (reflect.Value, error) {
	doc, ok := v.(domain.Document)
	if !ok {
		m, isMap := v.(map[string]any)
		if !isMap {
			return reflect.Value{}, unsupported(v, t)
		}
		var err error
		if doc, err = data.NewDocument(m); err != nil {
			return reflect.Value{}, err
		}
	}

	if t.Kind() == reflect.Map {
		res := reflect.MakeMapWithSize(t, doc.Len())
		for k, val := range doc.Iter() {
			elem, err := c.decodeValue(val, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			res.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), elem)
		}
		return res, nil
	}

	res := reflect.New(t).Elem()
	for _, f := range structure.Fields(t) {
		if !doc.Has(f.Name) {
			continue
		}
		elem, err := c.decodeValue(doc.Get(f.Name), f.Type)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", f.GoName, err)
		}
		res.FieldByIndex(f.Index).Set(elem)
	}
	return res, nil
}
