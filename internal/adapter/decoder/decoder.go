// Package decoder contains the default [domain.Decoder] implementation.
package decoder

import (
	"github.com/mitchellh/mapstructure"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// Decoder implements domain.Decoder. Input is decoded weakly, so strings
// become numbers, durations or booleans when the target asks for them.
type Decoder struct{}

// NewDecoder returns a new implementation of domain.Decoder.
func NewDecoder() domain.Decoder {
	return &Decoder{}
}

// Decode implements domain.Decoder.
func (d *Decoder) Decode(src any, tgt any) error {
	if tgt == nil {
		return domain.ErrDecode{Source: src, Target: tgt}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          domain.TagName,
		Result:           tgt,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return domain.ErrDecode{Source: src, Target: tgt, Err: err}
	}
	if err := dec.Decode(d.plain(src)); err != nil {
		return domain.ErrDecode{Source: src, Target: tgt, Err: err}
	}
	return nil
}

// plain turns documents into maps so mapstructure can walk them.
func (d *Decoder) plain(v any) any {
	switch t := v.(type) {
	case domain.Document:
		m := make(map[string]any, t.Len())
		for k, val := range t.Iter() {
			m[k] = d.plain(val)
		}
		return m
	case []any:
		res := make([]any, len(t))
		for n, itm := range t {
			res[n] = d.plain(itm)
		}
		return res
	default:
		return v
	}
}
