package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/validation"
)

const maxBodyBytes = 1 << 20

// fieldDecoder consumes one JSON value. It returns a *fieldError when the
// value has the wrong shape; the value is consumed either way.
type fieldDecoder func(d *jx.Decoder) error

type fieldError struct {
	reason string
}

func (e *fieldError) Error() string { return e.reason }

// object describes the accepted keys of a JSON object.
type object struct {
	fields   map[string]fieldDecoder
	required []string
}

// decode reads one object from d. Unknown keys, missing required keys and
// mistyped values are collected in v under prefix+key.
func (o object) decode(d *jx.Decoder, prefix string, v validation.Violations) error {
	if d.Next() != jx.Object {
		if err := d.Skip(); err != nil {
			return err
		}
		v.Add(strings.TrimSuffix(prefix, "."), "must_be_object")
		return nil
	}

	seen := make(map[string]bool, len(o.fields))
	err := d.Obj(func(d *jx.Decoder, key string) error {
		fn, ok := o.fields[key]
		if !ok {
			v.Add(prefix+key, "unknown_field")
			return d.Skip()
		}
		seen[key] = true

		if err := fn(d); err != nil {
			var fe *fieldError
			if errors.As(err, &fe) {
				v.Add(prefix+key, fe.reason)
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range o.required {
		if !seen[key] {
			v.Add(prefix+key, "required")
		}
	}
	return nil
}

// readObject decodes the request body as o. Malformed JSON and schema
// violations are returned as *validation.Error.
func readObject(w http.ResponseWriter, r *http.Request, o object) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &validation.Error{Violations: validation.Violations{"body": "too_large"}}
		}
		return errors.Wrap(err, "read body")
	}

	v := validation.Violations{}
	d := jx.DecodeBytes(body)
	if err := o.decode(d, "", v); err != nil {
		return &validation.Error{Violations: validation.Violations{"body": "invalid_json"}}
	}
	if d.Next() != jx.Invalid {
		return &validation.Error{Violations: validation.Violations{"body": "trailing_data"}}
	}
	if v.Empty() {
		return nil
	}
	// Root-level type errors are recorded under the empty key.
	if reason, ok := v[""]; ok {
		delete(v, "")
		v.Add("body", reason)
	}
	return v.Err()
}

func mismatch(d *jx.Decoder, reason string) error {
	if err := d.Skip(); err != nil {
		return err
	}
	return &fieldError{reason: reason}
}

// skipNull consumes a JSON null and reports whether it did.
func skipNull(d *jx.Decoder) (bool, error) {
	if d.Next() != jx.Null {
		return false, nil
	}
	return true, d.Null()
}

func stringField(dst *string) fieldDecoder {
	return func(d *jx.Decoder) error {
		if null, err := skipNull(d); null || err != nil {
			return err
		}
		if d.Next() != jx.String {
			return mismatch(d, "must_be_string")
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		*dst = s
		return nil
	}
}

func intField(dst *int64) fieldDecoder {
	return func(d *jx.Decoder) error {
		if null, err := skipNull(d); null || err != nil {
			return err
		}
		if d.Next() != jx.Number {
			return mismatch(d, "must_be_integer")
		}
		n, err := d.Num()
		if err != nil {
			return err
		}
		v, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return &fieldError{reason: "must_be_integer"}
		}
		*dst = v
		return nil
	}
}

// decimalField accepts a JSON number or a numeric string.
func decimalField(dst *decimal.Decimal) fieldDecoder {
	return func(d *jx.Decoder) error {
		if null, err := skipNull(d); null || err != nil {
			return err
		}
		var raw string
		switch d.Next() {
		case jx.Number:
			n, err := d.Num()
			if err != nil {
				return err
			}
			raw = string(n)
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			raw = s
		default:
			return mismatch(d, "must_be_number")
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return &fieldError{reason: "must_be_number"}
		}
		*dst = v
		return nil
	}
}

// arrayField decodes every element with elem, passing its index.
func arrayField(elem func(d *jx.Decoder, i int) error) fieldDecoder {
	return func(d *jx.Decoder) error {
		if d.Next() != jx.Array {
			return mismatch(d, "must_be_array")
		}
		i := 0
		return d.Arr(func(d *jx.Decoder) error {
			err := elem(d, i)
			i++
			return err
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, &validation.Error{Violations: validation.Violations{"id": "must_be_integer"}}
	}
	return id, nil
}
