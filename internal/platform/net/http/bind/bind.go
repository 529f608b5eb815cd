// Package bind decodes and validates JSON request bodies
package bind

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "seochecker/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// MaxBody caps request bodies; a full batch with notes is a few MB
const MaxBody = 16 << 20

var (
	once  sync.Once
	valid *validator.Validate
	trans ut.Translator
)

// Validator returns the shared validator: json tag names in messages, english translations
func Validator() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		loc := en.New()
		trans, _ = ut.New(loc, loc).GetTranslator("en")

		valid = validator.New(validator.WithRequiredStructEnabled())
		valid.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = en_translations.RegisterDefaultTranslations(valid, trans)

		short(valid, "min", "{0} must be at least {1}")
		short(valid, "max", "{0} must be at most {1}")
		short(valid, "gte", "{0} must be {1} or more")
	})
	return valid, trans
}

// short overrides a tag's message; {0} is the field path, {1} the tag param
func short(v *validator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fieldPath(fe), fe.Param())
			return msg
		},
	)
}

// fieldPath drops the root struct name: SubmitInput.domains[3].price -> domains[3].price
func fieldPath(fe validator.FieldError) string {
	_, rest, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return rest
}

// ParseJSON decodes one JSON value of type T from the body and validates it
// malformed input is a JSON error, a failed rule is a Validation error naming the field
func ParseJSON[T any](r *http.Request) (T, error) {
	var zero, dst T
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, perr.JSONErrf("empty body")
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}

	v, tr := Validator()
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return zero, perr.JSONErrf("validation error: %v", err)
		}
		fe := verrs[0]
		return zero, perr.WithField(perr.Newf(perr.ErrorCodeValidation, "%s", fe.Translate(tr)), fieldPath(fe))
	}
	return dst, nil
}
