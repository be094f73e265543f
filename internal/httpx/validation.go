package httpx

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// UseJSONFieldNames makes gin's validator report fields by their json tag
func UseJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// FieldErrors converts a binding error into a field → message map. ok is false when err
// is not a validation failure (malformed JSON, wrong types). For a JSON array body gin
// reports each invalid element separately; their fields are merged into one map.
func FieldErrors(err error) (map[string]string, bool) {
	var serrs binding.SliceValidationError
	if errors.As(err, &serrs) {
		out := make(map[string]string)
		for _, elemErr := range serrs {
			fields, ok := FieldErrors(elemErr)
			if !ok {
				return nil, false
			}
			for k, v := range fields {
				out[k] = v
			}
		}
		return out, len(out) > 0
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = message(fe)
	}
	return out, true
}

// fieldPath drops the top-level struct name, keeping slice indexes for bulk bodies
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " element(s)"
	default:
		return "failed on the '" + fe.Tag() + "' rule"
	}
}
