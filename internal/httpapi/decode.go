package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type fieldProblem struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// normalizer is implemented by requests that clean their fields before
// validation, so the HTTP layer accepts what the engine would.
type normalizer interface {
	normalize()
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the response and returns false.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, codeMissingFields, "request body is empty", nil)
			return false
		}
		writeError(w, r, http.StatusBadRequest, codeMalformedBody, "request body is not valid JSON", nil)
		return false
	}

	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, r, http.StatusBadRequest, codeInvalidFields, "request failed validation", nil)
			return false
		}
		code, message := codeInvalidFields, "request failed validation"
		problems := make([]fieldProblem, 0, len(verrs))
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				code, message = codeMissingFields, "required fields are missing"
			}
			problems = append(problems, fieldProblem{Field: fe.Field(), Rule: fe.Tag()})
		}
		writeError(w, r, http.StatusBadRequest, code, message, problems)
		return false
	}
	return true
}
