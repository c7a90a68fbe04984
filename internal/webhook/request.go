package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request is the body accepted by the webhook endpoint.
type Request struct {
	WebhookURL string `json:"webhookUrl" validate:"required,url,startswith=http"`
	ID         string `json:"id" validate:"required,max=128"`
	Label      string `json:"label" validate:"omitempty,max=256"`
}

// ValidationError lists the offending fields by their JSON names.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request body"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

const maxRequestBytes = 64 * 1024

// DecodeRequest parses and validates a webhook request body.
func DecodeRequest(r *http.Request) (Request, error) {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	var req Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		return Request{}, &ValidationError{Fields: map[string]string{"body": fmt.Sprintf("is not valid JSON (%v)", err)}}
	}
	req.WebhookURL = strings.TrimSpace(req.WebhookURL)
	req.ID = strings.TrimSpace(req.ID)
	req.Label = strings.TrimSpace(req.Label)

	if err := validate.Struct(req); err != nil {
		return Request{}, formatValidationErrors(err)
	}
	return req, nil
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return &ValidationError{Fields: map[string]string{"body": err.Error()}}
	}
	fields := map[string]string{}
	for _, fe := range errs {
		fields[fe.Field()] = validationMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "url", "startswith":
		return "must be an http(s) URL"
	}
	return "is invalid"
}
