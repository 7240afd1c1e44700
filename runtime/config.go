package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Package-level validator instance
var validate *validator.Validate

// init initializes the validator and registers custom validation functions
func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their wire name (json, else yaml) rather than the Go name
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "yaml"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	registerCustomValidators()
}

// ValidateRequest normalizes req in place and checks it against the request
// contract: trimmed credentials, step defaults (model, temperature), then
// struct validation. Every flow that
// reaches the engine goes through here, whatever its source.
func ValidateRequest(req *RunRequest) error {
	if req == nil {
		return &ValidationError{Issues: []Issue{{
			Field: "", Rule: "required", Message: "request body is required",
		}}}
	}

	req.APIKey = trimmedOrNil(req.APIKey)
	req.BaseURL = trimmedOrNil(req.BaseURL)

	for i := range req.Steps {
		if err := ApplyDefaults(&req.Steps[i]); err != nil {
			return err
		}
	}

	return validateStruct(req)
}

// DuplicateOutputKeys returns output keys written by more than one step, in
// order of first duplication. Later steps overwrite earlier values.
func DuplicateOutputKeys(steps []Step) []string {
	var dupes []string
	seen := map[string]int{}
	for _, s := range steps {
		seen[s.OutputKey]++
		if seen[s.OutputKey] == 2 {
			dupes = append(dupes, s.OutputKey)
		}
	}
	return dupes
}

// trimmedOrNil trims an optional string. A present value keeps its pointer
// even when it trims to empty, so that validation can reject it.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// InitializeConfig prepares a configuration struct in one call:
// defaults → value merging → validation.
func InitializeConfig(config any, rawValues map[string]any) error {
	// Step 1: Apply defaults from struct tags
	if err := ApplyDefaults(config); err != nil {
		slog.Error("Config: failed to apply defaults",
			"config_type", reflect.TypeOf(config).String(),
			"error", err)
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	// Step 2: Merge raw values (config file + environment)
	if len(rawValues) > 0 {
		if err := mapToStruct(rawValues, config); err != nil {
			slog.Error("Config: failed to apply config values",
				"config_type", reflect.TypeOf(config).String(),
				"error", err)
			return fmt.Errorf("failed to apply config values: %w", err)
		}
	}

	// Step 3: Validate final config (AFTER rawValues are merged)
	if err := validateStruct(config); err != nil {
		slog.Error("Config validation failed",
			"config_type", reflect.TypeOf(config).String(),
			"error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// registerCustomValidators registers framework-provided custom validation functions
func registerCustomValidators() {
	// listen_addr validates "host:port" where host may be empty
	validate.RegisterValidation("listen_addr", func(fl validator.FieldLevel) bool {
		_, port, err := net.SplitHostPort(fl.Field().String())
		if err != nil || port == "" {
			return false
		}
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})

	// url_format validates URL structure
	validate.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	})
}

func ApplyDefaults(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}

	return nil
}

// validateStruct runs the struct validator and converts its field errors
// into a *ValidationError.
func validateStruct(v any) error {
	if v == nil {
		return fmt.Errorf("config cannot be nil")
	}

	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	issues := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fieldPath(fe.Namespace())
		issues = append(issues, Issue{
			Field:   field,
			Rule:    fe.Tag(),
			Message: issueMessage(field, fe),
		})
	}
	return &ValidationError{Issues: issues}
}

// fieldPath strips the root struct name from a validator namespace,
// "RunRequest.steps[0].title" becoming "steps[0].title".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func issueMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must not be empty", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "url_format":
		return fmt.Sprintf("%s must be an absolute URL", field)
	case "listen_addr":
		return fmt.Sprintf("%s must be a host:port address", field)
	default:
		return fmt.Sprintf("field '%s' failed validation (rule: %s)", field, fe.Tag())
	}
}
