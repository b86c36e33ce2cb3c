package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidatorConfig holds configuration for OpenAPI validation middleware
type OpenAPIValidatorConfig struct {
	Enabled  bool
	SpecPath string
	// ValidateRequests rejects requests that do not match the document
	ValidateRequests bool
	// ValidateResponses logs handler responses that do not match the document
	ValidateResponses bool
	// SkipPaths are exact paths, or prefixes when they end in "/"
	SkipPaths []string
}

// DefaultOpenAPIValidatorConfig returns the configuration used by the server. Request
// validation is on outside production; response validation is always off.
func DefaultOpenAPIValidatorConfig(specPath string, production bool) *OpenAPIValidatorConfig {
	return &OpenAPIValidatorConfig{
		Enabled:           !production,
		SpecPath:          specPath,
		ValidateRequests:  true,
		ValidateResponses: false,
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/ws/",
		},
	}
}

func passthrough(next http.Handler) http.Handler { return next }

// loadRouter parses and validates the document at specPath
func loadRouter(specPath string) (routers.Router, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", specPath, err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return gorillamux.NewRouter(doc)
}

// OpenAPIValidator checks chat API requests against the OpenAPI document. A document
// that cannot be loaded disables validation instead of failing startup.
func OpenAPIValidator(config *OpenAPIValidatorConfig) func(next http.Handler) http.Handler {
	if config == nil {
		config = DefaultOpenAPIValidatorConfig("api/openapi.yaml", false)
	}

	if !config.Enabled {
		slog.Info("OpenAPI validation disabled")
		return passthrough
	}

	router, err := loadRouter(config.SpecPath)
	if err != nil {
		slog.Error("OpenAPI validation unavailable",
			slog.String("path", config.SpecPath),
			slog.String("error", err.Error()))
		return passthrough
	}

	slog.Info("OpenAPI validation enabled",
		slog.Bool("validate_requests", config.ValidateRequests),
		slog.Bool("validate_responses", config.ValidateResponses),
		slog.String("spec_path", config.SpecPath))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipPath(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}
			logger := observability.FromContext(r.Context())

			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				if !config.ValidateRequests {
					next.ServeHTTP(w, r)
					return
				}
				logger.Warn("request does not match any documented operation",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				writeValidationError(w, http.StatusNotFound, fmt.Sprintf("no documented operation for %s %s", r.Method, r.URL.Path))
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
					// Uploads are size-limited and parsed by the handler; buffering them here would bypass that limit
					ExcludeRequestBody: isMultipart(r),
				},
			}

			if config.ValidateRequests {
				if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
					logger.Warn("request validation failed",
						slog.String("operation", route.Operation.OperationID),
						slog.String("error", err.Error()))
					writeValidationError(w, http.StatusBadRequest, describeValidationError(err))
					return
				}
			}

			if !config.ValidateResponses {
				next.ServeHTTP(w, r)
				return
			}

			var body bytes.Buffer
			ww := wrapWriter(w, r)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			status := statusOf(ww, r)
			err = openapi3filter.ValidateResponse(r.Context(), &openapi3filter.ResponseValidationInput{
				RequestValidationInput: input,
				Status:                 status,
				Header:                 ww.Header(),
				Body:                   io.NopCloser(&body),
				Options:                input.Options,
			})
			if err != nil {
				// The response is already written; mismatches are only reported
				logger.Warn("response validation failed",
					slog.String("operation", route.Operation.OperationID),
					slog.Int("status", status),
					slog.String("error", err.Error()))
			}
		})
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// describeValidationError names the offending parameter when there is one
func describeValidationError(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Parameter != nil {
		reason := reqErr.Reason
		if reason == "" && reqErr.Err != nil {
			reason = reqErr.Err.Error()
		}
		return fmt.Sprintf("invalid %s parameter %q: %s", reqErr.Parameter.In, reqErr.Parameter.Name, reason)
	}
	return fmt.Sprintf("invalid request: %s", err.Error())
}

// shouldSkipPath matches exact paths, and prefixes for entries ending in "/"
func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if path == skipPath {
			return true
		}
		if strings.HasSuffix(skipPath, "/") && strings.HasPrefix(path, skipPath) {
			return true
		}
		if strings.HasPrefix(path, skipPath+"/") {
			return true
		}
	}
	return false
}

// writeValidationError uses the same {"error": ...} body as the handlers
func writeValidationError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
