package httpadapter

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

//go:embed openapi.yaml
var openAPIDocument []byte

func loadOpenAPI(raw []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

// newRequestValidator rejects requests that do not match the documented
// operation. Unknown routes pass through to the mux. Multipart bodies are
// left to the handler.
func newRequestValidator(raw []byte) (func(http.Handler) http.Handler, error) {
	doc, err := loadOpenAPI(raw)
	if err != nil {
		return nil, err
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, params, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if err := validateRequest(r, route, params); err != nil {
				writeError(w, domain.WrapError(domain.ErrInvalidInput, "validate request", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func validateRequest(r *http.Request, route *routers.Route, params map[string]string) error {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: params,
		Route:      route,
		Options: &openapi3filter.Options{
			ExcludeRequestBody: strings.HasPrefix(contentType, "multipart/"),
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	return openapi3filter.ValidateRequest(r.Context(), input)
}
