package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

const (
	bearerScheme = "bearerAuth"
	apiKeyScheme = "apiKeyAuth"
)

// registerOpenAPI serves the document under the base path, so it sits behind
// the same prefix as the operations it describes.
func registerOpenAPI(r chi.Router, api huma.API, basePath string, devLogin bool) {
	var (
		once sync.Once
		doc  []byte
		err  error
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, req *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			decorateOpenAPI(oas, publicRoutes(basePath, devLogin))
			doc, err = json.Marshal(oas)
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func publicRoutes(basePath string, devLogin bool) map[string]bool {
	public := map[string]bool{path.Join("/", basePath, "health"): true}
	if devLogin {
		public[path.Join("/", basePath, "auth/dev/login")] = true
	}
	return public
}

// decorateOpenAPI adds the error envelope as every operation's default
// response and declares both credential schemes. Public routes get an
// empty security list.
func decorateOpenAPI(oas *huma.OpenAPI, public map[string]bool) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes[bearerScheme] = &huma.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}
	oas.Components.SecuritySchemes[apiKeyScheme] = &huma.SecurityScheme{Type: "apiKey", In: "header", Name: "X-Api-Key"}
	required := []map[string][]string{{bearerScheme: {}}, {apiKeyScheme: {}}}
	oas.Security = required

	errorResponse := &huma.Response{
		Description: "Error envelope",
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
		},
	}
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = errorResponse
			if public[route] {
				op.Security = []map[string][]string{}
			} else {
				op.Security = required
			}
		}
	}
}

func operations(item *huma.PathItem) []*huma.Operation {
	if item == nil {
		return nil
	}
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

func registerDocs(r chi.Router, basePath string) {
	page := docsPage(path.Join("/", basePath, "openapi.json"))
	r.Get("/docs", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	})
}

func docsPage(specURL string) string {
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <title>Fintrack API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
</head>
<body>
  <div id="docs"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
  <script>
    window.onload = () => SwaggerUIBundle({url: %q, dom_id: '#docs', persistAuthorization: true});
  </script>
</body>
</html>`, specURL)
}
