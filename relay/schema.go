package relay

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kaptinlin/jsonschema"

	"summary-gateway/relay/domain"
)

// MaxBodyBytes limita o corpo das rotas POST.
const MaxBodyBytes = 1 << 20

const msgMalformedBody = "Request body is malformed."

//go:embed schemas/*.json
var schemaFS embed.FS

// bodySchemas guarda os schemas compilados uma vez na subida.
type bodySchemas struct {
	summary *jsonschema.Schema
	share   *jsonschema.Schema
}

func loadSchemas() (*bodySchemas, error) {
	summary, err := compileSchema("schemas/summary_request.json")
	if err != nil {
		return nil, err
	}
	share, err := compileSchema("schemas/share_request.json")
	if err != nil {
		return nil, err
	}
	return &bodySchemas{summary: summary, share: share}, nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// decodeBody lê o corpo (até MaxBodyBytes), confere a estrutura contra o
// schema e só então decodifica em dst. Qualquer falha vira InvalidInput.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &domain.Error{Kind: domain.KindInvalidInput, Field: "body", Message: "Request body is too large.", Err: err}
		}
		return &domain.Error{Kind: domain.KindInvalidInput, Field: "body", Message: msgMalformedBody, Err: err}
	}

	if !json.Valid(data) {
		return &domain.Error{Kind: domain.KindInvalidInput, Field: "body", Message: msgMalformedBody,
			Err: errors.New("body is not valid JSON")}
	}
	if res := schema.ValidateJSON(data); !res.IsValid() {
		return &domain.Error{Kind: domain.KindInvalidInput, Field: "body", Message: msgMalformedBody,
			Err: fmt.Errorf("schema validation failed: %v", res.Errors)}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &domain.Error{Kind: domain.KindInvalidInput, Field: "body", Message: msgMalformedBody, Err: err}
	}
	return nil
}
