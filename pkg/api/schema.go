package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const schemaBase = "https://todosync.local/schemas/"

const maxBodyBytes = 1 << 20

type schemas struct {
	list       *jsonschema.Schema
	taskCreate *jsonschema.Schema
	taskUpdate *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compiler := jsonschema.NewCompiler()
	compile := func(name string) (*jsonschema.Schema, error) {
		raw, err := schemaFiles.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		if err := compiler.AddResource(schemaBase+name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		s, err := compiler.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		return s, nil
	}

	var out schemas
	var err error
	if out.list, err = compile("list.json"); err != nil {
		return nil, err
	}
	if out.taskCreate, err = compile("task_create.json"); err != nil {
		return nil, err
	}
	if out.taskUpdate, err = compile("task_update.json"); err != nil {
		return nil, err
	}
	return &out, nil
}

// decodeBody validates the request body against schema and then decodes it into dst.
func decodeBody(request *http.Request, schema *jsonschema.Schema, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(request.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("malformed json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	return nil
}
