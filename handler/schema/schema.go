package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type SchemaType int

const (
	SchemaTypeRPCRequest SchemaType = iota
	SchemaTypeExecuteRequest
)

var ErrSchemaNotFound = errors.New("schema not found")

// ValidationError lists the schema violations of a document.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

type Schema struct {
	schemas map[SchemaType]*gojsonschema.Schema
}

func (s *Schema) Get(schemaType SchemaType) (*gojsonschema.Schema, error) {
	schema, ok := s.schemas[schemaType]
	if !ok {
		return nil, ErrSchemaNotFound
	}

	return schema, nil
}

// Validate checks the json document data against the schema. A
// *ValidationError is returned if the document does not match.
func (s *Schema) Validate(schemaType SchemaType, data []byte) error {
	schema, err := s.Get(schemaType)
	if err != nil {
		return err
	}

	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}

	if res.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, desc := range res.Errors() {
		verr.Errors = append(verr.Errors, desc.String())
	}

	return verr
}

//go:embed rpc-request.json
var rpcRequest json.RawMessage
var rpcRequestLoader = gojsonschema.NewBytesLoader(rpcRequest)

//go:embed execute-request.json
var executeRequest json.RawMessage
var executeRequestLoader = gojsonschema.NewBytesLoader(executeRequest)

func NewRequestSchema() (*Schema, error) {
	rpcSchema, err := gojsonschema.NewSchema(rpcRequestLoader)
	if err != nil {
		return nil, err
	}

	executeSchema, err := gojsonschema.NewSchema(executeRequestLoader)
	if err != nil {
		return nil, err
	}

	return &Schema{
		schemas: map[SchemaType]*gojsonschema.Schema{
			SchemaTypeRPCRequest:     rpcSchema,
			SchemaTypeExecuteRequest: executeSchema,
		},
	}, nil
}
