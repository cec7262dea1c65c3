package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestSchema(t *testing.T) {
	_, err := NewRequestSchema()
	if err != nil {
		t.Errorf("NewRequestSchema() returned an error: %v", err)
	}
}

func TestValidate_RPCRequest(t *testing.T) {
	s, err := NewRequestSchema()
	require.NoError(t, err)

	assert.NoError(t, s.Validate(SchemaTypeRPCRequest, []byte(`{"jsonrpc":"2.0","method":"x","params":{},"id":1}`)))
	assert.NoError(t, s.Validate(SchemaTypeRPCRequest, []byte(`{"method":"x","params":[1,2],"id":"a"}`)))
	// a missing method is reported by the handler, not the schema
	assert.NoError(t, s.Validate(SchemaTypeRPCRequest, []byte(`{"id":1}`)))

	var verr *ValidationError

	err = s.Validate(SchemaTypeRPCRequest, []byte(`{"jsonrpc":"1.0","method":"x"}`))
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Errors)

	err = s.Validate(SchemaTypeRPCRequest, []byte(`{"method":42}`))
	assert.ErrorAs(t, err, &verr)

	err = s.Validate(SchemaTypeRPCRequest, []byte(`[1,2,3]`))
	assert.ErrorAs(t, err, &verr)
}

func TestValidate_ExecuteRequest(t *testing.T) {
	s, err := NewRequestSchema()
	require.NoError(t, err)

	assert.NoError(t, s.Validate(SchemaTypeExecuteRequest, []byte(`{"filepath":"/x","arguments":["a"],"timeout":5,"environment":{"A":"B"}}`)))

	var verr *ValidationError
	for _, doc := range []string{
		`{}`,
		`{"filepath":""}`,
		`{"filepath":"/x","timeout":0}`,
		`{"filepath":"/x","timeout":301}`,
		`{"filepath":"/x","arguments":[1]}`,
		`{"filepath":"/x","environment":{"A":1}}`,
	} {
		assert.ErrorAs(t, s.Validate(SchemaTypeExecuteRequest, []byte(doc)), &verr, doc)
	}
}

func TestGet_UnknownSchema(t *testing.T) {
	s, err := NewRequestSchema()
	require.NoError(t, err)

	_, err = s.Get(SchemaType(42))
	assert.ErrorIs(t, err, ErrSchemaNotFound)
}
