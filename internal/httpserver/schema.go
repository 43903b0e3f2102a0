package httpserver

import (
	_ "embed"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed request_schema.json
var requestSchemaJSON string

var requestSchema = mustCompileRequestSchema()

func mustCompileRequestSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("request_schema.json", strings.NewReader(requestSchemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile("request_schema.json")
}
