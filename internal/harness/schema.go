package harness

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"cuelang.org/go/encoding/yaml"
)

//go:embed scenario.cue
var schemaSource string

// SchemaError is a scenario file that does not match the schema.
type SchemaError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e SchemaError) Error() string {
	switch {
	case e.Line > 0 && e.Field != "":
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidateSchema checks scenario YAML against the embedded CUE schema.
// filename is used to pick positions inside the scenario rather than the
// schema. A nil result means the file is structurally valid.
func ValidateSchema(filename string, data []byte) []SchemaError {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("scenario.cue"))
	if err := schema.Err(); err != nil {
		return []SchemaError{{Message: "schema: " + err.Error()}}
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))

	file, err := yaml.Extract(filename, data)
	if err != nil {
		return schemaErrors(filename, err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return schemaErrors(filename, err)
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return schemaErrors(filename, err)
	}
	return nil
}

func schemaErrors(filename string, err error) []SchemaError {
	var out []SchemaError
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		out = append(out, SchemaError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Line:    lineIn(filename, cueerrors.Positions(e)),
		})
	}
	if len(out) == 0 {
		out = append(out, SchemaError{Message: err.Error()})
	}
	return out
}

// lineIn returns the first line among positions that points into filename.
func lineIn(filename string, positions []token.Pos) int {
	for _, pos := range positions {
		if pos.IsValid() && pos.Filename() == filename {
			return pos.Line()
		}
	}
	return 0
}
