package recipe

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/recipe.schema.json
var schemaFS embed.FS

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// ValidationIssue is a single schema validation failure.
type ValidationIssue struct {
	// Path is the instance location that failed (e.g. "/steps/0/0").
	Path string

	// Message is the human-readable failure description.
	Message string
}

// ManifestError reports a structurally invalid manifest. The engine treats
// it as a structural failure that aborts the whole check/install attempt.
type ManifestError struct {
	// Issues lists schema validation failures, if any.
	Issues []ValidationIssue

	// Err is the underlying parse or validation error.
	Err error
}

// Error implements the error interface.
func (e *ManifestError) Error() string {
	if len(e.Issues) > 0 {
		return fmt.Sprintf("invalid manifest: %s at %s", e.Issues[0].Message, e.Issues[0].Path)
	}
	return fmt.Sprintf("invalid manifest: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ManifestError) Unwrap() error {
	return e.Err
}

// getSchema compiles the embedded JSON schema once and returns it.
func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := schemaFS.ReadFile("schema/recipe.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("reading embedded schema: %w", err)
			return
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("recipe.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("recipe.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// ParseManifest parses and validates raw recipe.json bytes. Malformed JSON,
// schema violations, and struct-level validation failures all return a
// *ManifestError.
func ParseManifest(data []byte) (*Manifest, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("loading recipe schema: %w", err)
	}

	// Schema validation runs against the generically decoded document so
	// failures carry instance locations.
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, &ManifestError{Err: fmt.Errorf("parsing manifest JSON: %w", err)}
	}

	if err := schema.Validate(inst); err != nil {
		verr, _ := err.(*jsonschema.ValidationError)
		return nil, &ManifestError{Issues: collectIssues(verr), Err: err}
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, &ManifestError{Err: fmt.Errorf("decoding manifest: %w", err)}
	}

	if err := validate.Struct(m); err != nil {
		return nil, &ManifestError{Err: fmt.Errorf("validating manifest: %w", err)}
	}

	return m, nil
}

var validate = validator.New()

// collectIssues flattens a schema validation error tree into leaf issues.
func collectIssues(err *jsonschema.ValidationError) []ValidationIssue {
	if err == nil {
		return nil
	}

	var issues []ValidationIssue
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			issues = append(issues, ValidationIssue{
				Path:    "/" + joinPointer(e.InstanceLocation),
				Message: e.ErrorKind.LocalizedString(printer),
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(err)
	return issues
}

// joinPointer renders a JSON pointer from location tokens.
func joinPointer(tokens []string) string {
	out := ""
	for i, t := range tokens {
		if i > 0 {
			out += "/"
		}
		out += t
	}
	return out
}
