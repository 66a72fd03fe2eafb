package report

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// DocumentKind names a JSON document accepted on the command line.
type DocumentKind string

const (
	KindWritePlan     DocumentKind = "writeplan"
	KindDesiredState  DocumentKind = "desiredstate"
	KindExistingState DocumentKind = "existingstate"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	schemaMu    sync.Mutex
	schemaCache = map[DocumentKind]*gojsonschema.Schema{}
)

func schemaFor(kind DocumentKind) (*gojsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := schemaCache[kind]; ok {
		return s, nil
	}
	raw, err := schemaFiles.ReadFile("schemas/" + string(kind) + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", kind, err)
	}
	schemaCache[kind] = s
	return s, nil
}

// ValidateDocument checks data against the schema for kind. Schema
// violations come back as a UserError listing each one.
func ValidateDocument(kind DocumentKind, data []byte) error {
	s, err := schemaFor(kind)
	if err != nil {
		return err
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Invalid %s document", kind),
			Details:    err.Error(),
			Suggestion: "The file must be JSON",
			Err:        err,
		}
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return dserrors.UserError{
		Message: fmt.Sprintf("%s document failed schema validation", kind),
		Details: strings.Join(problems, "; "),
	}
}
