package featureio

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed feature-schema.json
var featureSchema []byte

// schemaLoader is shared by every validation; gojsonschema loaders are immutable.
var schemaLoader = gojsonschema.NewBytesLoader(featureSchema)

// document is the JSON and YAML top-level shape.
type document struct {
	Features []Feature `json:"features" yaml:"features"`
}

// ReadFile reads a feature file, detecting its format from the extension.
func ReadFile(path string) ([]Feature, Format, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open features: %w", err)
	}
	defer f.Close()

	features, err := Read(f, format)
	if err != nil {
		return nil, format, fmt.Errorf("decode features: %w", err)
	}

	return features, format, nil
}

// Read decodes features in the given format.
func Read(r io.Reader, format Format) ([]Feature, error) {
	var (
		features []Feature
		err      error
	)

	switch format {
	case FormatJSON:
		features, err = readJSON(r)
	case FormatYAML:
		features, err = readYAML(r)
	case FormatBED:
		features, err = readBED(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return nil, err
	}

	if err := normalize(features); err != nil {
		return nil, err
	}

	return features, nil
}

func readJSON(r io.Reader) ([]Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json features: %w", err)
	}

	if err := validate(gojsonschema.NewBytesLoader(data)); err != nil {
		return nil, err
	}

	var doc document

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json features: %w", err)
	}

	return doc.Features, nil
}

func readYAML(r io.Reader) ([]Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read yaml features: %w", err)
	}

	var raw any

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml features: %w", err)
	}

	if err := validate(gojsonschema.NewGoLoader(raw)); err != nil {
		return nil, err
	}

	var doc document

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml features: %w", err)
	}

	return doc.Features, nil
}

// validate checks a document against the embedded feature schema.
func validate(doc gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(schemaLoader, doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.Field()+": "+verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}
