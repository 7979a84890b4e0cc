package script

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

var (
	schemaOnce   sync.Once
	schemaJSON   []byte
	schemaErr    error
	schemaLoader gojsonschema.JSONLoader
)

// Schema returns the JSON schema of the script document, reflected from
// Document using yaml field names.
func Schema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			FieldNameTag:   "yaml",
			ExpandedStruct: true,
			DoNotReference: true,
			Anonymous:      true,
		}
		s := r.Reflect(&Document{})
		s.Version = draft07
		s.Title = "Chat funnel script"
		s.Description = "Scripted two-party conversation played back on the landing page."
		schemaJSON, schemaErr = json.MarshalIndent(s, "", "  ")
		if schemaErr == nil {
			schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)
		}
	})
	return schemaJSON, schemaErr
}

// ValidateSchema checks a raw YAML document against Schema. Shape errors are
// returned as a *ConfigError so callers handle them like any other authoring
// defect.
func ValidateSchema(raw []byte) error {
	if _, err := Schema(); err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	ce := &ConfigError{}
	for _, e := range res.Errors() {
		ce.add("%s: %s", e.Field(), e.Description())
	}
	return ce
}
