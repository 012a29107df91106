package httpapi

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var errInvalidJSON = errors.New("invalid json")

// The envelopes only pin down types. Record fields inside data/args are
// never validated.
const (
	strictEnvelopeSchema = `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"action": {"type": ["string", "null"]},
			"data": {"type": ["object", "null"]}
		}
	}`
	voiceEnvelopeSchema = `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"action": {"type": ["string", "null"]}
		}
	}`
)

var (
	strictEnvelope = mustCompileSchema("strict-envelope.json", strictEnvelopeSchema)
	voiceEnvelope  = mustCompileSchema("voice-envelope.json", voiceEnvelopeSchema)
)

func mustCompileSchema(name, source string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(err)
	}
	return c.MustCompile(name)
}

func decodeStrictEnvelope(body []byte) (map[string]any, error) {
	return decodeEnvelope(strictEnvelope, body)
}

func decodeVoiceEnvelope(body []byte) (map[string]any, error) {
	return decodeEnvelope(voiceEnvelope, body)
}

// decodeEnvelope parses body keeping numbers as json.Number and checks it
// against schema. An empty body decodes as an empty object.
func decodeEnvelope(schema *jsonschema.Schema, body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode body"), errInvalidJSON)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, errors.Wrap(err, "envelope")
	}
	doc, ok := inst.(map[string]any)
	if !ok {
		return nil, errors.New("envelope: body is not an object")
	}
	return doc, nil
}
