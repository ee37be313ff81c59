// Package security implements the security validator (C5): input-size caps,
// property-name whitelist, regex/argument scrubbing, and generated-code
// shape guards, applied at every boundary where external bytes enter
// (deserialization and predicate/transform compilation).
//
// Grounded on the teacher's core/types/validation.go (schema size/depth
// caps, compiled-schema validation with a secure $ref loader) and
// runtime/scrubber/scrubber.go (string-shape scrubbing), generalized from
// decorator-parameter validation and secret redaction to program-wide size
// caps and generated-code shape guards.
package security

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
)

const (
	// MaxSerializedSize is invariant 7's serialized-form cap (§3).
	MaxSerializedSize = 10 * 1024 * 1024 // 10 MiB

	// MaxNodes is invariant 7's node-count cap (§3).
	MaxNodes = 10_000

	// MaxGeneratedCodeSize is §4.4's generated-code size cap.
	MaxGeneratedCodeSize = 100 * 1024 // 100 KiB

	// MaxRegexLength is invariant 6's regex length cap (§3).
	MaxRegexLength = 1000
)

// identifierPattern is invariant 5's property-segment grammar.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// forbiddenPropertyNames mirrors value.ForbiddenPropertyNames for property
// path segments specifically (invariant 5).
var forbiddenPropertyNames = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
	"valueOf":     true,
	"toString":    true,
}

// nestedQuantifierPatterns are the substrings invariant 6 forbids in a
// regex literal.
var nestedQuantifierPatterns = []string{"*+", "+*", "**", "++", "*{", "+{"}

// disallowedCodeShapes are the substrings §4.4 forbids in generated code.
var disallowedCodeShapes = []string{
	"eval(",
	"new Function(",
	"require(",
	"import(",
	"process.",
	"global.",
	"globalThis.",
	"__proto__",
	"prototype.",
}

// ValidateSize rejects a serialized program larger than MaxSerializedSize.
func ValidateSize(serialized []byte) error {
	if len(serialized) > MaxSerializedSize {
		return &iocerrors.InvalidProgram{Reasons: []string{
			fmt.Sprintf("serialized program too large: %d bytes (max %d)", len(serialized), MaxSerializedSize),
		}}
	}
	return nil
}

// ValidateNodeCount rejects a program with more than MaxNodes nodes.
func ValidateNodeCount(n int) error {
	if n > MaxNodes {
		return &iocerrors.InvalidProgram{Reasons: []string{
			fmt.Sprintf("program has %d nodes (max %d)", n, MaxNodes),
		}}
	}
	return nil
}

// ValidateVersionPrefix rejects a version string that isn't "1.*".
func ValidateVersionPrefix(version string) error {
	if !strings.HasPrefix(version, "1.") {
		return &iocerrors.InvalidProgram{Reasons: []string{
			fmt.Sprintf("unsupported version %q: must begin with \"1.\"", version),
		}}
	}
	return nil
}

// ValidatePropertyPath rejects a Property path containing a forbidden
// segment or a segment that doesn't match the identifier grammar
// (invariant 5).
func ValidatePropertyPath(path []string) error {
	if len(path) == 0 {
		return &iocerrors.InvalidProgram{Reasons: []string{"property path must be non-empty"}}
	}
	for _, seg := range path {
		if forbiddenPropertyNames[seg] {
			return &iocerrors.InvalidProgram{Reasons: []string{
				fmt.Sprintf("forbidden property segment %q", seg),
			}}
		}
		if !identifierPattern.MatchString(seg) {
			return &iocerrors.InvalidProgram{Reasons: []string{
				fmt.Sprintf("property segment %q does not match identifier grammar", seg),
			}}
		}
	}
	return nil
}

// ValidateRegex compiles pattern and rejects it if it is too long or
// contains a nested-quantifier shape (invariant 6).
func ValidateRegex(pattern string) error {
	if len(pattern) > MaxRegexLength {
		return &iocerrors.InvalidProgram{Reasons: []string{
			fmt.Sprintf("regex literal too long: %d chars (max %d)", len(pattern), MaxRegexLength),
		}}
	}
	for _, bad := range nestedQuantifierPatterns {
		if strings.Contains(pattern, bad) {
			return &iocerrors.InvalidProgram{Reasons: []string{
				fmt.Sprintf("regex literal contains disallowed nested quantifier %q", bad),
			}}
		}
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return &iocerrors.InvalidProgram{Reasons: []string{
			fmt.Sprintf("regex literal does not compile: %v", err),
		}}
	}
	return nil
}

// ValidateGeneratedCode rejects generated code that is too large or
// contains a disallowed shape (§4.4).
func ValidateGeneratedCode(code string) error {
	if len(code) > MaxGeneratedCodeSize {
		return &iocerrors.CompilationError{Detail: fmt.Sprintf("generated code too large: %d bytes (max %d)", len(code), MaxGeneratedCodeSize)}
	}
	for _, shape := range disallowedCodeShapes {
		if strings.Contains(code, shape) {
			return &iocerrors.CompilationError{Detail: fmt.Sprintf("generated code contains disallowed shape %q", shape)}
		}
	}
	return nil
}

// optionsSchema is the JSON Schema for the wire format's `options` object
// (§6): optimizationLevel is one of a fixed enum, the rest are loosely typed.
const optionsSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": true,
	"properties": {
		"optimizationLevel": {"type": "string", "enum": ["none", "basic", "aggressive"]},
		"targetRuntime": {"type": "string"},
		"maxMemory": {"type": "number"},
		"timeout": {"type": "number"}
	}
}`

const maxOptionsSchemaDepth = 16

var compiledOptionsSchema *jsonschema.Schema

func getOptionsSchema() (*jsonschema.Schema, error) {
	if compiledOptionsSchema != nil {
		return compiledOptionsSchema, nil
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := "schema://ioc/options.json"
	if err := compiler.AddResource(url, strings.NewReader(optionsSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	compiledOptionsSchema = schema
	return schema, nil
}

// ValidateOptions validates a raw `options` object against optionsSchema,
// with a depth cap guarding against pathological nesting in
// "additionalProperties" payloads — grounded on the teacher's
// measureSchemaDepth cap in core/types/validation.go.
func ValidateOptions(raw map[string]interface{}) error {
	if depth := measureDepth(raw, 0); depth > maxOptionsSchemaDepth {
		return &iocerrors.InvalidProgram{Reasons: []string{
			fmt.Sprintf("options object too deep: %d levels (max %d)", depth, maxOptionsSchemaDepth),
		}}
	}
	schema, err := getOptionsSchema()
	if err != nil {
		return fmt.Errorf("compiling options schema: %w", err)
	}
	// jsonschema validates against the decoded-JSON shape; round-trip raw
	// through json to normalize numeric types the way a wire deserializer would.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshaling options: %w", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return fmt.Errorf("unmarshaling options: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return &iocerrors.InvalidProgram{Reasons: []string{fmt.Sprintf("options: %v", err)}}
	}
	return nil
}

func measureDepth(v interface{}, current int) int {
	switch val := v.(type) {
	case map[string]interface{}:
		max := current
		for _, elem := range val {
			if d := measureDepth(elem, current+1); d > max {
				max = d
			}
		}
		return max
	case []interface{}:
		max := current
		for _, elem := range val {
			if d := measureDepth(elem, current+1); d > max {
				max = d
			}
		}
		return max
	default:
		return current
	}
}
