// Package prompt holds the fixed instruction, response schema and output
// parsing for leaf diagnosis requests.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
)

// Instruction is sent with every image.
const Instruction = `Analyze this image of a plant leaf. The system is currently optimized for tomato plant (Solanum lycopersicum) diagnostics, but should identify any species present.

1. Determine the botanical species.
2. Perform a clinical health assessment.
3. Look for common tomato pathologies like Early Blight, Late Blight, Tomato Mosaic Virus, Leaf Mold, or Spider Mites if applicable.
4. If a disease or nutrient deficiency is found, name it clearly and provide specific morphological symptoms and clinical treatment recommendations.

Return the result in strict JSON format.`

// SchemaName identifies ResultSchema in the response_format block.
const SchemaName = "leaf_analysis"

// ResultSchema constrains model output to the AnalysisResult shape.
func ResultSchema() jsonschema.Definition {
	stringList := jsonschema.Definition{
		Type:  jsonschema.Array,
		Items: &jsonschema.Definition{Type: jsonschema.String},
	}
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"plantName": {Type: jsonschema.String},
			"healthStatus": {
				Type: jsonschema.String,
				Enum: []string{string(diagnosis.Healthy), string(diagnosis.Diseased), string(diagnosis.Unknown)},
			},
			"diseaseName":     {Type: jsonschema.String},
			"confidence":      {Type: jsonschema.Number},
			"description":     {Type: jsonschema.String},
			"symptoms":        stringList,
			"recommendations": stringList,
		},
		Required: []string{"plantName", "healthStatus", "confidence", "description", "symptoms", "recommendations"},
	}
}

var (
	fencedObject  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	bareObject    = regexp.MustCompile(`(?s)\{.*\}`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls the JSON object out of model text, tolerating markdown
// fences and trailing commas. Valid JSON is returned untouched; trailing
// commas are only stripped when the object does not parse as is.
// Returns "" when no object is present.
func ExtractJSON(content string) string {
	raw := ""
	if m := fencedObject.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		raw = bareObject.FindString(content)
	}
	if raw == "" {
		return ""
	}
	if json.Valid([]byte(raw)) {
		return raw
	}
	return trailingComma.ReplaceAllString(raw, "$1")
}

// ParseResult decodes, normalizes and validates model output.
func ParseResult(content string) (*diagnosis.AnalysisResult, error) {
	raw := ExtractJSON(strings.TrimSpace(content))
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", diagnosis.ErrInvalidResult)
	}

	var res diagnosis.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("%w: %v", diagnosis.ErrInvalidResult, err)
	}
	res.Normalize()
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return &res, nil
}
