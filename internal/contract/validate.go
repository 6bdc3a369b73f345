package contract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

const nonBlank = `\S`

// FieldError is a single acceptance failure at a document path.
type FieldError struct {
	Field   string
	Message string
}

// SchemaError lists every acceptance failure of a decoded model payload.
type SchemaError struct {
	Schema string
	Errors []FieldError
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return fmt.Sprintf("%s does not match schema: %s", e.Schema, strings.Join(parts, "; "))
}

func profileAcceptance() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"name", "jobTitle"},
		"properties": map[string]any{
			"name":     map[string]any{"type": "string", "pattern": nonBlank},
			"jobTitle": map[string]any{"type": "string", "pattern": nonBlank},
		},
	}
}

func recommendationAcceptance() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"recommendations", "outreachEmail"},
		"properties": map[string]any{
			"recommendations": map[string]any{
				"type":     "array",
				"minItems": RecommendationCount,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"title", "reason"},
					"properties": map[string]any{
						"title":  map[string]any{"type": "string", "pattern": nonBlank},
						"reason": map[string]any{"type": "string", "pattern": nonBlank},
					},
				},
			},
			"outreachEmail": map[string]any{"type": "string", "pattern": nonBlank},
		},
	}
}

var (
	profileSchema        = sync.OnceValues(func() (*gojsonschema.Schema, error) { return compile(profileAcceptance()) })
	recommendationSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) { return compile(recommendationAcceptance()) })
)

func compile(schema map[string]any) (*gojsonschema.Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile acceptance schema: %w", err)
	}
	return compiled, nil
}

func validate(name string, load func() (*gojsonschema.Schema, error), doc any) error {
	schema, err := load()
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate %s: %w", name, err)
	}
	if result.Valid() {
		return nil
	}

	schemaErr := &SchemaError{Schema: name, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		schemaErr.Errors = append(schemaErr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return schemaErr
}

// ValidateProfile checks a decoded extraction payload before it is typed.
func ValidateProfile(doc any) error {
	return validate("profile", profileSchema, doc)
}

// ValidateRecommendationSet checks a decoded synthesis payload before it is typed.
func ValidateRecommendationSet(doc any) error {
	return validate("recommendation set", recommendationSchema, doc)
}

func decode(input, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// DecodeProfile validates a loosely typed payload and converts it to a Profile.
// Unknown seniority values are dropped rather than guessed.
func DecodeProfile(doc any) (Profile, error) {
	if err := ValidateProfile(doc); err != nil {
		return Profile{}, err
	}

	var profile Profile
	if err := decode(doc, &profile); err != nil {
		return Profile{}, err
	}

	profile.Seniority = ParseSeniority(string(profile.Seniority))
	profile.Name = strings.TrimSpace(profile.Name)
	profile.JobTitle = strings.TrimSpace(profile.JobTitle)
	profile.Skills = compactStrings(profile.Skills)
	return profile, nil
}

// DecodeRecommendationSet validates a loosely typed payload and keeps the top picks.
func DecodeRecommendationSet(doc any) (RecommendationSet, error) {
	if err := ValidateRecommendationSet(doc); err != nil {
		return RecommendationSet{}, err
	}

	var set RecommendationSet
	if err := decode(doc, &set); err != nil {
		return RecommendationSet{}, err
	}

	if len(set.Recommendations) > RecommendationCount {
		set.Recommendations = set.Recommendations[:RecommendationCount]
	}
	for i := range set.Recommendations {
		set.Recommendations[i].Title = strings.TrimSpace(set.Recommendations[i].Title)
		set.Recommendations[i].Reason = strings.TrimSpace(set.Recommendations[i].Reason)
	}
	set.OutreachEmail = strings.TrimSpace(set.OutreachEmail)
	return set, nil
}

func compactStrings(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
