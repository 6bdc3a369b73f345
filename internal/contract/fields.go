package contract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Field is one rendered "key: value" line of a profile.
type Field struct {
	Key   string
	Value string
}

// fieldOrder fixes the rendering order of known profile keys.
var fieldOrder = []string{
	"name",
	"email",
	"jobTitle",
	"industry",
	"yearsExperience",
	"seniority",
	"skills",
	"education",
	"careerGoals",
	"interestAreas",
}

// Fields returns the non-empty profile attributes in a stable order.
func (p Profile) Fields() []Field {
	values := map[string]string{
		"name":            p.Name,
		"email":           p.Email,
		"jobTitle":        p.JobTitle,
		"industry":        p.Industry,
		"yearsExperience": p.YearsExperience,
		"seniority":       string(p.Seniority),
		"skills":          strings.Join(compactStrings(append([]string(nil), p.Skills...)), ", "),
		"education":       p.Education,
		"careerGoals":     p.CareerGoals,
		"interestAreas":   p.InterestAreas,
	}
	return orderFields(values)
}

// FieldsFromMap renders caller-supplied form fields. Known keys come first in the
// profile order, remaining keys follow sorted.
func FieldsFromMap(raw map[string]any) []Field {
	values := make(map[string]string, len(raw))
	for key, value := range raw {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = stringify(value)
	}
	return orderFields(values)
}

// FieldMap converts fields to a map for the submission collaborator.
func FieldMap(fields []Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

// RenderFields joins fields as "key: value" lines, never emitting an empty value.
func RenderFields(fields []Field) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", f.Key, value))
	}
	return strings.Join(lines, "\n")
}

func orderFields(values map[string]string) []Field {
	fields := make([]Field, 0, len(values))
	seen := make(map[string]bool, len(fieldOrder))

	for _, key := range fieldOrder {
		seen[key] = true
		if v := strings.TrimSpace(values[key]); v != "" {
			fields = append(fields, Field{Key: key, Value: v})
		}
	}

	extra := make([]string, 0)
	for key := range values {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)

	for _, key := range extra {
		if v := strings.TrimSpace(values[key]); v != "" {
			fields = append(fields, Field{Key: key, Value: v})
		}
	}
	return fields
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		return strings.Join(compactStrings(append([]string(nil), v...)), ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
