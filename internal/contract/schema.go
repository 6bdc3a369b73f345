package contract

const (
	// ProfileFunctionName is the forced function for extraction.
	ProfileFunctionName = "extract_profile"
	// RecommendationFunctionName is the forced function for synthesis.
	RecommendationFunctionName = "submit_recommendations"
)

func stringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// ProfileParameters returns the JSON Schema of the extraction function arguments.
func ProfileParameters() map[string]any {
	seniorities := make([]any, 0, len(Seniorities))
	for _, s := range Seniorities {
		seniorities = append(seniorities, string(s))
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":            stringProperty("Full name exactly as written in the document"),
			"email":           stringProperty("Email address if present"),
			"jobTitle":        stringProperty("Current or most recent job title"),
			"industry":        stringProperty("Primary industry"),
			"yearsExperience": stringProperty("Total years of professional experience as a number, e.g. \"8\""),
			"skills": map[string]any{
				"type":        "array",
				"description": "Top 5-8 professional skills attested in the document",
				"items":       map[string]any{"type": "string"},
			},
			"education":     stringProperty("Highest education level and field"),
			"careerGoals":   stringProperty("Career aspirations, stated or inferred from trajectory"),
			"interestAreas": stringProperty("Areas of professional interest, inferred from trajectory"),
			"seniority": map[string]any{
				"type":        "string",
				"description": "Seniority tier inferred from trajectory",
				"enum":        seniorities,
			},
		},
		"required":             []any{"name", "jobTitle"},
		"additionalProperties": false,
	}
}

// RecommendationParameters returns the JSON Schema of the synthesis function arguments.
func RecommendationParameters() map[string]any {
	recommendation := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":     stringProperty("Programme title exactly as listed in the catalogue"),
			"url":       stringProperty("Programme URL from the catalogue"),
			"category":  stringProperty("Programme category from the catalogue"),
			"fee":       stringProperty("Fee from the catalogue"),
			"format":    stringProperty("Format from the catalogue"),
			"location":  stringProperty("Location from the catalogue"),
			"startDate": stringProperty("Start date from the catalogue"),
			"reason":    stringProperty("Two to three sentences on why this programme fits the candidate"),
		},
		"required":             []any{"title", "category", "reason"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recommendations": map[string]any{
				"type":     "array",
				"minItems": RecommendationCount,
				"maxItems": RecommendationCount,
				"items":    recommendation,
			},
			"outreachEmail": stringProperty("Personalised outreach email to the candidate"),
		},
		"required":             []any{"recommendations", "outreachEmail"},
		"additionalProperties": false,
	}
}
