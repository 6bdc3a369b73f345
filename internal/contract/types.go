// Package contract holds the structured shapes every model call must produce
// and the failure taxonomy shared by the pipeline components.
package contract

import "strings"

// Seniority is the enumerated career tier inferred for a profile.
type Seniority string

const (
	SeniorityJunior    Seniority = "junior"
	SeniorityMid       Seniority = "mid"
	SenioritySenior    Seniority = "senior"
	SeniorityExecutive Seniority = "executive"
)

// Seniorities lists the accepted tiers in ascending order.
var Seniorities = []Seniority{SeniorityJunior, SeniorityMid, SenioritySenior, SeniorityExecutive}

// ParseSeniority normalizes s and returns an empty tier for unknown values.
func ParseSeniority(s string) Seniority {
	candidate := Seniority(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Seniorities {
		if candidate == known {
			return known
		}
	}
	return ""
}

// Profile is the structured professional background extracted from a document or form.
// Absent fields stay empty and are omitted from JSON.
type Profile struct {
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	JobTitle        string    `json:"jobTitle"`
	Industry        string    `json:"industry,omitempty"`
	YearsExperience string    `json:"yearsExperience,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	Education       string    `json:"education,omitempty"`
	CareerGoals     string    `json:"careerGoals,omitempty"`
	InterestAreas   string    `json:"interestAreas,omitempty"`
	Seniority       Seniority `json:"seniority,omitempty"`
}

// CatalogueEntry is one recommendable programme.
type CatalogueEntry struct {
	Title       string `json:"title"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Fee         string `json:"fee,omitempty"`
	Format      string `json:"format,omitempty"`
	Location    string `json:"location,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
}

// Valid reports whether the entry carries both a title and a locator.
func (e CatalogueEntry) Valid() bool {
	return strings.TrimSpace(e.Title) != "" && strings.TrimSpace(e.URL) != ""
}

// Catalogue is an ordered snapshot of entries for a single request.
type Catalogue []CatalogueEntry

// Recommendation is one selected catalogue item with personalised reasoning.
type Recommendation struct {
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	Category  string `json:"category,omitempty"`
	Fee       string `json:"fee,omitempty"`
	Format    string `json:"format,omitempty"`
	Location  string `json:"location,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	Reason    string `json:"reason"`
}

// RecommendationCount is the number of picks returned per request.
const RecommendationCount = 3

// RecommendationSet is the complete synthesis output.
type RecommendationSet struct {
	Recommendations []Recommendation `json:"recommendations"`
	OutreachEmail   string           `json:"outreachEmail"`
}

// InputMethod tells the submission collaborator how the profile was provided.
type InputMethod string

const (
	InputDocument InputMethod = "document"
	InputText     InputMethod = "text"
	InputForm     InputMethod = "form"
)

// Contact is the caller's contact information attached to a submission.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Submission is the completed tuple handed to the downstream submission logger.
type Submission struct {
	ID              string            `json:"id"`
	Profile         map[string]string `json:"profile"`
	Recommendations []Recommendation  `json:"recommendations"`
	OutreachEmail   string            `json:"outreachEmail"`
	Contact         Contact           `json:"contact"`
	InputMethod     InputMethod       `json:"inputMethod"`
}
