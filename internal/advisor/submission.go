package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spigell/programme-advisor/internal/contract"
)

// SubmissionSink is the downstream collaborator that stores completed submissions.
type SubmissionSink interface {
	Submit(ctx context.Context, s contract.Submission) error
}

// NewSubmission assembles the tuple handed to a SubmissionSink. Contact details
// missing from contact are taken from the profile.
func NewSubmission(in RecommendationInput, set contract.RecommendationSet, contact contract.Contact, method contract.InputMethod) contract.Submission {
	profile := contract.FieldMap(in.fields())

	if strings.TrimSpace(contact.Name) == "" {
		contact.Name = profile["name"]
	}
	if strings.TrimSpace(contact.Email) == "" {
		contact.Email = profile["email"]
	}

	return contract.Submission{
		ID:              uuid.NewString(),
		Profile:         profile,
		Recommendations: set.Recommendations,
		OutreachEmail:   set.OutreachEmail,
		Contact:         contact,
		InputMethod:     method,
	}
}

// JSONLinesSink writes each submission as one JSON line.
type JSONLinesSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLinesSink creates a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{w: w}
}

// Submit appends s to the underlying writer.
func (s *JSONLinesSink) Submit(_ context.Context, submission contract.Submission) error {
	line, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write submission: %w", err)
	}
	return nil
}
