package ai

import (
	"context"
	"fmt"
	"net/http"
)

// Part is one piece of the user turn: literal text or inline document bytes.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart is a convenience constructor for a literal text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// Function names the single callable schema the model is forced to answer with.
type Function struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the function arguments.
	Parameters map[string]any
}

// Request is one generation call: a system turn, a user turn and an optional forced function.
type Request struct {
	System string
	Parts  []Part
	// Function, when set, asks the provider to answer only through this function.
	Function *Function
}

// FunctionCall is the structured function-result returned by the model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// Response carries whatever the model produced. Either field may be empty.
type Response struct {
	FunctionCall *FunctionCall
	Text         string
}

// Model is the generative-model collaborator used by extraction and synthesis.
type Model interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	Provider() string
	Name() string
}

// StatusError is a non-success upstream response with its HTTP-style status code.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.Code)
	}
	if e.Message == "" {
		return fmt.Sprintf("upstream returned %d %s", e.Code, status)
	}
	return fmt.Sprintf("upstream returned %d %s: %s", e.Code, status, e.Message)
}

// Temporary reports whether the failure is a server-side error worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError
}
