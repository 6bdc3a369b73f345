package advisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spigell/programme-advisor/internal/ai"
)

type fakeResult struct {
	resp *ai.Response
	err  error
}

type fakeModel struct {
	mu        sync.Mutex
	results   []fakeResult
	requests  []*ai.Request
	deadlines []time.Time
}

func newFakeModel(results ...fakeResult) *fakeModel {
	return &fakeModel{results: results}
}

func (f *fakeModel) Generate(ctx context.Context, req *ai.Request) (*ai.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if deadline, ok := ctx.Deadline(); ok {
		f.deadlines = append(f.deadlines, deadline)
	}

	if len(f.results) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res.resp, res.err
}

func (f *fakeModel) Provider() string { return "fake" }

func (f *fakeModel) Name() string { return "fake-model" }

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func functionCall(name string, args map[string]any) fakeResult {
	return fakeResult{resp: &ai.Response{FunctionCall: &ai.FunctionCall{Name: name, Args: args}}}
}

func textResult(text string) fakeResult {
	return fakeResult{resp: &ai.Response{Text: text}}
}

func errResult(err error) fakeResult {
	return fakeResult{err: err}
}
