package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/advisor"
	"github.com/spigell/programme-advisor/internal/catalogue"
	"github.com/spigell/programme-advisor/internal/contract"
)

type extractRequest struct {
	Text        string `json:"text" validate:"required"`
	CareerGoals string `json:"careerGoals" validate:"max=2000"`
}

type extractResponse struct {
	Profile contract.Profile `json:"profile"`
}

type contactRequest struct {
	Name  string `json:"name" validate:"max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

type recommendRequest struct {
	Profile     *contract.Profile `json:"profile"`
	Fields      map[string]any    `json:"fields" validate:"required_without=Profile"`
	Catalogue   string            `json:"catalogue"`
	Contact     *contactRequest   `json:"contact"`
	InputMethod string            `json:"inputMethod" validate:"omitempty,oneof=document text form"`
}

type programmesResponse struct {
	Programmes contract.Catalogue `json:"programmes"`
	Count      int                `json:"count"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	in, err := s.readExtractInput(w, r)
	if err != nil {
		s.failureResponse(w, err)
		return
	}

	profile, err := s.deps.Pipeline.RunExtraction(r.Context(), in)
	if err != nil {
		s.failureResponse(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, extractResponse{Profile: profile})
}

func (s *Server) readExtractInput(w http.ResponseWriter, r *http.Request) (advisor.Input, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
		if err := r.ParseMultipartForm(s.maxUpload); err != nil {
			return advisor.Input{}, contract.InvalidInput("could not read upload: %v", err)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			return advisor.Input{}, contract.InvalidInput("file is required")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return advisor.Input{}, contract.InvalidInput("could not read file: %v", err)
		}

		return advisor.Input{
			Kind:        advisor.KindDocument,
			Data:        data,
			Filename:    header.Filename,
			CareerGoals: r.FormValue("careerGoals"),
		}, nil
	}

	var req extractRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return advisor.Input{}, err
	}

	return advisor.Input{Kind: advisor.KindText, Text: req.Text, CareerGoals: req.CareerGoals}, nil
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.failureResponse(w, err)
		return
	}

	in := advisor.RecommendationInput{
		Profile:         req.Profile,
		Fields:          req.Fields,
		InlineCatalogue: req.Catalogue,
	}

	set, err := s.deps.Pipeline.RunRecommendation(r.Context(), in)
	if err != nil {
		s.failureResponse(w, err)
		return
	}

	if s.deps.Sink != nil {
		s.submit(r, in, set, req)
	}

	s.jsonResponse(w, http.StatusOK, set)
}

func (s *Server) submit(r *http.Request, in advisor.RecommendationInput, set contract.RecommendationSet, req recommendRequest) {
	var contact contract.Contact
	if req.Contact != nil {
		contact = contract.Contact{Name: req.Contact.Name, Email: req.Contact.Email}
	}

	method := contract.InputMethod(req.InputMethod)
	if method == "" {
		method = contract.InputForm
		if req.Profile != nil {
			method = contract.InputDocument
		}
	}

	submission := advisor.NewSubmission(in, set, contact, method)
	if err := s.deps.Sink.Submit(r.Context(), submission); err != nil {
		s.logger.Warn("submission was not recorded", zap.String("submission_id", submission.ID), zap.Error(err))
	}
}

func (s *Server) handleProgrammes(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalogue == nil {
		s.failureResponse(w, contract.NewFailure(contract.KindCatalogueUnavailable, "catalogue store is not configured", nil))
		return
	}

	entries, err := s.deps.Catalogue.Snapshot(r.Context())
	if err != nil {
		s.failureResponse(w, contract.NewFailure(contract.KindCatalogueUnavailable, "catalogue store failed", err))
		return
	}

	programmes := catalogue.Summaries(entries, catalogue.ListingDescriptionLimit)
	if programmes == nil {
		programmes = contract.Catalogue{}
	}
	s.jsonResponse(w, http.StatusOK, programmesResponse{Programmes: programmes, Count: len(programmes)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"status": "ok", "ready": true})
}

// decodeJSON decodes and validates a JSON body. Errors are InvalidInput failures.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return contract.InvalidInput("request body is not valid JSON")
	}
	if err := s.validator.Struct(target); err != nil {
		return contract.InvalidInput("%s", describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) failureResponse(w http.ResponseWriter, err error) {
	status, body := advisor.ErrorResponse(err)
	s.jsonResponse(w, status, body)
}
