package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

// ErrSuggestionsDisabled is returned when no text suggester is configured
var ErrSuggestionsDisabled = errors.New("text suggestions are disabled")

// SuggestionInput describes what to draft. RequestID takes precedence over
// ServiceID and Payload when set.
type SuggestionInput struct {
	Kind      port.SuggestionKind
	RequestID string
	ServiceID string
	Payload   entity.Payload
}

// SuggestionService drafts justifications for requesters and notes for reviewers
type SuggestionService interface {
	Suggest(ctx context.Context, in SuggestionInput) (string, error)
}

type suggestionServiceImpl struct {
	suggester port.TextSuggester
	catalog   port.ServiceCatalog
	requests  port.RequestRepository
	logger    Logger
}

// NewSuggestionService creates a new SuggestionService; suggester may be nil
func NewSuggestionService(
	suggester port.TextSuggester,
	catalog port.ServiceCatalog,
	requests port.RequestRepository,
	logger Logger,
) SuggestionService {
	return &suggestionServiceImpl{
		suggester: suggester,
		catalog:   catalog,
		requests:  requests,
		logger:    logger,
	}
}

func (s *suggestionServiceImpl) Suggest(ctx context.Context, in SuggestionInput) (string, error) {
	if s.suggester == nil {
		return "", ErrSuggestionsDisabled
	}
	if in.Kind != port.SuggestJustification && in.Kind != port.SuggestReviewNote {
		return "", fmt.Errorf("%w: unknown suggestion kind %q", domainwf.ErrValidation, in.Kind)
	}

	prompt, err := s.buildContext(ctx, in)
	if err != nil {
		return "", err
	}

	text, err := s.suggester.Suggest(ctx, in.Kind, prompt)
	if err != nil {
		s.logger.Error("Suggestion failed", "error", err, "kind", in.Kind, "request_id", in.RequestID)
		return "", fmt.Errorf("suggest: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (s *suggestionServiceImpl) buildContext(ctx context.Context, in SuggestionInput) (map[string]string, error) {
	out := map[string]string{}
	payload := in.Payload
	serviceID := in.ServiceID

	if in.RequestID != "" {
		req, err := s.requests.Get(ctx, in.RequestID)
		if err != nil {
			return nil, err
		}
		payload = req.Payload
		serviceID = req.ServiceID
		out["requester"] = req.EmployeeName
		out["status"] = req.Status.String()
		if n := len(req.History); n > 0 && req.History[n-1].Note != "" {
			out["last_note"] = req.History[n-1].Note
		}
	} else if in.Kind == port.SuggestReviewNote {
		return nil, fmt.Errorf("%w: a review note needs a request id", domainwf.ErrValidation)
	}

	if serviceID == "" {
		return nil, fmt.Errorf("%w: service id is required", domainwf.ErrValidation)
	}
	svc, err := s.catalog.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	out["service"] = svc.Title

	var fields []string
	for _, f := range svc.Fields {
		if v, ok := payload[f.ID]; ok {
			fields = append(fields, fmt.Sprintf("%s: %v", f.Label, v))
		}
	}
	sort.Strings(fields)
	if len(fields) > 0 {
		out["fields"] = strings.Join(fields, "\n")
	}
	return out, nil
}
