package tools

import (
	"context"
	"sync"
)

// ConfirmationRequest describes an operation awaiting user approval.
type ConfirmationRequest struct {
	Operation string
	Target    string
	Detail    string
}

// ConfirmationResponse is the user's answer. AlwaysAllow suppresses further
// prompts for the rest of the session.
type ConfirmationResponse struct {
	Confirmed   bool
	Feedback    string
	AlwaysAllow bool
}

// Prompter asks the user to approve an operation.
type Prompter interface {
	Confirm(ctx context.Context, req ConfirmationRequest) (ConfirmationResponse, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, req ConfirmationRequest) (ConfirmationResponse, error)

func (f PrompterFunc) Confirm(ctx context.Context, req ConfirmationRequest) (ConfirmationResponse, error) {
	return f(ctx, req)
}

// ConfirmationService gates shell execution behind user approval. With no
// prompter every request is approved, which suits headless runs.
type ConfirmationService struct {
	mu           sync.Mutex
	prompter     Prompter
	allowAllBash bool
}

// NewConfirmationService creates a service that asks prompter.
func NewConfirmationService(prompter Prompter) *ConfirmationService {
	return &ConfirmationService{prompter: prompter}
}

// AllowAllBash skips prompts for the rest of the session.
func (s *ConfirmationService) AllowAllBash(allow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowAllBash = allow
}

// RequestConfirmation asks for approval unless the session flag already
// grants it. A prompter error counts as a rejection.
func (s *ConfirmationService) RequestConfirmation(ctx context.Context, req ConfirmationRequest) ConfirmationResponse {
	s.mu.Lock()
	allowed := s.allowAllBash || s.prompter == nil
	prompter := s.prompter
	s.mu.Unlock()

	if allowed {
		return ConfirmationResponse{Confirmed: true}
	}

	resp, err := prompter.Confirm(ctx, req)
	if err != nil {
		return ConfirmationResponse{Feedback: err.Error()}
	}
	if resp.Confirmed && resp.AlwaysAllow {
		s.AllowAllBash(true)
	}
	return resp
}
