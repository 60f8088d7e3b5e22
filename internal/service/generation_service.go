package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitegen/internal/infrastructure/identity"
	"sitegen/internal/infrastructure/llm"
	"sitegen/internal/metrics"
	"sitegen/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type GenerateInput struct {
	Prompt        string
	BaseWebsiteID string
}

type GenerateResult struct {
	Website          *model.Website
	RemainingCredits int64
	// Settled is false when the charge could not be applied and was queued
	// for reconciliation.
	Settled bool
}

// GenerationService runs the generate-then-settle sequence.
type GenerationService struct {
	accounts     AccountStore
	websites     WebsiteStore
	settlements  SettlementStore
	generator    llm.Generator
	systemPrompt string
	topics       EventTopics
	log          logrus.FieldLogger
}

// NewGenerationService wires the sequence. settlements may be nil, in which
// case failed charges are only logged.
func NewGenerationService(
	accounts AccountStore,
	websites WebsiteStore,
	settlements SettlementStore,
	generator llm.Generator,
	systemPrompt string,
	topics EventTopics,
	log logrus.FieldLogger,
) *GenerationService {
	if systemPrompt == "" {
		systemPrompt = llm.DefaultSystemPrompt
	}
	return &GenerationService{
		accounts:     accounts,
		websites:     websites,
		settlements:  settlements,
		generator:    generator,
		systemPrompt: systemPrompt,
		topics:       topics,
		log:          log,
	}
}

// Generate checks the balance, calls the backend, stores the page and then
// charges for it. Once the gate has passed the remaining steps ignore
// cancellation of ctx, so an aborted request still ends in a consistent
// state. A failed charge does not fail the request: the page is returned
// with the pre-request balance and the charge is queued.
func (s *GenerationService) Generate(ctx context.Context, caller *identity.Principal, in GenerateInput) (*GenerateResult, error) {
	if caller == nil || caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, invalid("prompt is required")
	}

	logger := s.log.WithField("user_id", caller.ID)

	var parent *model.Website
	if in.BaseWebsiteID != "" {
		base, err := s.websites.GetByID(ctx, in.BaseWebsiteID)
		if err != nil {
			return nil, storeError(err)
		}
		if base.UserID != caller.ID {
			return nil, ErrPermissionDenied
		}
		parent = base
	}

	account, err := s.accounts.GetByUserIDFromPrimary(ctx, caller.ID)
	if err != nil {
		return nil, storeError(err)
	}
	if Authorize(account.Credits, GenerationCost) == Deny {
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeDenied).Inc()
		logger.WithField("credits", account.Credits).Info("generation denied: insufficient credits")
		return nil, ErrInsufficientCredit
	}

	ctx = context.WithoutCancel(ctx)

	backendPrompt := prompt
	if parent != nil {
		backendPrompt = ImprovementPrompt(prompt, parent.HTML)
	}

	start := time.Now()
	resp, err := s.generator.Generate(ctx, llm.Request{SystemPrompt: s.systemPrompt, Prompt: backendPrompt})
	metrics.BackendLatency.WithLabelValues(s.generator.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.WithError(err).Error("generation backend call failed")
		if errors.Is(err, llm.ErrEmptyResponse) {
			metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
			return nil, ErrGenerationFailed
		}
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeBackendError).Inc()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	html := StripCodeFence(resp.Content)
	if strings.TrimSpace(html) == "" {
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
		logger.Warn("generation backend returned no content")
		return nil, ErrGenerationFailed
	}

	website := &model.Website{
		ID:        uuid.NewString(),
		UserID:    caller.ID,
		Prompt:    backendPrompt,
		HTML:      html,
		Model:     resp.Model,
		CreatedAt: time.Now().UTC(),
	}
	if parent != nil {
		website.ParentID = &parent.ID
	}
	logger = logger.WithField("website_id", website.ID)

	event := NewOutboxMessage(s.topics.WebsiteGenerated, model.Event{
		Type:       model.EventWebsiteGenerated,
		UserID:     caller.ID,
		WebsiteID:  website.ID,
		Amount:     GenerationCost,
		OccurredAt: website.CreatedAt,
	})
	if err := s.websites.CreateWithEvent(ctx, website, event); err != nil {
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomePersistenceFailure).Inc()
		logger.WithError(err).Error("failed to save website; not charging")
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	logger.WithFields(logrus.Fields{
		"prompt_len": len(backendPrompt),
		"html_len":   len(html),
		"tokens":     resp.TotalTokens,
	}).Info("website generated")

	remaining, err := s.accounts.Charge(ctx, caller.ID, website.ID, GenerationCost)
	if err != nil {
		metrics.SettlementFailures.Inc()
		metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		logger.WithError(err).Warn("settlement failed; delivering website uncharged")
		s.deferSettlement(ctx, logger, caller.ID, website.ID)
		return &GenerateResult{Website: website, RemainingCredits: account.Credits}, nil
	}

	metrics.CreditsSpent.Add(float64(GenerationCost))
	metrics.GenerationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return &GenerateResult{Website: website, RemainingCredits: remaining, Settled: true}, nil
}

func (s *GenerationService) deferSettlement(ctx context.Context, logger logrus.FieldLogger, userID, websiteID string) {
	if s.settlements == nil {
		return
	}
	pending := &model.PendingSettlement{
		UserID:    userID,
		WebsiteID: websiteID,
		Amount:    GenerationCost,
		Status:    model.SettlementStatusPending,
	}
	event := NewOutboxMessage(s.topics.Settlement, model.Event{
		Type:      model.EventSettlementDeferred,
		UserID:    userID,
		WebsiteID: websiteID,
		Amount:    GenerationCost,
		Status:    model.SettlementStatusPending,
	})
	if err := s.settlements.Create(ctx, pending, event); err != nil {
		logger.WithError(err).Error("failed to queue deferred settlement")
	}
}
