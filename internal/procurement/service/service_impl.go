package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/nimbusworks/tenantgate/internal/observability/metrics"
	"github.com/nimbusworks/tenantgate/internal/procurement/domain"
	"github.com/nimbusworks/tenantgate/internal/procurement/partner"
	"github.com/nimbusworks/tenantgate/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxApplyAttempts bounds the re-read loop when an optimistic state update
// loses to a concurrent writer.
const maxApplyAttempts = 3

const (
	outcomeApplied = "applied"
	outcomeNoop    = "noop"
	outcomeIgnored = "ignored"
)

type serviceImpl struct {
	db      *gorm.DB
	repo    domain.Repository
	partner partner.API
	genID   *snowflake.Node
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(conn *gorm.DB, repo domain.Repository, partnerAPI partner.API, genID *snowflake.Node, m *metrics.Metrics, log *zap.Logger) domain.Service {
	return &serviceImpl{
		db:      conn,
		repo:    repo,
		partner: partnerAPI,
		genID:   genID,
		metrics: m,
		log:     log.Named("procurement.service"),
	}
}

func (s *serviceImpl) HandleEvent(ctx context.Context, event domain.Event) error {
	if target, ok := event.EventType.AccountTargetState(); ok {
		return s.handleAccountEvent(ctx, event, target)
	}
	if target, ok := event.EventType.EntitlementTargetState(); ok {
		return s.handleEntitlementEvent(ctx, event, target)
	}

	// Unknown event types are acked, not failed: the producer adds types
	// faster than consumers learn them.
	s.log.Info("ignoring unknown event type",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
	)
	s.metrics.RecordEvent(ctx, string(event.EventType), outcomeIgnored)
	return nil
}

func (s *serviceImpl) handleAccountEvent(ctx context.Context, event domain.Event, target domain.AccountState) error {
	if event.Account == nil || event.Account.ID == "" {
		return domain.ErrEventInvalid
	}

	outcome, err := s.applyAccount(ctx, event.Account, target)
	if err != nil {
		return err
	}

	if event.EventType == domain.EventAccountCreationRequested {
		if err := s.partner.ApproveAccount(ctx, event.Account.ID); err != nil {
			return err
		}
	}

	s.log.Info("account event processed",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
		zap.String("account_id", event.Account.ID),
		zap.String("outcome", outcome),
	)
	s.metrics.RecordEvent(ctx, string(event.EventType), outcome)
	return nil
}

func (s *serviceImpl) applyAccount(ctx context.Context, snapshot *domain.AccountSnapshot, target domain.AccountState) (string, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		existing, err := s.repo.FindAccount(ctx, s.db, snapshot.ID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			account := &domain.Account{
				ID:         s.genID.Generate(),
				AccountID:  snapshot.ID,
				ProviderID: snapshot.ProviderID,
				State:      target,
			}
			insertErr := s.repo.InsertAccount(ctx, s.db, account)
			if insertErr == nil {
				return outcomeApplied, nil
			}
			if !db.IsDuplicateKeyErr(insertErr) {
				return "", insertErr
			}
			// Lost the insert race; re-read and fall through to the
			// advance path.
			continue
		}
		if err != nil {
			return "", err
		}

		if !existing.State.Advances(target) {
			return outcomeNoop, nil
		}

		advanced, err := s.repo.AdvanceAccountState(ctx, s.db, snapshot.ID, existing.State, target)
		if err != nil {
			return "", err
		}
		if advanced {
			return outcomeApplied, nil
		}
		// A concurrent writer moved the row; re-evaluate against its state.
	}
	return outcomeNoop, nil
}

func (s *serviceImpl) handleEntitlementEvent(ctx context.Context, event domain.Event, target domain.EntitlementState) error {
	if event.Entitlement == nil || event.Entitlement.ID == "" {
		return domain.ErrEventInvalid
	}

	outcome, err := s.applyEntitlement(ctx, event.Entitlement, target)
	if err != nil {
		return err
	}

	if event.EventType == domain.EventEntitlementCreationRequested {
		if err := s.partner.ApproveEntitlement(ctx, event.Entitlement.ID); err != nil {
			return err
		}
	}

	s.log.Info("entitlement event processed",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
		zap.String("order_id", event.Entitlement.ID),
		zap.String("outcome", outcome),
	)
	s.metrics.RecordEvent(ctx, string(event.EventType), outcome)
	return nil
}

func (s *serviceImpl) applyEntitlement(ctx context.Context, snapshot *domain.EntitlementSnapshot, target domain.EntitlementState) (string, error) {
	// Every entitlement must reference a known account. Returning the error
	// here turns an out-of-order entitlement event into a redelivery, which
	// resolves itself once the account event lands.
	if _, err := s.repo.FindAccount(ctx, s.db, snapshot.Account); err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		existing, err := s.repo.FindEntitlement(ctx, s.db, snapshot.ID)
		if errors.Is(err, domain.ErrEntitlementNotFound) {
			entitlement := &domain.Entitlement{
				ID:                 s.genID.Generate(),
				OrderID:            snapshot.ID,
				AccountID:          snapshot.Account,
				ProductID:          snapshot.Product,
				Plan:               snapshot.Plan,
				State:              target,
				UsageReportingID:   snapshot.UsageReportingID,
				StartAt:            snapshot.StartTime,
				EndAt:              snapshot.EndTime,
				CancellationReason: snapshot.CancellationReason,
			}
			insertErr := s.repo.InsertEntitlement(ctx, s.db, entitlement)
			if insertErr == nil {
				return outcomeApplied, nil
			}
			if !db.IsDuplicateKeyErr(insertErr) {
				return "", insertErr
			}
			continue
		}
		if err != nil {
			return "", err
		}

		if !existing.State.Advances(target) {
			return outcomeNoop, nil
		}

		advanced, err := s.repo.AdvanceEntitlementState(ctx, s.db, snapshot.ID, existing.State, target, snapshot.CancellationReason)
		if err != nil {
			return "", err
		}
		if advanced {
			return outcomeApplied, nil
		}
	}
	return outcomeNoop, nil
}
