package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/config"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/domain"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/metrics"
	"github.com/quangdang46/talent-passport/shared/logging"
)

var suiAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

var supportedNetworks = map[string]bool{"mainnet": true, "testnet": true, "devnet": true}

type SponsorshipService struct {
	cfg       *config.Config
	upstream  domain.Upstream
	quota     domain.SenderQuota
	publisher domain.EventPublisher
	logger    *logging.Logger
	now       func() time.Time
}

var _ domain.SponsorshipService = (*SponsorshipService)(nil)

// NewSponsorshipService wires the proxy logic. quota and publisher may be nil.
func NewSponsorshipService(
	cfg *config.Config,
	upstream domain.Upstream,
	quota domain.SenderQuota,
	publisher domain.EventPublisher,
	logger *logging.Logger,
) *SponsorshipService {
	return &SponsorshipService{
		cfg:       cfg,
		upstream:  upstream,
		quota:     quota,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *SponsorshipService) Status(context.Context) *domain.Status {
	targets := s.cfg.AllowedMoveCallTargets
	if targets == nil {
		targets = []string{}
	}
	return &domain.Status{
		Enabled:                s.cfg.Enabled(),
		Network:                s.cfg.Network,
		AllowedMoveCallTargets: targets,
	}
}

// Sponsor validates the request and asks the upstream to attach gas
func (s *SponsorshipService) Sponsor(ctx context.Context, req *domain.SponsorRequest) (*domain.SponsoredTransaction, error) {
	if !s.cfg.Enabled() {
		return nil, domain.ErrSponsorshipDisabled
	}
	if err := s.validateSponsor(req); err != nil {
		return nil, err
	}
	ctx = logging.WithAddress(ctx, req.Sender)

	if s.quota != nil {
		ok, err := s.quota.Allow(ctx, req.Sender)
		if err != nil {
			// a broken counter must not block sponsorship
			s.logger.WithContext(ctx).WithError(err).Warn("Sender quota check failed")
		} else if !ok {
			metrics.QuotaRejections.Inc()
			s.logger.WithContext(ctx).Security("sponsor_quota_exceeded", "medium", map[string]interface{}{
				"sender": req.Sender,
			})
			return nil, domain.ErrQuotaExceeded
		}
	}

	sponsored, err := s.upstream.Sponsor(ctx, &domain.UpstreamSponsorRequest{
		Network:                   req.Network,
		TransactionBlockKindBytes: req.TransactionData,
		Sender:                    req.Sender,
		AllowedMoveCallTargets:    s.cfg.AllowedMoveCallTargets,
		AllowedAddresses:          s.cfg.AllowedAddresses,
	})
	metrics.RecordSponsorship("sponsor", err)
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Audit("sponsorship_created", map[string]interface{}{
		"digest":  sponsored.Digest,
		"network": req.Network,
	})
	return sponsored, nil
}

// Execute forwards the user's signature and publishes the outcome
func (s *SponsorshipService) Execute(ctx context.Context, req *domain.ExecuteRequest) (*domain.ExecuteResult, error) {
	if !s.cfg.Enabled() {
		return nil, domain.ErrSponsorshipDisabled
	}
	if req.SponsoredTransaction == "" {
		return nil, domain.InvalidField("sponsoredTransaction", "digest is required")
	}
	if _, err := base64.StdEncoding.DecodeString(req.Signature); err != nil || req.Signature == "" {
		return nil, domain.InvalidField("signature", "must be base64")
	}

	result, err := s.upstream.Execute(ctx, req.SponsoredTransaction, req.Signature)
	metrics.RecordSponsorship("execute", err)
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Audit("sponsorship_executed", map[string]interface{}{
		"digest":  result.Digest,
		"network": s.cfg.Network,
	})

	if s.publisher != nil {
		event := &domain.SponsorshipExecutedEvent{
			Digest:        result.Digest,
			Network:       s.cfg.Network,
			CorrelationID: logging.GetCorrelationID(ctx),
			ExecutedAt:    s.now().UTC(),
		}
		if err := s.publisher.PublishSponsorshipExecuted(ctx, event); err != nil {
			metrics.EventPublishFailures.Inc()
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to publish sponsorship.executed")
		}
	}
	return result, nil
}

func (s *SponsorshipService) validateSponsor(req *domain.SponsorRequest) error {
	if req.TransactionData == "" {
		return domain.InvalidField("transactionData", "is required")
	}
	if _, err := base64.StdEncoding.DecodeString(req.TransactionData); err != nil {
		return domain.InvalidField("transactionData", "must be base64")
	}
	if !suiAddressPattern.MatchString(req.Sender) {
		return domain.InvalidField("sender", "must be 0x followed by 64 hex characters")
	}
	if !supportedNetworks[req.Network] {
		return domain.InvalidField("network", "must be mainnet, testnet or devnet")
	}
	if req.Network != s.cfg.Network {
		return domain.InvalidField("network", fmt.Sprintf("this proxy sponsors %s only", s.cfg.Network))
	}
	return nil
}
