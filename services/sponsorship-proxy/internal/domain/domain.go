package domain

import (
	"context"
	"time"
)

// Status describes what the proxy will sponsor
type Status struct {
	Enabled                bool     `json:"enabled"`
	Network                string   `json:"network"`
	AllowedMoveCallTargets []string `json:"allowedMoveCallTargets"`
}

type SponsorRequest struct {
	TransactionData string `json:"transactionData"` // base64 transaction kind bytes
	Sender          string `json:"sender"`
	Network         string `json:"network"`
}

// SponsoredTransaction is full transaction bytes with gas paid by the sponsor
type SponsoredTransaction struct {
	Bytes  string `json:"bytes"`
	Digest string `json:"digest"`
}

type ExecuteRequest struct {
	SponsoredTransaction string `json:"sponsoredTransaction"` // digest returned by sponsor
	Signature            string `json:"signature"`
}

type ExecuteResult struct {
	Digest string `json:"digest"`
}

// SponsorshipExecutedEvent is published after a sponsored transaction runs
type SponsorshipExecutedEvent struct {
	Digest        string
	Network       string
	CorrelationID string
	ExecutedAt    time.Time
}

// Upstream is the third-party sponsor API
type Upstream interface {
	Sponsor(ctx context.Context, req *UpstreamSponsorRequest) (*SponsoredTransaction, error)
	Execute(ctx context.Context, digest, signature string) (*ExecuteResult, error)
}

// UpstreamSponsorRequest is the body forwarded to the sponsor API
type UpstreamSponsorRequest struct {
	Network                   string   `json:"network"`
	TransactionBlockKindBytes string   `json:"transactionBlockKindBytes"`
	Sender                    string   `json:"sender"`
	AllowedMoveCallTargets    []string `json:"allowedMoveCallTargets,omitempty"`
	AllowedAddresses          []string `json:"allowedAddresses,omitempty"`
}

// SenderQuota counts sponsorships per sender
type SenderQuota interface {
	Allow(ctx context.Context, sender string) (bool, error)
}

type EventPublisher interface {
	PublishSponsorshipExecuted(ctx context.Context, event *SponsorshipExecutedEvent) error
}

// SponsorshipService is what the HTTP layer calls
type SponsorshipService interface {
	Status(ctx context.Context) *Status
	Sponsor(ctx context.Context, req *SponsorRequest) (*SponsoredTransaction, error)
	Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResult, error)
}
