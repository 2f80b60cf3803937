// Package pager delivers human-facing escalations through a primary channel
// with a durable local fallback.
package pager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrDeliveryFailed indicates both the primary and fallback channels failed.
// Paging is the last line of defense; this error must never be swallowed.
var ErrDeliveryFailed = errors.New("page delivery failed on all channels")

// Channel names reported in a Result.
const (
	ChannelPrimary  = "primary"
	ChannelFallback = "fallback"
)

// Request is one alert to deliver. Immutable once built.
type Request struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Priority  int       `json:"priority"` // 0 (normal) to 2 (emergency)
	Timestamp time.Time `json:"timestamp"`
}

// NewRequest builds a Request stamped with the current time and the priority
// clamped into its 0..2 range.
func NewRequest(title, body string, priority int) Request {
	if priority < 0 {
		priority = 0
	}
	if priority > 2 {
		priority = 2
	}
	return Request{Title: title, Body: body, Priority: priority, Timestamp: time.Now()}
}

// Result reports how a page was (or was not) delivered.
type Result struct {
	Delivered bool   `json:"delivered"`
	Channel   string `json:"channel,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Channel is one delivery mechanism. Deliver returns an opaque reference for
// the delivered alert (a provider receipt, a file path).
type Channel interface {
	Name() string
	Deliver(ctx context.Context, req Request) (string, error)
}

// Pager tries the primary channel once, then the fallback. No primary
// retries within a call; the caller may re-invoke.
type Pager struct {
	primary  Channel
	fallback Channel
	logger   *zap.Logger
}

// New creates a Pager. Either channel may be nil, in which case it is
// treated as permanently failing.
func New(primary, fallback Channel, logger *zap.Logger) *Pager {
	return &Pager{primary: primary, fallback: fallback, logger: logger.Named("pager")}
}

// Page delivers req. Returns a Result with Delivered=false plus
// ErrDeliveryFailed only when both channels fail.
func (p *Pager) Page(ctx context.Context, req Request) (Result, error) {
	primaryErr := errors.New("no primary channel configured")
	if p.primary != nil {
		ref, err := p.primary.Deliver(ctx, req)
		if err == nil {
			p.logger.Info("page delivered",
				zap.String("channel", ChannelPrimary),
				zap.String("title", req.Title),
				zap.Int("priority", req.Priority))
			return Result{Delivered: true, Channel: ChannelPrimary, Reference: ref}, nil
		}
		primaryErr = err
	}

	p.logger.Warn("primary channel failed, falling back",
		zap.String("title", req.Title),
		zap.Error(primaryErr))

	fallbackErr := errors.New("no fallback channel configured")
	if p.fallback != nil {
		ref, err := p.fallback.Deliver(ctx, req)
		if err == nil {
			p.logger.Info("page delivered",
				zap.String("channel", ChannelFallback),
				zap.String("reference", ref))
			return Result{Delivered: true, Channel: ChannelFallback, Reference: ref}, nil
		}
		fallbackErr = err
	}

	p.logger.Error("page delivery failed on all channels",
		zap.String("title", req.Title),
		zap.NamedError("primary_error", primaryErr),
		zap.NamedError("fallback_error", fallbackErr))

	return Result{Delivered: false}, fmt.Errorf("%w: primary: %v; fallback: %v",
		ErrDeliveryFailed, primaryErr, fallbackErr)
}
