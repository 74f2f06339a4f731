// Package entitlement decides whether a user's subscription tier allows a
// clip request. Account data lives in an external service.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/bestof/clipper/internal/planner"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"

	// Unlimited is returned by ClipLimit for tiers without a monthly cap.
	Unlimited = -1
)

var ErrDenied = errors.New("entitlement denied")

// DeniedError explains why a request was refused. It matches ErrDenied.
type DeniedError struct {
	UserID string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("entitlement denied for user %s: %s", e.UserID, e.Reason)
}

func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

// ClipLimit is the number of clips a tier may generate per month.
func (t Tier) ClipLimit() int {
	switch t {
	case TierFree:
		return 3
	case TierPremium:
		return 20
	case TierPro:
		return Unlimited
	}
	return 0
}

type Account struct {
	UserID         string `json:"user_id"`
	Tier           Tier   `json:"plan"`
	ClipsThisMonth int    `json:"clips_generated_this_month"`
}

// Allows checks the monthly quota first, then whether the tier may use mode.
func (a Account) Allows(mode planner.Mode) error {
	limit := a.Tier.ClipLimit()
	if limit != Unlimited && a.ClipsThisMonth >= limit {
		return &DeniedError{
			UserID: a.UserID,
			Reason: fmt.Sprintf("monthly limit of %d clips reached for %s plan", limit, a.Tier),
		}
	}
	if mode == planner.ModeLong && a.Tier == TierFree {
		return &DeniedError{UserID: a.UserID, Reason: "long clips require a premium or pro plan"}
	}
	return nil
}

// Checker is consulted before any clip work starts.
type Checker interface {
	Authorize(ctx context.Context, userID string, mode planner.Mode) error
	RecordUsage(ctx context.Context, userID string) error
}

// Unrestricted allows every request. It is used when no entitlement
// service is configured.
type Unrestricted struct{}

func (Unrestricted) Authorize(context.Context, string, planner.Mode) error { return nil }

func (Unrestricted) RecordUsage(context.Context, string) error { return nil }
