// Package domain contains the core domain types for the deal context.
package domain

import (
	"fmt"
	"strings"

	"github.com/fd1az/fxdesk/internal/apperror"
)

// Status is the lifecycle state of a deal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusExecuting Status = "EXECUTING"
	StatusExecuted  Status = "EXECUTED"
	StatusSettling  Status = "SETTLING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// validTransitions lists the statuses reachable from each non-terminal status.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusExecuting, StatusFailed, StatusCancelled},
	StatusApproved:  {StatusExecuting, StatusFailed, StatusCancelled},
	StatusExecuting: {StatusExecuted, StatusFailed, StatusCancelled},
	StatusExecuted:  {StatusSettling, StatusFailed, StatusCancelled},
	StatusSettling:  {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsExecutable reports whether a deal in s may start execution.
func (s Status) IsExecutable() bool {
	return s == StatusPending || s == StatusApproved
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusApproved, StatusExecuting, StatusExecuted,
		StatusSettling, StatusCompleted, StatusFailed, StatusCancelled:
		return st, nil
	}
	return "", apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("unknown deal status %q", s))
}

// StateConflict builds the INVALID_DEAL_STATE error for a deal found in
// current while the operation expected one of expected.
func StateConflict(dealID string, current Status, expected ...Status) error {
	names := make([]string, len(expected))
	for i, s := range expected {
		names[i] = string(s)
	}
	return apperror.Conflict(apperror.CodeInvalidDealState,
		fmt.Sprintf("deal %s is %s, expected %s", dealID, current, strings.Join(names, " or ")))
}

// ConcurrentUpdate reports a write based on a stale copy of the deal: the
// status may match but another writer committed in between.
func ConcurrentUpdate(dealID string, current Status, version int64) error {
	return apperror.Conflict(apperror.CodeInvalidDealState,
		fmt.Sprintf("deal %s is %s and was modified concurrently (stale version %d)", dealID, current, version))
}

// Side is the direction of a deal from the partner's perspective.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide parses BUY or SELL case-insensitively.
func ParseSide(s string) (Side, error) {
	switch side := Side(strings.ToUpper(strings.TrimSpace(s))); side {
	case SideBuy, SideSell:
		return side, nil
	}
	return "", apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("side must be BUY or SELL, got %q", s))
}
