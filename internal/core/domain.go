package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StageIniciante Stage = "Iniciante"
	StageExpansao  Stage = "Expansão"
	StageDeclinio  Stage = "Declínio"
	StageMadura    Stage = "Madura"
)

type (
	// Stage is the business-maturity classification of an account.
	Stage string

	// AccountSnapshot is one timestamped record of an account's financial
	// state. Accounts are stored as a time series of snapshots keyed by
	// (AccountID, ReferenceDate); the current view of an account is the
	// snapshot with the highest reference date.
	AccountSnapshot struct {
		AccountID     string
		AnnualRevenue decimal.Decimal
		Balance       decimal.Decimal
		OpeningDate   time.Time
		IndustryCode  string
		ReferenceDate time.Time
	}

	// Transaction is a transfer between two accounts. Counterparty ids are
	// not guaranteed to resolve to a snapshot row.
	Transaction struct {
		ID            int64
		Amount        decimal.Decimal
		Description   string
		ReferenceDate time.Time
		PayerID       string
		ReceiverID    string
	}

	// MaturityLabel is the current stage of one account. There is at most
	// one label per account; classification runs overwrite it in place.
	MaturityLabel struct {
		AccountID string
		Stage     Stage
		UpdatedAt time.Time
	}
)

var (
	ErrNotFound         = errors.New("account not found")
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrPipelineAborted  = errors.New("classification pipeline aborted")
)

// Stages returns all maturity stages in lifecycle order.
func Stages() []Stage {
	return []Stage{StageIniciante, StageExpansao, StageDeclinio, StageMadura}
}

// Valid reports whether s is one of the known maturity stages.
func (s Stage) Valid() bool {
	switch s {
	case StageIniciante, StageExpansao, StageDeclinio, StageMadura:
		return true
	}
	return false
}

// ParseStage converts a raw string into a Stage, rejecting unknown values.
func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("unknown maturity stage %q: %w", raw, ErrInvalidFilter)
	}
	return s, nil
}

func (s AccountSnapshot) Validate() error {
	if strings.TrimSpace(s.AccountID) == "" {
		return errors.New("empty account id")
	}
	if s.ReferenceDate.IsZero() {
		return errors.New("zero reference date")
	}
	if s.OpeningDate.IsZero() {
		return errors.New("zero opening date")
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Amount.IsNegative() {
		return errors.New("negative transaction amount")
	}
	if strings.TrimSpace(t.PayerID) == "" {
		return errors.New("empty payer id")
	}
	if strings.TrimSpace(t.ReceiverID) == "" {
		return errors.New("empty receiver id")
	}
	if t.ReferenceDate.IsZero() {
		return errors.New("zero reference date")
	}
	return nil
}

// Counterparty returns the other party of the transaction relative to
// accountID. When the account pays itself the account id is returned.
func (t Transaction) Counterparty(accountID string) string {
	if t.PayerID == accountID {
		return t.ReceiverID
	}
	return t.PayerID
}

// Outgoing reports whether the transaction is an expense for accountID.
func (t Transaction) Outgoing(accountID string) bool {
	return t.PayerID == accountID
}
