// Package analytics is the read-side aggregation engine: per-account
// overviews, filtered transaction listings, monthly flow charts, industry
// rankings and maturity reporting. Every operation is a pure read over the
// store; the package never writes.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"santander/internal/cache"
	"santander/internal/core"
	"santander/internal/storage"
)

const (
	// DefaultPageSize is the page size of transaction and account listings.
	DefaultPageSize = 20
	// IndustryPageSize is the smaller page used by industry (CNAE) account
	// listings; page size is a parameter of the call, not a global.
	IndustryPageSize = 12

	// rankingTopN caps how many top-revenue rows per industry code enter
	// the ranking score.
	rankingTopN = 100
	// rankingLimit is the number of industry codes the ranking keeps.
	rankingLimit = 5

	rankingCacheKey = "industry-ranking"
	rankingCacheTTL = 5 * time.Minute
)

// Service answers the reporting queries. It is stateless apart from a
// read-through cache of the industry ranking; calls may run concurrently
// without coordination.
type Service struct {
	store   *storage.Store
	ranking *cache.TTL[[]IndustryShare]
}

func New(store *storage.Store) *Service {
	return &Service{
		store:   store,
		ranking: cache.New[[]IndustryShare](rankingCacheTTL),
	}
}

// Overview is the per-account headline block.
type Overview struct {
	CounterpartyCount int             `json:"counterpartyCount"`
	TransactionCount  int             `json:"transactionCount"`
	Balance           decimal.Decimal `json:"balance"`
}

// TransactionItem is one listed transaction, seen from the queried
// account's side.
type TransactionItem struct {
	Direction    string          `json:"inOut"`
	Counterparty string          `json:"counterparty"`
	Date         string          `json:"date"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
}

// TransactionPage is one page of a filtered listing.
type TransactionPage struct {
	TotalPages int               `json:"totalPages"`
	Items      []TransactionItem `json:"items"`
}

// MonthFlowPoint is one bar of the monthly income/expense chart.
type MonthFlowPoint struct {
	Month   int             `json:"monthNumber"`
	Label   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// IndustryShare is one slice of the industry ranking chart.
type IndustryShare struct {
	IndustryCode string `json:"industryCode"`
	AccountCount int    `json:"accountCount"`
}

// AccountSummary is one resolved account row in industry and maturity
// listings.
type AccountSummary struct {
	AccountID     string          `json:"accountId"`
	AnnualRevenue decimal.Decimal `json:"annualRevenue"`
	Balance       decimal.Decimal `json:"balance"`
	OpeningDate   string          `json:"openingDate"`
	IndustryCode  string          `json:"industryCode"`
	ReferenceDate string          `json:"referenceDate"`
}

// AccountPage is one page of resolved account rows.
type AccountPage struct {
	TotalPages int              `json:"totalPages"`
	Items      []AccountSummary `json:"items"`
}

// Stats are the ledger-wide totals for the landing dashboard.
type Stats struct {
	TotalAccounts     int             `json:"totalAccounts"`
	TotalTransactions int             `json:"totalTransactions"`
	TotalTransacted   decimal.Decimal `json:"totalTransacted"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
}

// displayDate is the dd/mm/yyyy form the reporting layer renders.
const displayDate = "02/01/2006"

// totalPages computes ceil(total/pageSize).
func totalPages(total, pageSize int) int {
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// pageOffset converts a 1-based page number to a row offset. Page numbers
// below 1 read as the first page.
func pageOffset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

func summarize(snap core.AccountSnapshot) AccountSummary {
	return AccountSummary{
		AccountID:     snap.AccountID,
		AnnualRevenue: snap.AnnualRevenue,
		Balance:       snap.Balance,
		OpeningDate:   snap.OpeningDate.Format(displayDate),
		IndustryCode:  snap.IndustryCode,
		ReferenceDate: snap.ReferenceDate.Format(displayDate),
	}
}
