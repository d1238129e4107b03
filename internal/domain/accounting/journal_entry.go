package accounting

import (
	"errors"
	"fmt"
	"time"

	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var ErrUnbalancedEntry = errors.New("accounting: journal entry does not balance")

// JournalKind distinguishes transfer entries from payout entries
type JournalKind string

const (
	JournalKindTransfer JournalKind = "TRANSFER"
	JournalKindPayout   JournalKind = "PAYOUT"
)

// JournalEntry is a two-sided ledger movement keyed by its marketplace
// reference id and reference date. Entries are left in draft.
type JournalEntry struct {
	shared.BaseEntity
	Name          string
	Title         string
	Kind          JournalKind
	PostingDate   time.Time
	ReferenceID   string
	ReferenceDate time.Time
	Remark        string
	Status        DocStatus
	Lines         []JournalLine
}

// JournalLine debits or credits one account
type JournalLine struct {
	Account string
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// NewTransferEntry moves amount from one account to another
func NewTransferEntry(kind JournalKind, title string, postingDate time.Time, referenceID string, from, to string, amount decimal.Decimal) (*JournalEntry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount %s must be positive", ErrUnbalancedEntry, amount)
	}
	je := &JournalEntry{
		BaseEntity:    shared.NewBaseEntity(),
		Title:         title,
		Kind:          kind,
		PostingDate:   postingDate,
		ReferenceID:   referenceID,
		ReferenceDate: postingDate,
		Status:        DocStatusDraft,
		Lines: []JournalLine{
			{Account: to, Debit: amount, Credit: decimal.Zero},
			{Account: from, Debit: decimal.Zero, Credit: amount},
		},
	}
	je.Name = documentName("JV", je.ID)
	return je, nil
}

// Validate checks the entry balances
func (je *JournalEntry) Validate() error {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range je.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s, credit %s", ErrUnbalancedEntry, debit, credit)
	}
	return nil
}
