package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/chart"
)

// Entry is a ledger line joined with the metadata of its account.
type Entry struct {
	LineID        int64             `json:"line_id"`
	Number        string            `json:"number"`
	Date          time.Time         `json:"date"`
	JournalCode   string            `json:"journal_code"`
	PieceNumber   string            `json:"piece_number,omitempty"`
	Label         string            `json:"label"`
	AccountNumber string            `json:"account_number"`
	AccountLabel  string            `json:"account_label"`
	AccountClass  string            `json:"account_class"`
	AccountType   chart.AccountType `json:"account_type"`
	Debit         decimal.Decimal   `json:"debit"`
	Credit        decimal.Decimal   `json:"credit"`
	ReferenceType string            `json:"reference_type"`
	ReferenceID   int64             `json:"reference_id"`
}

func (e Entry) class() string {
	if e.AccountClass != "" {
		return e.AccountClass
	}
	return chart.ClassOf(e.AccountNumber)
}

// SignedBalance applies the normal-balance convention of t to the given sums.
func SignedBalance(t chart.AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// BalanceRow aggregates one account over the period.
type BalanceRow struct {
	AccountNumber string            `json:"account_number"`
	AccountLabel  string            `json:"account_label"`
	Class         string            `json:"class"`
	Type          chart.AccountType `json:"type"`
	Debit         decimal.Decimal   `json:"debit"`
	Credit        decimal.Decimal   `json:"credit"`
	Balance       decimal.Decimal   `json:"balance"`
}

// ClassGroup holds the rows of one account class with their subtotal.
type ClassGroup struct {
	Class  string          `json:"class"`
	Rows   []BalanceRow    `json:"rows"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// Balance is the per-account summary report.
type Balance struct {
	Groups      []ClassGroup    `json:"groups"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// BuildBalance folds entries into one row per account touched, grouped by class
// then ordered by account number, both lexicographically.
func BuildBalance(entries []Entry) Balance {
	rows := make(map[string]*BalanceRow)
	for _, e := range entries {
		row, ok := rows[e.AccountNumber]
		if !ok {
			row = &BalanceRow{
				AccountNumber: e.AccountNumber,
				AccountLabel:  e.AccountLabel,
				Class:         e.class(),
				Type:          e.AccountType,
			}
			rows[e.AccountNumber] = row
		}
		row.Debit = row.Debit.Add(e.Debit)
		row.Credit = row.Credit.Add(e.Credit)
	}

	groups := make(map[string]*ClassGroup)
	for _, row := range rows {
		row.Balance = SignedBalance(row.Type, row.Debit, row.Credit)
		grp, ok := groups[row.Class]
		if !ok {
			grp = &ClassGroup{Class: row.Class}
			groups[row.Class] = grp
		}
		grp.Rows = append(grp.Rows, *row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	result := Balance{Groups: []ClassGroup{}}
	for _, class := range sortedKeys(groups) {
		grp := groups[class]
		sort.Slice(grp.Rows, func(i, j int) bool {
			return grp.Rows[i].AccountNumber < grp.Rows[j].AccountNumber
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}

// LedgerAccount lists every line of one account followed by its subtotal.
type LedgerAccount struct {
	AccountNumber string            `json:"account_number"`
	AccountLabel  string            `json:"account_label"`
	Class         string            `json:"class"`
	Type          chart.AccountType `json:"type"`
	Lines         []Entry           `json:"lines"`
	Debit         decimal.Decimal   `json:"debit"`
	Credit        decimal.Decimal   `json:"credit"`
	Balance       decimal.Decimal   `json:"balance"`
}

// GrandLivre is the detailed per-account listing behind a Balance.
type GrandLivre struct {
	Accounts    []LedgerAccount `json:"accounts"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// BuildGrandLivre groups entries per account in Balance order; lines within an
// account are ordered by date then line number.
func BuildGrandLivre(entries []Entry) GrandLivre {
	accounts := make(map[string]*LedgerAccount)
	for _, e := range entries {
		acc, ok := accounts[e.AccountNumber]
		if !ok {
			acc = &LedgerAccount{
				AccountNumber: e.AccountNumber,
				AccountLabel:  e.AccountLabel,
				Class:         e.class(),
				Type:          e.AccountType,
			}
			accounts[e.AccountNumber] = acc
		}
		acc.Lines = append(acc.Lines, e)
		acc.Debit = acc.Debit.Add(e.Debit)
		acc.Credit = acc.Credit.Add(e.Credit)
	}

	ordered := make([]*LedgerAccount, 0, len(accounts))
	for _, acc := range accounts {
		acc.Balance = SignedBalance(acc.Type, acc.Debit, acc.Credit)
		sort.SliceStable(acc.Lines, func(i, j int) bool {
			a, b := acc.Lines[i], acc.Lines[j]
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.Number < b.Number
		})
		ordered = append(ordered, acc)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Class != ordered[j].Class {
			return ordered[i].Class < ordered[j].Class
		}
		return ordered[i].AccountNumber < ordered[j].AccountNumber
	})

	result := GrandLivre{Accounts: []LedgerAccount{}}
	for _, acc := range ordered {
		result.Accounts = append(result.Accounts, *acc)
		result.TotalDebit = result.TotalDebit.Add(acc.Debit)
		result.TotalCredit = result.TotalCredit.Add(acc.Credit)
	}
	return result
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
