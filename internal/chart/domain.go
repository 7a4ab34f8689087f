// Package chart holds the static reference data postings are made against: the
// SYSCOHADA-style chart of accounts and the registry of posting journals.
package chart

import (
	"strings"
	"time"
)

// AccountType is the normal-balance type of an account.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeRevenue   AccountType = "REVENUE"
)

// Valid reports whether t is a known type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeExpense, AccountTypeRevenue:
		return true
	}
	return false
}

// DebitNormal reports whether the account naturally increases with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// JournalKind enumerates posting books.
type JournalKind string

const (
	JournalSales     JournalKind = "SALES"
	JournalPurchases JournalKind = "PURCHASES"
	JournalCash      JournalKind = "CASH"
	JournalBank      JournalKind = "BANK"
	JournalMisc      JournalKind = "MISC"
)

// Valid reports whether k is a known kind.
func (k JournalKind) Valid() bool {
	switch k {
	case JournalSales, JournalPurchases, JournalCash, JournalBank, JournalMisc:
		return true
	}
	return false
}

// Account models a ledger account.
type Account struct {
	ID        int64
	EntityID  int64
	Number    string
	Label     string
	Class     string
	Type      AccountType
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Journal models a named posting book.
type Journal struct {
	ID       int64
	EntityID int64
	Code     string
	Label    string
	Kind     JournalKind
}

// ClassOf derives the account class from the leading digit of its number.
func ClassOf(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	return number[:1]
}

// ClassOrDefault returns the stored class, falling back to the number prefix.
func (a Account) ClassOrDefault() string {
	if a.Class != "" {
		return a.Class
	}
	return ClassOf(a.Number)
}
