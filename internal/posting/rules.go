package posting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/chart"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Rules maps event kinds to journals and account numbers.
type Rules struct {
	Settlement map[PaymentMode]string
	Receivable string
	Payable    string
	Counter    map[Kind]string
	Journals   map[Kind]chart.JournalKind
	Transit    string
	Stock      string
	// Warehouses maps a warehouse id to the stock account of its goods. A transfer
	// debits the destination's account and credits the origin's; unmapped
	// destinations fall back to Transit and unmapped origins to Stock.
	Warehouses map[int64]string
}

// DefaultRules returns the SYSCOHADA mapping used when no rules file is configured.
func DefaultRules() Rules {
	return Rules{
		Settlement: map[PaymentMode]string{
			ModeCash:        "571",
			ModeMobileMoney: "552",
			ModeBank:        "521",
		},
		Receivable: "411",
		Payable:    "401",
		Counter: map[Kind]string{
			KindSale:     "701",
			KindPurchase: "601",
			KindExpense:  "605",
			KindCharge:   "658",
		},
		Journals: map[Kind]chart.JournalKind{
			KindSale:            chart.JournalSales,
			KindPurchase:        chart.JournalPurchases,
			KindExpense:         chart.JournalCash,
			KindCharge:          chart.JournalMisc,
			KindBankOperation:   chart.JournalBank,
			KindTransfer:        chart.JournalMisc,
			KindClientPayment:   chart.JournalCash,
			KindSupplierPayment: chart.JournalCash,
		},
		Transit:    "381",
		Stock:      "311",
		Warehouses: map[int64]string{},
	}
}

type rulesFile struct {
	Settlement map[string]string `toml:"settlement"`
	Receivable string            `toml:"receivable"`
	Payable    string            `toml:"payable"`
	Counter    map[string]string `toml:"counter"`
	Journals   map[string]string `toml:"journals"`
	Transit    string            `toml:"transit"`
	Stock      string            `toml:"stock"`
	Warehouses map[string]string `toml:"warehouses"`
}

// LoadRules overlays the TOML file at path on DefaultRules. An empty path returns
// the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	var file rulesFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Rules{}, fmt.Errorf("posting: decode rules: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Rules{}, fmt.Errorf("posting: unknown rules key %q", undecoded[0].String())
	}
	for mode, number := range file.Settlement {
		m := PaymentMode(strings.ToUpper(mode))
		if !m.Valid() {
			return Rules{}, fmt.Errorf("posting: unknown payment mode %q", mode)
		}
		rules.Settlement[m] = number
	}
	for kind, number := range file.Counter {
		k := Kind(strings.ToUpper(kind))
		if !k.Valid() {
			return Rules{}, fmt.Errorf("posting: unknown kind %q", kind)
		}
		rules.Counter[k] = number
	}
	for kind, journal := range file.Journals {
		k := Kind(strings.ToUpper(kind))
		j := chart.JournalKind(strings.ToUpper(journal))
		if !k.Valid() || !j.Valid() {
			return Rules{}, fmt.Errorf("posting: invalid journal mapping %s=%s", kind, journal)
		}
		rules.Journals[k] = j
	}
	for id, number := range file.Warehouses {
		warehouseID, err := strconv.ParseInt(id, 10, 64)
		if err != nil || warehouseID <= 0 || number == "" {
			return Rules{}, fmt.Errorf("posting: invalid warehouse mapping %s=%q", id, number)
		}
		rules.Warehouses[warehouseID] = number
	}
	for target, value := range map[*string]string{
		&rules.Receivable: file.Receivable,
		&rules.Payable:    file.Payable,
		&rules.Transit:    file.Transit,
		&rules.Stock:      file.Stock,
	} {
		if value != "" {
			*target = value
		}
	}
	return rules, nil
}

// plannedLine is a line of the document before its account is resolved.
type plannedLine struct {
	Number string
	Label  string
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// plan is the journal and account-number lines of one event.
type plan struct {
	Journal chart.JournalKind
	Lines   []plannedLine
}

func debit(number, label string, amount decimal.Decimal) plannedLine {
	return plannedLine{Number: number, Label: label, Debit: amount, Credit: decimal.Zero}
}

func credit(number, label string, amount decimal.Decimal) plannedLine {
	return plannedLine{Number: number, Label: label, Debit: decimal.Zero, Credit: amount}
}

// Plan derives the balanced lines of evt. evt must be valid.
func (r Rules) Plan(evt Event) (plan, error) {
	journal, ok := r.Journals[evt.Kind]
	if !ok {
		return plan{}, &shared.ConfigurationError{Kind: "journal", Key: string(evt.Kind)}
	}
	label := evt.Label
	if label == "" {
		label = defaultLabel(evt)
	}
	p := plan{Journal: journal}
	total := evt.Total

	switch evt.Kind {
	case KindSale:
		counter, err := r.counter(evt.Kind)
		if err != nil {
			return plan{}, err
		}
		settle, err := r.split(evt, r.Receivable, label)
		if err != nil {
			return plan{}, err
		}
		for _, s := range settle {
			p.Lines = append(p.Lines, debit(s.Number, s.Label, s.Debit))
		}
		p.Lines = append(p.Lines, credit(counter, label, total))

	case KindPurchase, KindExpense, KindCharge:
		counter, err := r.counter(evt.Kind)
		if err != nil {
			return plan{}, err
		}
		settle, err := r.split(evt, r.Payable, label)
		if err != nil {
			return plan{}, err
		}
		p.Lines = append(p.Lines, debit(counter, label, total))
		for _, s := range settle {
			p.Lines = append(p.Lines, credit(s.Number, s.Label, s.Debit))
		}

	case KindBankOperation:
		bank, err := r.settlement(ModeBank)
		if err != nil {
			return plan{}, err
		}
		cash, err := r.settlement(ModeCash)
		if err != nil {
			return plan{}, err
		}
		if evt.Direction == DirectionDeposit {
			p.Lines = append(p.Lines, debit(bank, label, total), credit(cash, label, total))
		} else {
			p.Lines = append(p.Lines, debit(cash, label, total), credit(bank, label, total))
		}

	case KindTransfer:
		p.Lines = append(p.Lines,
			debit(r.warehouse(evt.DestinationWarehouseID, r.Transit), label, total),
			credit(r.warehouse(evt.OriginWarehouseID, r.Stock), label, total))

	case KindClientPayment:
		settle, err := r.settlement(evt.Mode)
		if err != nil {
			return plan{}, err
		}
		p.Lines = append(p.Lines, debit(settle, label, total), credit(r.Receivable, label, total))

	case KindSupplierPayment:
		settle, err := r.settlement(evt.Mode)
		if err != nil {
			return plan{}, err
		}
		p.Lines = append(p.Lines, debit(r.Payable, label, total), credit(settle, label, total))

	default:
		return plan{}, shared.Validation("kind", "unknown kind %q", evt.Kind)
	}
	return p, nil
}

// split returns the settlement portions of evt as debit-side amounts: the paid
// part through the settlement account and the remainder through thirdParty.
func (r Rules) split(evt Event, thirdParty, label string) ([]plannedLine, error) {
	var out []plannedLine
	if evt.Paid.IsPositive() {
		settle, err := r.settlement(evt.Mode)
		if err != nil {
			return nil, err
		}
		out = append(out, debit(settle, label, evt.Paid))
	}
	if remainder := evt.Total.Sub(evt.Paid); remainder.IsPositive() {
		out = append(out, debit(thirdParty, label, remainder))
	}
	return out, nil
}

func (r Rules) counter(kind Kind) (string, error) {
	number, ok := r.Counter[kind]
	if !ok || number == "" {
		return "", &shared.ConfigurationError{Kind: "counter account", Key: string(kind)}
	}
	return number, nil
}

func (r Rules) warehouse(id int64, fallback string) string {
	if number := r.Warehouses[id]; number != "" {
		return number
	}
	return fallback
}

func (r Rules) settlement(mode PaymentMode) (string, error) {
	number, ok := r.Settlement[mode]
	if !ok || number == "" {
		return "", &shared.ConfigurationError{Kind: "settlement account", Key: string(mode)}
	}
	return number, nil
}

func defaultLabel(evt Event) string {
	ref := evt.PieceNumber
	if ref == "" {
		ref = fmt.Sprintf("#%d", evt.DocumentID)
	}
	switch evt.Kind {
	case KindSale:
		return "Vente " + ref
	case KindPurchase:
		return "Achat " + ref
	case KindExpense:
		return "Dépense " + ref
	case KindCharge:
		return "Charge " + ref
	case KindBankOperation:
		if evt.Direction == DirectionDeposit {
			return "Versement banque " + ref
		}
		return "Retrait banque " + ref
	case KindTransfer:
		return "Transfert de stock " + ref
	case KindClientPayment:
		return "Règlement client " + ref
	case KindSupplierPayment:
		return "Règlement fournisseur " + ref
	}
	return ref
}
