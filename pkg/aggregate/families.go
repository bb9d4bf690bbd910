package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/db"
)

// Survey elements computed from records.
const (
	ElementClientsTotal         = "a1101"
	ElementClientsNatural       = "a1102"
	ElementClientsByCountry     = "a1103"
	ElementClientsLegal         = "a1104"
	ElementClientsTrust         = "a1105"
	ElementClientsPEP           = "a1201"
	ElementClientsHighRisk      = "a1202"
	ElementTransactionsTotal    = "a1301"
	ElementTransactionsPurchase = "a1302"
	ElementTransactionsSale     = "a1303"
	ElementTransactionsRental   = "a1304"
	ElementValueTotal           = "a1401"
	ElementValuePurchase        = "a1402"
	ElementValueSale            = "a1403"
	ElementValueRental          = "a1404"
	ElementCashPresent          = "a1501"
	ElementCashCount            = "a1502"
	ElementCryptoPresent        = "a1503"
	ElementSuspiciousReports    = "a1601"
	ElementOwnersTotal          = "a1701"
	ElementOwnersPEP            = "a1702"
	ElementTrainingSessions     = "a1801"
	ElementStaffTrained         = "a1802"
)

const (
	tokenYes = "Yes"
	tokenNo  = "No"
)

func calculated(value string) Computed {
	return Computed{Value: value, Source: db.SourceCalculated}
}

func count(n int) Computed {
	return calculated(strconv.Itoa(n))
}

func yesNo(b bool) Computed {
	if b {
		return calculated(tokenYes)
	}
	return calculated(tokenNo)
}

// formatCents renders an integer amount of cents as a decimal with two places.
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func (e *Engine) clientCounts(ctx context.Context, s scope) (Values, error) {
	clients, err := e.records.ListKeptClients(ctx, s.organizationID, s.to)
	if err != nil {
		return nil, err
	}

	var natural, legal, trust, pep, highRisk int
	for _, c := range clients {
		switch c.ClientType {
		case db.ClientNaturalPerson:
			natural++
		case db.ClientLegalEntity:
			legal++
		case db.ClientTrust:
			trust++
		}
		if c.IsPEP {
			pep++
		}
		if c.RiskLevel == "high" {
			highRisk++
		}
	}

	return Values{
		ElementClientsTotal:    count(len(clients)),
		ElementClientsNatural:  count(natural),
		ElementClientsLegal:    count(legal),
		ElementClientsTrust:    count(trust),
		ElementClientsPEP:      count(pep),
		ElementClientsHighRisk: count(highRisk),
	}, nil
}

func (e *Engine) nationalityBreakdown(ctx context.Context, s scope) (Values, error) {
	clients, err := e.records.ListKeptClients(ctx, s.organizationID, s.to)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(CountryBreakdown(clients))
	if err != nil {
		return nil, fmt.Errorf("failed to encode country breakdown: %w", err)
	}

	return Values{ElementClientsByCountry: calculated(string(encoded))}, nil
}

func (e *Engine) transactionTotals(ctx context.Context, s scope) (Values, error) {
	txns, err := e.records.ListTransactions(ctx, s.organizationID, s.from, s.to)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	sums := make(map[string]int64)
	var total int64
	for _, t := range txns {
		counts[t.TransactionType]++
		sums[t.TransactionType] += t.AmountCents
		total += t.AmountCents
	}

	return Values{
		ElementTransactionsTotal:    count(len(txns)),
		ElementTransactionsPurchase: count(counts[db.TransactionPurchase]),
		ElementTransactionsSale:     count(counts[db.TransactionSale]),
		ElementTransactionsRental:   count(counts[db.TransactionRental]),
		ElementValueTotal:           calculated(formatCents(total)),
		ElementValuePurchase:        calculated(formatCents(sums[db.TransactionPurchase])),
		ElementValueSale:            calculated(formatCents(sums[db.TransactionSale])),
		ElementValueRental:          calculated(formatCents(sums[db.TransactionRental])),
	}, nil
}

// paymentMethods reports cash and crypto usage. A mixed payment counts as cash
// when part of it was settled in cash.
func (e *Engine) paymentMethods(ctx context.Context, s scope) (Values, error) {
	txns, err := e.records.ListTransactions(ctx, s.organizationID, s.from, s.to)
	if err != nil {
		return nil, err
	}

	var cash, crypto int
	for _, t := range txns {
		switch {
		case t.PaymentMethod == db.PaymentCash:
			cash++
		case t.PaymentMethod == db.PaymentMixed && t.CashAmountCents > 0:
			cash++
		case t.PaymentMethod == db.PaymentCrypto:
			crypto++
		}
	}

	return Values{
		ElementCashPresent:   yesNo(cash > 0),
		ElementCashCount:     count(cash),
		ElementCryptoPresent: yesNo(crypto > 0),
	}, nil
}

func (e *Engine) suspiciousReports(ctx context.Context, s scope) (Values, error) {
	n, err := e.records.CountSTRReports(ctx, s.organizationID, s.from, s.to)
	if err != nil {
		return nil, err
	}
	return Values{ElementSuspiciousReports: count(n)}, nil
}

func (e *Engine) beneficialOwners(ctx context.Context, s scope) (Values, error) {
	owners, err := e.records.ListBeneficialOwners(ctx, s.organizationID, s.to)
	if err != nil {
		return nil, err
	}

	pep := 0
	for _, bo := range owners {
		if bo.IsPEP {
			pep++
		}
	}

	return Values{
		ElementOwnersTotal: count(len(owners)),
		ElementOwnersPEP:   count(pep),
	}, nil
}

func (e *Engine) trainings(ctx context.Context, s scope) (Values, error) {
	sessions, err := e.records.ListTrainings(ctx, s.organizationID, s.from, s.to)
	if err != nil {
		return nil, err
	}

	staff := 0
	for _, t := range sessions {
		staff += t.StaffCount
	}

	return Values{
		ElementTrainingSessions: count(len(sessions)),
		ElementStaffTrained:     count(staff),
	}, nil
}

// settingValues copies every setting that targets a survey element verbatim.
func (e *Engine) settingValues(ctx context.Context, s scope) (Values, error) {
	settings, err := e.settings.ListSettings(ctx, s.organizationID)
	if err != nil {
		return nil, err
	}

	values := make(Values)
	for _, setting := range settings {
		if setting.XBRLElement == "" {
			continue
		}
		values[setting.XBRLElement] = Computed{Value: setting.Value, Source: db.SourceFromSettings}
	}
	return values, nil
}
