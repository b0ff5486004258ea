package points

import "github.com/shopspring/decimal"

// Source is the protocol or accrual category a ledger entry belongs to.
type Source string

const (
	SourceStSTX     Source = "ststx"
	SourceBitflow   Source = "bitflow"
	SourceArkadiko  Source = "arkadiko"
	SourceVelar     Source = "velar"
	SourceHermetica Source = "hermetica"

	// Historical and referral accruals, written by the seed tool rather than
	// the daily accrual pass.
	SourceReferral  Source = "referral"
	SourceMigration Source = "migration"
)

// multipliers is the protocol points policy: the fixed weighting factor applied
// to a raw balance from each source. Native stSTX counts 1:1; higher-risk DeFi
// integrations are weighted up.
var multipliers = map[Source]decimal.Decimal{
	SourceStSTX:     decimal.NewFromInt(1),
	SourceBitflow:   decimal.RequireFromString("2.5"),
	SourceArkadiko:  decimal.RequireFromString("1.5"),
	SourceVelar:     decimal.RequireFromString("1.5"),
	SourceHermetica: decimal.RequireFromString("1.5"),
	SourceReferral:  decimal.NewFromInt(1),
	SourceMigration: decimal.NewFromInt(1),
}

// Multiplier returns the fixed per-source weight, defaulting to 1 for sources
// without an explicit policy entry.
func Multiplier(source Source) decimal.Decimal {
	if m, ok := multipliers[source]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

func (s Source) String() string { return string(s) }
