package points

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stackingdao/points-engine/pkg/db/models"
	"github.com/stackingdao/points-engine/pkg/stacks"
)

// SkippedBalance reports one protocol balance that could not be converted into
// a ledger entry. Malformed data is a per-source problem: the wallet's other
// sources still accrue.
type SkippedBalance struct {
	Source Source
	Amount string
	Reason string
}

func (s SkippedBalance) String() string {
	return fmt.Sprintf("%s=%q (%s)", s.Source, s.Amount, s.Reason)
}

// BuildEntries converts one wallet's balance vector, observed at the block with
// the given hash, into weighted ledger entries. The ledger is sparse: a zero or
// absent balance emits nothing. Amounts stay decimal strings end to end;
// negative or non-numeric amounts are skipped and reported, never written.
func BuildEntries(wallet, blockHash string, vector stacks.BalanceVector) ([]*models.LedgerEntry, []SkippedBalance) {
	balances := []struct {
		source Source
		amount string
	}{
		{SourceStSTX, vector.StSTX},
		{SourceBitflow, vector.Bitflow},
		{SourceArkadiko, vector.Arkadiko},
		{SourceVelar, vector.Velar},
		{SourceHermetica, vector.Hermetica},
	}

	var entries []*models.LedgerEntry
	var skipped []SkippedBalance

	for _, b := range balances {
		if b.amount == "" {
			continue
		}
		amount, err := decimal.NewFromString(b.amount)
		if err != nil {
			skipped = append(skipped, SkippedBalance{Source: b.source, Amount: b.amount, Reason: "non-numeric"})
			continue
		}
		if amount.IsNegative() {
			skipped = append(skipped, SkippedBalance{Source: b.source, Amount: b.amount, Reason: "negative"})
			continue
		}
		if amount.IsZero() {
			continue
		}

		entries = append(entries, &models.LedgerEntry{
			Wallet:     wallet,
			Source:     b.source.String(),
			Block:      blockHash,
			Amount:     amount.String(),
			Multiplier: Multiplier(b.source).String(),
		})
	}

	return entries, skipped
}
