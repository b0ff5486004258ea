package points

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/stackingdao/points-engine/pkg/db"
	"github.com/stackingdao/points-engine/pkg/db/models"
)

// BonusRate is the policy constant applied to net balance growth since the
// start of the bonus window.
var BonusRate = decimal.NewFromInt(20)

// baseUnitDecimals converts base-unit balances (micro-STX) to the same decimal
// scale as points.
const baseUnitDecimals = 6

// BonusPoints returns max(0, current - snapshot) x BonusRate, scaled from base
// units down to point units. Exact decimal arithmetic throughout.
func BonusPoints(snapshotBalance, currentBalance uint64) decimal.Decimal {
	if currentBalance <= snapshotBalance {
		return decimal.Zero
	}
	growth := decimal.NewFromUint64(currentBalance - snapshotBalance)
	return growth.Mul(BonusRate).Shift(-baseUnitDecimals)
}

// walletTotals is the per-wallet fold of ledger groups plus the bonus term.
type walletTotals struct {
	daily    decimal.Decimal
	referral decimal.Decimal
	bonus    decimal.Decimal
}

func (t walletTotals) total() decimal.Decimal {
	return t.daily.Add(t.referral).Add(t.bonus)
}

// BuildLeaderboard recomputes the full ranked leaderboard from per-(wallet,
// source) ledger totals and the wallet registry.
//
// Buckets: referral-source totals feed the referral bucket; every other source
// (daily protocol accruals plus migrated history) sums into daily; the bonus
// bucket comes from registry balance growth alone. Every registry wallet
// appears, so a wallet with no ledger rows is still ranked on its bonus.
//
// Ranking is total descending with wallet address ascending as the tie-break,
// which makes consecutive recomputes over the same state byte-identical.
func BuildLeaderboard(groups []db.GroupTotal, wallets []*models.Wallet) []*models.LeaderboardRank {
	totals := map[string]*walletTotals{}

	ensure := func(wallet string) *walletTotals {
		t, ok := totals[wallet]
		if !ok {
			t = &walletTotals{}
			totals[wallet] = t
		}
		return t
	}

	for _, w := range wallets {
		t := ensure(w.Address)
		t.bonus = BonusPoints(w.SnapshotBalance, w.CurrentBalance)
	}

	for _, g := range groups {
		t := ensure(g.Wallet)
		if Source(g.Source) == SourceReferral {
			t.referral = t.referral.Add(g.Total)
		} else {
			t.daily = t.daily.Add(g.Total)
		}
	}

	type scored struct {
		wallet string
		totals *walletTotals
		sum    decimal.Decimal
	}
	ranking := make([]scored, 0, len(totals))
	for wallet, t := range totals {
		ranking = append(ranking, scored{wallet: wallet, totals: t, sum: t.total()})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if cmp := ranking[i].sum.Cmp(ranking[j].sum); cmp != 0 {
			return cmp > 0
		}
		return ranking[i].wallet < ranking[j].wallet
	})

	ranks := make([]*models.LeaderboardRank, 0, len(ranking))
	for i, s := range ranking {
		ranks = append(ranks, &models.LeaderboardRank{
			Rank:           uint32(i + 1),
			Wallet:         s.wallet,
			DailyPoints:    s.totals.daily.String(),
			ReferralPoints: s.totals.referral.String(),
			BonusPoints:    s.totals.bonus.String(),
		})
	}
	return ranks
}
