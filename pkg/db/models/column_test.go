package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnDefSQL(t *testing.T) {
	col := ColumnDef{Name: "wallet", Type: "String", Codec: "ZSTD(1)"}
	assert.Equal(t, "wallet String CODEC(ZSTD(1))", col.SQL())

	col = ColumnDef{Name: "rank", Type: "UInt32"}
	assert.Equal(t, "rank UInt32", col.SQL())
}

func TestColumnsToNameList(t *testing.T) {
	assert.Equal(t, "wallet, source, block, amount, multiplier, created_at",
		ColumnsToNameList(LedgerColumns))
}

func TestLedgerEntryKey(t *testing.T) {
	e := &LedgerEntry{Wallet: "SP1AAA", Source: "ststx", Block: "0xabc"}
	assert.Equal(t, "SP1AAA|ststx|0xabc", e.Key())
}
