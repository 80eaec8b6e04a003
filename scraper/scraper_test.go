package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBlock = `
Opportunity #1
   Token Pair:  FOO/BAR
   Buy from:  UniswapV2  |  Sell to:  Sushiswap
   Optimal Amount:  1.5 WETH
   Gross Profit:  $150.00 (81250000000000000 wei)
   Gas Cost:  $15.00
   Flash Loan Provider:  Aave V3
   Tokens: 0x1111111111111111111111111111111111111111 0x2222222222222222222222222222222222222222
   NET PROFIT:  $120.00
   Block:  #12345
`

func TestFeedBlock(t *testing.T) {
	parser := NewParser(nil)
	opps := parser.FeedBlock(sampleBlock)
	require.Len(t, opps, 1)
	opp := opps[0]

	assert.Equal(t, "FOO/BAR", opp.Pair)
	assert.Equal(t, "FOO", opp.Token0)
	assert.Equal(t, "BAR", opp.Token1)
	assert.Equal(t, "UniswapV2", opp.BuyDex)
	assert.Equal(t, "Sushiswap", opp.SellDex)
	assert.Equal(t, 1.5, opp.OptimalAmount)
	assert.Equal(t, "WETH", opp.AmountToken)
	assert.Equal(t, 150.0, opp.GrossProfitUsd)
	assert.Equal(t, uint64(81250000000000000), opp.GrossProfitWei)
	assert.Equal(t, 15.0, opp.GasCost)
	assert.Equal(t, 120.0, opp.NetProfit)
	assert.Equal(t, uint64(12345), opp.BlockNumber)
	assert.Equal(t, "Aave V3", opp.FlashloanProvider)
	assert.Equal(t, []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	}, opp.Addresses)

	// derived fields
	assert.InDelta(t, 0.1, opp.GasRatio, 1e-9)
	assert.True(t, opp.IsCrossDex)
	assert.True(t, opp.IsUniswapV2)
	assert.False(t, opp.IsUniswapV3)
	assert.True(t, opp.IsSushiswap)
	assert.False(t, opp.Timestamp.IsZero())
}

func TestDualCompletionTrigger(t *testing.T) {
	parser := NewParser(nil)
	require.Nil(t, parser.FeedLine("Opportunity #7"))
	require.Nil(t, parser.FeedLine("Token Pair: AAA/BBB"))
	require.Nil(t, parser.FeedLine("Buy from: UniswapV3 | Sell to: Sushiswap"))
	require.Nil(t, parser.FeedLine("NET PROFIT: $42.50"))
	// terminal field pair completes the record without a new header
	opp := parser.FeedLine("Block: #999")
	require.NotNil(t, opp)
	assert.Equal(t, "AAA/BBB", opp.Pair)
	assert.Equal(t, 42.5, opp.NetProfit)
	assert.Equal(t, uint64(999), opp.BlockNumber)
	// state was consumed
	assert.Nil(t, parser.Flush())
}

func TestHeaderFinalizesPrevious(t *testing.T) {
	parser := NewParser(nil)
	parser.FeedLine("Opportunity #1")
	parser.FeedLine("Token Pair: AAA/BBB")
	parser.FeedLine("Buy from: DexA | Sell to: DexB")
	parser.FeedLine("Block: #100")
	// no net profit yet, so no emission
	opp := parser.FeedLine("Opportunity #2")
	assert.Nil(t, opp, "incomplete record must be discarded, not emitted")

	parser.FeedLine("Token Pair: CCC/DDD")
	parser.FeedLine("Buy from: DexA | Sell to: DexB")
	parser.FeedLine("NET PROFIT: $10.00")
	opp = parser.FeedLine("Block: #101")
	require.NotNil(t, opp)
	assert.Equal(t, "CCC/DDD", opp.Pair)
}

func TestLastWriteWinsExceptAddresses(t *testing.T) {
	parser := NewParser(nil)
	parser.FeedLine("Opportunity #1")
	parser.FeedLine("Token Pair: AAA/BBB")
	parser.FeedLine("Token Pair: XXX/YYY")
	parser.FeedLine("Buy from: DexA | Sell to: DexB")
	parser.FeedLine("Gas Cost: $5.00")
	parser.FeedLine("Gas Cost: $7.00")
	parser.FeedLine("0x1111111111111111111111111111111111111111")
	parser.FeedLine("0x1111111111111111111111111111111111111111")
	parser.FeedLine("NET PROFIT: $25.00")
	opp := parser.FeedLine("Block: #55")
	require.NotNil(t, opp)
	assert.Equal(t, "XXX/YYY", opp.Pair)
	assert.Equal(t, 7.0, opp.GasCost)
	// addresses accumulate, duplicates allowed
	assert.Len(t, opp.Addresses, 2)
}

func TestNonProfitableDropped(t *testing.T) {
	parser := NewParser(nil)
	parser.FeedLine("Opportunity #1")
	parser.FeedLine("Token Pair: AAA/BBB")
	parser.FeedLine("Buy from: DexA | Sell to: DexB")
	parser.FeedLine("NET PROFIT: $0.00")
	assert.Nil(t, parser.FeedLine("Block: #55"))
	assert.Nil(t, parser.Flush())
}

func TestLinesBeforeHeaderIgnored(t *testing.T) {
	parser := NewParser(nil)
	assert.Nil(t, parser.FeedLine("Token Pair: AAA/BBB"))
	assert.Nil(t, parser.FeedLine("NET PROFIT: $10.00"))
	assert.Nil(t, parser.FeedLine("Block: #1"))
	assert.Nil(t, parser.Flush())
}

func TestFeedBlockFlushesPending(t *testing.T) {
	parser := NewParser(nil)
	// the second record never sees its block number, so the end-of-input
	// flush validates and drops it
	text := `Opportunity #1
Token Pair: AAA/BBB
Buy from: DexA | Sell to: DexB
NET PROFIT: $10.00
Block: #77
Opportunity #2
Token Pair: CCC/DDD
Buy from: DexA | Sell to: DexB
NET PROFIT: $20.00`
	opps := parser.FeedBlock(text)
	require.Len(t, opps, 1, "second record misses its block number")
	assert.Equal(t, "AAA/BBB", opps[0].Pair)
}

func TestFeedBlockIdempotent(t *testing.T) {
	first := NewParser(nil).FeedBlock(sampleBlock)
	second := NewParser(nil).FeedBlock(sampleBlock)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	a, b := *first[0], *second[0]
	a.Timestamp = b.Timestamp
	assert.Equal(t, a, b)
}

func TestFeedLineNeverPanics(t *testing.T) {
	parser := NewParser(nil)
	lines := []string{
		"", "   ", "garbage", "Opportunity #", "Opportunity #abc",
		"NET PROFIT: $-5", "Block: #notanumber", "Token Pair: /",
		"Gross Profit: $1.0 (notwei wei)",
	}
	for _, line := range lines {
		assert.Nil(t, parser.FeedLine(line))
	}
}
