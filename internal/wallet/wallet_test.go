package wallet

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	addrB = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func TestNormalize(t *testing.T) {
	in := []Record{
		{Address: "  0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed "},
		{Address: ""},
		{Address: addrA, Name: "dup"},
		{Address: addrB, Name: " Main ", BuySlippage: decimal.RequireFromString("2.5")},
	}

	out := Normalize(in)

	require.Len(t, out, 2)
	assert.Equal(t, addrA, out[0].Address)
	assert.Equal(t, "Wallet 1", out[0].Name)
	assert.True(t, out[0].BuySlippage.Equal(DefaultSlippage))
	assert.Equal(t, addrB, out[1].Address)
	assert.Equal(t, "Main", out[1].Name)
	assert.Equal(t, "2.5", out[1].BuySlippage.String())
	assert.True(t, out[1].SellSlippage.Equal(DefaultSlippage))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := [][]Record{
		nil,
		{{Address: addrA}, {Address: addrA}},
		{{Address: " not-hex "}, {Address: addrB, Name: "b"}, {Address: "NOT-HEX"}},
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := []Record{{Address: " " + addrA + " "}}
	_ = Normalize(in)
	assert.Equal(t, " "+addrA+" ", in[0].Address)
}

func TestKeyIndexRoundTrip(t *testing.T) {
	for i := 0; i < 12; i++ {
		got, ok := Index(Key(i))
		require.True(t, ok)
		assert.Equal(t, i, got)
	}

	for _, bad := range []string{"", "w", "x1", "w-1", "w01", "wallet"} {
		_, ok := Index(bad)
		assert.False(t, ok, bad)
	}
}

func TestIndexMapAndFind(t *testing.T) {
	records := Normalize([]Record{{Address: addrA}, {Address: addrB}})

	m := IndexMap(records)
	assert.Equal(t, addrA, m["w0"].Address)
	assert.Equal(t, addrB, m["w1"].Address)

	key, ok := Find(records, "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	require.True(t, ok)
	assert.Equal(t, "w1", key)

	_, ok = Find(records, "0x0000000000000000000000000000000000000001")
	assert.False(t, ok)
}
