package wallet

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/coinvault/chain"
	"github.com/btcsuite/coinvault/pkg/txerr"
	"github.com/stretchr/testify/require"
)

// TestSelectCoinsMinimalPrefix checks that the selection is the shortest
// prefix reaching the target for every target up to the total.
func TestSelectCoinsMinimalPrefix(t *testing.T) {
	t.Parallel()

	addr := testAddr(t, 1)
	lists := [][]chain.UnspentOutput{
		{utxo(addr, 1, 10_000, 1)},
		{
			utxo(addr, 1, 5_000, 1), utxo(addr, 2, 1, 1),
			utxo(addr, 3, 20_000, 1), utxo(addr, 4, 700, 1),
		},
		{
			utxo(addr, 1, 100, 1), utxo(addr, 2, 100, 1),
			utxo(addr, 3, 100, 1),
		},
	}

	for _, candidates := range lists {
		total := sumUnspent(candidates)

		for target := btcutil.Amount(1); target <= total; target += 37 {
			selected, err := SelectCoins(candidates, target)
			require.NoError(t, err)
			require.NotEmpty(t, selected)

			// The selection is a prefix.
			require.Equal(t, candidates[:len(selected)], selected)

			// It reaches the target, and dropping its last
			// element does not.
			sum := sumUnspent(selected)
			require.GreaterOrEqual(t, sum, target)
			last := selected[len(selected)-1].Value
			require.Less(t, sum-last, target)
		}

		_, err := SelectCoins(candidates, total+1)
		require.True(t, txerr.IsError(err, txerr.ErrInsufficientFunds))
	}
}

// TestSelectCoinsEdgeCases checks empty lists and zero targets.
func TestSelectCoinsEdgeCases(t *testing.T) {
	t.Parallel()

	selected, err := SelectCoins(nil, 0)
	require.NoError(t, err)
	require.Empty(t, selected)

	_, err = SelectCoins(nil, 1)
	require.True(t, txerr.IsError(err, txerr.ErrInsufficientFunds))

	// The selection does not alias spare capacity of the candidates.
	addr := testAddr(t, 1)
	candidates := []chain.UnspentOutput{
		utxo(addr, 1, 10, 1), utxo(addr, 2, 10, 1),
	}
	selected, err = SelectCoins(candidates, 5)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.Equal(t, 1, cap(selected))
}

// TestCoinSelectionStrategies checks the arrangement of the deterministic
// strategies, including stability for ties.
func TestCoinSelectionStrategies(t *testing.T) {
	t.Parallel()

	addr := testAddr(t, 1)
	candidates := []chain.UnspentOutput{
		utxo(addr, 1, 300, 1),
		utxo(addr, 2, 500, 6),
		utxo(addr, 3, 300, 6),
		utxo(addr, 4, 900, 0),
	}
	original := append([]chain.UnspentOutput(nil), candidates...)

	largest, err := CoinSelectionLargest.ArrangeCoins(candidates)
	require.NoError(t, err)
	require.Equal(t, []chain.UnspentOutput{
		candidates[3], candidates[1], candidates[0], candidates[2],
	}, largest)

	oldest, err := CoinSelectionOldest.ArrangeCoins(candidates)
	require.NoError(t, err)
	require.Equal(t, []chain.UnspentOutput{
		candidates[1], candidates[2], candidates[0], candidates[3],
	}, oldest)

	// The strategies work on a copy.
	require.Equal(t, original, candidates)

	same, err := arrangeCoins(nil, candidates)
	require.NoError(t, err)
	require.Equal(t, candidates, same)
}

// TestMakeInputSource checks that the input source consumes candidates in
// order and keeps earlier inputs across calls.
func TestMakeInputSource(t *testing.T) {
	t.Parallel()

	addr := testAddr(t, 1)
	candidates := []chain.UnspentOutput{
		utxo(addr, 1, 1_000, 1),
		utxo(addr, 2, 2_000, 1),
		utxo(addr, 3, 4_000, 1),
	}
	candidates[0].PkScript = addrScript(t, addr)

	source := makeInputSource(candidates)

	total, inputs, values, scripts, err := source(500)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(1_000), total)
	require.Len(t, inputs, 1)
	require.Equal(t, candidates[0].OutPoint, inputs[0].PreviousOutPoint)
	require.Equal(t, []btcutil.Amount{1_000}, values)
	require.Equal(t, [][]byte{candidates[0].PkScript}, scripts)

	total, inputs, _, _, err = source(2_500)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(3_000), total)
	require.Len(t, inputs, 2)

	// Exhausted candidates report what is available.
	total, inputs, _, _, err = source(1_000_000)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(7_000), total)
	require.Len(t, inputs, 3)
}
