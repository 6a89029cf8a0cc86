package vault

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/stretchr/testify/require"
)

// TestExportPacket checks that partial and final signatures are carried over
// into the PSBT and that the packet survives serialization.
func TestExportPacket(t *testing.T) {
	t.Parallel()

	f := newVaultFixture(t, 3, 2, 2)

	setup, err := Setup(f.unsigned, f.redeem)
	require.NoError(t, err)

	packet, err := ExportPacket(setup)
	require.NoError(t, err)
	require.Len(t, packet.Inputs, 2)
	for _, in := range packet.Inputs {
		require.Equal(t, f.redeem, in.RedeemScript)
		require.Empty(t, in.PartialSigs)
		require.Empty(t, in.FinalScriptSig)
	}

	partial, err := SignOneSigner(setup, f.keys[1], nil)
	require.NoError(t, err)

	packet, err = ExportPacket(partial.Tx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, packet.Serialize(&buf))

	decoded, err := psbt.NewFromRawBytes(&buf, false)
	require.NoError(t, err)
	require.Equal(t, setup.TxHash(), decoded.UnsignedTx.TxHash())

	for _, in := range decoded.Inputs {
		require.Len(t, in.PartialSigs, 1)
		require.Equal(
			t, f.keys[1].PubKey().SerializeCompressed(),
			in.PartialSigs[0].PubKey,
		)
	}

	complete, err := SignOneSigner(partial.Tx, f.keys[2], nil)
	require.NoError(t, err)

	packet, err = ExportPacket(complete.Tx)
	require.NoError(t, err)
	for i, in := range packet.Inputs {
		require.Empty(t, in.PartialSigs)
		require.Equal(
			t, complete.Tx.TxIn[i].SignatureScript, in.FinalScriptSig,
		)
	}

	_, err = ExportPacket(f.unsigned)
	require.Error(t, err)
}
