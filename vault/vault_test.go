package vault

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/coinvault/multisig"
	"github.com/btcsuite/coinvault/pkg/txerr"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	fundingValue = 1_000_000
	spendValue   = 900_000
)

// testKeys returns n deterministic private keys.
func testKeys(n int) []*btcec.PrivateKey {
	keys := make([]*btcec.PrivateKey, 0, n)
	for i := 0; i < n; i++ {
		priv, _ := btcec.PrivKeyFromBytes(
			bytes.Repeat([]byte{byte(i + 1)}, 32),
		)
		keys = append(keys, priv)
	}

	return keys
}

// vaultFixture is a funded k-of-n vault and an unsigned spend from it.
type vaultFixture struct {
	keys     []*btcec.PrivateKey
	redeem   []byte
	unsigned *wire.MsgTx
	prevOuts *txscript.MultiPrevOutFetcher
}

// newVaultFixture funds numInputs vault outputs and returns an unsigned
// transaction spending all of them to a single output.
func newVaultFixture(t *testing.T, n, required,
	numInputs int) *vaultFixture {

	t.Helper()

	keys := testKeys(n)
	pubKeys := make([]*btcec.PublicKey, 0, n)
	for _, key := range keys {
		pubKeys = append(pubKeys, key.PubKey())
	}

	script, err := multisig.NewScript(pubKeys, required)
	require.NoError(t, err)

	redeem, err := script.RedeemScript()
	require.NoError(t, err)

	addr, err := script.Address(&chaincfg.RegressionNetParams)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	funding := wire.NewMsgTx(wire.TxVersion)
	funding.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(&chainhash.Hash{9}, 0), nil, nil,
	))
	for i := 0; i < numInputs; i++ {
		funding.AddTxOut(wire.NewTxOut(fundingValue, pkScript))
	}
	fundingHash := funding.TxHash()

	destAddr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(keys[0].PubKey().SerializeCompressed()),
		&chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)

	destScript, err := txscript.PayToAddrScript(destAddr)
	require.NoError(t, err)

	prevOuts := make(map[wire.OutPoint]*wire.TxOut, numInputs)
	unsigned := wire.NewMsgTx(wire.TxVersion)
	for i := 0; i < numInputs; i++ {
		outPoint := wire.NewOutPoint(&fundingHash, uint32(i))
		unsigned.AddTxIn(wire.NewTxIn(outPoint, nil, nil))
		prevOuts[*outPoint] = funding.TxOut[i]
	}
	unsigned.AddTxOut(wire.NewTxOut(
		spendValue*int64(numInputs), destScript,
	))

	return &vaultFixture{
		keys:     keys,
		redeem:   redeem,
		unsigned: unsigned,
		prevOuts: txscript.NewMultiPrevOutFetcher(prevOuts),
	}
}

// serialize returns the legacy encoding of tx.
func serialize(t *testing.T, tx *wire.MsgTx) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, tx.SerializeNoWitness(&buf))

	return buf.Bytes()
}

// signAll applies the signers in order and returns the final transaction.
func signAll(t *testing.T, tx *wire.MsgTx,
	signers []*btcec.PrivateKey) *wire.MsgTx {

	t.Helper()

	for _, key := range signers {
		result, err := SignOneSigner(tx, key, nil)
		require.NoError(t, err)
		tx = result.Tx
	}

	return tx
}

// permutations returns every ordering of the indices [0, n).
func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}

	var result [][]int
	for _, perm := range permutations(n - 1) {
		for pos := 0; pos <= len(perm); pos++ {
			next := make([]int, 0, n)
			next = append(next, perm[:pos]...)
			next = append(next, n-1)
			next = append(next, perm[pos:]...)
			result = append(result, next)
		}
	}

	return result
}

// TestSetup checks that every input receives an empty slot layout and that
// the passed transaction is left alone.
func TestSetup(t *testing.T) {
	t.Parallel()

	f := newVaultFixture(t, 3, 2, 2)
	before := serialize(t, f.unsigned)

	tx, err := Setup(f.unsigned, f.redeem)
	require.NoError(t, err)
	require.Equal(t, before, serialize(t, f.unsigned))

	for _, txIn := range tx.TxIn {
		// OP_0 x (n+1) followed by the redeem script push.
		expected := append(
			[]byte{0, 0, 0, 0, txscript.OP_PUSHDATA1,
				byte(len(f.redeem))},
			f.redeem...,
		)
		require.Equal(t, expected, txIn.SignatureScript)

		input, err := ParseInputScript(txIn.SignatureScript)
		require.NoError(t, err)
		require.Equal(t, StateSetup, input.State())
		require.Len(t, input.Slots, 3)
		require.Zero(t, input.NumSignatures())
	}

	states, err := InputStates(tx)
	require.NoError(t, err)
	require.Equal(t, []State{StateSetup, StateSetup}, states)

	_, err = Setup(f.unsigned, []byte{txscript.OP_CHECKSIG})
	require.True(t, txerr.IsError(err, txerr.ErrMalformedScript))
}

// TestTwoOfThreeEndToEnd signs a 2-of-3 vault spend with A then B and checks
// that C is a no-op afterwards.
func TestTwoOfThreeEndToEnd(t *testing.T) {
	t.Parallel()

	for _, order := range [][]int{{0, 1}, {1, 0}} {
		f := newVaultFixture(t, 3, 2, 1)
		require.Equal(t, int64(spendValue), f.unsigned.TxOut[0].Value)

		tx, err := Setup(f.unsigned, f.redeem)
		require.NoError(t, err)

		first, err := SignOneSigner(tx, f.keys[order[0]], nil)
		require.NoError(t, err)
		require.Equal(t, []bool{true}, first.Changed)

		states, err := InputStates(first.Tx)
		require.NoError(t, err)
		require.Equal(t, []State{StatePartiallySigned}, states)

		// The partially signed input must not validate yet.
		require.Error(t, Validate(first.Tx, f.prevOuts))

		second, err := SignOneSigner(first.Tx, f.keys[order[1]], nil)
		require.NoError(t, err)
		require.Equal(t, []bool{true}, second.Changed)

		complete, err := IsComplete(second.Tx)
		require.NoError(t, err)
		require.True(t, complete)
		require.NoError(t, Validate(second.Tx, f.prevOuts))

		third, err := SignOneSigner(second.Tx, f.keys[2], nil)
		require.NoError(t, err)
		require.Equal(t, []bool{false}, third.Changed)
		require.Zero(t, third.NumChanged())
		require.Equal(t, serialize(t, second.Tx), serialize(t, third.Tx))
	}
}

// TestSignConvergence checks that any ordering of the same set of threshold
// signers yields a byte-identical transaction, and that later signers are
// no-ops.
func TestSignConvergence(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		n        int
		required int
		signers  []int
	}{
		{name: "2-of-3 AB", n: 3, required: 2, signers: []int{0, 1}},
		{name: "2-of-3 AC", n: 3, required: 2, signers: []int{0, 2}},
		{name: "2-of-3 BC", n: 3, required: 2, signers: []int{1, 2}},
		{name: "3-of-5", n: 5, required: 3, signers: []int{4, 1, 2}},
		{name: "3-of-3", n: 3, required: 3, signers: []int{0, 1, 2}},
		{name: "1-of-2", n: 2, required: 1, signers: []int{1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newVaultFixture(t, tc.n, tc.required, 2)
			tx, err := Setup(f.unsigned, f.redeem)
			require.NoError(t, err)

			var want []byte
			for _, perm := range permutations(len(tc.signers)) {
				signers := make([]*btcec.PrivateKey, 0, len(perm))
				for _, idx := range perm {
					signers = append(
						signers, f.keys[tc.signers[idx]],
					)
				}

				got := signAll(t, tx, signers)
				if want == nil {
					want = serialize(t, got)
					require.NoError(t, Validate(got, f.prevOuts))
				}
				require.Equal(t, want, serialize(t, got))

				// Every remaining key is a no-op.
				for _, key := range f.keys {
					result, err := SignOneSigner(got, key, nil)
					require.NoError(t, err)
					require.Zero(t, result.NumChanged())
				}
			}
		})
	}
}

// TestSignIdempotent checks that signing twice with the same key before the
// threshold is reached changes nothing.
func TestSignIdempotent(t *testing.T) {
	t.Parallel()

	f := newVaultFixture(t, 3, 2, 1)
	tx, err := Setup(f.unsigned, f.redeem)
	require.NoError(t, err)

	first, err := SignOneSigner(tx, f.keys[1], nil)
	require.NoError(t, err)

	again, err := SignOneSigner(first.Tx, f.keys[1], nil)
	require.NoError(t, err)
	require.Equal(t, []bool{false}, again.Changed)
	require.Equal(t, serialize(t, first.Tx), serialize(t, again.Tx))

	// The setup transaction was not modified by signing.
	states, err := InputStates(tx)
	require.NoError(t, err)
	require.Equal(t, []State{StateSetup}, states)
}

// TestSignForeignKey checks that a key outside the redeem script is a no-op.
func TestSignForeignKey(t *testing.T) {
	t.Parallel()

	f := newVaultFixture(t, 3, 2, 1)
	tx, err := Setup(f.unsigned, f.redeem)
	require.NoError(t, err)

	foreign, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x7f}, 32))
	result, err := SignOneSigner(tx, foreign, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{false}, result.Changed)
}

// TestSignCompactsFullSlotLayout checks that a slot layout already holding
// enough signatures is compacted by the next signer.
func TestSignCompactsFullSlotLayout(t *testing.T) {
	t.Parallel()

	f := newVaultFixture(t, 3, 2, 1)
	tx, err := Setup(f.unsigned, f.redeem)
	require.NoError(t, err)

	input, err := ParseInputScript(tx.TxIn[0].SignatureScript)
	require.NoError(t, err)

	signer := TxScriptSigner{}
	for _, idx := range []int{0, 2} {
		sig, err := signer.SignInput(tx, 0, f.redeem, f.keys[idx])
		require.NoError(t, err)

		slot := input.Script.IndexOf(f.keys[idx].PubKey())
		input.Slots[slot] = fn.Some(sig)
	}

	sigScript, err := input.SigScript()
	require.NoError(t, err)
	tx.TxIn[0].SignatureScript = sigScript

	result, err := SignOneSigner(tx, f.keys[1], nil)
	require.NoError(t, err)
	require.Equal(t, []bool{true}, result.Changed)
	require.NoError(t, Validate(result.Tx, f.prevOuts))

	compacted, err := ParseInputScript(result.Tx.TxIn[0].SignatureScript)
	require.NoError(t, err)
	require.Nil(t, compacted.Slots)
	require.Len(t, compacted.Signatures, 2)
}

// mockSigner is a testify mock of Signer.
type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) SignInput(tx *wire.MsgTx, idx int, subScript []byte,
	privKey *btcec.PrivateKey) ([]byte, error) {

	args := m.Called(tx, idx, subScript, privKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

// TestSignSignerFailure checks that signing failures are collaborator
// failures and that no partial result is returned.
func TestSignSignerFailure(t *testing.T) {
	t.Parallel()

	f := newVaultFixture(t, 3, 2, 1)
	tx, err := Setup(f.unsigned, f.redeem)
	require.NoError(t, err)

	errSign := errors.New("hsm offline")
	signer := &mockSigner{}
	signer.On("SignInput", mock.Anything, 0, f.redeem, f.keys[0]).Return(
		nil, errSign,
	).Once()

	result, err := SignOneSigner(tx, f.keys[0], signer)
	require.Nil(t, result)
	require.ErrorIs(t, err, errSign)
	require.True(t, txerr.IsError(err, txerr.ErrCollaboratorFailure))
	signer.AssertExpectations(t)
}

// TestSignMalformedInput checks that a non-vault input aborts signing.
func TestSignMalformedInput(t *testing.T) {
	t.Parallel()

	f := newVaultFixture(t, 3, 2, 1)

	_, err := SignOneSigner(f.unsigned, f.keys[0], nil)
	require.True(t, txerr.IsError(err, txerr.ErrMalformedScript))

	_, err = IsComplete(f.unsigned)
	require.True(t, txerr.IsError(err, txerr.ErrMalformedScript))
}

// TestParseInputScriptMalformed checks rejection of scripts that match
// neither layout.
func TestParseInputScriptMalformed(t *testing.T) {
	t.Parallel()

	f := newVaultFixture(t, 3, 2, 1)
	sig := bytes.Repeat([]byte{0x30}, 71)

	build := func(fill func(b *txscript.ScriptBuilder)) []byte {
		b := txscript.NewScriptBuilder()
		fill(b)
		script, err := b.Script()
		require.NoError(t, err)

		return script
	}

	testCases := []struct {
		name   string
		script []byte
	}{
		{name: "empty", script: nil},
		{
			name: "only redeem",
			script: build(func(b *txscript.ScriptBuilder) {
				b.AddData(f.redeem)
			}),
		},
		{
			name: "non-empty dummy",
			script: build(func(b *txscript.ScriptBuilder) {
				b.AddData(sig).AddOp(txscript.OP_0).
					AddOp(txscript.OP_0).AddOp(txscript.OP_0).
					AddData(f.redeem)
			}),
		},
		{
			name: "too many slots",
			script: build(func(b *txscript.ScriptBuilder) {
				b.AddOp(txscript.OP_0).AddOp(txscript.OP_0).
					AddOp(txscript.OP_0).AddOp(txscript.OP_0).
					AddOp(txscript.OP_0).AddData(f.redeem)
			}),
		},
		{
			name: "compact with empty signature",
			script: build(func(b *txscript.ScriptBuilder) {
				b.AddOp(txscript.OP_0).AddData(sig).
					AddOp(txscript.OP_0).AddData(f.redeem)
			}),
		},
		{
			name: "one signature for 2-of-3",
			script: build(func(b *txscript.ScriptBuilder) {
				b.AddOp(txscript.OP_0).AddData(sig).
					AddData(f.redeem)
			}),
		},
		{
			name: "non-push opcode",
			script: build(func(b *txscript.ScriptBuilder) {
				b.AddOp(txscript.OP_0).AddOp(txscript.OP_1).
					AddOp(txscript.OP_0).AddOp(txscript.OP_0).
					AddData(f.redeem)
			}),
		},
		{
			name: "p2pkh script sig",
			script: build(func(b *txscript.ScriptBuilder) {
				b.AddData(sig).AddData(
					f.keys[0].PubKey().SerializeCompressed(),
				)
			}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseInputScript(tc.script)
			require.True(
				t, txerr.IsError(err, txerr.ErrMalformedScript),
				"got %v", err,
			)
		})
	}
}

// TestInputScriptRoundTrip checks that both layouts re-serialize to the
// bytes they were parsed from.
func TestInputScriptRoundTrip(t *testing.T) {
	t.Parallel()

	f := newVaultFixture(t, 3, 2, 1)
	tx, err := Setup(f.unsigned, f.redeem)
	require.NoError(t, err)

	partial, err := SignOneSigner(tx, f.keys[2], nil)
	require.NoError(t, err)

	complete, err := SignOneSigner(partial.Tx, f.keys[0], nil)
	require.NoError(t, err)

	for _, signed := range []*wire.MsgTx{tx, partial.Tx, complete.Tx} {
		raw := signed.TxIn[0].SignatureScript

		input, err := ParseInputScript(raw)
		require.NoError(t, err)

		again, err := input.SigScript()
		require.NoError(t, err)
		require.Equal(t, raw, again)

		var decoded wire.MsgTx
		err = decoded.Deserialize(bytes.NewReader(serialize(t, signed)))
		require.NoError(t, err)
		require.Equal(t, signed.TxHash(), decoded.TxHash())
	}
}

// TestStateString checks the state names.
func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "setup", StateSetup.String())
	require.Equal(t, "partially signed", StatePartiallySigned.String())
	require.Equal(t, "complete", StateComplete.String())
	require.Equal(t, "unknown(9)", State(9).String())
}
