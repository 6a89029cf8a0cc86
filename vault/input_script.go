// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/coinvault/multisig"
	"github.com/btcsuite/coinvault/pkg/txerr"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// State is the signing progress of a single vault input.
type State uint8

const (
	// StateSetup is an input with every signature slot empty.
	StateSetup State = iota

	// StatePartiallySigned is an input with at least one but fewer than
	// the required number of signatures.
	StatePartiallySigned

	// StateComplete is an input holding the required number of
	// signatures in compact form.
	StateComplete
)

// String returns a human readable name for the state.
func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StatePartiallySigned:
		return "partially signed"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// InputScript is the decoded scriptSig of a vault input.
//
// While signing is in progress the scriptSig holds one slot per key of the
// redeem script, in key order:
//
//	OP_0 <slot 1> ... <slot n> <redeem script>
//
// where empty slots are OP_0. Once the threshold is reached the slots are
// compacted to the signature list expected by OP_CHECKMULTISIG:
//
//	OP_0 <sig 1> ... <sig k> <redeem script>
type InputScript struct {
	// Script is the parsed redeem script.
	Script *multisig.Script

	// RedeemScript is the serialized redeem script as found in the input.
	RedeemScript []byte

	// Slots holds a signature per key in key order. It is nil once the
	// input has been compacted.
	Slots []fn.Option[[]byte]

	// Signatures holds the compacted signatures of a complete input.
	Signatures [][]byte
}

// newInputScript returns an input script with every slot empty.
func newInputScript(script *multisig.Script, redeem []byte) *InputScript {
	slots := make([]fn.Option[[]byte], script.NumKeys())
	for i := range slots {
		slots[i] = fn.None[[]byte]()
	}

	return &InputScript{
		Script:       script,
		RedeemScript: redeem,
		Slots:        slots,
	}
}

// NumSignatures returns the number of signatures held by the input.
func (s *InputScript) NumSignatures() int {
	if s.Slots == nil {
		return len(s.Signatures)
	}

	filled := 0
	for _, slot := range s.Slots {
		if slot.IsSome() {
			filled++
		}
	}

	return filled
}

// State reports the signing progress of the input.
func (s *InputScript) State() State {
	filled := s.NumSignatures()

	switch {
	case filled >= s.Script.Required:
		return StateComplete
	case filled == 0:
		return StateSetup
	default:
		return StatePartiallySigned
	}
}

// compact replaces the slots with the first Required signatures in key
// order.
func (s *InputScript) compact() {
	if s.Slots == nil {
		return
	}

	sigs := make([][]byte, 0, s.Script.Required)
	for _, slot := range s.Slots {
		if len(sigs) == s.Script.Required {
			break
		}

		slot.WhenSome(func(sig []byte) {
			sigs = append(sigs, sig)
		})
	}

	s.Slots = nil
	s.Signatures = sigs
}

// SigScript serializes the input script.
func (s *InputScript) SigScript() ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_0)

	if s.Slots == nil {
		for _, sig := range s.Signatures {
			builder.AddData(sig)
		}
	} else {
		for _, slot := range s.Slots {
			builder.AddData(slot.UnwrapOr(nil))
		}
	}

	builder.AddData(s.RedeemScript)

	script, err := builder.Script()
	if err != nil {
		return nil, txerr.New(
			txerr.ErrMalformedScript, "unable to build input script",
			err,
		)
	}

	return script, nil
}

// ParseInputScript decodes the scriptSig of a vault input. A script with n
// elements between the dummy element and the redeem script uses the slot
// layout, one with k < n non-empty elements the compact layout. Anything
// else is rejected with ErrMalformedScript.
func ParseInputScript(sigScript []byte) (*InputScript, error) {
	malformed := func(format string, args ...any) error {
		return txerr.Newf(txerr.ErrMalformedScript, format, args...)
	}

	var (
		pushes    [][]byte
		tokenizer = txscript.MakeScriptTokenizer(0, sigScript)
	)
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		if op != txscript.OP_0 && op > txscript.OP_PUSHDATA4 {
			return nil, malformed("non-push opcode %x in input "+
				"script", op)
		}

		pushes = append(pushes, tokenizer.Data())
	}
	if err := tokenizer.Err(); err != nil {
		return nil, txerr.New(
			txerr.ErrMalformedScript, "unable to parse input script",
			err,
		)
	}

	// The dummy element and the redeem script are always present.
	if len(pushes) < 2 {
		return nil, malformed("input script has %d elements",
			len(pushes))
	}

	if len(pushes[0]) != 0 {
		return nil, malformed("first element must be empty")
	}

	redeem := pushes[len(pushes)-1]
	script, err := multisig.ParseRedeemScript(redeem)
	if err != nil {
		return nil, err
	}

	elems := pushes[1 : len(pushes)-1]
	switch {
	case len(elems) == script.NumKeys():
		input := newInputScript(script, redeem)
		for i, elem := range elems {
			if len(elem) > 0 {
				input.Slots[i] = fn.Some(elem)
			}
		}

		return input, nil

	case len(elems) == script.Required && script.Required < script.NumKeys():
		for i, elem := range elems {
			if len(elem) == 0 {
				return nil, malformed("empty signature %d in "+
					"complete input", i)
			}
		}

		return &InputScript{
			Script:       script,
			RedeemScript: redeem,
			Signatures:   elems,
		}, nil

	default:
		return nil, malformed("input script has %d signature "+
			"elements for a %d-of-%d redeem script", len(elems),
			script.Required, script.NumKeys())
	}
}
