package tx

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// NativeTransfer builds a system-program transfer of lamports between two
// accounts. The sender must sign the containing transaction.
func NativeTransfer(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}

// AssetTransfer builds an SPL token transfer between two token accounts,
// authorized by the owner of the source account. Both token accounts must
// already exist on the ledger; this function encodes the instruction without
// checking, and the transaction will fail on-chain if the caller skipped
// that precondition.
func AssetTransfer(source, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	return token.NewTransferInstruction(amount, source, destination, authority, nil).Build()
}

// Draft is a transaction under construction: an ordered list of instructions
// that has not yet been anchored to a recent blockhash. Instruction order is
// preserved exactly as given, since ledger execution order is positional.
type Draft struct {
	instructions []solana.Instruction
}

// NewDraft creates a draft containing the given instructions in order.
func NewDraft(instructions ...solana.Instruction) *Draft {
	return &Draft{instructions: instructions}
}

// Add appends an instruction to the draft.
func (d *Draft) Add(in solana.Instruction) {
	d.instructions = append(d.instructions, in)
}

// Len returns the number of instructions currently in the draft.
func (d *Draft) Len() int {
	return len(d.instructions)
}

// Anchor compiles the draft into an Anchored transaction bound to the given
// recent blockhash with the given fee payer. After this point the
// instruction set is frozen; only signatures may be added.
func (d *Draft) Anchor(blockhash solana.Hash, lastValidBlockHeight uint64, feePayer solana.PublicKey) (*Anchored, error) {
	if len(d.instructions) == 0 {
		return nil, fmt.Errorf("cannot anchor an empty draft")
	}

	t, err := solana.NewTransaction(
		d.instructions,
		blockhash,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile transaction: %w", err)
	}

	n := int(t.Message.Header.NumRequiredSignatures)
	t.Signatures = make([]solana.Signature, n)

	return &Anchored{
		tx:                   t,
		feePayer:             feePayer,
		lastValidBlockHeight: lastValidBlockHeight,
		applied:              make(map[solana.PublicKey]bool, n),
	}, nil
}
