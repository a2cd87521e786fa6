package orca

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

// Instruction tag of Swap in the token-swap program.
const swapInstructionTag uint8 = 1

type swapData struct {
	Instruction      uint8
	AmountIn         uint64
	MinimumAmountOut uint64
}

type swapAccounts struct {
	owner       solana.PublicKey
	source      solana.PublicKey
	poolSource  solana.PublicKey
	poolDest    solana.PublicKey
	destination solana.PublicKey
}

// swapInstruction encodes a token-swap Swap instruction. Account order is
// fixed by the program.
func (p *Pool) swapInstruction(acc swapAccounts, amountIn, minimumOut uint64) (solana.Instruction, error) {
	data, err := borsh.Serialize(swapData{
		Instruction:      swapInstructionTag,
		AmountIn:         amountIn,
		MinimumAmountOut: minimumOut,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap data: %w", err)
	}

	metas := solana.AccountMetaSlice{
		solana.Meta(p.accounts.Swap),
		solana.Meta(p.accounts.Authority),
		solana.Meta(acc.owner).SIGNER(),
		solana.Meta(acc.source).WRITE(),
		solana.Meta(acc.poolSource).WRITE(),
		solana.Meta(acc.poolDest).WRITE(),
		solana.Meta(acc.destination).WRITE(),
		solana.Meta(p.accounts.PoolMint).WRITE(),
		solana.Meta(p.accounts.FeeAccount).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}
	return solana.NewInstruction(p.accounts.Program, metas, data), nil
}
