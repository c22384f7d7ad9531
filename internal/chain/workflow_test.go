package chain

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// encodeStrings builds abi.encode(string...) by hand: a head of offsets
// followed by length-prefixed, right-padded data.
func encodeStrings(values ...string) []byte {
	word := func(n int) []byte { return common.LeftPadBytes(big.NewInt(int64(n)).Bytes(), 32) }

	var head, tail bytes.Buffer
	offset := 32 * len(values)
	for _, v := range values {
		head.Write(word(offset))
		padded := (len(v) + 31) / 32 * 32
		tail.Write(word(len(v)))
		tail.Write(common.RightPadBytes([]byte(v), padded))
		offset += 32 + padded
	}
	return append(head.Bytes(), tail.Bytes()...)
}

func TestWorkflowID_MatchesABIEncode(t *testing.T) {
	proofs := ProofIDs{
		StoryAssetID:  "story-asset-with-a-rather-long-identifier-over-32-bytes",
		IcpCanisterID: "rrkah-fqaaa-aaaaa-aaaaq-cai",
		DagProofHash:  "",
	}
	got, err := WorkflowID("bounty-7-award", proofs)
	if err != nil {
		t.Fatal(err)
	}

	want := crypto.Keccak256Hash(encodeStrings("bounty-7-award", proofs.StoryAssetID, proofs.IcpCanisterID, proofs.DagProofHash))
	if got != want {
		t.Errorf("WorkflowID = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestWorkflowID_Distinct(t *testing.T) {
	p := testProofs()
	a, _ := WorkflowID("a", p)
	b, _ := WorkflowID("b", p)
	if a == b {
		t.Error("different tags must give different ids")
	}
	again, _ := WorkflowID("a", p)
	if a != again {
		t.Error("WorkflowID not deterministic")
	}
}

func TestMinterRole(t *testing.T) {
	want := common.HexToHash("0x9f2df0fed2c77648de5860a4cc508cd0818c85b8b8a1ab4ceeef8d981c8956a6")
	if MinterRole != want {
		t.Errorf("MinterRole = %s", MinterRole.Hex())
	}
}
