package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract ABIs for the HakiChain contracts. Tuple component names must stay
// in step with the Go structs in types.go: go-ethereum maps them by position
// and by abi.ToCamelCase name.

// BountyRegistryABI is the ABI for the BountyRegistry contract
const BountyRegistryABI = `[
	{
		"type": "function",
		"name": "upsertBounty",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "bountyId", "type": "uint256"},
			{"name": "metadataUri", "type": "string"},
			{"name": "active", "type": "bool"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "linkBountyProofs",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "bountyId", "type": "uint256"},
			{"name": "storyAssetId", "type": "string"},
			{"name": "icpCanisterId", "type": "string"},
			{"name": "dagProofHash", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "registerSubmission",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "bountyId", "type": "uint256"},
			{"name": "docId", "type": "string"},
			{"name": "storyAssetId", "type": "string"},
			{"name": "icpCanisterId", "type": "string"},
			{"name": "dagProofHash", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getBounty",
		"stateMutability": "view",
		"inputs": [{"name": "bountyId", "type": "uint256"}],
		"outputs": [{
			"name": "",
			"type": "tuple",
			"components": [
				{"name": "creator", "type": "address"},
				{"name": "metadataUri", "type": "string"},
				{"name": "storyAssetId", "type": "string"},
				{"name": "icpCanisterId", "type": "string"},
				{"name": "dagProofHash", "type": "string"},
				{"name": "active", "type": "bool"}
			]
		}]
	},
	{
		"type": "function",
		"name": "getSubmissionCount",
		"stateMutability": "view",
		"inputs": [{"name": "bountyId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "getSubmission",
		"stateMutability": "view",
		"inputs": [
			{"name": "bountyId", "type": "uint256"},
			{"name": "index", "type": "uint256"}
		],
		"outputs": [{
			"name": "",
			"type": "tuple",
			"components": [
				{"name": "submitter", "type": "address"},
				{"name": "docId", "type": "string"},
				{"name": "storyAssetId", "type": "string"},
				{"name": "icpCanisterId", "type": "string"},
				{"name": "dagProofHash", "type": "string"},
				{"name": "timestamp", "type": "uint256"}
			]
		}]
	},
	{
		"type": "event",
		"name": "BountyCreated",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "bountyId", "type": "uint256"},
			{"indexed": true, "name": "creator", "type": "address"},
			{"indexed": false, "name": "metadataUri", "type": "string"}
		]
	},
	{
		"type": "event",
		"name": "BountyStatusUpdated",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "bountyId", "type": "uint256"},
			{"indexed": false, "name": "active", "type": "bool"}
		]
	},
	{
		"type": "event",
		"name": "BountyProofsLinked",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "bountyId", "type": "uint256"},
			{"indexed": false, "name": "storyAssetId", "type": "string"},
			{"indexed": false, "name": "icpCanisterId", "type": "string"},
			{"indexed": false, "name": "dagProofHash", "type": "string"}
		]
	},
	{
		"type": "event",
		"name": "SubmissionRegistered",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "bountyId", "type": "uint256"},
			{"indexed": true, "name": "submitter", "type": "address"},
			{"indexed": false, "name": "docId", "type": "string"},
			{"indexed": false, "name": "storyAssetId", "type": "string"},
			{"indexed": false, "name": "icpCanisterId", "type": "string"},
			{"indexed": false, "name": "dagProofHash", "type": "string"}
		]
	}
]`

// BountyEscrowABI is the ABI for the native-currency BountyEscrow contract
const BountyEscrowABI = `[
	{
		"type": "function",
		"name": "createEscrow",
		"stateMutability": "payable",
		"inputs": [
			{"name": "bountyId", "type": "uint256"},
			{"name": "beneficiary", "type": "address"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "anchorDagProof",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "bountyId", "type": "uint256"},
			{"name": "dagProofHash", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "release",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "bountyId", "type": "uint256"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "refund",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "bountyId", "type": "uint256"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getEscrow",
		"stateMutability": "view",
		"inputs": [{"name": "bountyId", "type": "uint256"}],
		"outputs": [{
			"name": "",
			"type": "tuple",
			"components": [
				{"name": "funder", "type": "address"},
				{"name": "beneficiary", "type": "address"},
				{"name": "amount", "type": "uint256"},
				{"name": "dagProofHash", "type": "string"},
				{"name": "released", "type": "bool"},
				{"name": "refunded", "type": "bool"},
				{"name": "createdAt", "type": "uint256"},
				{"name": "finalizedAt", "type": "uint256"}
			]
		}]
	},
	{
		"type": "event",
		"name": "EscrowCreated",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "bountyId", "type": "uint256"},
			{"indexed": true, "name": "funder", "type": "address"},
			{"indexed": true, "name": "beneficiary", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		]
	},
	{
		"type": "event",
		"name": "DagProofAnchored",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "bountyId", "type": "uint256"},
			{"indexed": false, "name": "dagProofHash", "type": "string"}
		]
	},
	{
		"type": "event",
		"name": "EscrowReleased",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "bountyId", "type": "uint256"},
			{"indexed": true, "name": "beneficiary", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		]
	},
	{
		"type": "event",
		"name": "EscrowRefunded",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "bountyId", "type": "uint256"},
			{"indexed": true, "name": "funder", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		]
	}
]`

// HakiTokenABI is the ABI for the HAKI ERC20 token with provenance logging
const HakiTokenABI = `[
	{
		"type": "function",
		"name": "mintWithProvenance",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "storyAssetId", "type": "string"},
			{"name": "icpCanisterId", "type": "string"},
			{"name": "dagProofHash", "type": "string"},
			{"name": "workflowTag", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "provenanceByWorkflow",
		"stateMutability": "view",
		"inputs": [{"name": "workflowId", "type": "bytes32"}],
		"outputs": [{
			"name": "",
			"type": "tuple",
			"components": [
				{"name": "storyAssetId", "type": "string"},
				{"name": "icpCanisterId", "type": "string"},
				{"name": "dagProofHash", "type": "string"},
				{"name": "mintedAmount", "type": "uint256"},
				{"name": "timestamp", "type": "uint256"}
			]
		}]
	},
	{
		"type": "function",
		"name": "grantMinterRole",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "account", "type": "address"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "revokeMinterRole",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "account", "type": "address"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "hasRole",
		"stateMutability": "view",
		"inputs": [
			{"name": "role", "type": "bytes32"},
			{"name": "account", "type": "address"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "MINTER_ROLE",
		"stateMutability": "pure",
		"inputs": [],
		"outputs": [{"name": "", "type": "bytes32"}]
	},
	{
		"type": "function",
		"name": "balanceOf",
		"stateMutability": "view",
		"inputs": [{"name": "account", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "totalSupply",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "event",
		"name": "ProvenanceLogged",
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "workflowId", "type": "bytes32"},
			{"indexed": true, "name": "to", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "storyAssetId", "type": "string"},
			{"indexed": false, "name": "icpCanisterId", "type": "string"},
			{"indexed": false, "name": "dagProofHash", "type": "string"}
		]
	}
]`

var (
	registryABI = mustParseABI(BountyRegistryABI)
	escrowABI   = mustParseABI(BountyEscrowABI)
	tokenABI    = mustParseABI(HakiTokenABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("chain: invalid contract ABI: " + err.Error())
	}
	return parsed
}
