// Package contractabi carries the call surface of the deployed comment
// contract. The contract itself is an opaque read/write boundary; this is
// just enough ABI to read the replay counter and delegation flag and to
// pack calldata for the five relayed entry points.
package contractabi

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	MethodGetNonce   = "getNonce"
	MethodIsApproved = "isApproved"

	MethodPostComment    = "postComment"
	MethodEditComment    = "editComment"
	MethodDeleteComment  = "deleteComment"
	MethodAddApproval    = "addApproval"
	MethodRevokeApproval = "revokeApproval"
)

const commentsJSON = `[
  {"type":"function","name":"getNonce","stateMutability":"view",
   "inputs":[{"name":"author","type":"address"},{"name":"app","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isApproved","stateMutability":"view",
   "inputs":[{"name":"author","type":"address"},{"name":"app","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"postComment","stateMutability":"nonpayable",
   "inputs":[
     {"name":"author","type":"address"},
     {"name":"app","type":"address"},
     {"name":"parentId","type":"bytes32"},
     {"name":"targetUri","type":"string"},
     {"name":"content","type":"string"},
     {"name":"metadata","type":"string[]"},
     {"name":"nonce","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"authorSignature","type":"bytes"},
     {"name":"appSignature","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"editComment","stateMutability":"nonpayable",
   "inputs":[
     {"name":"author","type":"address"},
     {"name":"app","type":"address"},
     {"name":"commentId","type":"bytes32"},
     {"name":"content","type":"string"},
     {"name":"metadata","type":"string[]"},
     {"name":"nonce","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"authorSignature","type":"bytes"},
     {"name":"appSignature","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"deleteComment","stateMutability":"nonpayable",
   "inputs":[
     {"name":"author","type":"address"},
     {"name":"app","type":"address"},
     {"name":"commentId","type":"bytes32"},
     {"name":"nonce","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"authorSignature","type":"bytes"},
     {"name":"appSignature","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"addApproval","stateMutability":"nonpayable",
   "inputs":[
     {"name":"author","type":"address"},
     {"name":"app","type":"address"},
     {"name":"nonce","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"authorSignature","type":"bytes"},
     {"name":"appSignature","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"revokeApproval","stateMutability":"nonpayable",
   "inputs":[
     {"name":"author","type":"address"},
     {"name":"app","type":"address"},
     {"name":"nonce","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"authorSignature","type":"bytes"},
     {"name":"appSignature","type":"bytes"}],
   "outputs":[]}
]`

// Comments is the parsed relay-facing ABI.
var Comments = mustParse(commentsJSON)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("contractabi: " + err.Error())
	}
	return parsed
}
