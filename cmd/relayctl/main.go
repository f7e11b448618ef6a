package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/appsigner"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/chainreader"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/comments"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/relayclient"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/typedpayload"
)

const usage = "usage: relayctl payload sign|verify ... | relayctl chain resolve ... | relayctl op prepare|send --relay <url> ..."

type repeatStringFlag []string

func (r *repeatStringFlag) String() string { return strings.Join(*r, ",") }
func (r *repeatStringFlag) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	*r = append(*r, v)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fail(usage)
	}
	switch os.Args[1] {
	case "payload":
		runPayload(os.Args[2:])
	case "chain":
		runChain(os.Args[2:])
	case "op":
		runOp(os.Args[2:])
	default:
		fail(usage)
	}
}

func runPayload(args []string) {
	if len(args) < 1 {
		fail(usage)
	}
	switch args[0] {
	case "sign":
		runPayloadSign(args[1:])
	case "verify":
		runPayloadVerify(args[1:])
	default:
		fail(usage)
	}
}

func runPayloadSign(args []string) {
	fs := flag.NewFlagSet("payload sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	keyHex := fs.String("key", "", "hex-encoded app signer private key")
	kindRaw := fs.String("kind", "", "operation kind (e.g. POST_COMMENT)")
	author := fs.String("author", "", "author address")
	targetURI := fs.String("target-uri", "", "target uri (post)")
	parentID := fs.String("parent-id", "", "parent comment id, 32-byte hex (post)")
	commentID := fs.String("comment-id", "", "comment id, 32-byte hex (edit/delete)")
	content := fs.String("content", "", "comment content")
	var metadata repeatStringFlag
	fs.Var(&metadata, "metadata", "metadata entry (repeatable)")
	nonce := fs.String("nonce", "", "resolved nonce, decimal")
	deadlineUnix := fs.Int64("deadline-unix", 0, "deadline as unix seconds (0 = default window)")
	chainID := fs.Int64("chain-id", 0, "chain id")
	contract := fs.String("contract", "", "contract address")
	domainName := fs.String("domain-name", typedpayload.DefaultDomainName, "EIP-712 domain name")
	domainVersion := fs.String("domain-version", typedpayload.DefaultDomainVersion, "EIP-712 domain version")
	if err := fs.Parse(args); err != nil {
		fail(err.Error())
	}

	kind, ok := comments.ParseKind(*kindRaw)
	if !ok {
		fail("unknown --kind")
	}
	signer, err := appsigner.FromHex(*keyHex)
	if err != nil {
		fail("invalid --key")
	}
	resolvedNonce, ok := new(big.Int).SetString(strings.TrimSpace(*nonce), 10)
	if !ok {
		fail("--nonce must be a decimal integer")
	}
	if !common.IsHexAddress(*author) || !common.IsHexAddress(*contract) {
		fail("--author and --contract must be hex addresses")
	}

	req := comments.OperationRequest{
		Kind:      kind,
		Author:    common.HexToAddress(*author),
		TargetURI: *targetURI,
		ParentID:  common.HexToHash(*parentID),
		CommentID: common.HexToHash(*commentID),
		Content:   *content,
		Metadata:  []string(metadata),
		ChainID:   big.NewInt(*chainID),
		Contract:  common.HexToAddress(*contract),
	}
	if *deadlineUnix > 0 {
		req.Deadline = time.Unix(*deadlineUnix, 0).UTC()
	}

	factory := typedpayload.NewFactory(typedpayload.WithDomain(*domainName, *domainVersion))
	td, err := factory.Build(req, signer.Address(), resolvedNonce)
	if err != nil {
		fail(err.Error())
	}
	sig, digest, err := signer.SignPayload(td)
	if err != nil {
		fail(err.Error())
	}
	printJSON(map[string]any{
		"status":        "OK",
		"signer":        signer.Address().Hex(),
		"hash":          digest.Hex(),
		"signature":     hexutil.Encode(sig),
		"typed_payload": td,
	})
}

func runPayloadVerify(args []string) {
	fs := flag.NewFlagSet("payload verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	digestHex := fs.String("hash", "", "32-byte payload digest, hex")
	sigHex := fs.String("signature", "", "65-byte signature, hex")
	address := fs.String("address", "", "expected signer address")
	if err := fs.Parse(args); err != nil {
		fail(err.Error())
	}
	digestBytes, err := hexutil.Decode(strings.TrimSpace(*digestHex))
	if err != nil || len(digestBytes) != common.HashLength {
		fail("--hash must be a 32-byte hex value")
	}
	sig, err := hexutil.Decode(strings.TrimSpace(*sigHex))
	if err != nil {
		fail("--signature must be hex encoded")
	}
	if !common.IsHexAddress(*address) {
		fail("--address must be a hex address")
	}
	if !appsigner.Verify(common.BytesToHash(digestBytes), sig, common.HexToAddress(*address)) {
		printJSON(map[string]any{"status": "FAIL", "reason": "signature verification failed"})
		os.Exit(1)
	}
	printJSON(map[string]any{"status": "PASS"})
}

func runChain(args []string) {
	if len(args) < 1 || args[0] != "resolve" {
		fail(usage)
	}
	fs := flag.NewFlagSet("chain resolve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	rpcURL := fs.String("rpc", "", "JSON-RPC endpoint")
	contract := fs.String("contract", "", "contract address")
	author := fs.String("author", "", "author address")
	app := fs.String("app", "", "app signer address")
	if err := fs.Parse(args[1:]); err != nil {
		fail(err.Error())
	}
	if strings.TrimSpace(*rpcURL) == "" || !common.IsHexAddress(*contract) ||
		!common.IsHexAddress(*author) || !common.IsHexAddress(*app) {
		fail("--rpc, --contract, --author and --app are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := rpc.DialContext(ctx, *rpcURL)
	if err != nil {
		fail("dial: " + err.Error())
	}
	resolver := chainreader.New(client, common.HexToAddress(*contract))
	status, err := resolver.Resolve(ctx, common.HexToAddress(*author), common.HexToAddress(*app))
	if err != nil {
		fail(err.Error())
	}
	printJSON(map[string]any{
		"status":   "OK",
		"nonce":    status.Nonce.String(),
		"approved": status.Approved,
	})
}

// runOp drives a running relay over HTTP: prepare returns the app-signed
// payload (or submits when the author has approved), send relays an
// author-signed operation immediately.
func runOp(args []string) {
	if len(args) < 1 || (args[0] != "prepare" && args[0] != "send") {
		fail(usage)
	}
	endpoint := args[0]

	fs := flag.NewFlagSet("op "+endpoint, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	relayURL := fs.String("relay", "", "relay base URL")
	kindRaw := fs.String("kind", "", "operation kind (e.g. POST_COMMENT)")
	author := fs.String("author", "", "author address")
	targetURI := fs.String("target-uri", "", "target uri (post)")
	parentID := fs.String("parent-id", "", "parent comment id, 32-byte hex (post)")
	commentID := fs.String("comment-id", "", "comment id, 32-byte hex (edit/delete)")
	content := fs.String("content", "", "comment content")
	var metadata repeatStringFlag
	fs.Var(&metadata, "metadata", "metadata entry (repeatable)")
	deadline := fs.String("deadline", "", "deadline as unix seconds, decimal")
	submit := fs.Bool("submit-if-approved", false, "submit through the relay when approved (prepare)")
	authorSig := fs.String("author-signature", "", "author signature, hex (send)")
	idemKey := fs.String("idempotency-key", "", "idempotency key (send)")
	if err := fs.Parse(args[1:]); err != nil {
		fail(err.Error())
	}

	kind, ok := comments.ParseKind(*kindRaw)
	if !ok {
		fail("unknown --kind")
	}
	if strings.TrimSpace(*relayURL) == "" {
		fail("--relay is required")
	}

	in := relayclient.OperationInput{
		Author:           *author,
		TargetURI:        *targetURI,
		ParentID:         *parentID,
		CommentID:        *commentID,
		Content:          *content,
		Metadata:         []string(metadata),
		Deadline:         strings.TrimSpace(*deadline),
		SubmitIfApproved: *submit,
		AuthorSignature:  strings.TrimSpace(*authorSig),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	client := relayclient.New(*relayURL)

	var env *relayclient.ResultEnvelope
	var err error
	if endpoint == "prepare" {
		env, err = client.Prepare(ctx, kind, in)
	} else {
		env, err = client.Send(ctx, kind, in, *idemKey)
	}
	if err != nil {
		fail(err.Error())
	}
	printJSON(map[string]any{
		"status":     "OK",
		"request_id": env.RequestID,
		"result":     env.Result,
	})
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}

func fail(reason string) {
	printJSON(map[string]any{"status": "FAIL", "reason": reason})
	os.Exit(2)
}
