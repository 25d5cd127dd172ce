// Command ursula wires one operator node's capabilities together and
// serves its HTTP surface. Configuration loading, key management at rest,
// and chain/coordinator backends are out of scope here — see SPEC_FULL.md
// §1 Non-goals — so every dependency below is either generated in-process
// or left as a construction-time parameter a real deployment would supply.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/KPrasch/nucypher/bonding"
	"github.com/KPrasch/nucypher/chain"
	"github.com/KPrasch/nucypher/operator"
	"github.com/KPrasch/nucypher/primitives"
	"github.com/KPrasch/nucypher/reencryption"
	"github.com/KPrasch/nucypher/rituals"
)

// noopBondingSupervisor restarts the work tracker after any termination
// other than context cancellation, the conservative default for a
// long-running node process.
type noopBondingSupervisor struct{}

func (noopBondingSupervisor) OnTerminate(reason bonding.TerminationReason, err error) bool {
	return reason != bonding.ReasonContextCanceled
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	signingSK, _, err := primitives.GenerateKeyPair(rand.Reader)
	if err != nil {
		sugar.Fatalw("generating signing key", "error", err)
	}
	decryptingSK, _, err := primitives.GenerateKeyPair(rand.Reader)
	if err != nil {
		sugar.Fatalw("generating decrypting key", "error", err)
	}

	auth := operator.NewAuthenticator(signingSK)
	decrypting := operator.NewDecryptingPower(decryptingSK)

	revoked, err := reencryption.LoadRevocationSet("./revocation.list")
	if err != nil {
		sugar.Fatalw("loading revocation set", "error", err)
	}
	audit, err := reencryption.OpenAuditLog("./audit.log")
	if err != nil {
		sugar.Fatalw("opening audit log", "error", err)
	}
	defer audit.Close()

	var noopChain chain.Chain // supplied by the deployment's RPC backend wiring
	reencryptor := reencryption.NewService(sugar, decryptingSK, signingSK, revoked, audit, noopChain, rand.Reader)

	var coordinator rituals.Coordinator // supplied by the deployment's on-chain coordinator client
	store := rituals.NewStore()
	var myAddress [20]byte
	engine := rituals.NewEngine(sugar, store, coordinator, decryptingSK, myAddress, rand.Reader)
	ritualist := operator.NewRitualist(engine)

	const chainID = 1
	node := operator.NewNode(sugar, auth, decrypting, ritualist, reencryptor, revoked, chainID)

	addr := node.OperatorAddress()

	var noopBondingChain bonding.Chain // supplied by the deployment's RPC backend wiring
	requirement := func(ctx context.Context) (bool, error) { return false, nil }
	tracker := bonding.NewTracker(sugar, noopBondingChain, addr, requirement, false)
	go tracker.Run(context.Background(), noopBondingSupervisor{})

	server := operator.NewServer(node)
	sugar.Infow("serving operator node", "operator_address", fmt.Sprintf("%x", addr), "addr", ":9151")
	httpServer := &http.Server{
		Addr:              ":9151",
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpServer.ListenAndServe(); err != nil {
		sugar.Fatalw("http server exited", "error", err)
	}
}
