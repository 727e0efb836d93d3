// Command arbengine is the process entrypoint (C16): it loads configuration,
// wires every component, presents the real-mode confirmation prompt, and
// runs the engine's cycle loop until an interrupt or emergency stop.
//
// Grounded on cmd/trading-bots/main.go's load-config -> init-observability ->
// wire-engine -> signal.Notify -> graceful-shutdown shape.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/solarb/arbengine/internal/chain"
	"github.com/solarb/arbengine/internal/config"
	"github.com/solarb/arbengine/internal/engine"
	"github.com/solarb/arbengine/internal/executor"
	"github.com/solarb/arbengine/internal/mev"
	"github.com/solarb/arbengine/internal/metrics"
	"github.com/solarb/arbengine/internal/oracle"
	"github.com/solarb/arbengine/internal/opportunity"
	"github.com/solarb/arbengine/internal/registry"
	"github.com/solarb/arbengine/internal/risk"
	"github.com/solarb/arbengine/internal/wallet"
	"github.com/solarb/arbengine/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	obs, err := observability.NewProvider(cfg.Observability)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := obs.Start(ctx); err != nil {
		log.Fatalf("failed to start observability provider: %v", err)
	}
	defer obs.Stop(ctx)

	realMode := cfg.Wallet.ForceRealTransactions || promptRealMode()
	if realMode && !confirmRealMode() {
		obs.Logger.Info(ctx, "real-mode confirmation declined, exiting")
		return
	}

	var signer wallet.Signer
	if realMode {
		w, err := wallet.Load(cfg.Wallet.Path)
		if err != nil {
			obs.Logger.Error(ctx, "fatal init: wallet load failed", err)
			os.Exit(1)
		}
		signer = w
	}

	chainClient := chain.NewRPCClient(cfg.Chain, obs)

	venues, err := registry.LoadVenueList(cfg.Engine.VenueListPath)
	if err != nil {
		obs.Logger.Error(ctx, "failed to load venue list", err)
		os.Exit(1)
	}

	discoveryTokens, err := registry.ParseDiscoveryTokens(cfg.Engine.DiscoveryTokenMints)
	if err != nil {
		obs.Logger.Error(ctx, "failed to parse discovery token mints", err)
		os.Exit(1)
	}

	reg := registry.New(chainClient, venues, discoveryTokens, obs.Logger)
	or := oracle.New(cfg.Aggregator.BaseURL, cfg.Engine.MidPriceTTL, cfg.Engine.QuoteTimeout)
	finder := opportunity.New(or, cfg.Engine, cfg.Risk)
	riskEngine := risk.New(obs.Logger, cfg.Risk, cfg.Engine, 256, time.Now())

	mode := executor.ModeSimulation
	if realMode {
		mode = executor.ModeReal
	}
	relay := mev.New(cfg.Relay, cfg.Engine, cfg.Risk)
	exec := executor.New(chainClient, signer, relay, cfg.Aggregator, cfg.Engine, cfg.Risk, mode, obs.Logger)

	m := metrics.New()

	eng := engine.New(chainClient, reg, or, finder, riskEngine, exec, m, signer, obs.Logger, cfg.Engine, cfg.Risk)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		obs.Logger.Info(ctx, "shutdown signal received")
		eng.Stop()
		cancel()
	}()

	obs.Logger.Info(ctx, "arbengine starting", map[string]interface{}{"real_mode": realMode})

	if err := eng.Run(ctx); err != nil {
		obs.Logger.Error(ctx, "engine run exited with error", err)
		os.Exit(1)
	}

	obs.Logger.Info(ctx, "arbengine exited normally")
}

// promptRealMode asks the operator to pick a mode when FORCE_REAL_TRANSACTIONS
// isn't already set, mirroring §4.16's CLI menu (sim / real-with-confirmation
// / quick-scan / monitor / exit collapse here to a simple yes/no since the
// quick-scan and monitor modes are read-only variants of the same pipeline
// not otherwise modeled as a distinct engine entrypoint).
func promptRealMode() bool {
	fmt.Println("arbengine: select mode")
	fmt.Println("  1) simulation (default)")
	fmt.Println("  2) real transactions")
	fmt.Print("> ")

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line) == "2"
}

// confirmRealMode requires an explicit "yes" before any wallet material is
// loaded or any transaction is ever signed, per §4.16.
func confirmRealMode() bool {
	fmt.Print("This will submit real transactions and spend real funds. Type \"yes\" to continue: ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

