package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"agentsend/internal/config"
	"agentsend/internal/contentstore"
	"agentsend/internal/ledger"
	"agentsend/internal/service/app"
	"agentsend/internal/storage"
	"agentsend/internal/utils/log"
	"agentsend/internal/wallet"
)

func main() {
	cfg := config.Parse()

	identity := flag.Arg(0)
	if identity == "" {
		log.Fatal("Usage: client [flags] <identity>")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	kv := storage.NewRedis(rdb)

	signer, err := wallet.NewLocalSigner()
	if err != nil {
		log.Fatal("create signer failed", zap.Error(err))
	}

	backend := newBackend(cfg, kv, identity)

	var content contentstore.Store
	if cfg.PinataJWT != "" {
		content = contentstore.NewPinata(cfg.PinataJWT, cfg.PinataGateway)
	}

	a := app.NewApp(kv, app.Options{
		Identity: identity,
		Host:     cfg.RelayHost,
		Signer:   signer,
		Backend:  backend,
		Content:  content,
	})

	ctx := context.Background()
	go func() {
		done := make(chan os.Signal, 1)
		signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
		<-done
		a.Stop()
		os.Exit(0)
	}()

	a.Run(ctx)
	a.Stop()
}

func newBackend(cfg *config.Options, kv storage.KV, identity string) ledger.Backend {
	if cfg.LedgerBackend == "chain" {
		return ledger.NewChain(ledger.ChainOptions{
			Identity: identity,
			BaseURL:  "http://" + cfg.RelayHost,
		})
	}
	return ledger.NewSimulated(kv, ledger.SimulatedOptions{
		Identity:     identity,
		ConfirmDelay: cfg.ConfirmDelay,
	})
}
