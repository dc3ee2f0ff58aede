package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"agentsend/internal/cryptographic/keys"
	"agentsend/internal/model"
	"agentsend/internal/storage"
	"agentsend/internal/utils/log"
	"agentsend/internal/wallet"
)

// demoBalance seeds an empty account so the demo can send immediately.
var demoBalance = model.NewAmount(1000)

// ensureKeys loads the account's key pair from local storage, deriving it
// from a fresh wallet signature of the fixed challenge when none is stored.
func (c *App) ensureKeys(ctx context.Context) (model.KeyPair, error) {
	ring := keys.NewKeyring(c.kv)
	kp, err := ring.Load(ctx, c.identity)
	if err == nil {
		log.Info("loaded existing encryption keys")
		return kp, nil
	}
	if !errors.Is(err, storage.ErrKeyNotFound) {
		return model.KeyPair{}, err
	}

	material, err := c.signer.Sign(wallet.KeyDerivationChallenge)
	if err != nil {
		return model.KeyPair{}, err
	}
	kp, err = keys.Derive(material)
	if err != nil {
		return model.KeyPair{}, err
	}
	if err := ring.Store(ctx, c.identity, kp); err != nil {
		return model.KeyPair{}, err
	}
	log.Info("encryption keys derived and stored",
		zap.String("public_key", kp.PublicKeyString()[:16]+"..."))
	return kp, nil
}

func (c *App) ensureDemoBalance(ctx context.Context) {
	bal := c.backend.Balance()
	if bal.Current.Sign() > 0 || bal.Pending.Sign() > 0 {
		return
	}
	if _, err := c.backend.Fund(ctx, demoBalance.Clone()); err != nil {
		log.Warn("seed demo balance failed", zap.Error(err))
	}
}
