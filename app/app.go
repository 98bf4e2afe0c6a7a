package app

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/app/forging"
	"github.com/pocnet/pocd/infrastructure/config"
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/infrastructure/os/signal"
	"github.com/pocnet/pocd/util/panics"
	"github.com/pocnet/pocd/util/profiling"
	"github.com/pocnet/pocd/util/signing"
)

// StartApp starts the node and blocks until it is interrupted.
func StartApp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	logger.InitLog(cfg.LogFile, cfg.ErrLogFile)
	defer logger.BackendLog.Close()
	defer panics.HandlePanic(log, "MAIN", nil)

	// The passphrase prompt comes before anything else holds the terminal.
	var forgingKey *signing.KeyPair
	if cfg.Forging {
		forgingKey, err = loadForgingKey(cfg.MnemonicFile)
		if err != nil {
			log.Errorf("%+v", err)
			return err
		}
	}

	ctx, stop := signal.InterruptListener(context.Background())
	defer stop()

	return run(ctx, cfg, forgingKey)
}

func run(ctx context.Context, cfg *config.Config, forgingKey *signing.KeyPair) error {
	log.Infof("Starting pocd on %s", cfg.NetParams().Name)

	if cfg.Profile != "" {
		profiler, err := profiling.Start(cfg.Profile, log)
		if err != nil {
			log.Errorf("%+v", err)
			return err
		}
		defer profiler.Stop()
	}

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		log.Errorf("Loading database failed: %+v", err)
		return err
	}
	defer func() {
		log.Infof("Gracefully shutting down the database...")
		err := db.Close()
		if err != nil {
			log.Errorf("Failed to close the database: %s", err)
		}
	}()

	componentManager, err := NewComponentManager(cfg, db, forgingKey)
	if err != nil {
		log.Errorf("Unable to start pocd: %+v", err)
		return err
	}

	if cfg.ForceScan {
		err := componentManager.Consensus().Scan(0, cfg.ForceValidate)
		if err != nil {
			log.Criticalf("Forced rescan failed: %+v", err)
			return errors.Wrap(err, "forced rescan failed")
		}
	}

	defer componentManager.Stop()
	err = componentManager.Start(ctx)
	if err != nil {
		log.Errorf("Unable to start pocd: %+v", err)
		return err
	}

	<-ctx.Done()
	return nil
}

func loadForgingKey(mnemonicFile string) (*signing.KeyPair, error) {
	passphrase, err := forging.ReadPassphrase("Mnemonic passphrase: ")
	if err != nil {
		return nil, err
	}
	return forging.LoadKeyPair(mnemonicFile, passphrase)
}
