// Copyright 2024 The corenet Authors
// This file is part of the corenet library.
//
// The corenet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The corenet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the corenet library. If not, see <http://www.gnu.org/licenses/>.

// Command corenetd runs one node: it loads configuration, recovers or
// generates the node's identity, and drives the attachment supervisor
// loop (spec §4.7) until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/dbasu/corenet/attachment"
	"github.com/dbasu/corenet/clientapi"
	"github.com/dbasu/corenet/config"
	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/node"
	"github.com/dbasu/corenet/protectedstore"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a TOML configuration file, layered over the built-in defaults",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory for the table store, protected store, and node identity",
		Value: "./corenet-data",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "trace|debug|info|warn|error|crit",
		Value: "info",
	}
	whitelistTTLFlag = &cli.DurationFlag{
		Name:  "client-whitelist-ttl",
		Usage: "how long an untouched entry stays on the client whitelist before the attachment tick purges it",
		Value: 5 * time.Minute,
	}
)

func main() {
	app := &cli.App{
		Name:  "corenetd",
		Usage: "run a DHT overlay node",
		Flags: []cli.Flag{configFlag, dataDirFlag, logLevelFlag, whitelistTTLFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "corenetd:", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	setupLogging(ctx.String(logLevelFlag.Name))
	logger := log.Root()

	cfg, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	dataDir := ctx.String(dataDirFlag.Name)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("corenetd: creating data directory: %w", err)
	}

	identityCrypto := crypto.New(1)
	idStore, err := protectedstore.Open(filepath.Join(dataDir, cfg.Stores.ProtectedStoreDirectory), cfg.Stores.AllowInsecureFallback, cfg.Stores.AlwaysUseInsecureStorage)
	if err != nil {
		return fmt.Errorf("corenetd: opening protected store for identity: %w", err)
	}
	identity, err := loadOrGenerateIdentity(identityCrypto, idStore)
	if err != nil {
		return err
	}
	logger.Info("node identity", "id", identity.Key.String())

	updates := clientapi.NewPublisher()
	n, err := node.New(cfg, crypto.TypedKeyGroup{identity.Key}, dataDir, updates, logger)
	if err != nil {
		return fmt.Errorf("corenetd: building node: %w", err)
	}
	defer n.Close()

	thresholds := attachment.Thresholds{
		Weak:   cfg.Network.RoutingTable.LimitAttachedWeak,
		Good:   cfg.Network.RoutingTable.LimitAttachedGood,
		Strong: cfg.Network.RoutingTable.LimitAttachedStrong,
		Fully:  cfg.Network.RoutingTable.LimitFullyAttached,
		Over:   cfg.Network.RoutingTable.LimitOverAttached,
	}
	whitelist := attachment.NewClientWhitelist(ctx.Duration(whitelistTTLFlag.Name))
	storageHooks := attachment.StorageHooks{
		Flush:   n,
		Online:  n.NetworkMgr,
		Offline: n.Storage,
	}
	mgr := attachment.NewManager(n.RoutingTable, n, n.Receipts, whitelist, n.AddrFilter, thresholds, n.PingDue, n.RefreshPeerMinimum, storageHooks, updates, logger)

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("corenetd starting", "datadir", dataDir)
	err = mgr.Run(runCtx)
	if err != nil && err != context.Canceled {
		return fmt.Errorf("corenetd: attachment loop exited: %w", err)
	}
	logger.Info("corenetd stopped")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadConfigTOML(path)
	if err != nil {
		return nil, fmt.Errorf("corenetd: loading config: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := log.NewTerminalHandler(os.Stderr, false)
	log.SetDefault(log.NewLogger(handler))
	if lvl < slog.LevelInfo {
		log.Root().Debug("corenetd: verbose logging enabled", "level", level)
	}
}
