//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2025 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/weaviate/bulkshard/adapters/handlers/rest"
	"github.com/weaviate/bulkshard/usecases/config"
)

const startupTimeout = 60 * time.Second

func main() {
	var opts config.Flags
	logger := rest.NewLogger()

	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		logger.WithError(err).Fatal("failed to parse command line args")
	}

	serverConfig := &config.BulkShardConfig{}
	if err := serverConfig.LoadConfig(&opts, logger); err != nil {
		logger.WithField("action", "startup").WithError(err).Fatal("could not load config")
	}
	rest.ConfigureLogger(logger, serverConfig.Config.Name, serverConfig.Config.Debug)

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	appState, err := rest.MakeAppState(startupCtx, serverConfig, logger)
	cancel()
	if err != nil {
		logger.WithField("action", "startup").WithError(err).Fatal("could not initialize node")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rest.Serve(ctx, appState); err != nil {
		logger.WithField("action", "shutdown").WithError(err).Error("node stopped with error")
		os.Exit(1)
	}
}
