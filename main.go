package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/config"
	"github.com/blendpos/go-afip-client/afip/gateway"
	"github.com/blendpos/go-afip-client/afip/server"
	"github.com/blendpos/go-afip-client/afip/util"
	"github.com/blendpos/go-afip-client/afip/wsaa"
	"github.com/blendpos/go-afip-client/afip/wsfe"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		logrus.Errorf("service stopped: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	setupLogging(cfg.LogLevel)

	creds := cfg.Credentials
	logrus.Infof("Starting AFIP gateway: CUIT %s, mode %s, certificate %s", creds.CUIT, creds.Environment.Name(), creds.CertPath)

	// unusable certificate or key is fatal, like a missing CUIT
	if _, err := wsaa.LoadCMSSigner(creds.CertPath, creds.KeyPath, creds.KeyPassword, time.Now()); err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.HTTP.ClientTimeout}

	var providerOpts []afip.ProviderOption
	if store, err := afip.NewFileTicketStore(cfg.CacheDir, creds.CUIT, wsaa.DefaultService); err != nil {
		logrus.Warnf("Ticket cache disabled: %v", err)
	} else {
		providerOpts = append(providerOpts, afip.WithTicketStore(store))
	}

	acquirer := wsaa.NewAcquirer(wsaa.ConfigFromCredentials(creds, httpClient))
	tokens := afip.NewTokenProvider(acquirer.Authenticator(), providerOpts...)
	invoicer := wsfe.NewClient(creds.Environment.WSFEURL(), creds.CUIT, tokens, httpClient, wsfe.WithReprocess(cfg.Reprocess))
	gw := gateway.New(tokens, invoicer, creds.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a failed first login is not fatal: the renewal loop keeps trying
	_ = gw.Startup(ctx)
	defer gw.Shutdown()

	srv, err := server.New(server.Options{
		Addr:    cfg.HTTP.Address(),
		Service: gw,
		CUIT:    creds.CUIT,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx, cfg.HTTP.ShutdownTimeout)
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	if util.DebugEnabled() {
		lvl = logrus.DebugLevel
	}
	logrus.SetLevel(lvl)
}
