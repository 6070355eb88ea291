package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/meshscan/netdiscovery/internal/config"
	"github.com/meshscan/netdiscovery/internal/netdiscovery"
)

const (
	agentVersion  = "1.0.0"
	moduleVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("netdiscovery agent starting")

	v := viper.New()
	v.SetDefault("target_expiration", 60*time.Second)
	v.SetDefault("transport.timeout", 10*time.Second)
	v.SetDefault("metrics.addr", "0.0.0.0:9116")
	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			logger.Fatal("failed to load configuration", zap.Error(err))
		}
	}
	cfg := config.New(v)

	registry := prometheus.NewRegistry()
	metrics := netdiscovery.NewMetrics(registry)

	_, arpErr := exec.LookPath("arp")
	_, ipErr := exec.LookPath("ip")
	caps := netdiscovery.DetectCapabilities(arpErr == nil || ipErr == nil)

	snmpProbe := netdiscovery.NewSNMPProbe(logger)
	netbiosProbe := netdiscovery.NewNetBIOSProbe(logger, time.Second)
	pingProbe := netdiscovery.NewPingProbe(logger)
	arpProbe := netdiscovery.NewARPProbe(logger, 2*time.Second, nil)
	mdnsProbe := netdiscovery.NewMDNSProbe(logger)
	fusion := netdiscovery.NewFusion(snmpProbe, netbiosProbe, pingProbe, arpProbe, mdnsProbe, caps).
		WithMetrics(metrics)

	sender := netdiscovery.NewHTTPSender(cfg.GetString("server.url"), cfg.GetDuration("transport.timeout"))
	reporter := netdiscovery.NewReporter(sender, logger, cfg.GetString("agent.deviceid"), agentVersion, moduleVersion).
		WithMetrics(metrics)

	abortFlag := &netdiscovery.AbortFlag{}
	stopSignals := netdiscovery.WatchSignals(abortFlag, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	scheduler := netdiscovery.NewScheduler(fusion, reporter, logger, abortFlag, cfg.GetDuration("target_expiration"), metrics)
	task := netdiscovery.NewTask(logger, scheduler)

	metricsSrv := &http.Server{Addr: cfg.GetString("metrics.addr"), Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	var options []netdiscovery.Option
	if err := v.UnmarshalKey("options", &options); err != nil {
		logger.Warn("failed to decode options from configuration", zap.Error(err))
	}

	jobs, enabled := task.IsEnabled(options)
	if !enabled {
		logger.Info("netdiscovery agent has no runnable job, exiting")
	} else {
		ctx := context.Background()
		task.Run(ctx, jobs)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	logger.Info("netdiscovery agent stopped")
}
