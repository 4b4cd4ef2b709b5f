// orchestrator.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"captain_grid_go/config"
	"captain_grid_go/engine"
	"captain_grid_go/exchange"
	"captain_grid_go/logs"
	"captain_grid_go/market"
	"captain_grid_go/metrics"
	"captain_grid_go/monitor"
	"captain_grid_go/notify"
)

// simulationWalkStep is the per-poll relative price step of the simulated market.
const simulationWalkStep = 0.0008

type Orchestrator struct {
	client     exchange.Client
	controller *engine.Controller
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	stopChan   chan struct{}
	wg         sync.WaitGroup
	cfg        *config.Config
}

func NewOrchestrator(cfg *config.Config, envCfg *config.EnvConfig) (*Orchestrator, error) {
	timeout := time.Duration(cfg.Normal.HTTPTimeoutSeconds) * time.Second

	var client exchange.Client
	if cfg.UseSimulation {
		mockClient := exchange.NewMockClient(50000, cfg.InitialBalance)
		mockClient.EnableRandomWalk(simulationWalkStep, time.Now().UnixNano())
		client = mockClient
		logs.Warnf("<<<<<<<<<< WARNING: Running in simulation mode >>>>>>>>>>")
	} else {
		client = exchange.NewAPIClient(envCfg.BaseURL, envCfg.AccountID, envCfg.ApiSecret, timeout)
		if envCfg.IsTestnet() {
			logs.Warnf("Using testnet endpoint %s", envCfg.BaseURL)
		}
	}

	var fallback market.TickerSource
	if cfg.Normal.FallbackTickerURL != "" && !cfg.UseSimulation {
		fallback = market.NewPublicTicker(cfg.Normal.FallbackTickerURL, cfg.Normal.FallbackTickerSymbol, timeout)
	}
	feed := market.NewPriceFeed(cfg.ContractID, client, fallback)

	notifier := notify.New(envCfg.SlackWebhook, timeout)
	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		client:     client,
		controller: engine.New(cfg, client, feed, notifier, m),
		notifier:   notifier,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
		stopChan:   make(chan struct{}),
		cfg:        cfg,
	}

	o.printBanner()
	if err := o.controller.Prepare(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("startup check failed: %w", err)
	}
	return o, nil
}

func (o *Orchestrator) printBanner() {
	phases := ""
	for _, p := range o.cfg.Grid.Phases {
		phases += fmt.Sprintf(" [P%d >=%.2f: %d levels @ %.4f%%]", p.Phase, p.Threshold, p.GridCount, p.IntervalPct*100)
	}
	logs.Info("==================================================")
	logs.Infof("Captain grid controller: %s (contract %s)", o.cfg.Symbol, o.cfg.ContractID)
	logs.Infof("Initial balance %.4f USDT, order budget %.2f USDT, min lot %.4f, force min %t",
		o.cfg.InitialBalance, o.cfg.Grid.OrderSizeUSDT, o.cfg.Grid.MinOrderSize, o.cfg.Grid.ForceMinOrder)
	logs.Infof("Phases:%s", phases)
	logs.Infof("Risk: volatility %.2f%%/%ds, decline %.2f%%/%ds, loss limit %.0f%%, imbalance %d, net position %.4f",
		o.cfg.Risk.VolatilityThreshold*100, o.cfg.Risk.VolatilityCheckIntervalS,
		o.cfg.Risk.GradualDeclineThreshold*100, o.cfg.Risk.GradualDeclineWindowS,
		o.cfg.Risk.LossLimit*100, o.cfg.Risk.PositionImbalanceLimit, o.cfg.Risk.MaxNetPosition)
	logs.Infof("Resume: cooldown %dm (max %dm), stability %.2f%% over %dm, min balance %.2f, force after max %t",
		o.cfg.Resume.CooldownMinutes, o.cfg.Resume.MaxCooldownMinutes, o.cfg.Resume.StabilityThreshold*100,
		o.cfg.Resume.StabilityWindowMinutes, o.cfg.Resume.MinResumeBalance, o.cfg.Resume.ForceResumeAfterMax)
	logs.Info("==================================================")
}

func (o *Orchestrator) Start() {
	if addr := o.cfg.Normal.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", o.metrics.Handler())
		o.httpServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			logs.Infof("Serving metrics on %s/metrics", addr)
			if err := o.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logs.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	interval := time.Duration(o.cfg.Risk.VolatilityCheckIntervalS) * time.Second
	heartbeat := time.Duration(o.cfg.Normal.HeartbeatIntervalMinutes) * time.Minute
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		monitor.Start(o.ctx, o.controller, interval, heartbeat, o.stopChan)
	}()

	notify.BestEffort(o.ctx, o.notifier, fmt.Sprintf("🚀 Started on %s, initial balance %.2f USDT", o.cfg.Symbol, o.cfg.InitialBalance))
	logs.Infof("Strategy %s started, press Ctrl+C to exit.", o.cfg.Symbol)
}

func (o *Orchestrator) Stop() {
	logs.Info("Received close signal, starting graceful shutdown...")

	// the loop must be idle before the ladder is cancelled
	close(o.stopChan)
	if o.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.httpServer.Shutdown(shutdownCtx); err != nil {
			logs.Errorf("Metrics server shutdown failed: %v", err)
		}
		cancel()
	}
	o.wg.Wait()

	cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Duration(o.cfg.Normal.HTTPTimeoutSeconds)*time.Second)
	defer cancel()
	if o.cfg.Normal.CancelOnExit {
		if err := o.controller.CancelAll(cleanupCtx); err != nil {
			logs.Errorf("Failed to cancel orders during shutdown: %v", err)
		} else {
			logs.Info("All open orders cancelled.")
		}
	}

	o.printFinalSummary()
	notify.BestEffort(cleanupCtx, o.notifier, fmt.Sprintf("🛑 Stopped: %s", o.controller.Heartbeat()))

	o.cancel()
	logs.Info("All services stopped successfully.")
}

func (o *Orchestrator) printFinalSummary() {
	s := o.controller.Summary()
	logs.Info("\n--- Final Session Summary ---")
	logs.Infof("Running since %s (%d balance samples)", s.Started.Format(time.RFC3339), s.Samples)
	logs.Infof("Balance: initial %.4f, current %.4f, peak %.4f USDT", s.Initial, s.Current, s.Peak)
	logs.Infof("Max drawdown: %.2f%%", s.MaxDrawdown*100)
	logs.Info("--------------------")
	logs.Infof("Session PnL: %.4f USDT", s.PnL)
	logs.Info("--------------------")
}
