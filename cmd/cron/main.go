// Command cron runs the news collection daemon: the scheduler loop plus the
// ops HTTP surface for status and manual control.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/rest"

	"marketnews-api/internal/cli"
	"marketnews-api/internal/config"
	"marketnews-api/internal/handler"
	"marketnews-api/internal/svc"
)

const shutdownTimeout = 10 * time.Second

var configFile = flag.String("f", "etc/marketnews.yaml", "the config file")

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting news collector...")

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[main] Failed to load config: %v", err)
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*appCfg)
	if svcCtx.Scheduler == nil {
		log.Fatalf("[main] Scheduler not available: postgres DSN is required")
	}
	log.Printf("  - Providers: %v", svcCtx.Aggregator.Providers())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svcCtx.Scheduler.Start(); err != nil {
		log.Fatalf("[main] Failed to start scheduler: %v", err)
	}
	log.Printf("[main] Scheduler started, interval=%dm", appCfg.Scheduler.IntervalMinutes)

	server := rest.MustNewServer(appCfg.RestConf)
	handler.RegisterHandlers(server, svcCtx)
	go server.Start()
	log.Printf("[main] Ops API listening at %s:%d", appCfg.Host, appCfg.Port)

	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		if err := svcCtx.Scheduler.Stop(); err != nil {
			log.Printf("[main] Scheduler stop: %v", err)
		}
		server.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] Stopped cleanly")
	case <-time.After(shutdownTimeout):
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}
}
