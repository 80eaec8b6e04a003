package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/mevml/arbscan/app"
	"github.com/mevml/arbscan/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	go shutdown(cancel, quit)

	if len(os.Args) > 1 {
		workSpace := os.Args[1]
		if err := os.Chdir(workSpace); err != nil {
			panic(err)
		}
	}

	infoJson, err := os.ReadFile(config.ConfigFile)
	if err != nil {
		panic(err)
	}
	var cfg config.Config
	err = json.Unmarshal(infoJson, &cfg)
	if err != nil {
		panic(err)
	}
	if cfg.WorkSpace != "" {
		if err := os.Chdir(cfg.WorkSpace); err != nil {
			panic(err)
		}
	}

	sys := app.NewMLSystem(ctx, &cfg, nil, nil, nil)
	sys.Service()
}

func shutdown(cancel context.CancelFunc, quit chan os.Signal) {
	<-quit
	cancel()
}
