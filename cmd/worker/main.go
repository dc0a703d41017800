package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/absnotary/internal/worker"
	"github.com/dmitrijs2005/absnotary/internal/worker/config"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := worker.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
