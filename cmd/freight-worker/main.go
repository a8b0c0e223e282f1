package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/FreightBox/config"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunFreightWorker(ctx, cfg, defaultWorkerFactories(), workerRunOpts{
		swaggerPath: os.Getenv("workerSwaggerPath"),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
