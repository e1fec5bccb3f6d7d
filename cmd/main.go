package main

import (
	"context"
	"log"
	"os"

	"github.com/victornm/elearn/internal/app"
	"github.com/victornm/elearn/internal/config"
)

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	a, err := app.Init(c)
	if err != nil {
		log.Fatalf("Init app failed: %v", err)
	}
	defer a.Shutdown()

	cli := newCLI(a, os.Stdin, os.Stdout)
	if err := cli.Run(context.Background()); err != nil {
		log.Fatalf("CLI failed: %v", err)
	}
}

func loadConfig() (app.Config, error) {
	var c app.Config
	c.API.BaseURL = "http://localhost:7154/api"

	p := os.Getenv("CONFIG_PATH")
	if p == "" {
		return c, nil
	}

	if err := config.Load(p, &c); err != nil {
		return c, err
	}

	return c, nil
}
