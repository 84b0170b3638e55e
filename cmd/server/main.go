package main

import (
	"log"

	"github.com/thereayou/notiflow/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	srv := NewServer(cfg)
	defer srv.Log.Sync()

	srv.Run(cfg.Port)
}
