package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/retrade/authmesh/internal/auth/app"
	"github.com/retrade/authmesh/pkg/authsdk"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// "auth healthcheck" probes the local /livez and exits non-zero on failure.
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := healthcheck(cfg.HTTPAddr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("auth service error: %v", err)
	}
}

func healthcheck(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("bad listen address %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client := authsdk.NewSDKClient("http://" + net.JoinHostPort(host, port))
	_, err = client.GetLiveness(ctx)
	return err
}
