package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/retrade/authmesh/internal/notifier/app"
	"github.com/retrade/authmesh/pkg/authsdk"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := healthcheck(cfg.HTTPAddr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize notifier: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("notifier error: %v", err)
	}
}

// healthcheck hits /livez on the local listener. The notifier serves the
// same probe shape as the auth service.
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

	_, err = authsdk.NewSDKClient("http://" + net.JoinHostPort(host, port)).GetLiveness(ctx)
	return err
}
