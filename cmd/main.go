package main

import (
	"fmt"
	"log"
	"os"

	"github.com/andesco/spa-edge/handlers"
	"github.com/andesco/spa-edge/pkg/edgelib"

	"github.com/akamensky/argparse"
	"golang.org/x/term"
)

func main() {
	parser := argparse.NewParser("spa-edge", "Serves a single-page application and relays its api prefix to a backend")

	port := parser.Int("p", "port", &argparse.Options{
		Required: false,
		Help:     "Port to listen on. Overrides the PORT environment variable (default 3000)",
	})
	root := parser.String("r", "root", &argparse.Options{
		Required: false,
		Help:     "Static asset root. Overrides STATIC_ROOT (default: working directory)",
	})
	upstream := parser.String("u", "upstream", &argparse.Options{
		Required: false,
		Help:     "Backend host:port for the api prefix. Overrides UPSTREAM (default 127.0.0.1:8001)",
	})
	configPath := parser.String("c", "config", &argparse.Options{
		Required: false,
		Default:  os.Getenv("EDGE_CONFIG"),
		Help:     "YAML config file. Defaults to EDGE_CONFIG",
	})
	prefork := parser.Flag("", "prefork", &argparse.Options{
		Required: false,
		Help:     "Spawn multiple server processes",
	})
	auditOnly := parser.Flag("", "audit-only", &argparse.Options{
		Required: false,
		Help:     "Check the entry document against the CSP and exit",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg, err := edgelib.LoadConfig(*configPath, edgelib.Overrides{
		Port:       *port,
		StaticRoot: *root,
		Upstream:   *upstream,
	})
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	violations, err := cfg.Audit()
	if err != nil {
		log.Printf("WARN: Could not audit entry document: %v", err)
	}
	for _, v := range violations {
		log.Printf("WARN: CSP: %s", v)
	}
	if *auditOnly {
		if err != nil || len(violations) > 0 {
			os.Exit(1)
		}
		log.Printf("INFO: %s passes the CSP", cfg.EntryDocument)
		return
	}

	app := handlers.New(cfg, handlers.Options{
		Prefork:     *prefork,
		Interactive: term.IsTerminal(int(os.Stdout.Fd())),
	})

	log.Printf("INFO: Frontend server running at http://%s/", cfg.Addr())
	log.Printf("INFO: Proxying %s* to http://%s", cfg.APIPrefix, cfg.Upstream)
	log.Printf("INFO: CSP enabled: %s", cfg.CSPHeader())
	log.Fatal(app.Listen(cfg.Addr()))
}
