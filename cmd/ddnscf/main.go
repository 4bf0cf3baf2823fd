package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Travis-Britz/cfddns"
	"github.com/Travis-Britz/cfddns/internal/config"
	"github.com/Travis-Britz/cfddns/internal/dnscheck"
	"github.com/Travis-Britz/cfddns/internal/logger"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// requestTimeout bounds each outbound HTTP request of a run.
const requestTimeout = 30 * time.Second

// errRunFailed marks a failure that was already logged.
var errRunFailed = errors.New("ddns run failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newApp(os.Stdout).RunContext(ctx, os.Args)
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "ddnscf:", err)
		}
		stop()
		os.Exit(1)
	}
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      "ddnscf",
		Usage:     "keep a Cloudflare A record pointed at this host's public IPv4 address",
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "read settings from a dotenv `FILE` (the environment wins)",
			},
			&cli.BoolFlag{
				Name:  "fail-on-error",
				Usage: "exit non-zero when the update fails (overrides FAIL_ON_ERROR)",
			},
			&cli.StringFlag{
				Name:  "ip",
				Usage: "publish `ADDR` instead of asking the public IP services",
			},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "update the record once (default)",
				Action: runAction,
			},
			{
				Name:   "init",
				Usage:  "create an empty config file at CONFIG_FILE_PATH",
				Action: initAction,
			},
			{
				Name:  "show",
				Usage: "print the cached zone and record identifiers",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "json or yaml"},
				},
				Action: showAction,
			},
			{
				Name:  "lookup",
				Usage: "compare the published A record with the current public IP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Value: dnscheck.DefaultServer, Usage: "nameserver `HOST:PORT`"},
				},
				Action: lookupAction,
			},
		},
	}
}

func setup(c *cli.Context) (*config.Config, *zerolog.Logger, func() error, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, nil, nil, err
	}
	if c.IsSet("fail-on-error") {
		cfg.FailOnError = c.Bool("fail-on-error")
	}
	log, closeLog, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closeLog, nil
}

func resolver(c *cli.Context, cfg *config.Config, log *zerolog.Logger) (ddns.Resolver, error) {
	if addr := c.String("ip"); addr != "" {
		log.Debug().Str("ip", addr).Msg("using static ip")
		return ddns.FromString(addr)
	}
	return ddns.WebResolver(log, cfg.IPServicePrimary, cfg.IPServiceSecondary)
}

func runAction(c *cli.Context) error {
	cfg, log, closeLog, err := setup(c)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := run(c, cfg, log); err != nil {
		log.Error().Err(err).Msg("ddns update failed")
		if cfg.FailOnError {
			return errRunFailed
		}
	}
	return nil
}

func run(c *cli.Context, cfg *config.Config, log *zerolog.Logger) error {
	cache, err := ddns.LoadCache(cfg.CacheFile, log)
	if err != nil {
		return err
	}
	log.Debug().Str("path", cache.Path()).Msg("using config file")

	resolve := ddns.UsingWebResolver(cfg.IPServicePrimary, cfg.IPServiceSecondary)
	if addr := c.String("ip"); addr != "" {
		r, err := ddns.FromString(addr)
		if err != nil {
			return err
		}
		log.Debug().Str("ip", addr).Msg("using static ip")
		resolve = ddns.UsingResolver(r)
	}
	client, err := ddns.New(cfg.Subdomain, log,
		ddns.UsingCloudflare(cfg.Cloudflare()),
		ddns.UsingStore(cache),
		resolve,
		ddns.UsingHTTPClient(&http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   requestTimeout,
		}),
	)
	if err != nil {
		return err
	}
	return client.RunDDNS(c.Context)
}

func initAction(c *cli.Context) error {
	cfg, err := config.LoadLocal(c.String("env-file"))
	if err != nil {
		return err
	}
	if err := ddns.Provision(afero.NewOsFs(), cfg.CacheFile); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "created %s\n", cfg.CacheFile)
	return nil
}

func showAction(c *cli.Context) error {
	cfg, err := config.LoadLocal(c.String("env-file"))
	if err != nil {
		return err
	}
	nop := zerolog.Nop()
	cache, err := ddns.LoadCache(cfg.CacheFile, &nop)
	if err != nil {
		return err
	}

	doc := cache.Snapshot()
	switch format := c.String("format"); format {
	case "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(data))
	case "yaml", "yml":
		enc := yaml.NewEncoder(c.App.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return &ddns.ValidationError{Msg: "unknown format " + format}
	}
	return nil
}

func lookupAction(c *cli.Context) error {
	cfg, log, closeLog, err := setup(c)
	if err != nil {
		return err
	}
	defer closeLog()

	name := ddns.RecordName(cfg.Subdomain, cfg.Domain)
	answers, err := dnscheck.LookupA(c.Context, c.String("server"), name)
	if err != nil {
		return err
	}
	for _, a := range answers {
		fmt.Fprintf(c.App.Writer, "%s\t%s\tA\t%s\n", name, a.TTL, a.Addr)
	}
	if len(answers) == 0 {
		fmt.Fprintf(c.App.Writer, "%s has no A record at %s\n", name, c.String("server"))
	}

	r, err := resolver(c, cfg, log)
	if err != nil {
		return err
	}
	ip, err := r.Resolve(c.Context)
	if err != nil {
		return err
	}
	if dnscheck.Matches(answers, ip) {
		fmt.Fprintf(c.App.Writer, "in sync with %s\n", ip)
	} else {
		fmt.Fprintf(c.App.Writer, "out of sync: public ip is %s\n", ip)
	}
	return nil
}
