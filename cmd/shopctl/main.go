// Command shopctl is a terminal front end for the shop API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"fsanano/storefront/internal/client"
	"fsanano/storefront/internal/config"
	"fsanano/storefront/internal/logging"
	"fsanano/storefront/internal/model"
	"fsanano/storefront/internal/purchase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("shopctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "shopctl.yaml", "path to the YAML config file")
	userID := fs.String("user", "", "act as this user id (overrides config)")
	fs.Usage = func() { usage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(fs, stderr)
		return 2
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if *userID != "" {
		cfg.UserID = *userID
	}

	var uid model.ID
	if cfg.UserID != "" {
		if uid, err = model.ParseID(cfg.UserID); err != nil {
			fmt.Fprintf(stderr, "config: user id: %v\n", err)
			return 1
		}
	}

	a := &app{
		api: client.NewClient(client.Config{
			BaseURL:  cfg.APIURL,
			UserID:   uid,
			Timeout:  cfg.Timeout,
			CacheTTL: cfg.CacheTTL,
		}),
		log:    logging.New(stderr, cfg.LogLevel, "text"),
		stdout: stdout,
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		usage(fs, stderr)
		return 2
	}

	if err := cmd.run(ctx, a, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		report(stderr, err)
		return 1
	}
	return 0
}

// report prints err according to what kind of failure it is.
func report(w io.Writer, err error) {
	var (
		partial  *purchase.PartialCommitError
		invErr   *purchase.InventoryUpdateFailedError
		netErr   *client.NetworkError
		svcErr   *client.ServiceError
		usageErr *usageError
	)

	switch {
	case errors.As(err, &usageErr):
		fmt.Fprintf(w, "usage: %v\n", err)
	case errors.Is(err, purchase.ErrInvalidQuantity), errors.Is(err, purchase.ErrInvalidPrice),
		errors.Is(err, client.ErrValidation):
		fmt.Fprintf(w, "invalid input: %v\n", err)
	case errors.As(err, &partial):
		fmt.Fprintf(w, "purchase %s partially committed: stock was reserved but %s was not charged\n",
			partial.PurchaseID, partial.TotalCost)
		fmt.Fprintf(w, "  cause: %v\n", partial.Err)
		switch {
		case partial.Compensated:
			fmt.Fprintln(w, "  the reserved stock was returned")
		case partial.CompensationErr != nil:
			fmt.Fprintf(w, "  returning the stock failed: %v\n", partial.CompensationErr)
		}
	case errors.As(err, &invErr):
		fmt.Fprintf(w, "purchase failed, nothing was charged: %v\n", invErr.Err)
	case errors.As(err, &netErr):
		fmt.Fprintf(w, "network error: %v\n", netErr.Err)
	case errors.As(err, &svcErr):
		fmt.Fprintf(w, "server rejected the request (%d): %s\n", svcErr.StatusCode, svcErr.Message)
	default:
		fmt.Fprintf(w, "error: %v\n", err)
	}
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: shopctl [-config file] [-user id] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, name := range commandNames() {
		fmt.Fprintf(w, "  %-15s %s\n", name, commands[name].help)
	}
	fmt.Fprintln(w)
	fs.PrintDefaults()
}
