// d8cart/commands.go

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/norun9/d8cart/cart"
	"github.com/norun9/d8cart/cartstore"
	"github.com/norun9/d8cart/config"
	"github.com/norun9/d8cart/telemetry"
)

// app carries what every subcommand needs once flags and environment are parsed.
type app struct {
	envFile string
	cfg     config.Config
	log     *logrus.Logger
	logOut  io.Writer
}

func newRootCmd() *cobra.Command {
	return (&app{logOut: os.Stderr}).command()
}

// command builds the cobra tree bound to a. Flags override the environment.
func (a *app) command() *cobra.Command {
	var (
		backend    string
		sqlitePath string
		redisAddr  string
		key        string
		logLevel   string
	)

	root := &cobra.Command{
		Use:          "d8cart",
		Short:        "Device shopping cart backed by key-value storage",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("backend") {
				cfg.Backend = backend
			}
			if flags.Changed("sqlite-path") {
				cfg.SQLitePath = sqlitePath
			}
			if flags.Changed("redis-addr") {
				cfg.RedisAddr = redisAddr
			}
			if flags.Changed("key") {
				cfg.StorageKey = key
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.log = telemetry.NewLogger(cfg.LogLevel, a.logOut)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file to read before the environment")
	pf.StringVar(&backend, "backend", "", "storage backend: memory, sqlite or redis (env CART_BACKEND)")
	pf.StringVar(&sqlitePath, "sqlite-path", "", "sqlite database file (env CART_SQLITE_PATH)")
	pf.StringVar(&redisAddr, "redis-addr", "", "redis address or URL (env REDIS_ADDR)")
	pf.StringVar(&key, "key", "", "storage key holding the cart (env CART_KEY)")
	pf.StringVar(&logLevel, "log-level", "", "log level (env LOG_LEVEL)")

	root.AddCommand(
		newListCmd(a),
		newAddCmd(a),
		newIncrementCmd(a),
		newDecrementCmd(a),
		newClearCmd(a),
		newServeCmd(a),
	)
	return root
}

// openCart opens the configured backend and returns a loaded cart over it.
// The caller closes the backend.
func (a *app) openCart(ctx context.Context) (*cart.Store, cartstore.ICartStore, error) {
	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, nil, err
	}

	store := cart.NewStore(backend, cart.WithStorageKey(a.cfg.StorageKey), cart.WithLogger(a.log))
	if err := store.Load(ctx); err != nil {
		backend.Close()
		return nil, nil, err
	}
	return store, backend, nil
}

func (a *app) openBackend(ctx context.Context) (cartstore.ICartStore, error) {
	return cartstore.Open(ctx, cartstore.Options{
		Backend:    a.cfg.Backend,
		SQLitePath: a.cfg.SQLitePath,
		RedisAddr:  a.cfg.RedisAddr,
	}, a.log)
}

// withCart runs fn against the cart and prints the resulting contents.
func (a *app) withCart(cmd *cobra.Command, fn func(ctx context.Context, store *cart.Store) error) error {
	ctx := cmd.Context()
	store, backend, err := a.openCart(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := fn(ctx, store); err != nil {
		return err
	}
	return printCart(cmd.OutOrStdout(), store)
}

func printCart(out io.Writer, store *cart.Store) error {
	products := store.Products()
	if len(products) == 0 {
		_, err := fmt.Fprintln(out, "cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tQTY")
	for _, e := range products {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\n", e.ID, e.Title, e.Price, e.Quantity)
	}
	fmt.Fprintf(tw, "\t\tTOTAL ITEMS\t%d\n", store.TotalQuantity())
	return tw.Flush()
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCart(cmd, func(context.Context, *cart.Store) error { return nil })
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var p cart.Product
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one unit of a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.ID == "" {
				return errors.New("--id is required")
			}
			return a.withCart(cmd, func(ctx context.Context, store *cart.Store) error {
				return store.AddToCart(ctx, p)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.ID, "id", "", "product id")
	f.StringVar(&p.Title, "title", "", "product title")
	f.StringVar(&p.ImageURL, "image-url", "", "product image URL")
	f.Float64Var(&p.Price, "price", 0, "unit price")
	return cmd
}

func newIncrementCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "inc <id>",
		Aliases: []string{"increment"},
		Short:   "Add one unit to a product already in the cart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCart(cmd, func(ctx context.Context, store *cart.Store) error {
				return store.Increment(ctx, args[0])
			})
		},
	}
}

func newDecrementCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "dec <id>",
		Aliases: []string{"decrement"},
		Short:   "Remove one unit of a product, dropping it at zero",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCart(cmd, func(ctx context.Context, store *cart.Store) error {
				return store.Decrement(ctx, args[0])
			})
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if purge {
				return a.purge(cmd)
			}
			return a.withCart(cmd, func(ctx context.Context, store *cart.Store) error {
				return store.Clear(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "delete the storage key instead of persisting an empty cart")
	return cmd
}

// purge removes the cart's key from the backend altogether.
func (a *app) purge(cmd *cobra.Command) error {
	ctx := cmd.Context()
	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.RemoveItem(ctx, a.cfg.StorageKey); err != nil {
		return err
	}
	a.log.WithField("cart_key", a.cfg.StorageKey).Info("cart key removed")

	store := cart.NewStore(backend, cart.WithStorageKey(a.cfg.StorageKey), cart.WithLogger(a.log))
	if err := store.Load(ctx); err != nil {
		return err
	}
	return printCart(cmd.OutOrStdout(), store)
}
