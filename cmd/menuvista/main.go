// menuvista is a terminal diner client for public menus: it negotiates
// the diner session for a menu, optionally places an order, and can
// follow order status until every order is finished.
//
// Identity and session cookies are kept under --state-dir so repeated
// runs behave like repeated visits from the same browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"menuvista-session/config"
	"menuvista-session/internal/identity"
	"menuvista-session/internal/model"
	"menuvista-session/internal/parse"
	"menuvista-session/internal/session"
	"menuvista-session/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		envFile    string
		stateDir   string
		items      []string
		currency   string
		notes      string
		watch      bool
		verbose    bool
	)

	flagSet := pflag.NewFlagSet("menuvista", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "./config/config.yaml", "path to the YAML config file (optional)")
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flagSet.StringVar(&stateDir, "state-dir", defaultStateDir(), "directory holding cookies and local storage")
	flagSet.StringArrayVarP(&items, "item", "i", nil, `cart line "id:name:qty:price[:variation:delta]" (repeatable)`)
	flagSet.StringVar(&currency, "currency", "", "order currency (default from config)")
	flagSet.StringVar(&notes, "notes", "", "notes for the kitchen")
	flagSet.BoolVarP(&watch, "watch", "w", false, "follow order status until all orders are finished")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log protocol warnings to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if flagSet.NArg() != 1 {
		printHelp(flagSet)
		return errors.New("expected exactly one menu code or menu URL")
	}
	if !verbose {
		log.SetOutput(nopWriter{})
	}

	ref, err := parse.ParseMenuRef(flagSet.Arg(0))
	if err != nil {
		return err
	}
	cart, err := parseItems(items)
	if err != nil {
		return err
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	cookiePath := filepath.Join(stateDir, "cookies.yaml")
	jar, err := storage.LoadCookieJar(cookiePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := jar.Save(cookiePath); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	localDB, err := gorm.Open(sqlite.Open(filepath.Join(stateDir, "local.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("opening local storage: %w", err)
	}
	durable, err := storage.NewDurableStore(localDB)
	if err != nil {
		return err
	}

	resolver := identity.NewResolver(
		jar.Scoped(daysToDuration(cfg.Client.DeviceCookieDays)),
		durable,
		storage.NewSessionStore(),
	)
	manager := session.NewManager(session.Options{
		API:             session.NewClient(cfg.Client.BaseURL, cfg.Client.Timeout),
		Tokens:          session.NewTokenStore(jar, daysToDuration(cfg.Client.SessionCookieDays)),
		Devices:         resolver,
		PollInterval:    cfg.Client.PollInterval,
		DefaultCurrency: cfg.Client.DefaultCurrency,
	})
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ref.Franchise != "" {
		fmt.Printf("Menu %s (%s)\n", ref.ShortCode, ref.Franchise)
	} else {
		fmt.Printf("Menu %s\n", ref.ShortCode)
	}

	s, err := manager.Open(ctx, ref.ShortCode)
	if err != nil {
		return fmt.Errorf("could not start a session: %w", err)
	}
	printOrders(s.Orders())

	if len(cart) > 0 {
		order, err := s.PlaceOrder(ctx, cart, currency, notes)
		if err != nil {
			if msg := s.LastError(); msg != "" {
				return errors.New(msg)
			}
			return err
		}
		fmt.Printf("Placed order %s: %s %.2f\n", order.OrderNumber, order.Currency, order.Total)
	}

	if watch {
		return follow(ctx, s)
	}
	return nil
}

// follow prints every order update until no order is active.
func follow(ctx context.Context, s *session.Session) error {
	updates := s.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case orders, ok := <-updates:
			if !ok {
				return nil
			}
			printOrders(orders)
			if model.ActiveCount(orders) == 0 {
				return nil
			}
		}
	}
}

func printOrders(orders []model.OrderSummary) {
	if len(orders) == 0 {
		fmt.Println("No orders yet.")
		return
	}
	for _, o := range orders {
		fmt.Printf("  %-12s %-10s %s %.2f (%d items)\n", o.OrderNumber, o.Status, o.Currency, o.Total, len(o.Items))
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg = &config.Config{}
	cfg.Client.BaseURL = os.Getenv(config.BaseURLEnv)
	cfg.ApplyDefaults()
	return cfg, nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "menuvista")
	}
	return ".menuvista"
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: menuvista [flags] <menu code or URL>\n\n")
	fmt.Fprintf(os.Stderr, "Environment:\n  %s  API base URL (overrides client.base_url)\n\nFlags:\n", config.BaseURLEnv)
	flagSet.PrintDefaults()
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
