// tenantstore - administrative CLI for tenantstore deployments
//
// Inspect and maintain a record store from the command line: check
// provider health, enumerate tenant namespaces, drop kinds.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tenantstore/tenantstore"
)

func newRedisProvider(project string) (tenantstore.Provider, error) {
	addr := os.Getenv("TENANTSTORE_REDIS_ADDR")
	if addr == "" {
		return nil, fmt.Errorf("TENANTSTORE_REDIS_ADDR is required for the redis provider")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return tenantstore.NewRedisProviderWithOwnedClient(client, project), nil
}

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "ping":
		runPing(os.Args[2:])
	case "namespaces":
		runNamespaces(os.Args[2:])
	case "drop":
		runDrop(os.Args[2:])
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(2)
	}
}

func printHelp() {
	fmt.Println(`tenantstore - record store administration

Usage:
  tenantstore ping                     Check provider connectivity
  tenantstore namespaces               List known tenant namespaces
  tenantstore drop -kind NAME -tenant T  Drop every record of a kind for a tenant

Configuration is read from the environment (a .env file is honored):
  TENANTSTORE_PROJECT     project id (required)
  TENANTSTORE_PROVIDER    "datastore" (default) or "redis"
  TENANTSTORE_REDIS_ADDR  redis address for the redis provider
  TENANTSTORE_CREDENTIALS path to service account JSON (datastore)
  TENANTSTORE_ENDPOINT    custom endpoint, e.g. a local emulator`)
}

func newStore(ctx context.Context) (*tenantstore.Store, error) {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	project := os.Getenv("TENANTSTORE_PROJECT")
	if project == "" {
		return nil, fmt.Errorf("TENANTSTORE_PROJECT is required")
	}

	var provider tenantstore.Provider
	var err error
	switch os.Getenv("TENANTSTORE_PROVIDER") {
	case "redis":
		provider, err = newRedisProvider(project)
	case "", "datastore":
		provider, err = tenantstore.NewDatastoreProvider(ctx, tenantstore.DatastoreConfig{
			ProjectID:       project,
			CredentialsFile: os.Getenv("TENANTSTORE_CREDENTIALS"),
			Endpoint:        os.Getenv("TENANTSTORE_ENDPOINT"),
		})
	default:
		err = fmt.Errorf("unknown provider %q", os.Getenv("TENANTSTORE_PROVIDER"))
	}
	if err != nil {
		return nil, err
	}

	logger, err := tenantstore.NewProductionZapLogger()
	if err != nil {
		return nil, err
	}
	return tenantstore.NewStoreWithLogger(provider, tenantstore.StoreConfig{
		ProjectID:   project,
		Multitenant: true,
	}, logger)
}

func runPing(args []string) {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	timeout := fs.Duration("timeout", 10*time.Second, "Operation timeout")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := newStore(ctx)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	if _, err := store.Provider().Namespaces(ctx); err != nil {
		fatal(fmt.Errorf("provider unreachable: %w", err))
	}
	fmt.Println("ok")
}

func runNamespaces(args []string) {
	fs := flag.NewFlagSet("namespaces", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "Operation timeout")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := newStore(ctx)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	tenants, err := store.Index().All(ctx)
	if err != nil {
		fatal(err)
	}
	for _, t := range tenants {
		ns, err := store.Resolver().Of(t)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%s\t%s\n", ns.String(), t.String())
	}
	fmt.Fprintf(os.Stderr, "%d namespace(s)\n", len(tenants))
}

func runDrop(args []string) {
	fs := flag.NewFlagSet("drop", flag.ExitOnError)
	kindName := fs.String("kind", "", "Kind to drop (required)")
	tenant := fs.String("tenant", "", "Tenant value the namespace is scoped to (required)")
	timeout := fs.Duration("timeout", 5*time.Minute, "Operation timeout")
	fs.Parse(args)

	if *kindName == "" || *tenant == "" {
		fs.Usage()
		os.Exit(2)
	}
	kind, err := tenantstore.NewKind(*kindName)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = tenantstore.WithTenant(ctx, tenantstore.TenantValue(*tenant))

	store, err := newStore(ctx)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	if err := store.DropKind(ctx, kind); err != nil {
		fatal(err)
	}
	fmt.Printf("dropped kind %s for tenant %s\n", kind.String(), *tenant)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
