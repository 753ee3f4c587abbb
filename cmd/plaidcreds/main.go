package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/infra"
	"server/internal/infra/credentials"
)

func main() {
	var (
		tokenFlag    string
		providerFlag string
	)
	flag.StringVar(&tokenFlag, "token", "", "secret for the selected provider (fallbacks to environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderPlaid, "integration provider to configure (plaid or gemini)")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	switch provider {
	case credentials.ProviderPlaid, credentials.ProviderGemini:
	case "":
		provider = credentials.ProviderPlaid
	default:
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		switch provider {
		case credentials.ProviderGemini:
			token = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		default:
			token = strings.TrimSpace(os.Getenv("PLAID_SECRET"))
		}
	}
	if token == "" {
		fmt.Fprintf(os.Stderr, "%s secret is required via -token or environment\n", strings.ToUpper(provider))
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "plaidcreds").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if err := store.SetToken(ctxExec, provider, token); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s secret: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s secret stored successfully\n", strings.ToUpper(provider))
}
