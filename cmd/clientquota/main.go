package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/infra"
)

func main() {
	var (
		idFlag     string
		apiKeyFlag string
		quotaFlag  int
		statusFlag string
	)

	flag.StringVar(&idFlag, "id", "", "client ID to update (UUID)")
	flag.StringVar(&apiKeyFlag, "api-key", "", "client API key to update")
	flag.IntVar(&quotaFlag, "quota", 0, "monthly usage quota to assign (set <=0 to keep current value)")
	flag.StringVar(&statusFlag, "status", "", "status to assign (approve or suspend, empty to keep current)")
	flag.Parse()

	clientID := strings.TrimSpace(idFlag)
	apiKey := strings.TrimSpace(apiKeyFlag)
	statusArg := strings.TrimSpace(strings.ToLower(statusFlag))

	if clientID == "" && apiKey == "" {
		exitWithError(errors.New("either -id or -api-key must be provided"))
	}
	if quotaFlag <= 0 && statusArg == "" {
		exitWithError(errors.New("nothing to do: provide -quota and/or -status"))
	}

	var status domain.ClientStatus
	switch statusArg {
	case "":
	case "approve":
		status = domain.ClientStatusActive
	case "suspend":
		status = domain.ClientStatusSuspended
	default:
		exitWithError(fmt.Errorf("unsupported status %q", statusFlag))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "clientquota").Logger()
	clients := repo.NewClientRepository(infra.NewSQLRunner(pool, logger))

	lookupCtx, cancelLookup := context.WithTimeout(context.Background(), 5*time.Second)
	var client *domain.Client
	if clientID != "" {
		client, err = clients.GetByID(lookupCtx, clientID)
	} else {
		client, err = clients.GetByAPIKey(lookupCtx, apiKey)
	}
	cancelLookup()
	if err != nil {
		exitWithError(fmt.Errorf("failed to load client: %w", err))
	}

	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelUpdate()

	if quotaFlag > 0 {
		if err := clients.SetQuota(updateCtx, client.ID, quotaFlag); err != nil {
			exitWithError(fmt.Errorf("failed to update quota: %w", err))
		}
	}
	if status != "" {
		if err := clients.SetStatus(updateCtx, client.ID, status); err != nil {
			exitWithError(fmt.Errorf("failed to update status: %w", err))
		}
	}

	updated, err := clients.GetByID(updateCtx, client.ID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to reload client: %w", err))
	}

	fmt.Printf("Client %s (%s) updated\n", updated.ID, updated.Name)
	fmt.Printf("status=%s\n", updated.Status)
	fmt.Printf("usage_quota=%d\n", updated.UsageQuota)
	fmt.Printf("usage_count=%d\n", updated.UsageCount)
	fmt.Printf("reset_date=%s\n", updated.ResetDate.UTC().Format(time.RFC3339))
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
