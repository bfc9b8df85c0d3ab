package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
)

func main() {
	companyID := flag.String("company-id", "", "Required: company id (uuid)")
	repair := flag.Bool("repair", false, "Rewrite product balances to match the movement ledger")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry()
	}

	ctx := context.Background()
	lock, err := utils.AcquireMaintenanceLock(ctx, "stock-rebuild:"+*companyID, 10*time.Minute)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acquire lock: %v\n", err)
		os.Exit(1)
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	drifts, err := models.RebuildStockBalances(ctx, *companyID, *repair)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}

	if len(drifts) == 0 {
		fmt.Println("all product balances match the movement ledger")
		return
	}

	for _, d := range drifts {
		fmt.Printf("product=%d stored=%s ledger=%s\n",
			d.ProductId, d.StockQty.String(), d.LedgerQty.String())
	}
	if *repair {
		fmt.Printf("repaired %d product balances\n", len(drifts))
	} else {
		fmt.Printf("found %d drifted balances (re-run with --repair to fix)\n", len(drifts))
	}
}
