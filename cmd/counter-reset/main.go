package main

import (
	"context"
	"errors"
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
	docType := flag.String("doc-type", "", "Required: document type (e.g. SO)")
	period := flag.String("period", "", "Required: period to reset (YYYYMM)")
	flag.Parse()

	if strings.TrimSpace(*companyID) == "" || strings.TrimSpace(*docType) == "" || strings.TrimSpace(*period) == "" {
		fmt.Fprintln(os.Stderr, "--company-id, --doc-type and --period are all required")
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
	lock, err := utils.AcquireMaintenanceLock(ctx, "counter-reset:"+*companyID, time.Minute)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acquire lock: %v\n", err)
		os.Exit(1)
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	err = models.ResetDocumentCounter(ctx, *companyID, *docType, *period)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			fmt.Fprintf(os.Stderr, "no counter for %s %s\n", strings.ToUpper(*docType), *period)
		} else {
			fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("counter %s %s reset to zero\n", strings.ToUpper(*docType), *period)
}
