package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

// Row locking is a no-op on sqlite, so oversell prevention under real
// contention only shows up against MySQL. This spins up a disposable
// container and hammers one product from many goroutines.
func TestConcurrentStockDeductionNeverOversells(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "retail_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	company, err := models.CreateCompany(ctx, &models.NewCompany{Name: "Race Test"})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	companyId := company.ID

	const opening = 10
	product, err := models.CreateProduct(ctx, companyId, &models.NewProduct{
		Sku:        "RACE-001",
		Name:       "Race Product",
		Price:      decimal.NewFromInt(100),
		OpeningQty: decimal.NewFromInt(opening),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = models.AdjustStock(ctx, companyId, product.ID,
				decimal.NewFromInt(-1), models.StockRefTypeSale, nil, nil)
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, utils.ErrorInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != opening {
		t.Fatalf("expected exactly %d deductions to succeed, got %d (%d rejected)",
			opening, succeeded, rejected)
	}

	refreshed, err := models.GetProduct(ctx, companyId, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !refreshed.StockQty.IsZero() {
		t.Fatalf("expected stock exactly zero, got %s", refreshed.StockQty)
	}

	// The denormalized balance must agree with the ledger after the storm.
	drifts, err := models.RebuildStockBalances(ctx, companyId, false)
	if err != nil {
		t.Fatalf("RebuildStockBalances: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected no drift, got %+v", drifts[0])
	}
}

func TestConcurrentDocumentNumbersAreUnique(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "retail_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	company, err := models.CreateCompany(ctx, &models.NewCompany{Name: "Counter Race"})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	companyId := company.ID

	const workers = 30
	var wg sync.WaitGroup
	numbers := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			numbers[n], errs[n] = models.GenerateDocumentNumber(ctx, companyId, "SO", "202501")
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("generate %d: %v", i, errs[i])
		}
		if seen[numbers[i]] {
			t.Fatalf("duplicate document number issued: %s", numbers[i])
		}
		seen[numbers[i]] = true
	}

	current, err := models.GetCurrentDocumentNumber(ctx, companyId, "SO", "202501")
	if err != nil {
		t.Fatalf("GetCurrentDocumentNumber: %v", err)
	}
	if current != workers {
		t.Fatalf("expected counter at %d, got %d", workers, current)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("retail-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=retail_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
