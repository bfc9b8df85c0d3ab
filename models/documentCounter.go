package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentCounter is a per-tenant monotonic sequence, one row per
// (company, doc type, period). Increments happen under a row lock so
// concurrent callers are fully serialized.
type DocumentCounter struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId string    `gorm:"size:36;not null;uniqueIndex:idx_doc_counter_unique,priority:1" json:"company_id"`
	DocType   string    `gorm:"size:50;not null;uniqueIndex:idx_doc_counter_unique,priority:2" json:"doc_type"`
	Period    string    `gorm:"size:10;not null;uniqueIndex:idx_doc_counter_unique,priority:3" json:"period"`
	LastNum   uint      `gorm:"not null;default:0" json:"last_num"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var periodPattern = regexp.MustCompile(`^\d{6}$`)

// CurrentPeriod returns the default counter period, the current UTC year-month.
func CurrentPeriod() string {
	return time.Now().UTC().Format("200601")
}

func resolvePeriod(period string) (string, error) {
	if period == "" {
		return CurrentPeriod(), nil
	}
	if !periodPattern.MatchString(period) {
		return "", fmt.Errorf("period must be YYYYMM, got %q", period)
	}
	return period, nil
}

func formatDocumentNumber(docType string, period string, num uint) string {
	return fmt.Sprintf("%s-%s-%04d", strings.ToUpper(docType), period, num)
}

// nextDocumentNumbersTx reserves count consecutive numbers under one row lock
// inside the caller's transaction and returns the first. A rollback leaves the
// counter untouched, so failed calls introduce no gaps.
func nextDocumentNumbersTx(tx *gorm.DB, companyId string, docType string, period string, count uint) (uint, error) {
	counter := DocumentCounter{
		CompanyId: companyId,
		DocType:   docType,
		Period:    period,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND doc_type = ? AND period = ?", companyId, docType, period).
		FirstOrCreate(&counter)
	if result.Error != nil {
		return 0, result.Error
	}

	start := counter.LastNum + 1
	end := counter.LastNum + count
	if err := tx.Model(&counter).Update("last_num", end).Error; err != nil {
		return 0, err
	}

	return start, nil
}

// GenerateDocumentNumber mints the next number for (company, docType, period)
// formatted as DOCTYPE-YYYYMM-NNNN, e.g. SO-202501-0001. An empty period
// defaults to the current UTC year-month.
func GenerateDocumentNumber(ctx context.Context, companyId string, docType string, period string) (string, error) {
	numbers, err := GenerateDocumentNumberBatch(ctx, companyId, docType, 1, period)
	if err != nil {
		return "", err
	}
	return numbers[0], nil
}

// GenerateDocumentNumberBatch reserves count consecutive numbers in one lock
// acquisition and returns them all formatted.
func GenerateDocumentNumberBatch(ctx context.Context, companyId string, docType string, count int, period string) ([]string, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if docType == "" {
		return nil, errors.New("doc type is required")
	}
	if count <= 0 {
		return nil, errors.New("count must be positive")
	}
	period, err := resolvePeriod(period)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	dbCtx := utils.TenantScope(ctx, companyId)

	start, err := nextDocumentNumbersTx(tx.WithContext(dbCtx), companyId, docType, period, uint(count))
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	numbers := make([]string, 0, count)
	for i := uint(0); i < uint(count); i++ {
		numbers = append(numbers, formatDocumentNumber(docType, period, start+i))
	}
	return numbers, nil
}

// GetCurrentDocumentNumber reads the counter without locking or incrementing.
// Returns 0 when no counter row exists yet.
func GetCurrentDocumentNumber(ctx context.Context, companyId string, docType string, period string) (uint, error) {
	if companyId == "" {
		return 0, errors.New("company id is required")
	}
	period, err := resolvePeriod(period)
	if err != nil {
		return 0, err
	}

	db := config.GetDB()
	var counter DocumentCounter
	err = db.WithContext(utils.TenantScope(ctx, companyId)).
		Where("company_id = ? AND doc_type = ? AND period = ?", companyId, docType, period).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.LastNum, nil
}

// ResetDocumentCounter sets last_num back to 0 for one period. This reissues
// already-used numbers, so it is reachable only from the counter-reset
// maintenance tool, never from order flow.
func ResetDocumentCounter(ctx context.Context, companyId string, docType string, period string) error {
	if companyId == "" {
		return errors.New("company id is required")
	}
	if docType == "" {
		return errors.New("doc type is required")
	}
	if period == "" {
		return errors.New("period is required")
	}

	db := config.GetDB()
	result := db.WithContext(utils.TenantScope(ctx, companyId)).
		Model(&DocumentCounter{}).
		Where("company_id = ? AND doc_type = ? AND period = ?", companyId, docType, period).
		Update("last_num", 0)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
