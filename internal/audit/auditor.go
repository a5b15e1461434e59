package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
)

// SampleLimit bounds the per-class sample list in an audit report.
const SampleLimit = 20

// Class names one of the four association invariant violations.
type Class string

const (
	ClassOrphan       Class = "orphan"
	ClassDuplicate    Class = "duplicate"
	ClassMultiPrimary Class = "multi-primary"
	ClassMismatch     Class = "mismatch"
)

// ParseClass validates an operator-supplied class name.
func ParseClass(s string) (Class, error) {
	switch Class(s) {
	case ClassOrphan, ClassDuplicate, ClassMultiPrimary, ClassMismatch:
		return Class(s), nil
	}
	return "", models.ErrInvalidInput
}

// Store is the read/write surface the auditor and repairer need.
// Implemented by repository.CatalogRepository.
type Store interface {
	ProductCounts(ctx context.Context) (total, active int64, err error)

	OrphanSamples(ctx context.Context, limit int) (int64, []string, error)
	DuplicateSamples(ctx context.Context, limit int) (int64, []string, error)
	MultiPrimarySamples(ctx context.Context, limit int) (int64, []string, error)
	MismatchSamples(ctx context.Context, limit int) (int64, []string, error)

	DuplicateProductIDs(ctx context.Context, offset, limit int) ([]uint, int64, error)
	MultiPrimaryProductIDs(ctx context.Context, offset, limit int) ([]uint, int64, error)
	MismatchProductIDs(ctx context.Context, offset, limit int) ([]uint, int64, error)

	GetProductByInternalID(ctx context.Context, id uint) (*models.Product, error)
	Associations(ctx context.Context, productID uint) ([]models.ProductCategory, error)
	DeleteAssociations(ctx context.Context, ids []uint) error
	DemoteAssociations(ctx context.Context, ids []uint) error
	SetProductCategoryID(ctx context.Context, productID uint, categoryID *uint) error
}

// Report summarizes the association invariants over the whole catalog.
// Counts are point-in-time approximate under concurrent writes, which is
// acceptable because repair is idempotent.
type Report struct {
	TotalProducts       int64     `json:"totalProducts"`
	ActiveProducts      int64     `json:"activeProducts"`
	OrphanCount         int64     `json:"orphanCount"`
	DuplicateCount      int64     `json:"duplicateCount"`
	MultiPrimaryCount   int64     `json:"multiPrimaryCount"`
	MismatchCount       int64     `json:"mismatchCount"`
	OrphanSamples       []string  `json:"orphanSamples,omitempty"`
	DuplicateSamples    []string  `json:"duplicateSamples,omitempty"`
	MultiPrimarySamples []string  `json:"multiPrimarySamples,omitempty"`
	MismatchSamples     []string  `json:"mismatchSamples,omitempty"`
	GeneratedAt         time.Time `json:"generatedAt"`
}

// Clean reports whether every invariant holds.
func (r *Report) Clean() bool {
	return r.OrphanCount == 0 && r.DuplicateCount == 0 &&
		r.MultiPrimaryCount == 0 && r.MismatchCount == 0
}

// Auditor produces consistency reports. Pure reads, no side effects.
type Auditor struct {
	store  Store
	logger *logrus.Entry
}

func NewAuditor(store Store, logger *logrus.Logger) *Auditor {
	return &Auditor{
		store:  store,
		logger: logger.WithField("component", "audit"),
	}
}

// Audit scans the association table for the four violation classes and
// returns counts plus a bounded sample of external product ids per class.
func (a *Auditor) Audit(ctx context.Context) (*Report, error) {
	report := &Report{GeneratedAt: time.Now()}

	var err error
	report.TotalProducts, report.ActiveProducts, err = a.store.ProductCounts(ctx)
	if err != nil {
		return nil, err
	}

	report.OrphanCount, report.OrphanSamples, err = a.store.OrphanSamples(ctx, SampleLimit)
	if err != nil {
		return nil, err
	}
	report.DuplicateCount, report.DuplicateSamples, err = a.store.DuplicateSamples(ctx, SampleLimit)
	if err != nil {
		return nil, err
	}
	report.MultiPrimaryCount, report.MultiPrimarySamples, err = a.store.MultiPrimarySamples(ctx, SampleLimit)
	if err != nil {
		return nil, err
	}
	report.MismatchCount, report.MismatchSamples, err = a.store.MismatchSamples(ctx, SampleLimit)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"orphans":       report.OrphanCount,
		"duplicates":    report.DuplicateCount,
		"multi_primary": report.MultiPrimaryCount,
		"mismatches":    report.MismatchCount,
	}).Info("Consistency audit completed")

	return report, nil
}
