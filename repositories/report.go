//go:generate go run go.uber.org/mock/mockgen -source=report.go -destination=../mocks/mock_report_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"trenchsocial/domain"
	apperrors "trenchsocial/errors"
)

const reportKeyPrefix = "report:"

type IReportRepository interface {
	Submit(report domain.Report) (uuid.UUID, error)
	List() ([]domain.Report, error)
}

// ReportRepository is an append-only log of user reports, keyed by padded
// submission time so a prefix scan returns them in the order they arrived.
type ReportRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewReportRepository(db *badger.DB, log *slog.Logger) *ReportRepository {
	return &ReportRepository{db: db, log: log}
}

func (r *ReportRepository) Submit(report domain.Report) (uuid.UUID, error) {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.Date.IsZero() {
		report.Date = time.Now().UTC()
	}
	bytes, err := json.Marshal(report)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal report: %w", err)
	}
	key := fmt.Appendf(nil, "%s%019d:%s", reportKeyPrefix, report.Date.UnixNano(), report.ID)
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, bytes)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: submit report: %v", apperrors.ErrStoreUnavailable, err)
	}
	return report.ID, nil
}

func (r *ReportRepository) List() ([]domain.Report, error) {
	var reports []domain.Report
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(reportKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var report domain.Report
				if err := json.Unmarshal(value, &report); err != nil {
					return err
				}
				reports = append(reports, report)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list reports: %v", apperrors.ErrStoreUnavailable, err)
	}
	return reports, nil
}
