package gopg

import (
	"github.com/go-pg/pg"
	"github.com/google/uuid"

	delivery "github.com/interactive-solutions/go-delivery"
)

func NewRecordRepository(db *pg.DB) delivery.RecordRepository {
	return &recordRepository{
		db: db,
	}
}

type recordWrapper struct {
	TableName struct{} `sql:"delivery_records, alias:dr" json:"-"`

	*delivery.Record
}

type recordRepository struct {
	db *pg.DB
}

func (repo *recordRepository) Append(record *delivery.Record) error {
	return repo.db.Insert(&recordWrapper{Record: record})
}

func (repo *recordRepository) Matching(criteria delivery.RecordCriteria) ([]delivery.Record, int, error) {
	var records []delivery.Record
	var wrappedRecords []recordWrapper

	builder := repo.db.Model(&wrappedRecords).
		Offset(criteria.Offset).
		Limit(criteria.Limit).
		Order("created_at DESC")

	if criteria.Outcome != "" {
		builder.Where("outcome = ?", criteria.Outcome)
	}

	if criteria.Channel != "" {
		builder.Where("channel = ?", criteria.Channel)
	}

	if criteria.TaskUuid != uuid.Nil {
		builder.Where("task_uuid = ?", criteria.TaskUuid)
	}

	if !criteria.After.IsZero() {
		builder.Where("created_at >= ?", criteria.After)
	}

	if !criteria.Before.IsZero() {
		builder.Where("created_at <= ?", criteria.Before)
	}

	count, err := builder.SelectAndCount()
	if err != nil && err != pg.ErrNoRows {
		return records, 0, err
	}

	for _, wrapped := range wrappedRecords {
		records = append(records, *wrapped.Record)
	}

	return records, count, nil
}
