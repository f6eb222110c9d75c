package storage

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

type ErrorCode string

const (
	CodeEmailExists ErrorCode = "EMAIL_EXISTS"
	CodeCodeExists  ErrorCode = "CODE_EXISTS"
	CodeDBConflict  ErrorCode = "DB_CONFLICT"
	CodeValidation  ErrorCode = "VALIDATION_ERROR"
	CodeServer      ErrorCode = "SERVER_ERROR"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// SavePrediction writes the patient and its result in one transaction. Both
// rows commit together or neither persists.
func (r *Repo) SavePrediction(ctx context.Context, patient *Patient, result *Result) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(patient).Error; err != nil {
			return err
		}
		result.PatientID = patient.ID
		return tx.Create(result).Error
	})
}

func (r *Repo) PatientCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Patient{}).Count(&n).Error
	return n, err
}

func (r *Repo) ResultCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Result{}).Count(&n).Error
	return n, err
}

// Classify maps a persistence error to a machine-readable reason code and an
// HTTP status. Duplicate-key detection matches the driver's message to pin
// down which unique constraint fired; the gorm sentinels are checked too in
// case a dialector translated the error first.
func Classify(err error) (ErrorCode, int) {
	msg := strings.ToLower(err.Error())

	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		switch {
		case strings.Contains(msg, "email"):
			return CodeEmailExists, http.StatusConflict
		case strings.Contains(msg, "patient_code"):
			return CodeCodeExists, http.StatusConflict
		default:
			return CodeDBConflict, http.StatusConflict
		}
	}

	if errors.Is(err, gorm.ErrInvalidData) || errors.Is(err, gorm.ErrInvalidValue) ||
		strings.Contains(msg, "not null constraint") || strings.Contains(msg, "not-null constraint") ||
		strings.Contains(msg, "check constraint") {
		return CodeValidation, http.StatusBadRequest
	}

	return CodeServer, http.StatusInternalServerError
}
