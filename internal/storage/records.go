package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Patient is an identity-bearing record created once per prediction request.
// Append-only: the service never updates or deletes patients.
type Patient struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        string    `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	FullName    string    `gorm:"size:120;not null" json:"full_name"`
	Age         int       `json:"age"`
	Gender      string    `gorm:"size:20" json:"gender"`
	Email       string    `gorm:"size:120;not null;uniqueIndex" json:"email"`
	PatientCode string    `gorm:"size:32;uniqueIndex" json:"patient_code"`
	City        string    `gorm:"size:100" json:"city"`
	DoctorName  string    `gorm:"size:100" json:"doctor_name"`
	CreatedAt   time.Time `json:"created_at"`

	Results []Result `gorm:"foreignKey:PatientID" json:"-"`
}

func (Patient) TableName() string { return "patients" }

// Result holds one prediction outcome. Probabilities carries the full class
// distribution as JSON; the per-class columns exist for direct querying.
type Result struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	PatientID       uint           `gorm:"not null;index" json:"patient_id"`
	PredictionLabel string         `gorm:"size:50;not null" json:"prediction_label"`
	Confidence      float64        `gorm:"not null" json:"confidence"`
	Probabilities   datatypes.JSON `gorm:"not null" json:"probabilities"`

	ProbNormal   float64 `json:"prob_normal"`
	ProbVeryMild float64 `json:"prob_very_mild"`
	ProbMild     float64 `json:"prob_mild"`
	ProbModerate float64 `json:"prob_moderate"`

	ReviewStatus string `gorm:"size:20;default:pending" json:"review_status"`

	MRIImagePath string `gorm:"size:255" json:"mri_image_path"`
	HeatmapPath  string `gorm:"size:255" json:"heatmap_path"`
	ReportPath   string `gorm:"size:255" json:"report_path"`

	PredictedAt time.Time `json:"predicted_at"`

	Patient Patient `gorm:"foreignKey:PatientID" json:"-"`
}

func (Result) TableName() string { return "results" }
