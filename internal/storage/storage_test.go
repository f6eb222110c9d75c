package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func testPatient(email string) *Patient {
	return &Patient{
		UUID:        uuid.NewString(),
		FullName:    "Jane Doe",
		Age:         70,
		Gender:      "F",
		Email:       email,
		PatientCode: "PT-" + uuid.NewString()[:8],
	}
}

func testResult() *Result {
	return &Result{
		UUID:            uuid.NewString(),
		PredictionLabel: "Normal",
		Confidence:      0.9,
		Probabilities:   []byte(`{"Normal":0.9}`),
		ReviewStatus:    "pending",
		PredictedAt:     time.Now().UTC(),
	}
}

func TestSavePrediction_CommitsBoth(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	patient := testPatient("jane@example.com")
	result := testResult()
	if err := repo.SavePrediction(ctx, patient, result); err != nil {
		t.Fatalf("save: %v", err)
	}
	if patient.ID == 0 {
		t.Fatal("patient ID not assigned")
	}
	if result.PatientID != patient.ID {
		t.Fatalf("result references patient %d, want %d", result.PatientID, patient.ID)
	}

	patients, _ := repo.PatientCount(ctx)
	results, _ := repo.ResultCount(ctx)
	if patients != 1 || results != 1 {
		t.Fatalf("expected 1/1 rows, got %d/%d", patients, results)
	}
}

func TestSavePrediction_RollsBackPatientOnResultFailure(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	first := testResult()
	if err := repo.SavePrediction(ctx, testPatient("a@example.com"), first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Reusing the result UUID violates its unique index, failing the second
	// insert inside the transaction.
	second := testResult()
	second.UUID = first.UUID
	err := repo.SavePrediction(ctx, testPatient("b@example.com"), second)
	if err == nil {
		t.Fatal("expected constraint violation")
	}

	patients, _ := repo.PatientCount(ctx)
	results, _ := repo.ResultCount(ctx)
	if patients != 1 || results != 1 {
		t.Fatalf("partial write leaked: %d patients, %d results", patients, results)
	}
}

func TestSavePrediction_DuplicateEmailClassified(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	if err := repo.SavePrediction(ctx, testPatient("dup@example.com"), testResult()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	err := repo.SavePrediction(ctx, testPatient("dup@example.com"), testResult())
	if err == nil {
		t.Fatal("expected duplicate email error")
	}

	code, status := Classify(err)
	if code != CodeEmailExists {
		t.Fatalf("expected %s, got %s (err: %v)", CodeEmailExists, code, err)
	}
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}

	// The first insert stays intact, no double rollback.
	patients, _ := repo.PatientCount(ctx)
	if patients != 1 {
		t.Fatalf("expected the first patient to survive, got %d rows", patients)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		code   ErrorCode
		status int
	}{
		{errors.New("UNIQUE constraint failed: patients.email"), CodeEmailExists, http.StatusConflict},
		{errors.New(`duplicate key value violates unique constraint "idx_patients_email"`), CodeEmailExists, http.StatusConflict},
		{errors.New("UNIQUE constraint failed: patients.patient_code"), CodeCodeExists, http.StatusConflict},
		{errors.New("UNIQUE constraint failed: results.uuid"), CodeDBConflict, http.StatusConflict},
		{errors.New("NOT NULL constraint failed: patients.full_name"), CodeValidation, http.StatusBadRequest},
		{errors.New("connection refused"), CodeServer, http.StatusInternalServerError},
	}
	for _, c := range cases {
		code, status := Classify(c.err)
		if code != c.code || status != c.status {
			t.Fatalf("Classify(%q) = %s/%d, want %s/%d", c.err, code, status, c.code, c.status)
		}
	}
}

func TestStore_SaveUploadAndResolve(t *testing.T) {
	store := NewStore(t.TempDir())

	content := []byte("fake image bytes")
	path, err := store.SaveUpload(bytes.NewReader(content), "tok123")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	if filepath.Base(path) != "tok123.jpg" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}

	resolved, ok := store.Resolve("tok123.jpg")
	if !ok || resolved != path {
		t.Fatalf("resolve failed: %s ok=%v", resolved, ok)
	}
	if _, ok := store.Resolve("missing.jpg"); ok {
		t.Fatal("resolved a missing file")
	}
}

func TestStore_ResolveBlocksTraversal(t *testing.T) {
	store := NewStore(t.TempDir())
	if path, ok := store.Resolve("../../etc/passwd"); ok {
		t.Fatalf("traversal escaped the store: %s", path)
	}
}

func TestStore_HeatmapPath(t *testing.T) {
	store := NewStore("uploads")
	want := filepath.Join("uploads", "tok_heat.jpg")
	if got := store.HeatmapPath("tok"); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
