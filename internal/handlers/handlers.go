package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darainlabs/neuroscan/internal/model"
	"github.com/darainlabs/neuroscan/internal/preprocess"
	"github.com/darainlabs/neuroscan/internal/report"
	"github.com/darainlabs/neuroscan/internal/saliency"
	"github.com/darainlabs/neuroscan/internal/storage"
)

// ModelSource yields the process-wide model handle.
type ModelSource interface {
	Get() model.Handle
}

type Handler struct {
	models    ModelSource
	store     *storage.Store
	repo      *storage.Repo
	maxUpload int64

	// Enrichment steps, replaceable in tests to exercise the degraded paths.
	explain func(h model.Handle, imagePath string, classIndex int, outPath string) error
	render  func(dir string, p report.Params) (string, error)
}

func NewHandler(models ModelSource, store *storage.Store, repo *storage.Repo, maxUpload int64) *Handler {
	return &Handler{
		models:    models,
		store:     store,
		repo:      repo,
		maxUpload: maxUpload,
		explain:   saliency.Generate,
		render:    report.Generate,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "neuroscan-api"})
}

type predictionPayload struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

type urlsPayload struct {
	MRI     string  `json:"mri"`
	Heatmap *string `json:"heatmap"`
	Report  *string `json:"report"`
}

type predictResponse struct {
	Message     string            `json:"message"`
	PatientID   uint              `json:"patient_id"`
	PatientCode string            `json:"patient_code"`
	Prediction  predictionPayload `json:"prediction"`
	URLs        urlsPayload       `json:"urls"`
}

func allowedFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// Predict runs the full pipeline: validate, store, infer, saliency, report,
// persist. Only inference is fatal; saliency and report are best-effort and
// their URLs are simply absent when they fail.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form", "")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image provided", "")
		return
	}
	defer file.Close()
	if header.Filename == "" || !allowedFile(header.Filename) {
		writeError(w, http.StatusBadRequest, "Invalid image", "")
		return
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	log.Printf("[%s] prediction request: %s (%d bytes)", token, header.Filename, header.Size)

	imgPath, err := h.store.SaveUpload(file, token)
	if err != nil {
		log.Printf("[%s] store upload: %v", token, err)
		writeError(w, http.StatusInternalServerError, "Failed to store image", "")
		return
	}
	imgFilename := filepath.Base(imgPath)

	patient := patientFromForm(r, token)

	// Inference is load-bearing: a failure aborts the request and leaves no
	// artifacts behind.
	tensor, err := preprocess.Preprocess(imgPath)
	var pred *model.Prediction
	handle := h.models.Get()
	if err == nil {
		pred, err = handle.Predict(tensor.Data)
	}
	if err != nil {
		log.Printf("[%s] inference: %v", token, err)
		h.store.Remove(imgPath)
		writeError(w, http.StatusInternalServerError, "Prediction failed", "")
		return
	}
	log.Printf("[%s] inference: label=%s index=%d", token, pred.Label, pred.Index)

	probs := probabilityMap(handle.Classes(), pred.Probabilities)
	confidence := float64(pred.Probabilities[pred.Index])

	heatPath := h.store.HeatmapPath(token)
	heatFilename := filepath.Base(heatPath)
	if err := h.explain(handle, imgPath, pred.Index, heatPath); err != nil {
		log.Printf("[%s] saliency: %v", token, err)
		heatPath, heatFilename = "", ""
	}

	reportFilename := ""
	reportPath, err := h.render(h.store.Dir(), report.Params{
		Token:         token,
		ImagePath:     imgPath,
		OverlayPath:   heatPath,
		Label:         pred.Label,
		Probabilities: probs,
		Patient: report.PatientInfo{
			FullName:   patient.FullName,
			Code:       patient.PatientCode,
			Age:        patient.Age,
			Gender:     patient.Gender,
			DoctorName: patient.DoctorName,
		},
	})
	if err != nil {
		log.Printf("[%s] report: %v", token, err)
	} else {
		reportFilename = filepath.Base(reportPath)
	}

	probsJSON, err := json.Marshal(probs)
	if err != nil {
		log.Printf("[%s] encode probabilities: %v", token, err)
		writeError(w, http.StatusInternalServerError, "Failed to save patient record", string(storage.CodeServer))
		return
	}
	result := &storage.Result{
		UUID:            uuid.NewString(),
		PredictionLabel: pred.Label,
		Confidence:      confidence,
		Probabilities:   probsJSON,
		ProbNormal:      probs["Normal"],
		ProbVeryMild:    probs["VeryMildDemented"],
		ProbMild:        probs["MildDemented"],
		ProbModerate:    probs["ModerateDemented"],
		ReviewStatus:    "pending",
		MRIImagePath:    imgFilename,
		HeatmapPath:     heatFilename,
		ReportPath:      reportFilename,
		PredictedAt:     time.Now().UTC(),
	}

	if err := h.repo.SavePrediction(r.Context(), patient, result); err != nil {
		code, status := storage.Classify(err)
		log.Printf("[%s] persist (%s): %v", token, code, err)
		writeError(w, status, "Failed to save patient record", string(code))
		return
	}
	log.Printf("[%s] saved patient %d (%s)", token, patient.ID, patient.Email)

	base := requestBaseURL(r)
	resp := predictResponse{
		Message:     "Prediction saved successfully",
		PatientID:   patient.ID,
		PatientCode: patient.PatientCode,
		Prediction: predictionPayload{
			Label:         pred.Label,
			Confidence:    round4(confidence),
			Probabilities: roundMap(probs),
		},
		URLs: urlsPayload{
			MRI:     base + "/predict/mri/" + imgFilename,
			Heatmap: optionalURL(base+"/predict/heat/", heatFilename),
			Report:  optionalURL(base+"/predict/report/", reportFilename),
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func patientFromForm(r *http.Request, token string) *storage.Patient {
	code := r.FormValue("patient_code")
	if code == "" {
		code = "PT-" + strings.ToUpper(token[:8])
	}
	name := r.FormValue("full_name")
	if name == "" {
		name = "Unknown Patient"
	}
	gender := r.FormValue("gender")
	if gender == "" {
		gender = "Not Specified"
	}
	email := r.FormValue("email")
	if email == "" {
		email = token + "@temp.local"
	}
	age, _ := strconv.Atoi(r.FormValue("age"))

	return &storage.Patient{
		UUID:        uuid.NewString(),
		FullName:    name,
		Age:         age,
		Gender:      gender,
		Email:       email,
		PatientCode: code,
		City:        r.FormValue("city"),
		DoctorName:  r.FormValue("doctor_name"),
	}
}

// GetMRI serves a stored original scan by file name.
func (h *Handler) GetMRI(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, "/predict/mri/", "")
}

// GetHeatmap serves a stored saliency overlay by file name.
func (h *Handler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, "/predict/heat/", "")
}

// GetReport serves a stored PDF report by file name.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, "/predict/report/", "application/pdf")
}

func (h *Handler) serveArtifact(w http.ResponseWriter, r *http.Request, prefix, contentType string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	filename := strings.TrimPrefix(r.URL.Path, prefix)
	path, ok := h.store.Resolve(filename)
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeFile(w, r, path)
}

func probabilityMap(classes []string, probs []float32) map[string]float64 {
	out := make(map[string]float64, len(classes))
	for i, name := range classes {
		if i < len(probs) {
			out[name] = float64(probs[i])
		} else {
			out[name] = 0
		}
	}
	return out
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

func optionalURL(prefix, filename string) *string {
	if filename == "" {
		return nil
	}
	u := prefix + filename
	return &u
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func roundMap(probs map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(probs))
	for k, v := range probs {
		out[k] = round4(v)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	body := map[string]string{"error": msg}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}
