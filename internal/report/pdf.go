package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type PatientInfo struct {
	FullName   string
	Code       string
	Age        int
	Gender     string
	DoctorName string
}

type Params struct {
	Token         string
	ImagePath     string
	OverlayPath   string // empty when the heatmap was not generated
	Label         string
	Probabilities map[string]float64
	Patient       PatientInfo
}

const (
	headerR, headerG, headerB = 0, 48, 135
)

// Generate renders the clinical PDF report into dir and returns its path.
// Pure rendering over already-computed inputs; no inference logic.
func Generate(dir string, p Params) (string, error) {
	pdfPath := filepath.Join(dir, fmt.Sprintf("report_%s.pdf", p.Token))

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 22, 20)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(headerR, headerG, headerB)
	pdf.CellFormat(0, 12, "NEUROSCAN DIAGNOSTIC CENTER", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(105, 105, 105)
	pdf.CellFormat(0, 8, "Advanced AI-Powered Alzheimer's Detection System", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	// Patient info table
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(headerR, headerG, headerB)
	pdf.SetDrawColor(headerR, headerG, headerB)
	info := [][2]string{
		{"Patient Name", orNA(p.Patient.FullName)},
		{"Patient Code", orNA(p.Patient.Code)},
		{"Age / Gender", fmt.Sprintf("%d yrs / %s", p.Patient.Age, orNA(p.Patient.Gender))},
		{"Referring Doctor", orNA(p.Patient.DoctorName)},
		{"Report Generated", time.Now().Format("02 January 2006, 3:04 PM")},
	}
	for _, row := range info {
		pdf.SetFillColor(232, 244, 248)
		pdf.CellFormat(55, 9, row[0], "1", 0, "L", true, 0, "")
		pdf.CellFormat(85, 9, row[1], "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	confidence := maxProb(p.Probabilities)
	tier := TierFor(confidence)

	// Diagnosis
	sectionHeading(pdf, "AI DIAGNOSIS")
	r, g, b := tier.color()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(r, g, b)
	pdf.CellFormat(0, 11, p.Label, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(30, 61, 89)
	pdf.CellFormat(0, 7, fmt.Sprintf("AI Confidence Level: %.1f%%", confidence*100), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Images: original scan, plus attention heatmap when present
	if fileExists(p.ImagePath) {
		x := pdf.GetX()
		y := pdf.GetY()
		pdf.ImageOptions(p.ImagePath, x, y, 65, 65, false, gofpdf.ImageOptions{}, 0, "")
		captionX := x
		if p.OverlayPath != "" && fileExists(p.OverlayPath) {
			pdf.ImageOptions(p.OverlayPath, x+75, y, 65, 65, false, gofpdf.ImageOptions{}, 0, "")
		}
		pdf.SetY(y + 67)
		pdf.SetX(captionX)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(65, 5, "Original MRI Scan", "", 0, "C", false, 0, "")
		if p.OverlayPath != "" && fileExists(p.OverlayPath) {
			pdf.SetX(captionX + 75)
			pdf.CellFormat(65, 5, "AI Attention Heatmap (red = high focus)", "", 0, "C", false, 0, "")
		}
		pdf.Ln(10)
	}

	// Probability table, sorted descending
	sectionHeading(pdf, "Detailed AI Confidence Scores")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(headerR, headerG, headerB)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(100, 9, "Condition", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 9, "Probability", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(30, 61, 89)
	for _, e := range sortedProbs(p.Probabilities) {
		pdf.CellFormat(100, 8, e.name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%.1f%%", e.prob*100), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(8)

	// Recommendations
	sectionHeading(pdf, "Clinical Recommendations")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(30, 61, 89)
	for _, rec := range tier.recommendations() {
		pdf.CellFormat(0, 7, "- "+rec, "", 1, "L", false, 0, "")
	}

	// Signature block
	pdf.Ln(18)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, "Dr. Aquib Darain", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Chief Neurologist & AI Research Head", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, "NeuroScan Diagnostic Center", "", 1, "L", false, 0, "")

	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return pdfPath, nil
}

func sectionHeading(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(headerR, headerG, headerB)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

type probEntry struct {
	name string
	prob float64
}

func sortedProbs(probs map[string]float64) []probEntry {
	entries := make([]probEntry, 0, len(probs))
	for name, prob := range probs {
		entries = append(entries, probEntry{name, prob})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].prob != entries[j].prob {
			return entries[i].prob > entries[j].prob
		}
		return entries[i].name < entries[j].name
	})
	return entries
}

func maxProb(probs map[string]float64) float64 {
	var max float64
	for _, p := range probs {
		if p > max {
			max = p
		}
	}
	return max
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
