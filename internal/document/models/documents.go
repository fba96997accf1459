package models

import (
	"encoding/json"
	"path/filepath"
	"strings"

	dErrors "docucred/pkg/domain-errors"
)

// MaxDocumentBytes mirrors the recognition engine's own upload limit.
const MaxDocumentBytes = 10 << 20

var allowedExtensions = map[string]struct{}{
	".pdf": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".tiff": {}, ".bmp": {},
}

// Upload is a document received from the client. Bytes are used for the
// engine call and the fingerprint only; they are never stored.
type Upload struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// Validate enforces presence, extension and size before any upstream call.
func (u *Upload) Validate(maxBytes int64) error {
	if u == nil || len(u.Bytes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "document file is required")
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return dErrors.New(dErrors.CodeValidation, "unsupported file type; allowed: .pdf .png .jpg .jpeg .tiff .bmp")
	}
	if maxBytes <= 0 {
		maxBytes = MaxDocumentBytes
	}
	if int64(len(u.Bytes)) > maxBytes {
		return dErrors.New(dErrors.CodeValidation, "document exceeds the maximum upload size")
	}
	return nil
}

// QualityScore is the engine's per-page image quality report, relayed as is.
type QualityScore struct {
	Page             int      `json:"page"`
	BlurScore        float64  `json:"blur_score"`
	BlurStatus       string   `json:"blur_status"`
	BrightnessScore  float64  `json:"brightness_score"`
	BrightnessStatus string   `json:"brightness_status"`
	ContrastScore    float64  `json:"contrast_score"`
	OverallQuality   string   `json:"overall_quality"`
	Recommendations  []string `json:"recommendations"`
}

// Extraction is what the recognition engine returns.
type Extraction struct {
	FileID        string         `json:"file_id"`
	Fields        FieldMap       `json:"extracted_fields"`
	QualityScores []QualityScore `json:"quality_scores"`
	TotalPages    int            `json:"total_pages"`
}

// ExtractionResult is returned to the client after a successful extraction.
type ExtractionResult struct {
	Fields        FieldMap       `json:"extracted_fields"`
	QualityScores []QualityScore `json:"quality_scores"`
	FileID        string         `json:"file_id"`
	Fingerprint   Fingerprint    `json:"imageHash"`
	TotalPages    int            `json:"total_pages"`
}

// FieldVerification is the matching engine's verdict for one field.
type FieldVerification struct {
	OCRValue   json.RawMessage `json:"ocr_value"`
	FormValue  json.RawMessage `json:"form_value"`
	Match      bool            `json:"match"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason,omitempty"`
}

// VerificationResult is relayed from the matching engine unmodified and
// never persisted.
type VerificationResult struct {
	FileID       string                       `json:"file_id,omitempty"`
	Fields       map[string]FieldVerification `json:"verification_result"`
	OverallScore float64                      `json:"overall_score"`
	OverallMatch bool                         `json:"overall_match"`
	Mismatches   []string                     `json:"mismatches"`
}

// CorrectionRequest is the body of POST /ocr/cache.
type CorrectionRequest struct {
	ImageHash string          `json:"imageHash"`
	OCRText   json.RawMessage `json:"ocrText"`
	UserEdits json.RawMessage `json:"userEdits,omitempty"`

	fingerprint Fingerprint
	fields      *FieldMap
	edits       *FieldMap
}

func (r *CorrectionRequest) Sanitize() {
	r.ImageHash = strings.TrimSpace(r.ImageHash)
}

// Validate parses the fingerprint and field maps. ocrText may be an object
// or a string holding a serialized object.
func (r *CorrectionRequest) Validate() error {
	fp, err := ParseFingerprint(r.ImageHash)
	if err != nil {
		return err
	}
	r.fingerprint = fp

	fields, err := decodeFieldMapValue(r.OCRText)
	if err != nil {
		return err
	}
	if fields == nil {
		return dErrors.New(dErrors.CodeValidation, "ocrText is required")
	}
	r.fields = fields

	edits, err := decodeFieldMapValue(r.UserEdits)
	if err != nil {
		return err
	}
	r.edits = edits
	return nil
}

// Parsed returns the values Validate produced.
func (r *CorrectionRequest) Parsed() (Fingerprint, *FieldMap, *FieldMap) {
	return r.fingerprint, r.fields, r.edits
}

// decodeFieldMapValue returns nil for an absent or null value.
func decodeFieldMapValue(raw json.RawMessage) (*FieldMap, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "fields must be a JSON object")
		}
		trimmed = inner
	}
	return ParseFieldMap(trimmed)
}
