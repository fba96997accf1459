package models

import (
	"encoding/json"
	"strings"

	docmodels "docucred/internal/document/models"
	dErrors "docucred/pkg/domain-errors"
)

// IssueRequest is the body of POST /vc/issue.
type IssueRequest struct {
	FileID       string              `json:"file_id"`
	VerifiedData *docmodels.FieldMap `json:"verified_data"`
}

func (r *IssueRequest) Sanitize() {
	r.FileID = strings.TrimSpace(r.FileID)
}

// Validate rejects a blank file id or a field map without values.
func (r *IssueRequest) Validate() error {
	if r.FileID == "" || r.VerifiedData == nil || r.VerifiedData.IsEmpty() {
		return dErrors.New(dErrors.CodeBadRequest, "file_id and verified_data are required")
	}
	return nil
}

// Credential is the signing engine's response. VC content is opaque here.
type Credential struct {
	VC            json.RawMessage `json:"vc"`
	VCDownloadURL string          `json:"vc_download_url"`
	QRDownloadURL string          `json:"qr_download_url"`
}

// IssuanceResult is returned to the client. Download URLs are absolute and
// QRCode is a PNG data URI encoding VCDownloadURL.
type IssuanceResult struct {
	VC            json.RawMessage `json:"vc"`
	VCDownloadURL string          `json:"vc_download_url"`
	QRDownloadURL string          `json:"qr_download_url"`
	QRCode        string          `json:"qr_code"`
}
