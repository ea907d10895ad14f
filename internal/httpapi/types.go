package httpapi

import (
	"time"

	"github.com/giorgiosld/driver-verifier/internal/store"
	"github.com/giorgiosld/driver-verifier/internal/verifier"
)

type stageResult struct {
	Stage   string `json:"stage"`
	Outcome string `json:"outcome"`
}

type scanResponse struct {
	ScanID        string                `json:"scan_id"`
	Devices       []verifier.DeviceInfo `json:"devices"`
	DeviceCount   int                   `json:"device_count"`
	TouchpadFound bool                  `json:"touchpad_found"`
	TouchpadPath  string                `json:"touchpad_path,omitempty"`
	TouchpadName  string                `json:"touchpad_name,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

type verifyResponse struct {
	VerificationID string        `json:"verification_id,omitempty"`
	Verdict        string        `json:"verdict"`
	Code           int           `json:"code"`
	Stages         []stageResult `json:"stages"`
}

type historyResponse struct {
	Scans              []store.ScanRecord         `json:"scans"`
	Verifications      []store.VerificationRecord `json:"verifications"`
	LatestVerification *store.VerificationRecord  `json:"latest_verification,omitempty"`
}
