package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/giorgiosld/driver-verifier/internal/observability"
	"github.com/giorgiosld/driver-verifier/internal/store"
	"github.com/giorgiosld/driver-verifier/internal/verifier"
)

// Topics the service publishes results on.
const (
	TopicScanCompleted         = "driververifier/events/scan.completed"
	TopicVerificationCompleted = "driververifier/events/verification.completed"
)

// Store is the slice of the repository the handlers need; it keeps the
// server testable without a live database.
type Store interface {
	SaveScan(ctx context.Context, rec *store.ScanRecord) error
	SaveVerification(ctx context.Context, rec *store.VerificationRecord) error
	RecentScans(ctx context.Context, limit int) ([]store.ScanRecord, error)
	RecentVerifications(ctx context.Context, limit int) ([]store.VerificationRecord, error)
	LatestVerification(ctx context.Context) (*store.VerificationRecord, error)
	PruneOlderThan(ctx context.Context, retention time.Duration) error
}

// Cache is the slice of the verdict cache the handlers need.
type Cache interface {
	SetScan(ctx context.Context, scanJSON []byte) error
	Scan(ctx context.Context) ([]byte, error)
	SetVerdict(ctx context.Context, verdictJSON []byte) error
	Verdict(ctx context.Context) ([]byte, error)
}

// Publisher broadcasts result events on the message bus.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Server owns the single verifier context and serializes scan/verify access
// to it; the engine itself carries no locking.
type Server struct {
	mu       sync.Mutex
	verifier *verifier.Context
	store    Store
	cache    Cache
	bus      Publisher
	stageLog []stageResult
	// lastScanID links each verification to the scan it judged.
	lastScanID uuid.UUID
	// retention bounds the persisted history; zero disables pruning.
	retention time.Duration
}

func NewServer(vc *verifier.Context, st Store, cache Cache, bus Publisher) *Server {
	s := &Server{verifier: vc, store: st, cache: cache, bus: bus}
	vc.SetStageObserver(s.observeStage)
	return s
}

// SetHistoryRetention enables history pruning after each persisted
// verification.
func (s *Server) SetHistoryRetention(d time.Duration) {
	s.retention = d
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/verifier/scan", s.handleScan)
	mux.HandleFunc("/api/verifier/verify", s.handleVerify)
	mux.HandleFunc("/api/verifier/devices", s.handleDevices)
	mux.HandleFunc("/api/verifier/verdict", s.handleVerdict)
	mux.HandleFunc("/api/verifier/status", s.handleStatus)
	mux.HandleFunc("/api/verifier/history", s.handleHistory)
}

// observeStage runs inside VerifyTouchpad, under the server mutex.
func (s *Server) observeStage(stage, outcome string) {
	s.stageLog = append(s.stageLog, stageResult{Stage: stage, Outcome: outcome})
	observability.RecordStage(stage, outcome)
}

// RunScan executes one scan pass, persists and broadcasts the result. Also
// invoked by the MQTT command subscription and the periodic rescan loop.
func (s *Server) RunScan(ctx context.Context) (*store.ScanRecord, []verifier.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.verifier.ScanDevices()
	if err != nil {
		observability.RecordScan("error")
		return nil, nil, err
	}
	observability.RecordScan("ok")

	st := s.verifier.Status()
	devJSON, err := json.Marshal(devices)
	if err != nil {
		return nil, nil, err
	}
	rec := &store.ScanRecord{
		ID:            uuid.New(),
		Devices:       datatypes.JSON(devJSON),
		DeviceCount:   len(devices),
		TouchpadFound: st.TouchpadFound,
		TouchpadPath:  st.TouchpadPath,
		TouchpadName:  st.TouchpadName,
		CreatedAt:     time.Now().UTC(),
	}
	s.lastScanID = rec.ID
	if s.store != nil {
		if err := s.store.SaveScan(ctx, rec); err != nil {
			slog.Error("persist scan failed", "error", err)
		}
	}
	payload, err := json.Marshal(rec)
	if err == nil {
		if s.cache != nil {
			if err := s.cache.SetScan(ctx, payload); err != nil {
				slog.Warn("cache scan failed", "error", err)
			}
		}
		if s.bus != nil {
			if err := s.bus.Publish(TopicScanCompleted, payload); err != nil {
				slog.Warn("broadcast scan failed", "error", err)
			}
		}
	}
	return rec, devices, nil
}

// RunVerification executes one verification pass, persists and broadcasts
// the verdict. The returned error is the engine's hard error, if any; the
// record is produced either way.
func (s *Server) RunVerification(ctx context.Context) (*store.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stageLog = s.stageLog[:0]
	working, verr := s.verifier.VerifyTouchpad()
	code := verifier.StatusCode(working, verr)
	verdict := "not_working"
	switch {
	case verr != nil:
		verdict = "error"
	case working:
		verdict = "working"
	}
	observability.RecordVerification(verdict)

	stagesJSON, err := json.Marshal(s.stageLog)
	if err != nil {
		stagesJSON = []byte("[]")
	}
	rec := &store.VerificationRecord{
		ID:        uuid.New(),
		ScanID:    s.lastScanID,
		Verdict:   verdict,
		Code:      code,
		Stages:    datatypes.JSON(stagesJSON),
		CreatedAt: time.Now().UTC(),
	}
	if s.store != nil {
		if err := s.store.SaveVerification(ctx, rec); err != nil {
			slog.Error("persist verification failed", "error", err)
		} else if s.retention > 0 {
			if err := s.store.PruneOlderThan(ctx, s.retention); err != nil {
				slog.Warn("history prune failed", "error", err)
			}
		}
	}
	payload, err := json.Marshal(rec)
	if err == nil {
		if s.cache != nil {
			if err := s.cache.SetVerdict(ctx, payload); err != nil {
				slog.Warn("cache verdict failed", "error", err)
			}
		}
		if s.bus != nil {
			if err := s.bus.Publish(TopicVerificationCompleted, payload); err != nil {
				slog.Warn("broadcast verdict failed", "error", err)
			}
		}
	}
	return rec, verr
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rec, devices, err := s.RunScan(r.Context())
	if err != nil {
		slog.Error("scan request failed", "error", err)
		http.Error(w, "device scan failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{
		ScanID:        rec.ID.String(),
		Devices:       devices,
		DeviceCount:   rec.DeviceCount,
		TouchpadFound: rec.TouchpadFound,
		TouchpadPath:  rec.TouchpadPath,
		TouchpadName:  rec.TouchpadName,
		CreatedAt:     rec.CreatedAt,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.RunVerification(r.Context())
	resp := verifyResponse{VerificationID: rec.ID.String(), Verdict: rec.Verdict, Code: rec.Code}
	_ = json.Unmarshal(rec.Stages, &resp.Stages)
	if err != nil {
		slog.Error("verification request failed", "error", err)
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	if s.cache != nil {
		cached, err := s.cache.Scan(ctx)
		if err != nil {
			slog.Warn("scan cache lookup failed", "error", err)
		} else if len(cached) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}
	if s.store != nil {
		scans, err := s.store.RecentScans(ctx, 1)
		if err != nil {
			slog.Error("scan history lookup failed", "error", err)
			http.Error(w, "failed to load scans", http.StatusInternalServerError)
			return
		}
		if len(scans) > 0 {
			writeJSON(w, http.StatusOK, scans[0])
			return
		}
	}
	http.Error(w, "no scan recorded yet", http.StatusNotFound)
}

// handleVerdict serves the most recent verification result: the redis copy
// when present, the persisted one otherwise.
func (s *Server) handleVerdict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	if s.cache != nil {
		cached, err := s.cache.Verdict(ctx)
		if err != nil {
			slog.Warn("verdict cache lookup failed", "error", err)
		} else if len(cached) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}
	if s.store != nil {
		latest, err := s.store.LatestVerification(ctx)
		if err != nil {
			slog.Error("verification lookup failed", "error", err)
			http.Error(w, "failed to load verdict", http.StatusInternalServerError)
			return
		}
		if latest != nil {
			writeJSON(w, http.StatusOK, latest)
			return
		}
	}
	http.Error(w, "no verification recorded yet", http.StatusNotFound)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	st := s.verifier.Status()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	scans, err := s.store.RecentScans(ctx, 20)
	if err != nil {
		slog.Error("scan history query failed", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	verifications, err := s.store.RecentVerifications(ctx, 20)
	if err != nil {
		slog.Error("verification history query failed", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	latest, err := s.store.LatestVerification(ctx)
	if err != nil {
		slog.Error("verification history query failed", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Scans: scans, Verifications: verifications, LatestVerification: latest})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
