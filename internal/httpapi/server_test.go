package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/giorgiosld/driver-verifier/internal/hostio"
	"github.com/giorgiosld/driver-verifier/internal/store"
	"github.com/giorgiosld/driver-verifier/internal/verifier"
)

type scriptedHost struct {
	entries      []string
	names        map[string]string
	moduleLoaded bool
	moduleErr    error
	responsive   bool
	events       bool
}

func (f *scriptedHost) ReadDirectory(path string) ([]string, error) { return f.entries, nil }

func (f *scriptedHost) ReadFile(path string) ([]byte, error) {
	if v, ok := f.names[path]; ok {
		return []byte(v), nil
	}
	return nil, os.ErrNotExist
}

func (f *scriptedHost) DeviceCapabilities(path string) (hostio.Capabilities, error) {
	return hostio.Capabilities{}, errors.New("no capabilities scripted")
}

func (f *scriptedHost) ModuleLoaded(name string) (bool, error) { return f.moduleLoaded, f.moduleErr }
func (f *scriptedHost) DeviceResponsive(path string) (bool, error) {
	return f.responsive, nil
}
func (f *scriptedHost) DeviceEvents(path string) (bool, error) { return f.events, nil }

type recordingBus struct {
	topics []string
}

func (b *recordingBus) Publish(topic string, payload []byte) error {
	b.topics = append(b.topics, topic)
	return nil
}

type memStore struct {
	scans          []store.ScanRecord
	verifications  []store.VerificationRecord
	pruneCalls     int
	pruneRetention time.Duration
}

func (m *memStore) SaveScan(ctx context.Context, rec *store.ScanRecord) error {
	m.scans = append(m.scans, *rec)
	return nil
}

func (m *memStore) SaveVerification(ctx context.Context, rec *store.VerificationRecord) error {
	m.verifications = append(m.verifications, *rec)
	return nil
}

func (m *memStore) RecentScans(ctx context.Context, limit int) ([]store.ScanRecord, error) {
	return m.scans, nil
}

func (m *memStore) RecentVerifications(ctx context.Context, limit int) ([]store.VerificationRecord, error) {
	return m.verifications, nil
}

func (m *memStore) LatestVerification(ctx context.Context) (*store.VerificationRecord, error) {
	if len(m.verifications) == 0 {
		return nil, nil
	}
	rec := m.verifications[len(m.verifications)-1]
	return &rec, nil
}

func (m *memStore) PruneOlderThan(ctx context.Context, retention time.Duration) error {
	m.pruneCalls++
	m.pruneRetention = retention
	return nil
}

type memCache struct {
	scan    []byte
	verdict []byte
}

func (c *memCache) SetScan(ctx context.Context, scanJSON []byte) error {
	c.scan = scanJSON
	return nil
}

func (c *memCache) Scan(ctx context.Context) ([]byte, error) { return c.scan, nil }

func (c *memCache) SetVerdict(ctx context.Context, verdictJSON []byte) error {
	c.verdict = verdictJSON
	return nil
}

func (c *memCache) Verdict(ctx context.Context) ([]byte, error) { return c.verdict, nil }

func workingHost() *scriptedHost {
	return &scriptedHost{
		entries: []string{"event0", "event1"},
		names: map[string]string{
			"/sys/class/input/event0/device/name": "ELAN Touchpad",
			"/sys/class/input/event1/device/name": "AT Translated Set 2 keyboard",
		},
		moduleLoaded: true,
		responsive:   true,
		events:       true,
	}
}

func newTestServer(h hostio.Host, bus Publisher) *Server {
	vc := verifier.New(h, verifier.Options{DevDir: "/dev/input", SysfsDir: "/sys/class/input"})
	return NewServer(vc, nil, nil, bus)
}

func TestHandleScanReturnsDevices(t *testing.T) {
	srv := newTestServer(workingHost(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/verifier/scan", nil)
	rr := httptest.NewRecorder()
	srv.handleScan(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var got scanResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid json: %v", err)
	}
	if got.DeviceCount != 2 || len(got.Devices) != 2 {
		t.Fatalf("unexpected device count: %+v", got)
	}
	if !got.TouchpadFound || got.TouchpadPath != "/dev/input/event0" {
		t.Fatalf("touchpad not selected: %+v", got)
	}
	if got.Devices[0].Type != verifier.DeviceTouchpad {
		t.Fatalf("device type lost in transit: %+v", got.Devices[0])
	}
}

func TestHandleScanMethodNotAllowed(t *testing.T) {
	srv := newTestServer(workingHost(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/scan", nil)
	rr := httptest.NewRecorder()
	srv.handleScan(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleVerifyWorking(t *testing.T) {
	srv := newTestServer(workingHost(), nil)
	if _, _, err := srv.RunScan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/verifier/verify", nil)
	rr := httptest.NewRecorder()
	srv.handleVerify(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var got verifyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid json: %v", err)
	}
	if got.Verdict != "working" || got.Code != 1 {
		t.Fatalf("unexpected verdict: %+v", got)
	}
	if len(got.Stages) != 3 {
		t.Fatalf("expected 3 stage results, got %+v", got.Stages)
	}
}

func TestHandleVerifyWithoutScanReportsNotWorking(t *testing.T) {
	srv := newTestServer(workingHost(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/verifier/verify", nil)
	rr := httptest.NewRecorder()
	srv.handleVerify(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var got verifyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid json: %v", err)
	}
	if got.Verdict != "not_working" || got.Code != 0 {
		t.Fatalf("unexpected verdict: %+v", got)
	}
}

func TestHandleVerifyHardError(t *testing.T) {
	h := workingHost()
	h.moduleErr = errors.New("proc unreadable")
	srv := newTestServer(h, nil)
	if _, _, err := srv.RunScan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/verifier/verify", nil)
	rr := httptest.NewRecorder()
	srv.handleVerify(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadGateway)
	}
	var got verifyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid json: %v", err)
	}
	if got.Verdict != "error" || got.Code != -1 {
		t.Fatalf("unexpected verdict: %+v", got)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(workingHost(), nil)
	if _, _, err := srv.RunScan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/status", nil)
	rr := httptest.NewRecorder()
	srv.handleStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var got verifier.Status
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid json: %v", err)
	}
	if !got.TouchpadFound || got.TouchpadName != "ELAN Touchpad" {
		t.Fatalf("unexpected status payload: %+v", got)
	}
}

func TestHandleDevicesWithoutBackends(t *testing.T) {
	srv := newTestServer(workingHost(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/devices", nil)
	rr := httptest.NewRecorder()
	srv.handleDevices(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleHistoryUnavailableWithoutStore(t *testing.T) {
	srv := newTestServer(workingHost(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/history", nil)
	rr := httptest.NewRecorder()
	srv.handleHistory(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestRunVerificationPrunesHistory(t *testing.T) {
	ms := &memStore{}
	vc := verifier.New(workingHost(), verifier.Options{DevDir: "/dev/input", SysfsDir: "/sys/class/input"})
	srv := NewServer(vc, ms, nil, nil)
	srv.SetHistoryRetention(48 * time.Hour)

	if _, _, err := srv.RunScan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if _, err := srv.RunVerification(context.Background()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if ms.pruneCalls != 1 || ms.pruneRetention != 48*time.Hour {
		t.Fatalf("expected one prune with 48h retention, got %d calls with %v", ms.pruneCalls, ms.pruneRetention)
	}
}

func TestRunVerificationSkipsPruneWithoutRetention(t *testing.T) {
	ms := &memStore{}
	vc := verifier.New(workingHost(), verifier.Options{DevDir: "/dev/input", SysfsDir: "/sys/class/input"})
	srv := NewServer(vc, ms, nil, nil)

	if _, _, err := srv.RunScan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if _, err := srv.RunVerification(context.Background()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if ms.pruneCalls != 0 {
		t.Fatalf("prune ran with zero retention: %d calls", ms.pruneCalls)
	}
}

func TestHandleVerdictServedFromCache(t *testing.T) {
	cache := &memCache{verdict: []byte(`{"verdict":"working","code":1}`)}
	vc := verifier.New(workingHost(), verifier.Options{DevDir: "/dev/input", SysfsDir: "/sys/class/input"})
	srv := NewServer(vc, nil, cache, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/verdict", nil)
	rr := httptest.NewRecorder()
	srv.handleVerdict(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var got verifyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid json: %v", err)
	}
	if got.Verdict != "working" || got.Code != 1 {
		t.Fatalf("cached verdict not served: %+v", got)
	}
}

func TestHandleVerdictFallsBackToStore(t *testing.T) {
	ms := &memStore{}
	vc := verifier.New(workingHost(), verifier.Options{DevDir: "/dev/input", SysfsDir: "/sys/class/input"})
	srv := NewServer(vc, ms, &memCache{}, nil)
	if _, _, err := srv.RunScan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if _, err := srv.RunVerification(context.Background()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	// Only the persisted copy should remain.
	srv.cache = &memCache{}

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/verdict", nil)
	rr := httptest.NewRecorder()
	srv.handleVerdict(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var got store.VerificationRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid json: %v", err)
	}
	if got.Verdict != "working" || got.Code != 1 {
		t.Fatalf("persisted verdict not served: %+v", got)
	}
}

func TestHandleVerdictNotFound(t *testing.T) {
	srv := newTestServer(workingHost(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/verdict", nil)
	rr := httptest.NewRecorder()
	srv.handleVerdict(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleHistoryIncludesVerifications(t *testing.T) {
	ms := &memStore{}
	vc := verifier.New(workingHost(), verifier.Options{DevDir: "/dev/input", SysfsDir: "/sys/class/input"})
	srv := NewServer(vc, ms, nil, nil)
	if _, _, err := srv.RunScan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if _, err := srv.RunVerification(context.Background()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/history", nil)
	rr := httptest.NewRecorder()
	srv.handleHistory(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var got historyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid json: %v", err)
	}
	if len(got.Scans) != 1 || len(got.Verifications) != 1 {
		t.Fatalf("unexpected history sizes: %d scans, %d verifications", len(got.Scans), len(got.Verifications))
	}
	if got.LatestVerification == nil || got.LatestVerification.Verdict != "working" {
		t.Fatalf("latest verification missing: %+v", got.LatestVerification)
	}
}

func TestRunScanAndVerifyPublishResults(t *testing.T) {
	bus := &recordingBus{}
	srv := newTestServer(workingHost(), bus)

	if _, _, err := srv.RunScan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if _, err := srv.RunVerification(context.Background()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if len(bus.topics) != 2 {
		t.Fatalf("expected 2 events, got %v", bus.topics)
	}
	if bus.topics[0] != TopicScanCompleted || bus.topics[1] != TopicVerificationCompleted {
		t.Fatalf("unexpected topics: %v", bus.topics)
	}
}
