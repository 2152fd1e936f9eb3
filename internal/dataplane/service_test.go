package dataplane

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	return NewService(store), store
}

func doRequest(svc *Service, method, path string, body []byte, verifying bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if verifying {
		req.Header.Set(headerVerifyIntent, "150-NodeContinue")
	}
	rec := httptest.NewRecorder()
	svc.ServeKV(rec, req)
	return rec
}

func TestServeKVMissingKeyIsRejected(t *testing.T) {
	svc, _ := newTestService()

	rec := doRequest(svc, http.MethodGet, "/kv/", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing key, got %d", rec.Code)
	}

	rec = doRequest(svc, http.MethodGet, "/kv/", nil, true)
	if rec.Code != StatusVerifyReject {
		t.Errorf("expected %d during verification, got %d", StatusVerifyReject, rec.Code)
	}
}

func TestServeKVVerifyRoundNeverTouchesStore(t *testing.T) {
	svc, store := newTestService()

	payload, _ := json.Marshal(putPayload{Value: "x"})
	rec := doRequest(svc, http.MethodPut, "/kv/foo", payload, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 (accept carried via header), got %d", rec.Code)
	}
	if got := rec.Header().Get(headerVerifyStatus); got != "150" {
		t.Errorf("expected X-Verify-Status: 150, got %q", got)
	}
	if _, err := store.Get("foo"); err != ErrKeyNotFound {
		t.Errorf("verify round must not write to the store, got err=%v", err)
	}
}

func TestServeKVVerifyRoundRejectsMalformedBody(t *testing.T) {
	svc, _ := newTestService()

	rec := doRequest(svc, http.MethodPut, "/kv/foo", []byte("not json"), true)
	if rec.Code != StatusVerifyReject {
		t.Errorf("expected %d for malformed body during verification, got %d", StatusVerifyReject, rec.Code)
	}
}

func TestServeKVPutThenGet(t *testing.T) {
	svc, _ := newTestService()

	payload, _ := json.Marshal(putPayload{Value: "bar"})
	rec := doRequest(svc, http.MethodPut, "/kv/foo", payload, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on apply, got %d", rec.Code)
	}

	rec = doRequest(svc, http.MethodGet, "/kv/foo", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", rec.Code)
	}
	var got putPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Value != "bar" {
		t.Errorf("expected value %q, got %q", "bar", got.Value)
	}
}

func TestServeKVGetMissingKeyIs404(t *testing.T) {
	svc, _ := newTestService()

	rec := doRequest(svc, http.MethodGet, "/kv/missing", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServeKVDelete(t *testing.T) {
	svc, store := newTestService()
	_ = store.Put("foo", []byte("bar"))

	rec := doRequest(svc, http.MethodDelete, "/kv/foo", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}
	if _, err := store.Get("foo"); err != ErrKeyNotFound {
		t.Errorf("expected key to be gone after delete, got err=%v", err)
	}
}

func TestServeKVUnsupportedMethod(t *testing.T) {
	svc, _ := newTestService()

	rec := doRequest(svc, http.MethodPatch, "/kv/foo", nil, false)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}

	rec = doRequest(svc, http.MethodPatch, "/kv/foo", nil, true)
	if rec.Code != StatusVerifyReject {
		t.Errorf("expected %d during verification, got %d", StatusVerifyReject, rec.Code)
	}
}
