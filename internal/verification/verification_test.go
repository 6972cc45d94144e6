package verification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockVerifier(t *testing.T) {
	res, err := MockVerifier{}.Verify(context.Background(), "abc")
	if err != nil || !res.Verified() || res.AlumniID != "abc" {
		t.Fatalf("Verify = %+v, %v", res, err)
	}
	if _, err := (MockVerifier{}).Verify(context.Background(), ""); !errors.Is(err, ErrInvalidAlumniID) {
		t.Fatalf("empty id err = %v", err)
	}
}

func TestHTTPVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/verify" {
			http.NotFound(w, r)
			return
		}
		var req verifyRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.AlumniID == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid alumni ID"})
			return
		}
		json.NewEncoder(w).Encode(Result{Result: ResultSuccess, AlumniID: req.AlumniID, Message: "ok"})
	}))
	defer srv.Close()

	v := New(srv.URL+"/", srv.Client())
	res, err := v.Verify(context.Background(), "42")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Verified() || res.AlumniID != "42" {
		t.Errorf("Verify = %+v", res)
	}

	if _, err := v.Verify(context.Background(), "bad"); err == nil {
		t.Fatal("expected error for rejected id")
	}
}

func TestNewWithoutURLUsesMock(t *testing.T) {
	if _, ok := New("", nil).(MockVerifier); !ok {
		t.Fatal("expected MockVerifier")
	}
}
