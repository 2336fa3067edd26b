package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestModelsHandler_List(t *testing.T) {
	handler := NewModelsHandler(newFakeEngine())

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/api/v1/models", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	if data["count"].(float64) != 2 {
		t.Errorf("expected 2 models, got %v", data["count"])
	}
	if data["active"].(float64) != 1 {
		t.Errorf("expected 1 active model, got %v", data["active"])
	}
}

func TestModelsHandler_Get(t *testing.T) {
	handler := NewModelsHandler(newFakeEngine())

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"existing", "rf-1", http.StatusOK},
		{"missing", "nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/models/"+tt.id, nil)
			req.SetPathValue("id", tt.id)
			w := httptest.NewRecorder()

			handler.Get(w, req)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestModelsHandler_Retrain(t *testing.T) {
	fake := newFakeEngine()
	handler := NewModelsHandler(fake)

	w := httptest.NewRecorder()
	handler.Retrain(w, httptest.NewRequest("POST", "/api/v1/models/retrain", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fake.retrains != 1 {
		t.Errorf("expected 1 retrain, got %d", fake.retrains)
	}
}

func TestModelsHandler_RetrainError(t *testing.T) {
	fake := newFakeEngine()
	fake.retrainErr = errors.New("boom")
	handler := NewModelsHandler(fake)

	w := httptest.NewRecorder()
	handler.Retrain(w, httptest.NewRequest("POST", "/api/v1/models/retrain", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
