package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDisputeHandler_Raise_Unauthorized(t *testing.T) {
	r := newTestRouter()
	handler := &DisputeHandler{svc: nil}
	r.POST("/transactions/:id/dispute", handler.Raise)

	body := strings.NewReader(`{"reason":"товар так и не был отправлен продавцом"}`)
	req, _ := http.NewRequest("POST", "/transactions/"+uuid.NewString()+"/dispute", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisputeHandler_Resolve_InvalidID(t *testing.T) {
	r := newTestRouter()
	withUser(r, uuid.New(), "admin")
	handler := &DisputeHandler{svc: nil}
	r.POST("/disputes/:id/resolve", handler.Resolve)

	body := strings.NewReader(`{"winner":"buyer","resolution":"возврат средств покупателю"}`)
	req, _ := http.NewRequest("POST", "/disputes/oops/resolve", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_UploadEvidence_NoFile(t *testing.T) {
	r := newTestRouter()
	withUser(r, uuid.New(), "buyer")
	handler := &DisputeHandler{svc: nil}
	r.POST("/disputes/:id/evidence", handler.UploadEvidence)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("comment", "без файла")
	mw.Close()

	req, _ := http.NewRequest("POST", "/disputes/"+uuid.NewString()+"/evidence", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "файл не передан")
}
