package apiutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type contactRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (c *contactRequest) Normalize() { c.Email = NormalizeEmail(c.Email) }

func TestDecodeAndValidateNormalizesFirst(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantOK    bool
		wantEmail string
	}{
		{"plain", `{"email":"ash@example.com"}`, true, "ash@example.com"},
		{"padded and mixed case", `{"email":"  Ash@Example.COM\t"}`, true, "ash@example.com"},
		{"blank after trim", `{"email":"   "}`, false, ""},
		{"not an address", `{"email":" ash "}`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			recorder := httptest.NewRecorder()

			var dst contactRequest
			ok := DecodeAndValidate(recorder, req, &dst)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v (%d %s)", tt.wantOK, ok, recorder.Code, recorder.Body.String())
			}
			if !ok {
				if recorder.Code != http.StatusBadRequest {
					t.Fatalf("expected 400, got %d", recorder.Code)
				}
				var resp struct {
					Fields map[string]string `json:"fields"`
				}
				if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.Fields["email"] == "" {
					t.Fatalf("expected an email field error, got %+v", resp.Fields)
				}
				return
			}
			if dst.Email != tt.wantEmail {
				t.Fatalf("expected %q, got %q", tt.wantEmail, dst.Email)
			}
		})
	}
}
