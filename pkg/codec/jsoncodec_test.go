package codec

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type status struct {
	Service string `json:"service"`
	Pending int    `json:"pending"`
}

func TestJSONStrict_Unmarshal(t *testing.T) {
	var s status
	if err := JSONStrict.Unmarshal([]byte(`{"service":"a","pending":2}`), &s); err != nil {
		t.Fatal(err)
	}
	if s.Service != "a" || s.Pending != 2 {
		t.Fatalf("got %+v", s)
	}
	if err := JSONStrict.Unmarshal([]byte(`{"service":"a","extra":1}`), &s); err == nil {
		t.Fatalf("unknown field accepted")
	}
	if err := JSONStrict.Unmarshal([]byte(`{"service":"a"} {}`), &s); err == nil {
		t.Fatalf("trailing content accepted")
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, JSONStrict, http.StatusOK, status{Service: "<svc>", Pending: 1})

	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if got := rec.Body.String(); got != `{"service":"<svc>","pending":1}` {
		t.Fatalf("body = %s", got)
	}
}
