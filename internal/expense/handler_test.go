package expense

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
)

func newTestRouter() http.Handler {
	return NewHandler(newTestService()).Routes()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateClaimFetchFlow(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/", CreateExpenseRequest{
		RestaurantName: "Luigi's",
		PayerName:      "Alice",
		Tax:            3.05,
		Items: []ItemRequest{
			{Name: "Margherita Pizza", Price: 18.00},
			{Name: "Caesar Salad", Price: 12.50},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}

	var created ExpenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Slug == "" || len(created.Items) != 2 {
		t.Fatalf("unexpected create response: %+v", created)
	}

	rec = doJSON(t, router, http.MethodPost, "/"+created.Slug+"/items/"+created.Items[0].ID+"/claim",
		ClaimItemRequest{Name: "Bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("claim status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, router, http.MethodGet, "/"+created.Slug, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// the completion flag is named "finished" on the wire
	var raw struct {
		People []map[string]json.RawMessage `json:"people"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if len(raw.People) != 2 {
		t.Fatalf("expected 2 people, got %d", len(raw.People))
	}
	for _, p := range raw.People {
		if _, ok := p["finished"]; !ok {
			t.Error(`person response missing "finished" field`)
		}
		if _, ok := p["isFinished"]; ok {
			t.Error(`person response must not expose "isFinished"`)
		}
	}

	var fetched ExpenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	var bob *PersonResponse
	for i := range fetched.People {
		if fetched.People[i].Name == "Bob" {
			bob = &fetched.People[i]
		}
	}
	if bob == nil {
		t.Fatal("Bob missing from response")
	}
	if bob.TaxShare != 1.80 {
		t.Errorf("bob taxShare = %v, want 1.80", bob.TaxShare)
	}
	if bob.TotalOwed != 19.80 {
		t.Errorf("bob totalOwed = %v, want 19.80", bob.TotalOwed)
	}
	if len(bob.ItemsClaimed) != 1 || bob.ItemsClaimed[0] != created.Items[0].ID {
		t.Errorf("bob itemsClaimed = %v", bob.ItemsClaimed)
	}
}

func TestHandlerErrorShape(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var apiErr struct {
		Status  int    `json:"status"`
		Error   string `json:"error"`
		Message string `json:"message"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message == "" || apiErr.Path == "" {
		t.Errorf("unexpected error body: %+v", apiErr)
	}
}

func TestFinishPendingEndpoints(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/", CreateExpenseRequest{
		RestaurantName: "Cafe",
		PayerName:      "Alice",
		Items:          []ItemRequest{{Name: "Tea", Price: 3.00}},
	})
	var created ExpenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	personID := created.People[0].ID

	rec = doJSON(t, router, http.MethodPut, "/"+created.Slug+"/people/"+personID+"/finish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d", rec.Code)
	}
	var after ExpenseResponse
	json.Unmarshal(rec.Body.Bytes(), &after)
	if !after.People[0].Finished {
		t.Error("person should be finished")
	}

	rec = doJSON(t, router, http.MethodPut, "/"+created.Slug+"/people/"+personID+"/pending", nil)
	var again ExpenseResponse
	json.Unmarshal(rec.Body.Bytes(), &again)
	if again.People[0].Finished {
		t.Error("person should be pending again")
	}

	rec = doJSON(t, router, http.MethodPut, "/"+created.Slug+"/people/nope/finish", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown person: status = %d, want 404", rec.Code)
	}
}

// billUpload builds a multipart body in the shape the UI client sends:
// a "bill" file part plus a "payerName" field.
func billUpload(t *testing.T, payerName, fileContentType string, withFile bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if withFile {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="bill"; filename="bill.jpg"`)
		h.Set("Content-Type", fileContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		part.Write([]byte("not a real image"))
	}
	if payerName != "" {
		mw.WriteField("payerName", payerName)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, router http.Handler, payerName, fileContentType string, withFile bool) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := billUpload(t, payerName, fileContentType, withFile)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadValidation(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name            string
		payerName       string
		fileContentType string
		withFile        bool
	}{
		{name: "missing bill file", payerName: "Alice", withFile: false},
		{name: "non-image content type", payerName: "Alice", fileContentType: "text/plain", withFile: true},
		{name: "missing payer name", fileContentType: "image/jpeg", withFile: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doUpload(t, router, tt.payerName, tt.fileContentType, tt.withFile)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestUploadToleratesExtractionFailure(t *testing.T) {
	service := NewService(NewMemoryStore(), &stubParser{err: errors.New("extraction service down")})
	router := NewHandler(service).Routes()

	rec := doUpload(t, router, "Alice", "image/jpeg", true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}

	var created ExpenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(created.Items) != 0 {
		t.Errorf("failed extraction should create an empty expense, got %d items", len(created.Items))
	}
	if len(created.People) != 1 || created.People[0].Name != "Alice" {
		t.Errorf("payer should be the only person, got %+v", created.People)
	}
}
