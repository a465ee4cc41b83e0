package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/listening-survey/internal/repository"
	"github.com/stemsi/listening-survey/internal/response"
	"github.com/stemsi/listening-survey/internal/service"
	"github.com/stemsi/listening-survey/internal/storeerr"
	"github.com/stemsi/listening-survey/internal/validator"
	"github.com/stemsi/listening-survey/internal/workbook"
	"github.com/stemsi/listening-survey/internal/workbook/memory"
)

const qn42 = `{"id":"qn-42","title":"Headphone study","description":"Compare two renders",` +
	`"audios":{"a":"https://cdn.test/a.wav","b":"https://cdn.test/b.wav"},` +
	`"strategy":{"pre":{"questions":[{"type":"short-answer","question":"Name"}]},` +
	`"pair":{"questions":[{"type":"pair","question":"Which sounds wider?","allowNeutral":true}],` +
	`"sampleRate":0.5,"allowReplay":true,"showPreviousAnswers":false,"additionalQuestions":[]},` +
	`"post":{"questions":[{"type":"scale","question":"Fatigue","min":1,"max":5,"step":1}]}}}`

func setupRouter(book *memory.Book) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator.Setup()

	log := zerolog.Nop()
	store := repository.NewRecordStore(workbook.NewProvisioner(book, log), log)
	svc := service.NewSurveyService(store, log)

	qh := NewQuestionnaireHandler(svc)
	rh := NewResponseHandler(svc)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.GET("/health", NewSystemHandler("memory").Health)
	r.GET("/questionnaire", qh.PageData)
	r.GET("/api/questionnaires", qh.ListIDs)
	r.GET("/api/questionnaires/:id", qh.GetByID)
	r.POST("/api/responses", rh.Submit)
	return r
}

func seededBook() *memory.Book {
	book := memory.New("survey")
	book.Seed(workbook.QuestionnairesTitle, workbook.QuestionnaireHeaders,
		[]string{"qn-42", qn42},
		[]string{"qn-empty", ""},
		[]string{"qn-broken", "{not json"},
	)
	return book
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func TestGetQuestionnaireByID(t *testing.T) {
	r := setupRouter(seededBook())

	w := do(r, http.MethodGet, "/api/questionnaires/qn-42", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got := decode(t, w.Body.Bytes())
	want := decode(t, []byte(qn42))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("body mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestGetQuestionnaireServesStoredJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"partial", `{"id":"qn-42","title":"T"}`},
		{"extra field", `{"id":"qn-42","title":"T","version":2}`},
		{"untagged question", `{"id":"qn-42","strategy":{"pre":{"questions":[{"question":"Age?"}]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := memory.New("survey")
			book.Seed(workbook.QuestionnairesTitle, workbook.QuestionnaireHeaders, []string{"qn-42", tt.data})
			r := setupRouter(book)
			want := decode(t, []byte(tt.data))

			w := do(r, http.MethodGet, "/api/questionnaires/qn-42", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if got := decode(t, w.Body.Bytes()); !reflect.DeepEqual(got, want) {
				t.Errorf("body mismatch\n got: %v\nwant: %v", got, want)
			}

			w = do(r, http.MethodGet, "/questionnaire?id=qn-42", "")
			if w.Code != http.StatusOK {
				t.Fatalf("page status = %d, body = %s", w.Code, w.Body.String())
			}
			if got := decode(t, w.Body.Bytes())["questionnaire"]; !reflect.DeepEqual(got, want) {
				t.Errorf("page questionnaire mismatch\n got: %v\nwant: %v", got, want)
			}
		})
	}
}

func TestQuestionnaireIDMatchedAsSent(t *testing.T) {
	book := memory.New("survey")
	book.Seed(workbook.QuestionnairesTitle, workbook.QuestionnaireHeaders,
		[]string{" qn-7", `{"id":" qn-7"}`},
	)
	r := setupRouter(book)

	if w := do(r, http.MethodGet, "/api/questionnaires/%20qn-7", ""); w.Code != http.StatusOK {
		t.Errorf("padded id: status = %d, want 200", w.Code)
	}
	if w := do(r, http.MethodGet, "/questionnaire?id=%20qn-7", ""); w.Code != http.StatusOK {
		t.Errorf("padded page id: status = %d, want 200", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/questionnaires/qn-7", ""); w.Code != http.StatusNotFound {
		t.Errorf("unpadded id: status = %d, want 404", w.Code)
	}
}

func TestGetQuestionnaireNotFound(t *testing.T) {
	r := setupRouter(seededBook())

	for _, id := range []string{"missing", "qn-empty", "qn-broken", "QN-42"} {
		w := do(r, http.MethodGet, "/api/questionnaires/"+id, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", id, w.Code)
			continue
		}
		body := decode(t, w.Body.Bytes())
		if body["error"] != "Questionnaire not found" {
			t.Errorf("%s: error = %v", id, body["error"])
		}
		if body["request_id"] == "" || body["request_id"] == nil {
			t.Errorf("%s: missing request_id", id)
		}
	}
}

func TestGetQuestionnaireBackendFailure(t *testing.T) {
	book := seededBook()
	book.FailRows(errors.New("quota exceeded"))
	r := setupRouter(book)

	w := do(r, http.MethodGet, "/api/questionnaires/qn-42", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetQuestionnaireMisconfigured(t *testing.T) {
	book := seededBook()
	book.FailOpen(fmt.Errorf("%w: missing GOOGLE_SPREADSHEET_ID", storeerr.ErrConfiguration))
	r := setupRouter(book)

	w := do(r, http.MethodGet, "/api/questionnaires/qn-42", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body := decode(t, w.Body.Bytes()); body["code"] != string(response.ErrStorageMisconfigured) {
		t.Errorf("code = %v", body["code"])
	}
}

func TestQuestionnairePageData(t *testing.T) {
	r := setupRouter(seededBook())

	w := do(r, http.MethodGet, "/questionnaire?id=qn-42", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode(t, w.Body.Bytes())
	if !reflect.DeepEqual(body["questionnaire"], decode(t, []byte(qn42))) {
		t.Errorf("questionnaire = %v", body["questionnaire"])
	}

	if w := do(r, http.MethodGet, "/questionnaire", ""); w.Code != http.StatusBadRequest {
		t.Errorf("no id: status = %d, want 400", w.Code)
	}
	if w := do(r, http.MethodGet, "/questionnaire?id=nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", w.Code)
	}
}

func TestListQuestionnaireIDs(t *testing.T) {
	r := setupRouter(seededBook())

	w := do(r, http.MethodGet, "/api/questionnaires", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	want := []string{"qn-42", "qn-empty", "qn-broken"}
	if !reflect.DeepEqual(body.IDs, want) {
		t.Errorf("ids = %v, want %v", body.IDs, want)
	}
}

func TestListQuestionnaireIDsWithoutSheet(t *testing.T) {
	r := setupRouter(memory.New("survey"))

	w := do(r, http.MethodGet, "/api/questionnaires", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != `{"ids":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestSubmitResponse(t *testing.T) {
	book := seededBook()
	r := setupRouter(book)

	body := `{"qid":"qn-42","pre":[],"pair":[],"post":[]}`
	first := do(r, http.MethodPost, "/api/responses", body)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", first.Code, first.Body.String())
	}
	var ack response.SubmitBody
	if err := json.Unmarshal(first.Body.Bytes(), &ack); err != nil {
		t.Fatal(err)
	}
	if !ack.Success || ack.Message != "Response saved successfully" || ack.TID == "" {
		t.Errorf("ack = %+v", ack)
	}

	second := do(r, http.MethodPost, "/api/responses", body)
	var ack2 response.SubmitBody
	if err := json.Unmarshal(second.Body.Bytes(), &ack2); err != nil {
		t.Fatal(err)
	}
	if ack2.TID == ack.TID {
		t.Errorf("tid reused: %s", ack.TID)
	}

	rows := book.RawRows("qn-42")
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	row := workbook.RowFromCells(workbook.ResponseHeaders, rows[0])
	if row.Get("qid") != "qn-42" || row.Get("tid") != ack.TID {
		t.Errorf("row = %v", row)
	}
	stored := decode(t, []byte(row.Get("data")))
	if stored["tid"] != ack.TID || stored["qid"] != "qn-42" {
		t.Errorf("data = %v", stored)
	}
}

func TestSubmitResponseStoresClientDocument(t *testing.T) {
	book := seededBook()
	r := setupRouter(book)

	body := `{"qid":"qn-42","tid":"client","startedAt":"2026-10-19T09:00:00Z",` +
		`"pre":[{"question":"Listening device","response":"Headphones"}],"pair":[],"post":[]}`
	w := do(r, http.MethodPost, "/api/responses", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var ack response.SubmitBody
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatal(err)
	}

	rows := book.RawRows("qn-42")
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	stored := decode(t, []byte(workbook.RowFromCells(workbook.ResponseHeaders, rows[0]).Get("data")))

	want := decode(t, []byte(body))
	want["tid"] = ack.TID
	if !reflect.DeepEqual(stored, want) {
		t.Errorf("stored document mismatch\n got: %v\nwant: %v", stored, want)
	}
}

func TestSubmitResponseKeepsQIDAsSent(t *testing.T) {
	book := seededBook()
	r := setupRouter(book)

	w := do(r, http.MethodPost, "/api/responses", `{"qid":" qn-42 ","pre":[],"pair":[],"post":[]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if n := book.SheetCount(" qn-42 "); n != 1 {
		t.Errorf("worksheet %q count = %d, want 1", " qn-42 ", n)
	}
	if n := book.SheetCount("qn-42"); n != 0 {
		t.Errorf("qid was trimmed into worksheet qn-42")
	}
}

func TestSubmitResponseIgnoresClientTID(t *testing.T) {
	r := setupRouter(seededBook())

	w := do(r, http.MethodPost, "/api/responses", `{"qid":"qn-42","tid":"chosen-by-client","pre":[],"pair":[],"post":[]}`)
	var ack response.SubmitBody
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatal(err)
	}
	if ack.TID == "chosen-by-client" {
		t.Error("client tid was kept")
	}
}

func TestSubmitResponseRejectsBadInput(t *testing.T) {
	book := seededBook()
	r := setupRouter(book)

	tests := []struct {
		name string
		body string
		code response.ErrCode
	}{
		{"missing qid", `{"pre":[],"pair":[],"post":[]}`, response.ErrQIDRequired},
		{"empty qid", `{"qid":"","pre":[],"pair":[],"post":[]}`, response.ErrQIDRequired},
		{"empty body", ``, response.ErrInvalidPayload},
		{"malformed", `{"qid":`, response.ErrInvalidPayload},
		{"preference out of range", `{"qid":"qn-42","pair":[{"question":"q","audios":["a","b"],"round1":7,"round2":0}]}`, response.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/responses", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
			if body := decode(t, w.Body.Bytes()); body["code"] != string(tt.code) {
				t.Errorf("code = %v, want %s", body["code"], tt.code)
			}
		})
	}

	if n := book.SheetCount("qn-42"); n != 0 {
		t.Errorf("rejected submissions created %d worksheets", n)
	}
}

func TestSubmitResponseStorageFailure(t *testing.T) {
	book := seededBook()
	book.FailAppend(errors.New("backend unavailable"))
	r := setupRouter(book)

	w := do(r, http.MethodPost, "/api/responses", `{"qid":"qn-42","pre":[],"pair":[],"post":[]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body := decode(t, w.Body.Bytes()); body["error"] != "Failed to process response" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestHealth(t *testing.T) {
	r := setupRouter(memory.New("survey"))

	w := do(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w.Body.Bytes()); body["status"] != "ok" || body["storage"] != "memory" {
		t.Errorf("body = %v", body)
	}
}
