package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/websocket"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/app"
	"github.com/truthinlistings/dashboard/internal/export"
	"github.com/truthinlistings/dashboard/internal/server"
	"github.com/truthinlistings/dashboard/internal/session"
	"github.com/truthinlistings/dashboard/internal/testutil"
)

func newTestServer(t *testing.T, api *testutil.DummyAPI, pdf export.Renderer) (*server.Server, *testutil.DummyLogger) {
	t.Helper()

	logger := &testutil.DummyLogger{}
	a := app.NewApplication(app.DefaultConfig(), api, pdf, logger)
	s, err := server.NewServer(server.Config{ListenAddr: ":0", App: a, Logger: logger})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return s, logger
}

// browser replays the session cookie like a real browser would.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, h: h, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func (b *browser) upload(path, filename, contentType, content string) *httptest.ResponseRecorder {
	b.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		b.t.Fatal(err)
	}
	_, _ = part.Write([]byte(content))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func parseHTML(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	if err != nil {
		t.Fatalf("parse HTML: %v", err)
	}
	return doc
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func validForm() url.Values {
	return url.Values{
		"title":       {"Sea-view 2BHK"},
		"description": {"Spacious flat, owner abroad, pay deposit by wire"},
		"price":       {"15000"},
		"area_sqft":   {"1200"},
		"city":        {"Mumbai"},
		"locality":    {"Bandra"},
		"latitude":    {"19.06"},
		"longitude":   {"72.83"},
	}
}

func riskyResult() *apiclient.AnalysisResult {
	return &apiclient.AnalysisResult{
		FraudProbability: 0.82,
		FraudTypes:       []string{"price_anomaly", "advance_payment"},
		Explanations:     []string{"Price is far below the locality median.", "Asks for a wire deposit."},
		ModuleScores: apiclient.ModuleScores{
			{Name: "price_model", Score: 0.91},
			{Name: "text_model", Score: 0.35},
		},
	}
}

// fakePDF records the HTML it is asked to print.
type fakePDF struct {
	mu   sync.Mutex
	html string
}

func (f *fakePDF) RenderPDF(_ context.Context, html []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = string(html)
	return []byte("%PDF-1.4 fake"), nil
}

// ─── Routing ───────────────────────────────────────────────────────────

func TestServer_RootRedirectsToAnalyze(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, nil)

	rec := newBrowser(t, s).get("/")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/analyze" {
		t.Errorf("got %d to %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://frontend.test")
	rec := newBrowser(t, s).do(req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS allow-origin header")
	}
}

func TestServer_LogsRequests(t *testing.T) {
	t.Parallel()
	s, logger := newTestServer(t, &testutil.DummyAPI{}, nil)

	newBrowser(t, s).get("/healthz")
	if !logger.HasInfo("http_request") {
		t.Error("expected http_request log line")
	}
}

func TestServer_SessionCookieIssuedOnce(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, nil)
	b := newBrowser(t, s)

	first := b.get("/analyze")
	if len(first.Result().Cookies()) != 1 || first.Result().Cookies()[0].Name != server.SessionCookie {
		t.Fatalf("expected session cookie, got %v", first.Result().Cookies())
	}
	second := b.get("/analyze")
	if len(second.Result().Cookies()) != 0 {
		t.Errorf("known session got a new cookie: %v", second.Result().Cookies())
	}
}

// ─── Analyze ───────────────────────────────────────────────────────────

func TestServer_AnalyzeForm(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, nil)

	rec := newBrowser(t, s).get("/analyze")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseHTML(t, rec)
	for _, f := range []string{"title", "description", "price", "area_sqft", "city", "locality", "latitude", "longitude"} {
		if doc.Find("#listing-form [name=" + f + "]").Length() != 1 {
			t.Errorf("missing form field %s", f)
		}
	}
	if doc.Find("nav a.active").Text() != "Analyze" {
		t.Errorf("active nav = %q", doc.Find("nav a.active").Text())
	}
}

func TestServer_AnalyzeSubmit_ShowsReport(t *testing.T) {
	t.Parallel()
	saved := make(chan error, 1)
	api := &testutil.DummyAPI{AnalyzeResult: riskyResult(), SaveDone: saved}
	s, _ := newTestServer(t, api, nil)

	rec := newBrowser(t, s).postForm("/analyze", validForm())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	doc := parseHTML(t, rec)
	if got := doc.Find("#tier").Text(); got != "CRITICAL RISK" {
		t.Errorf("tier = %q", got)
	}
	if got := doc.Find("#score").Text(); got != "82%" {
		t.Errorf("score = %q", got)
	}
	if got := doc.Find("#modules .module").Length(); got != 2 {
		t.Errorf("module bars = %d", got)
	}
	if got := doc.Find("#modules .module").First().AttrOr("data-module", ""); got != "price_model" {
		t.Errorf("first module = %q", got)
	}
	if got := doc.Find("#fraud-types .chip").First().Text(); got != "Price Anomaly" {
		t.Errorf("first fraud type = %q", got)
	}
	if got := doc.Find("#findings li").Length(); got != 1 {
		t.Errorf("findings = %d", got)
	}
	if api.LastListing.Price != 15000 || api.LastListing.City != "Mumbai" {
		t.Errorf("listing sent = %+v", api.LastListing)
	}

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("history save was not started")
	}
}

func TestServer_AnalyzeSubmit_InvalidNeverCallsAPI(t *testing.T) {
	t.Parallel()
	api := &testutil.DummyAPI{AnalyzeResult: riskyResult()}
	s, _ := newTestServer(t, api, nil)

	form := validForm()
	form.Set("title", "")
	form.Set("price", "cheap")
	rec := newBrowser(t, s).postForm("/analyze", form)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseHTML(t, rec)
	if got := doc.Find(`.field-error[data-field="title"]`).Text(); got != "is required" {
		t.Errorf("title error = %q", got)
	}
	if got := doc.Find(`.field-error[data-field="price"]`).Text(); got != "must be a number" {
		t.Errorf("price error = %q", got)
	}
	if got, _ := doc.Find("#description").Html(); !strings.Contains(got, "owner abroad") {
		t.Errorf("draft lost: %q", got)
	}
	if analyze, _, _, _, _ := api.Counts(); analyze != 0 {
		t.Errorf("API called %d times for invalid input", analyze)
	}
}

func TestServer_AnalyzeSubmit_APIErrorThenDismiss(t *testing.T) {
	t.Parallel()
	api := &testutil.DummyAPI{AnalyzeErr: &apiclient.Error{
		Kind: apiclient.KindRequest, Status: 500, Message: "Model unavailable",
	}}
	s, _ := newTestServer(t, api, nil)
	b := newBrowser(t, s)

	rec := b.postForm("/analyze", validForm())
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := parseHTML(t, rec).Find("#error span").Text(); got != "Model unavailable" {
		t.Errorf("error = %q", got)
	}

	if rec := b.postForm("/analyze/dismiss", nil); rec.Code != http.StatusSeeOther {
		t.Fatalf("dismiss status = %d", rec.Code)
	}
	doc := parseHTML(t, b.get("/analyze"))
	if doc.Find("#error").Length() != 0 {
		t.Error("error still shown after dismiss")
	}
	if got := doc.Find("#title").AttrOr("value", ""); got != "Sea-view 2BHK" {
		t.Errorf("draft title = %q", got)
	}
}

func TestServer_AnalyzeSubmit_ConflictKeepsInFlightDraft(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	api := &testutil.DummyAPI{AnalyzeResult: riskyResult(), AnalyzeGate: gate}
	s, _ := newTestServer(t, api, nil)
	b := newBrowser(t, s)
	b.get("/analyze")

	first := make(chan int, 1)
	go func() { first <- b.postForm("/analyze", validForm()).Code }()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if n, _, _, _, _ := api.Counts(); n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first submit never reached the API")
		}
		time.Sleep(5 * time.Millisecond)
	}

	form := validForm()
	form.Set("title", "Replacement")
	rec := b.postForm("/analyze", form)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if got := parseHTML(t, rec).Find("#title").AttrOr("value", ""); got != "Sea-view 2BHK" {
		t.Errorf("in-flight draft replaced: title = %q", got)
	}

	close(gate)
	if code := <-first; code != http.StatusOK {
		t.Errorf("first submit status = %d", code)
	}
}

func TestServer_AnalyzeBackKeepsDraft(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{AnalyzeResult: riskyResult()}, nil)
	b := newBrowser(t, s)

	b.postForm("/analyze", validForm())
	b.postForm("/analyze/back", nil)
	doc := parseHTML(t, b.get("/analyze"))
	if doc.Find("#score-card").Length() != 0 {
		t.Error("report still shown after back")
	}
	if got := doc.Find("#city").AttrOr("value", ""); got != "Mumbai" {
		t.Errorf("draft city = %q", got)
	}
}

func TestServer_AnalyzeField(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, nil)
	b := newBrowser(t, s)

	rec := b.postJSON("/analyze/field", `{"field":"price","value":"12"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var snap session.Snapshot
	decodeJSON(t, rec, &snap)
	if snap.View != session.ViewAnalyze || snap.Phase != "idle" {
		t.Errorf("snapshot = %+v", snap)
	}

	if rec := b.postJSON("/analyze/field", `{"field":"bedrooms","value":"2"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d", rec.Code)
	}
	if rec := b.postJSON("/analyze/field", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d", rec.Code)
	}
}

// ─── PDF export ────────────────────────────────────────────────────────

func TestServer_ReportPDF_NoOutcome(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, &fakePDF{})

	if rec := newBrowser(t, s).get("/analyze/report.pdf"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestServer_ReportPDF_Disabled(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{AnalyzeResult: riskyResult()}, nil)
	b := newBrowser(t, s)

	b.postForm("/analyze", validForm())
	if rec := b.get("/analyze/report.pdf"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestServer_ReportPDF_RendersReport(t *testing.T) {
	t.Parallel()
	pdf := &fakePDF{}
	s, _ := newTestServer(t, &testutil.DummyAPI{AnalyzeResult: riskyResult()}, pdf)
	b := newBrowser(t, s)

	b.postForm("/analyze", validForm())
	rec := b.get("/analyze/report.pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Errorf("body = %q", rec.Body.String())
	}
	pdf.mu.Lock()
	html := pdf.html
	pdf.mu.Unlock()
	if !strings.Contains(html, "CRITICAL RISK") || !strings.Contains(html, "Sea-view 2BHK") {
		t.Errorf("printed HTML missing report: %s", html)
	}
}

// ─── Bulk ──────────────────────────────────────────────────────────────

func bulkResult() *apiclient.BulkResult {
	row := func(city, pred string, conf float64) apiclient.BulkRow {
		return apiclient.BulkRow{Prediction: pred, Confidence: conf, Fields: []apiclient.Field{
			{Key: "city", Value: city},
			{Key: "rent", Value: 20000.0},
			{Key: "prediction", Value: pred},
			{Key: "confidence", Value: conf},
		}}
	}
	return &apiclient.BulkResult{
		Rows: []apiclient.BulkRow{
			row("Mumbai", apiclient.PredictionReal, 91.5),
			row("Pune", apiclient.PredictionFraudulent, 77),
			row("Mumbai", apiclient.PredictionFraudulent, 64),
		},
		Metrics: &apiclient.Metrics{ModelAccuracy: 93.1, AverageConfidence: 77.5, RealPercentage: 33.3, FakePercentage: 66.7},
	}
}

func TestServer_BulkUpload(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{BulkResult: bulkResult()}, nil)
	b := newBrowser(t, s)

	rec := b.upload("/bulk", "listings.csv", "text/csv", "city,rent\nMumbai,20000\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	doc := parseHTML(t, rec)
	if got := doc.Find("#total").Text(); got != "3" {
		t.Errorf("total = %q", got)
	}
	if got := doc.Find("#real").Text() + "/" + doc.Find("#fake").Text(); got != "1/2" {
		t.Errorf("distribution = %q", got)
	}
	if got := doc.Find("#rows tr.row").Length(); got != 3 {
		t.Errorf("table rows = %d", got)
	}

	filtered := parseHTML(t, b.get("/bulk?q=pune"))
	if got := filtered.Find("#rows tr.row").Length(); got != 1 {
		t.Errorf("filtered rows = %d", got)
	}
	if got := filtered.Find("#match-count").Text(); got != "1 of 3 rows" {
		t.Errorf("match count = %q", got)
	}
}

func TestServer_BulkUpload_RejectsNonCSV(t *testing.T) {
	t.Parallel()
	api := &testutil.DummyAPI{BulkResult: bulkResult()}
	s, _ := newTestServer(t, api, nil)

	rec := newBrowser(t, s).upload("/bulk", "data.txt", "text/plain", "hello")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := parseHTML(t, rec).Find("#error span").Text(); got != "Please select a valid CSV file." {
		t.Errorf("error = %q", got)
	}
	if _, _, bulk, _, _ := api.Counts(); bulk != 0 {
		t.Errorf("API called %d times", bulk)
	}
}

func TestServer_BulkUpload_Empty(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{BulkResult: &apiclient.BulkResult{}}, nil)

	rec := newBrowser(t, s).upload("/bulk", "empty.csv", "text/csv", "city,rent\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if parseHTML(t, rec).Find("#empty").Length() != 1 {
		t.Error("expected empty-result notice")
	}
}

// ─── History ───────────────────────────────────────────────────────────

func historyAPI() *testutil.DummyAPI {
	price := 15000.0
	return &testutil.DummyAPI{
		History: []apiclient.HistoryRecord{
			{ID: "2", Timestamp: "2024-03-02T09:30:00", Title: "Loft", City: "Pune", FraudProbability: 0.2},
			{ID: "1", Timestamp: "2024-03-01T10:15:00", Title: "Sea-view 2BHK", Locality: "Bandra", City: "Mumbai",
				FraudProbability: 0.82, FraudTypes: []string{"a", "b", "c"}},
		},
		Details: map[string]*apiclient.HistoryRecord{
			"1": {ID: "1", Title: "Sea-view 2BHK", FraudProbability: 0.82, Price: &price,
				Explanations: []string{"Summary.", "Price far below median."},
				ModuleScores: apiclient.ModuleScores{{Name: "price_model", Score: 0.9}}},
			"2": {ID: "2", Title: "Loft", FraudProbability: 0.2,
				Explanations: []string{"Summary.", "Photos are original."},
				ModuleScores: apiclient.ModuleScores{{Name: "price_model", Score: 0.1}, {Name: "image_model", Score: 0.2}}},
		},
	}
}

func TestServer_HistoryList(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, historyAPI(), nil)

	rec := newBrowser(t, s).get("/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseHTML(t, rec)
	rows := doc.Find("tr.record")
	if rows.Length() != 2 {
		t.Fatalf("rows = %d", rows.Length())
	}
	if got := rows.First().AttrOr("data-id", ""); got != "2" {
		t.Errorf("first row = %q, want server order", got)
	}
	if got := rows.Last().Find(".more").Text(); got != "+1 more" {
		t.Errorf("more chip = %q", got)
	}
}

func TestServer_HistoryListError(t *testing.T) {
	t.Parallel()
	api := &testutil.DummyAPI{HistoryErr: &apiclient.Error{Kind: apiclient.KindTransport, Message: "Network error: cannot reach API"}}
	s, _ := newTestServer(t, api, nil)

	rec := newBrowser(t, s).get("/history")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := parseHTML(t, rec).Find("#error span").Text(); got != "Network error: cannot reach API" {
		t.Errorf("error = %q", got)
	}
}

func TestServer_HistoryDetailAndClose(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, historyAPI(), nil)
	b := newBrowser(t, s)

	rec := b.get("/history/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseHTML(t, rec)
	if got := doc.Find("#detail").AttrOr("data-id", ""); got != "1" {
		t.Errorf("detail id = %q", got)
	}
	if got := doc.Find("#detail #price").Text(); got != "15000" {
		t.Errorf("price = %q", got)
	}
	if got := doc.Find("#detail #tier").Text(); got != "CRITICAL RISK" {
		t.Errorf("tier = %q", got)
	}

	b.postForm("/history/close", nil)
	if parseHTML(t, b.get("/history")).Find("#detail").Length() != 0 {
		t.Error("detail still open after close")
	}
}

func TestServer_HistoryDetailNotFound(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, historyAPI(), nil)

	if rec := newBrowser(t, s).get("/history/99"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestServer_HistoryCompare(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, historyAPI(), nil)

	rec := newBrowser(t, s).get("/history/compare?a=1&b=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	doc := parseHTML(t, rec)
	if got := doc.Find("#probability-change").Text(); got != "-62.0 pts" {
		t.Errorf("change = %q", got)
	}
	if got := doc.Find("tr.delta").Length(); got != 2 {
		t.Errorf("deltas = %d", got)
	}
	if doc.Find(`.chunk[data-type="added"]`).Length() != 1 || doc.Find(`.chunk[data-type="removed"]`).Length() != 1 {
		t.Errorf("diff = %s", doc.Find("#explanation-diff").Text())
	}
}

func TestServer_HistoryCompare_NeedsTwoIDs(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, historyAPI(), nil)

	if rec := newBrowser(t, s).get("/history/compare?a=1"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

// ─── JSON endpoints ────────────────────────────────────────────────────

func TestServer_SessionSnapshotFollowsNavigation(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, historyAPI(), nil)
	b := newBrowser(t, s)

	b.get("/history")
	rec := b.get("/api/session")
	var snap session.Snapshot
	decodeJSON(t, rec, &snap)
	if snap.View != session.ViewHistory || snap.Records != 2 || snap.Phase != "success" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, nil)

	rec := newBrowser(t, s).get("/healthz")
	var body server.HealthResponse
	decodeJSON(t, rec, &body)
	if body.Status != "ok" || body.APIBaseURL != "http://fraud-api.test" {
		t.Errorf("body = %+v", body)
	}
}

func TestServer_BackendHealth(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, nil)

	rec := newBrowser(t, s).get("/backend/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rep apiclient.HealthReport
	decodeJSON(t, rec, &rep)
	if rep.Status != 200 || !strings.Contains(string(rep.Body), "healthy") {
		t.Errorf("report = %+v", rep)
	}
}

func TestServer_BackendHealth_Unreachable(t *testing.T) {
	t.Parallel()
	api := &testutil.DummyAPI{HealthErr: &apiclient.Error{Kind: apiclient.KindTransport, Message: "Network error"}}
	s, _ := newTestServer(t, api, nil)

	rec := newBrowser(t, s).get("/backend/health")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	var body server.ErrorResponse
	decodeJSON(t, rec, &body)
	if body.Error != "Network error" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestServer_SwaggerDoc(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, nil)

	rec := newBrowser(t, s).get("/swagger/doc.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/session") {
		t.Errorf("doc missing /api/session: %s", rec.Body.String())
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func TestServer_SessionWebSocketStreamsTransitions(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	api := &testutil.DummyAPI{AnalyzeResult: riskyResult(), AnalyzeGate: gate}
	s, _ := newTestServer(t, api, nil)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	// Establish the session over plain HTTP first.
	resp, err := http.Get(ts.URL + "/analyze")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == server.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie")
	}

	header := http.Header{"Cookie": {cookie.String()}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/session", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var snap session.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.View != session.ViewAnalyze || snap.Phase != "idle" {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	submitted := make(chan error, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/analyze", strings.NewReader(validForm().Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(cookie)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		submitted <- err
	}()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	seen := map[string]bool{}
	for !seen["success"] {
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read: %v (seen %v)", err, seen)
		}
		seen[snap.Phase] = true
		if snap.Phase == "loading" {
			close(gate)
		}
	}
	if !seen["loading"] {
		t.Error("loading phase was not pushed")
	}
	if snap.Percent == nil || *snap.Percent != 82 || snap.Tier != "critical" {
		t.Errorf("final snapshot = %+v", snap)
	}
	if err := <-submitted; err != nil {
		t.Fatal(err)
	}
}

// ─── Construction ──────────────────────────────────────────────────────

func TestNewServer_RequiresApplication(t *testing.T) {
	t.Parallel()
	if _, err := server.NewServer(server.Config{}); err == nil {
		t.Fatal("expected error without application")
	}
}

func TestServer_HTTPServerUsesListenAddr(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &testutil.DummyAPI{}, nil)
	if got := s.HTTPServer().Addr; got != ":0" {
		t.Errorf("Addr = %q", got)
	}
}

var _ export.Renderer = (*fakePDF)(nil)
