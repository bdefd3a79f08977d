package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/bus"
	"github.com/tradewind/tradewind/internal/config"
	"github.com/tradewind/tradewind/internal/learning"
	"github.com/tradewind/tradewind/internal/models"
	"github.com/tradewind/tradewind/internal/supervisor"
	"github.com/tradewind/tradewind/internal/trace"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestRouter wires the API over a live bus with a sourcing sink, so
// intake opens real conversations that stay in flight.
func newTestRouter(t *testing.T) (*gin.Engine, *bus.Bus, *learning.Engine) {
	t.Helper()
	var out bytes.Buffer
	b := bus.New(bus.Opts{Out: &out})
	engine, err := learning.New(learning.Opts{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	sup, err := supervisor.New(supervisor.Opts{
		Config: config.Default().Supervisor,
		Bus:    b,
		Engine: engine,
		Out:    &out,
	})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	sink := &agent.MockAgent{AgentID: agent.SourcingID}
	for _, h := range []agent.Handler{sup, sink} {
		if err := b.Register(h); err != nil {
			t.Fatalf("register %s: %v", h.ID(), err)
		}
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start bus: %v", err)
	}
	t.Cleanup(b.Stop)

	tracer, err := trace.New(trace.Opts{Config: config.Default().Trace, Bus: b, Sup: sup, Out: &out})
	if err != nil {
		t.Fatalf("new tracer: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, StartOpts{Bus: b, Sup: sup, Tracer: tracer, Engine: engine})
	return router, b, engine
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return w, decoded
}

func intake(t *testing.T, router *gin.Engine, b *bus.Bus) string {
	t.Helper()
	w, body := doJSON(t, router, http.MethodPost, "/api/requests",
		`{"category":"electronics","budget":50000,"quantity":1,"urgency":"medium"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("intake status = %d, body %s", w.Code, w.Body.String())
	}
	conv, _ := body["conversation_id"].(string)
	if conv == "" {
		t.Fatal("no conversation id in intake response")
	}
	b.Wait()
	return conv
}

func TestIntake_StartsConversation(t *testing.T) {
	router, b, _ := newTestRouter(t)
	conv := intake(t, router, b)

	w, body := doJSON(t, router, http.MethodGet, "/api/conversations/"+conv, "")
	if w.Code != http.StatusOK {
		t.Fatalf("conversation status = %d", w.Code)
	}
	if body["conversation_id"] != conv {
		t.Fatalf("conversation_id = %v", body["conversation_id"])
	}
	if body["status"] != "active" {
		t.Fatalf("status = %v, want active", body["status"])
	}
}

func TestIntake_RejectsBadRequests(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/requests", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", w.Code)
	}
	// Parses but fails validation.
	w, _ = doJSON(t, router, http.MethodPost, "/api/requests", `{"budget":100}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing category status = %d, want 400", w.Code)
	}
}

func TestConversations_List(t *testing.T) {
	router, b, _ := newTestRouter(t)
	intake(t, router, b)
	intake(t, router, b)

	w, body := doJSON(t, router, http.MethodGet, "/api/conversations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	convs, _ := body["conversations"].([]any)
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
}

func TestHistory_KnownAndUnknown(t *testing.T) {
	router, b, _ := newTestRouter(t)
	conv := intake(t, router, b)

	w, body := doJSON(t, router, http.MethodGet, "/api/conversations/"+conv+"/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if entries, _ := body["history"].([]any); len(entries) != 1 {
		t.Fatalf("history length = %d, want 1", len(entries))
	}

	w, _ = doJSON(t, router, http.MethodGet, "/api/conversations/nope/history", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown conversation status = %d, want 404", w.Code)
	}
}

func TestCancel_Endpoint(t *testing.T) {
	router, b, _ := newTestRouter(t)
	conv := intake(t, router, b)

	w, body := doJSON(t, router, http.MethodPost, "/api/conversations/"+conv+"/cancel", "")
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", w.Code)
	}
	if body["status"] != "cancelled" {
		t.Fatalf("status = %v", body["status"])
	}
	if !b.Cancelled(conv) {
		t.Fatal("bus not cancelled")
	}

	w, _ = doJSON(t, router, http.MethodPost, "/api/conversations/nope/cancel", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown cancel status = %d, want 404", w.Code)
	}
}

func TestScorecards_Endpoints(t *testing.T) {
	router, _, engine := newTestRouter(t)

	w, _ := doJSON(t, router, http.MethodGet, "/api/scorecards/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown scorecard status = %d, want 404", w.Code)
	}

	if err := engine.RecordOutcome(learning.Outcome{
		SupplierID: "S1", SupplierName: "Alpha", Tag: learning.OutcomeSuccess,
		QualityScore: 92, OnTime: true, SavingsPct: 0.08,
	}); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	w, body := doJSON(t, router, http.MethodGet, "/api/scorecards/S1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("scorecard status = %d", w.Code)
	}
	if body["supplier_id"] != "S1" {
		t.Fatalf("supplier_id = %v", body["supplier_id"])
	}

	w, body = doJSON(t, router, http.MethodGet, "/api/scorecards", "")
	if w.Code != http.StatusOK {
		t.Fatalf("scorecards status = %d", w.Code)
	}
	if cards, _ := body["scorecards"].([]any); len(cards) != 1 {
		t.Fatalf("got %d scorecards, want 1", len(cards))
	}

	w, body = doJSON(t, router, http.MethodGet, "/api/recommendations?limit=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("recommendations status = %d", w.Code)
	}
	if recs, _ := body["recommendations"].([]any); len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}
}

func TestAnalytics_UnavailableWithoutDB(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w, _ := doJSON(t, router, http.MethodGet, "/api/analytics", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("analytics status = %d, want 503", w.Code)
	}
}

func TestAnalytics_ReportsOverRecordedRows(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.ProcurementRecord{}, &models.SupplierOutcome{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	rec := models.ProcurementRecord{
		ConversationID: "c1", Category: "electronics", Budget: 10000,
		Urgency: "medium", Status: models.ProcurementCompleted,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("create record: %v", err)
	}
	analyzer, err := learning.NewAnalyzer(db)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, StartOpts{Analyzer: analyzer})

	w, body := doJSON(t, router, http.MethodGet, "/api/analytics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("analytics status = %d", w.Code)
	}
	if body["decisions"] != float64(1) || body["total_spend"] != float64(10000) {
		t.Fatalf("report = %v", body)
	}
	cats, _ := body["categories"].([]any)
	if len(cats) != 1 {
		t.Fatalf("categories = %v", body["categories"])
	}
}

func TestDigest_Endpoint(t *testing.T) {
	router, b, _ := newTestRouter(t)
	intake(t, router, b)

	w, body := doJSON(t, router, http.MethodGet, "/api/digest", "")
	if w.Code != http.StatusOK {
		t.Fatalf("digest status = %d", w.Code)
	}
	if body["conversations"] != float64(1) || body["messages"] != float64(1) {
		t.Fatalf("digest = %v", body)
	}
}
