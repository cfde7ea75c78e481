package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aegisharvest/coldchain/internal/oracle"
	"github.com/aegisharvest/coldchain/internal/store"
	"github.com/aegisharvest/coldchain/pkg/models"
)

// scriptedOracle replays a fixed sequence of completions and records every
// request it receives.
type scriptedOracle struct {
	script   []*oracle.Completion
	err      error
	calls    int
	requests [][]oracle.Message
}

func (o *scriptedOracle) Complete(_ context.Context, messages []oracle.Message, _ []oracle.ToolDef) (*oracle.Completion, error) {
	o.calls++
	o.requests = append(o.requests, append([]oracle.Message(nil), messages...))
	if o.err != nil {
		return nil, o.err
	}
	idx := o.calls - 1
	if idx >= len(o.script) {
		idx = len(o.script) - 1
	}
	return o.script[idx], nil
}

type stubPredictor struct {
	result *models.PredictionResult
	err    error
	last   models.PredictionRequest
}

func (p *stubPredictor) Predict(req models.PredictionRequest) (*models.PredictionResult, error) {
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func newTestService(o oracle.Client, db store.Store) *Service {
	if db == nil {
		db = store.NewMemoryStore()
	}
	reg := NewRegistry(&stubPredictor{result: &models.PredictionResult{}}, db)
	return NewService(o, reg, db, nil)
}

func textCompletion(content string) *oracle.Completion {
	return &oracle.Completion{Content: content}
}

func toolCompletion(calls ...oracle.ToolCall) *oracle.Completion {
	return &oracle.Completion{ToolCalls: calls}
}

func TestChatFinalAnswer(t *testing.T) {
	o := &scriptedOracle{script: []*oracle.Completion{textCompletion("All cargo nominal.")}}
	db := store.NewMemoryStore()
	svc := newTestService(o, db)

	resp, err := svc.Chat(context.Background(), ChatRequest{Message: "status?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != "All cargo nominal." {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.ActionRequired {
		t.Error("action_required should be false")
	}
	if resp.SessionID == "" {
		t.Error("session id not assigned")
	}

	turns, _ := db.ConversationHistory(context.Background(), resp.SessionID)
	if len(turns) != 2 {
		t.Fatalf("persisted %d turns, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("turn roles: %q, %q", turns[0].Role, turns[1].Role)
	}
}

func TestChatActionKeywords(t *testing.T) {
	for _, tc := range []struct {
		reply string
		want  bool
	}{
		{"Recommend you REROUTE to Centre A now.", true},
		{"Initiate a market pivot immediately.", true},
		{"This is a crisis situation.", true},
		{"Redirect the shipment.", true},
		{"Everything is fine, no changes needed.", false},
	} {
		o := &scriptedOracle{script: []*oracle.Completion{textCompletion(tc.reply)}}
		svc := newTestService(o, nil)
		resp, err := svc.Chat(context.Background(), ChatRequest{Message: "check"})
		if err != nil {
			t.Fatal(err)
		}
		if resp.ActionRequired != tc.want {
			t.Errorf("%q: action_required = %v, want %v", tc.reply, resp.ActionRequired, tc.want)
		}
	}
}

func TestChatRoundBound(t *testing.T) {
	// An oracle that always wants tools must be cut off after six trips.
	o := &scriptedOracle{script: []*oracle.Completion{
		toolCompletion(oracle.ToolCall{
			ID:       "call_1",
			Type:     "function",
			Function: oracle.FunctionCall{Name: "get_active_routes", Arguments: "{}"},
		}),
	}}
	db := store.NewMemoryStore()
	svc := newTestService(o, db)

	resp, err := svc.Chat(context.Background(), ChatRequest{Message: "loop forever", SessionID: "s-loop"})
	if err != nil {
		t.Fatal(err)
	}
	if o.calls != maxRounds {
		t.Errorf("oracle called %d times, want %d", o.calls, maxRounds)
	}
	if resp.Message != fallbackReply {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.ActionRequired {
		t.Error("fallback must not require action")
	}

	// The exhausted path does not persist turns.
	turns, _ := db.ConversationHistory(context.Background(), "s-loop")
	if len(turns) != 0 {
		t.Errorf("persisted %d turns on exhausted path", len(turns))
	}
}

func TestChatOracleFailureFallsBack(t *testing.T) {
	o := &scriptedOracle{err: errors.New("upstream down")}
	svc := newTestService(o, nil)

	resp, err := svc.Chat(context.Background(), ChatRequest{Message: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != fallbackReply {
		t.Errorf("message = %q", resp.Message)
	}
	if strings.Contains(resp.Message, "upstream") {
		t.Error("internal error leaked to the operator")
	}
}

func TestChatToolResultsPairedInOrder(t *testing.T) {
	o := &scriptedOracle{script: []*oracle.Completion{
		toolCompletion(
			oracle.ToolCall{ID: "call_a", Type: "function", Function: oracle.FunctionCall{Name: "get_active_routes", Arguments: "{}"}},
			oracle.ToolCall{ID: "call_b", Type: "function", Function: oracle.FunctionCall{Name: "get_facility_status", Arguments: "{}"}},
		),
		textCompletion("done"),
	}}
	svc := newTestService(o, nil)

	if _, err := svc.Chat(context.Background(), ChatRequest{Message: "check"}); err != nil {
		t.Fatal(err)
	}
	if o.calls != 2 {
		t.Fatalf("oracle called %d times, want 2", o.calls)
	}

	// Second request must carry: ... assistant(tool_calls), tool(call_a), tool(call_b).
	second := o.requests[1]
	n := len(second)
	if n < 3 {
		t.Fatalf("second request has %d messages", n)
	}
	assistant, toolA, toolB := second[n-3], second[n-2], second[n-1]
	if assistant.Role != "assistant" || len(assistant.ToolCalls) != 2 {
		t.Errorf("assistant turn malformed: %+v", assistant)
	}
	if toolA.Role != "tool" || toolA.ToolCallID != "call_a" {
		t.Errorf("first result: role=%q id=%q", toolA.Role, toolA.ToolCallID)
	}
	if toolB.Role != "tool" || toolB.ToolCallID != "call_b" {
		t.Errorf("second result: role=%q id=%q", toolB.Role, toolB.ToolCallID)
	}
	if toolA.Content == "" || toolB.Content == "" {
		t.Error("tool result content missing")
	}
}

func TestChatHistoryWindow(t *testing.T) {
	var history []models.ConversationTurn
	for i := 0; i < 15; i++ {
		history = append(history, models.ConversationTurn{Role: "user", Content: "old"})
	}
	history[4].Content = "dropped"
	history[5].Content = "oldest kept"
	history[14].Content = "kept"

	o := &scriptedOracle{script: []*oracle.Completion{textCompletion("ok")}}
	svc := newTestService(o, nil)

	if _, err := svc.Chat(context.Background(), ChatRequest{Message: "now", History: history}); err != nil {
		t.Fatal(err)
	}

	// system + 10 history + user = 12 messages.
	req := o.requests[0]
	if len(req) != 12 {
		t.Fatalf("request has %d messages, want 12", len(req))
	}
	for _, m := range req {
		if m.Content == "dropped" {
			t.Error("turn outside the window was replayed")
		}
	}
	if req[1].Content != "oldest kept" {
		t.Errorf("first history turn = %q", req[1].Content)
	}
	if req[10].Content != "kept" {
		t.Errorf("last history turn = %q", req[10].Content)
	}
}

func TestChatTelemetryContextTurn(t *testing.T) {
	o := &scriptedOracle{script: []*oracle.Completion{textCompletion("ok")}}
	svc := newTestService(o, nil)

	snap := &models.TelemetrySnapshot{
		Temperature: 12.5, Humidity: 85, Vibration: 0.4,
		Ethylene: 1.2, CO2: 450, BatteryLevel: 88, SignalStrength: 95,
	}
	if _, err := svc.Chat(context.Background(), ChatRequest{Message: "check", Telemetry: snap}); err != nil {
		t.Fatal(err)
	}

	req := o.requests[0]
	if len(req) != 3 {
		t.Fatalf("request has %d messages, want 3", len(req))
	}
	ctxTurn := req[1]
	if ctxTurn.Role != "system" {
		t.Errorf("telemetry turn role = %q", ctxTurn.Role)
	}
	for _, want := range []string{"12.5°C", "85%", "0.4 G", "closed", "88%", "95%"} {
		if !strings.Contains(ctxTurn.Content, want) {
			t.Errorf("telemetry context missing %q:\n%s", want, ctxTurn.Content)
		}
	}
}

func TestChatSessionIDPreserved(t *testing.T) {
	o := &scriptedOracle{script: []*oracle.Completion{textCompletion("ok")}}
	svc := newTestService(o, nil)

	resp, err := svc.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "abc123"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.SessionID != "abc123" {
		t.Errorf("session id = %q", resp.SessionID)
	}
}

func TestChatCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := &scriptedOracle{script: []*oracle.Completion{textCompletion("ok")}}
	svc := newTestService(o, nil)

	_, err := svc.Chat(ctx, ChatRequest{Message: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if o.calls != 0 {
		t.Errorf("oracle called %d times after cancellation", o.calls)
	}
}

// failingStore wraps MemoryStore and fails every conversation write.
type failingStore struct {
	*store.MemoryStore
}

func (f *failingStore) AppendConversationTurn(context.Context, string, string, string) error {
	return errors.New("store down")
}

func TestChatPersistenceFailSoft(t *testing.T) {
	o := &scriptedOracle{script: []*oracle.Completion{textCompletion("fine")}}
	db := &failingStore{MemoryStore: store.NewMemoryStore()}
	reg := NewRegistry(&stubPredictor{result: &models.PredictionResult{}}, db)
	svc := NewService(o, reg, db, nil)

	resp, err := svc.Chat(context.Background(), ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != "fine" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestAnalyzeStatusClassification(t *testing.T) {
	for _, tc := range []struct {
		temp float64
		want string
	}{
		{18, "CRISIS ALERT"},
		{12, "WARNING"},
		{4, "NOMINAL"},
	} {
		o := &scriptedOracle{script: []*oracle.Completion{textCompletion("report")}}
		svc := newTestService(o, nil)

		if _, err := svc.Analyze(context.Background(), models.TelemetrySnapshot{Temperature: tc.temp}, ""); err != nil {
			t.Fatal(err)
		}

		req := o.requests[0]
		userMsg := req[len(req)-1]
		if userMsg.Role != "user" {
			t.Fatalf("last message role = %q", userMsg.Role)
		}
		if !strings.HasPrefix(userMsg.Content, tc.want) {
			t.Errorf("temp %g: prompt starts %q, want prefix %q", tc.temp, userMsg.Content[:30], tc.want)
		}
		if !strings.Contains(userMsg.Content, "distance_km=250") {
			t.Error("directive prompt missing prediction parameters")
		}
		// Telemetry context turn must be present.
		if req[1].Role != "system" || !strings.Contains(req[1].Content, "Temperature") {
			t.Error("telemetry context turn missing")
		}
	}
}

func TestDispatchToolExecutesPrediction(t *testing.T) {
	pred := &stubPredictor{result: &models.PredictionResult{
		PredictedShelfLifeDays: 3.2,
		RecommendedCenter:      "CenterA",
		RiskLevel:              models.RiskWarning,
	}}
	db := store.NewMemoryStore()
	reg := NewRegistry(pred, db)

	o := &scriptedOracle{script: []*oracle.Completion{
		toolCompletion(oracle.ToolCall{
			ID:   "call_ml",
			Type: "function",
			Function: oracle.FunctionCall{
				Name:      "run_ml_prediction",
				Arguments: `{"temp_c": 9, "humidity_pct": 85, "vibration_g": 0.4, "distance_km": 250}`,
			},
		}),
		textCompletion("done"),
	}}
	svc := NewService(o, reg, db, nil)

	if _, err := svc.Chat(context.Background(), ChatRequest{Message: "analyse"}); err != nil {
		t.Fatal(err)
	}

	if pred.last.TempC != 9 || pred.last.DistanceKm != 250 {
		t.Errorf("prediction inputs: %+v", pred.last)
	}
	// Omitted args take the documented defaults.
	if pred.last.DistAKm != 50 || pred.last.DistBKm != 100 {
		t.Errorf("distance defaults: a=%v b=%v", pred.last.DistAKm, pred.last.DistBKm)
	}
	if pred.last.RoadA != "Clear" || pred.last.RoadB != "Traffic" {
		t.Errorf("road defaults: a=%q b=%q", pred.last.RoadA, pred.last.RoadB)
	}

	second := o.requests[1]
	result := second[len(second)-1]
	var payload models.PredictionResult
	if err := json.Unmarshal([]byte(result.Content), &payload); err != nil {
		t.Fatalf("tool result not JSON: %v", err)
	}
	if payload.RecommendedCenter != "CenterA" {
		t.Errorf("result center = %q", payload.RecommendedCenter)
	}
}
