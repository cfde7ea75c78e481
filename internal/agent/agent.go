// Package agent implements the cold-chain copilot: an agentic loop that
// feeds telemetry context and tool results through an LLM oracle until it
// produces an operator-facing answer.
//
// One Chat call runs:
//
//	build messages (system prompt, telemetry turn, history, user message) →
//	call oracle → if tool calls, dispatch all concurrently, append results →
//	repeat up to maxRounds → final text answer (or fixed fallback).
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/aegisharvest/coldchain/internal/oracle"
	"github.com/aegisharvest/coldchain/internal/store"
	"github.com/aegisharvest/coldchain/pkg/models"
)

// maxRounds bounds the number of oracle round-trips per request.
const maxRounds = 6

// historyWindow caps how many prior turns are replayed into the context.
const historyWindow = 10

const systemPrompt = `You are the **Aegis Harvest Autonomous Cold-Chain Copilot** — an AI operations intelligence system for perishable goods logistics.

Your mission:
- Monitor real-time cold-chain telemetry (temperature, humidity, vibration, ethylene, CO2)
- Analyse shelf-life predictions from ML models (XGBoost trained on 10,000+ cold-chain trips)
- Recommend optimal routing: Center A, Center B, or Market Pivot
- Trigger Market Pivot Engine when cargo is at imminent spoilage risk
- Provide clear, data-driven recommendations to the Operations Manager for approval

Decision framework:
| Condition | Action |
|-----------|--------|
| Temp ≤ 8°C, shelf life > 2 days | Maintain route, optimise speed |
| 8 < Temp ≤ 15°C, shelf life 0.5–2 days | Reroute to nearest cold centre |
| Temp > 15°C OR shelf life < 0.5 days | CRISIS — Immediate market pivot |

Always respond concisely with:
1. Status assessment (one sentence)
2. Specific recommended action
3. Estimated cargo recovery % (if pivot needed)
4. Severity: low / medium / high / critical

You have access to: ML prediction tool, route data, rescue points, facility status.
Always call run_ml_prediction first when telemetry data is provided.`

// fallbackReply is returned when the round bound is exhausted or the
// oracle fails. The operator never sees a raw internal error.
const fallbackReply = "Analysis complete. Telemetry reviewed. Please check the Recommendations panel for next steps."

// ChatRequest is one copilot invocation.
type ChatRequest struct {
	Message   string                    `json:"message"`
	Telemetry *models.TelemetrySnapshot `json:"telemetry,omitempty"`
	History   []models.ConversationTurn `json:"history,omitempty"`
	SessionID string                    `json:"session_id,omitempty"`
}

// ChatResponse is the operator-facing result.
type ChatResponse struct {
	Message        string `json:"message"`
	SessionID      string `json:"session_id"`
	ActionRequired bool   `json:"action_required"`
}

// Service runs the copilot loop.
type Service struct {
	oracle   oracle.Client
	registry *Registry
	db       store.Store
	detector ActionDetector
}

// NewService wires the copilot. A nil detector selects the keyword default.
func NewService(client oracle.Client, registry *Registry, db store.Store, detector ActionDetector) *Service {
	if detector == nil {
		detector = NewKeywordDetector()
	}
	return &Service{oracle: client, registry: registry, db: db, detector: detector}
}

// Chat runs the agentic loop for one user message.
//
// The error return is reserved for context cancellation; every other
// failure mode resolves to a textual answer.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	messages := s.buildMessages(req)
	tools := s.registry.Definitions()

	for round := 0; round < maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		completion, err := s.oracle.Complete(ctx, messages, tools)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Err(err).Str("session_id", sessionID).Int("round", round+1).Msg("oracle failure")
			return &ChatResponse{Message: fallbackReply, SessionID: sessionID}, nil
		}

		if len(completion.ToolCalls) == 0 {
			return s.finalize(ctx, sessionID, req.Message, completion.Content), nil
		}

		messages = append(messages, oracle.Message{
			Role:      "assistant",
			ToolCalls: completion.ToolCalls,
		})
		messages = append(messages, s.dispatchTools(ctx, completion.ToolCalls)...)
	}

	log.Warn().Str("session_id", sessionID).Int("rounds", maxRounds).Msg("round bound exhausted")
	return &ChatResponse{Message: fallbackReply, SessionID: sessionID}, nil
}

// dispatchTools executes every requested call concurrently and returns one
// tool message per correlation id, in the oracle's requested order.
func (s *Service) dispatchTools(ctx context.Context, calls []oracle.ToolCall) []oracle.Message {
	results := make([]string, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			log.Debug().Str("tool", call.Function.Name).Str("call_id", call.ID).Msg("dispatching tool")
			results[i] = s.registry.Execute(gctx, call.Function.Name, call.Function.Arguments)
			return nil
		})
	}
	// Workers never return errors; Execute folds failures into payloads.
	_ = g.Wait()

	out := make([]oracle.Message, len(calls))
	for i, call := range calls {
		out[i] = oracle.Message{
			Role:       "tool",
			ToolCallID: call.ID,
			Content:    results[i],
		}
	}
	return out
}

func (s *Service) finalize(ctx context.Context, sessionID, userMessage, reply string) *ChatResponse {
	// Persistence is fail-soft: the answer goes out even if the store is down.
	if err := s.db.AppendConversationTurn(ctx, sessionID, "user", userMessage); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("persist user turn failed")
	}
	if err := s.db.AppendConversationTurn(ctx, sessionID, "assistant", reply); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("persist assistant turn failed")
	}

	return &ChatResponse{
		Message:        reply,
		SessionID:      sessionID,
		ActionRequired: s.detector.ActionRequired(reply),
	}
}

func (s *Service) buildMessages(req ChatRequest) []oracle.Message {
	messages := []oracle.Message{{Role: "system", Content: systemPrompt}}

	if req.Telemetry != nil {
		messages = append(messages, oracle.Message{Role: "system", Content: telemetryContext(req.Telemetry)})
	}

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, turn := range history {
		role := turn.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, oracle.Message{Role: role, Content: turn.Content})
	}

	return append(messages, oracle.Message{Role: "user", Content: req.Message})
}

func telemetryContext(t *models.TelemetrySnapshot) string {
	door := t.DoorStatus
	if door == "" {
		door = models.DoorClosed
	}
	return fmt.Sprintf("Current telemetry snapshot:\n"+
		"  Temperature : %g°C\n"+
		"  Humidity    : %g%%\n"+
		"  Vibration   : %g G\n"+
		"  Ethylene    : %g ppm\n"+
		"  CO2         : %g ppm\n"+
		"  Door status : %s\n"+
		"  Battery     : %d%%\n"+
		"  Signal      : %d%%",
		t.Temperature, t.Humidity, t.Vibration, t.Ethylene, t.CO2,
		door, t.BatteryLevel, t.SignalStrength)
}

// Analyze autonomously assesses a telemetry snapshot: classify the
// temperature, direct the oracle to run the prediction and log its primary
// recommendation, and return the resulting situation report.
func (s *Service) Analyze(ctx context.Context, telemetry models.TelemetrySnapshot, sessionID string) (*ChatResponse, error) {
	temp := telemetry.Temperature

	var statusMsg string
	switch {
	case temp > 15:
		statusMsg = fmt.Sprintf("CRISIS ALERT: Temperature %g°C is critically high.", temp)
	case temp > 8:
		statusMsg = fmt.Sprintf("WARNING: Temperature %g°C exceeds safe cold-chain threshold.", temp)
	default:
		statusMsg = fmt.Sprintf("NOMINAL: Temperature %g°C is within safe range.", temp)
	}

	prompt := statusMsg + "\n\n" +
		"Please:\n" +
		"1. Run the ML prediction with these conditions " +
		"(use distance_km=250, dist_a_km=50, dist_b_km=120, " +
		"road_a='Clear', road_b='Traffic', cap_a_pct=64, cap_b_pct=70)\n" +
		"2. If a pivot is triggered or risk is critical, get rescue points\n" +
		"3. Log your primary recommendation\n" +
		"4. Provide a concise situation report with clear action items"

	return s.Chat(ctx, ChatRequest{
		Message:   prompt,
		Telemetry: &telemetry,
		SessionID: sessionID,
	})
}
