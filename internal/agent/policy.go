package agent

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ActionDetector decides whether a final copilot reply demands operator
// action (surfaces the "action required" banner in the dashboard).
type ActionDetector interface {
	ActionRequired(reply string) bool
}

// KeywordDetector is the default policy: case-insensitive substring match
// against a fixed set of action verbs.
type KeywordDetector struct {
	keywords []string
}

// NewKeywordDetector returns the standard detector. Passing no keywords
// selects the built-in set.
func NewKeywordDetector(keywords ...string) *KeywordDetector {
	if len(keywords) == 0 {
		keywords = []string{"reroute", "pivot", "crisis", "immediate", "redirect"}
	}
	return &KeywordDetector{keywords: keywords}
}

func (d *KeywordDetector) ActionRequired(reply string) bool {
	lower := strings.ToLower(reply)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ExprDetector evaluates a configured expr-lang expression against the
// reply. The expression sees `reply` (lowercased) and must yield a bool,
// e.g. `reply contains "pivot" or reply contains "abort"`.
type ExprDetector struct {
	program *vm.Program
}

type exprEnv struct {
	Reply string `expr:"reply"`
}

// NewExprDetector compiles the expression once at startup.
func NewExprDetector(expression string) (*ExprDetector, error) {
	program, err := expr.Compile(expression, expr.Env(exprEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile action expression: %w", err)
	}
	return &ExprDetector{program: program}, nil
}

func (d *ExprDetector) ActionRequired(reply string) bool {
	out, err := expr.Run(d.program, exprEnv{Reply: strings.ToLower(reply)})
	if err != nil {
		return false
	}
	required, _ := out.(bool)
	return required
}
