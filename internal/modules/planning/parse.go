package planning

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
)

// ErrNoPlan is returned when the model output holds no usable JSON object
var ErrNoPlan = errors.New("no plan found in model output")

// braced matches from the first '{' to the last '}'
var braced = regexp.MustCompile(`(?s)\{.*\}`)

// ParsePlan decodes model output into a plan. The whole output is tried first,
// then the outermost brace-delimited substring, which covers markdown fences
// and prose around the JSON.
func ParsePlan(raw string) (*domain.Plan, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrNoPlan
	}

	plan, err := decodePlan(text)
	if err == nil {
		return plan, nil
	}

	match := braced.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("%w: %v", ErrNoPlan, err)
	}
	plan, err = decodePlan(match)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPlan, err)
	}
	return plan, nil
}

func decodePlan(text string) (*domain.Plan, error) {
	// A plan must be a JSON object; "null", arrays and scalars are rejected
	if !strings.HasPrefix(text, "{") {
		return nil, fmt.Errorf("output is not a JSON object")
	}
	var plan domain.Plan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}
