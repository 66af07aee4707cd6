package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Plan is the structured action proposed by the language model.
// ActionType selects the variant; the typed accessors below validate the
// variant-specific params.
type Plan struct {
	ActionType    ActionType             `json:"action_type"`
	Target        string                 `json:"target"`
	Params        map[string]interface{} `json:"params"`
	Confidence    float64                `json:"confidence"`
	Reason        string                 `json:"reason"`
	RawActionType string                 `json:"-"` // original action name when it was not recognized
}

// planWire is the permissive shape accepted from the model
type planWire struct {
	ActionType interface{}            `json:"action_type"`
	Target     interface{}            `json:"target"`
	Params     map[string]interface{} `json:"params"`
	Confidence interface{}            `json:"confidence"`
	Reason     interface{}            `json:"reason"`
}

// UnmarshalJSON accepts loosely typed model output: numbers as strings,
// targets as numbers, unknown action types (which degrade to noop).
func (p *Plan) UnmarshalJSON(data []byte) error {
	var w planWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	raw := stringify(w.ActionType)
	action, ok := ParseActionType(raw)
	p.ActionType = action
	p.RawActionType = ""
	if !ok {
		p.RawActionType = raw
	}
	p.Target = strings.TrimSpace(stringify(w.Target))
	p.Params = w.Params
	if p.Params == nil {
		p.Params = map[string]interface{}{}
	}
	p.Reason = stringify(w.Reason)

	conf, _ := toFloat(w.Confidence)
	p.Confidence = clamp01(conf)
	return nil
}

// RecordedActionType is the action name to persist: the model's original
// string for unrecognized actions, the normalized type otherwise.
func (p *Plan) RecordedActionType() string {
	if p == nil {
		return "unknown"
	}
	if p.RawActionType != "" {
		return p.RawActionType
	}
	return string(p.ActionType)
}

// String renders the plan as compact JSON for reflections and logs
func (p *Plan) String() string {
	if p == nil {
		return "null"
	}
	out := map[string]interface{}{
		"action_type": p.RecordedActionType(),
		"target":      p.Target,
		"params":      p.Params,
		"confidence":  p.Confidence,
		"reason":      p.Reason,
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("%+v", *p)
	}
	return string(b)
}

// WalletSendParams are the params of a wallet_send plan
type WalletSendParams struct {
	Destination string
	AmountSOL   float64
}

// WalletSend extracts the wallet_send variant
func (p *Plan) WalletSend() (WalletSendParams, error) {
	amount, err := p.floatParam("amount_sol")
	if err != nil {
		return WalletSendParams{}, err
	}
	return WalletSendParams{Destination: p.Target, AmountSOL: amount}, nil
}

// SwapParams are the params of a swap plan
type SwapParams struct {
	FromToken   string
	ToToken     string
	AmountSOL   float64
	SlippageBps int
}

// DefaultSlippageBps is used when the model does not specify slippage
const DefaultSlippageBps = 50

// Swap extracts the swap variant, applying the SOL→USDC defaults
func (p *Plan) Swap() (SwapParams, error) {
	sp := SwapParams{
		FromToken:   strings.ToUpper(p.stringParam("from_token", "SOL")),
		ToToken:     strings.ToUpper(p.stringParam("to_token", "USDC")),
		SlippageBps: DefaultSlippageBps,
	}
	amount, err := p.floatParam("amount_sol")
	if err != nil {
		return sp, err
	}
	sp.AmountSOL = amount
	if v, ok := p.Params["slippage_bps"]; ok {
		if f, ok := toFloat(v); ok && f > 0 {
			sp.SlippageBps = int(f)
		}
	}
	return sp, nil
}

// AnalyzeParams are the params of an analyze plan
type AnalyzeParams struct {
	Symbol   string
	Interval string
	Limit    int
}

// Analyze extracts the analyze variant with BTCUSDT/1h/100 defaults
func (p *Plan) Analyze() AnalyzeParams {
	ap := AnalyzeParams{
		Symbol:   strings.ToUpper(p.Target),
		Interval: p.stringParam("interval", "1h"),
		Limit:    100,
	}
	if ap.Symbol == "" {
		ap.Symbol = "BTCUSDT"
	}
	if v, ok := p.Params["limit"]; ok {
		if f, ok := toFloat(v); ok && f > 0 {
			ap.Limit = int(f)
		}
	}
	return ap
}

// ReviewHistoryCount parses the number of past actions requested in Target.
// Empty or invalid targets fall back to 5; the result is capped at max.
func (p *Plan) ReviewHistoryCount(max int) int {
	n := 5
	if f, ok := toFloat(p.Target); ok && f >= 1 {
		n = int(f)
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// ExtendCodeParams are the params of an extend_code plan
type ExtendCodeParams struct {
	Path          string
	Code          string
	CommitMessage string
}

// ExtendCode extracts the extend_code variant
func (p *Plan) ExtendCode() (ExtendCodeParams, error) {
	ep := ExtendCodeParams{
		Path:          p.Target,
		Code:          p.stringParam("code", ""),
		CommitMessage: p.stringParam("commit_message", "agent: extend code"),
	}
	if ep.Path == "" {
		return ep, fmt.Errorf("extend_code requires a target path")
	}
	return ep, nil
}

func (p *Plan) floatParam(key string) (float64, error) {
	v, ok := p.Params[key]
	if !ok {
		return 0, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("param %s is not a number: %v", key, v)
	}
	return f, nil
}

func (p *Plan) stringParam(key, def string) string {
	v, ok := p.Params[key]
	if !ok || v == nil {
		return def
	}
	s := strings.TrimSpace(stringify(v))
	if s == "" {
		return def
	}
	return s
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
