package domain

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies an inference backend the advisor can consult.
type Provider string

const (
	ProviderLlamaStack Provider = "ls"
	ProviderOllama     Provider = "ollama"
	ProviderVLLM       Provider = "vllm"
)

// Providers returns every known provider in display order.
func Providers() []Provider {
	return []Provider{ProviderLlamaStack, ProviderOllama, ProviderVLLM}
}

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderLlamaStack, ProviderOllama, ProviderVLLM:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q (want one of %v)", s, Providers())
	}
}

// Action is a blackjack move. ActionUnknown means no confident extraction
// was possible and is a normal outcome, not an error.
type Action string

const (
	ActionHit     Action = "hit"
	ActionStand   Action = "stand"
	ActionDouble  Action = "double"
	ActionSplit   Action = "split"
	ActionUnknown Action = "unknown"
)

// Valid reports whether a is one of the four playable moves.
func (a Action) Valid() bool {
	switch a {
	case ActionHit, ActionStand, ActionDouble, ActionSplit:
		return true
	}
	return false
}

// Card is a single playing card as reported by the game engine.
type Card struct {
	Rank string `json:"rank" yaml:"rank"`
	Suit string `json:"suit" yaml:"suit"`
}

// Token renders the card as rank followed by suit, e.g. "T♠" or "As".
func (c Card) Token() string {
	return c.Rank + c.Suit
}

// GameSnapshot is a read-only view of the table supplied by the game engine.
// A recommendation is always computed from one snapshot.
type GameSnapshot struct {
	Hand         []Card  `json:"hand" yaml:"hand"`
	Total        int     `json:"total" yaml:"total"`
	DealerUpCard *Card   `json:"dealerUpCard,omitempty" yaml:"dealerUpCard"`
	CanDouble    bool    `json:"canDouble" yaml:"canDouble"`
	CanSplit     bool    `json:"canSplit" yaml:"canSplit"`
	Bet          float64 `json:"bet" yaml:"bet"`
	Bank         float64 `json:"bank" yaml:"bank"`
}

// Clone returns a deep copy so later mutation by the caller cannot leak
// into an in-flight recommendation.
func (s GameSnapshot) Clone() GameSnapshot {
	out := s
	if s.Hand != nil {
		out.Hand = make([]Card, len(s.Hand))
		copy(out.Hand, s.Hand)
	}
	if s.DealerUpCard != nil {
		c := *s.DealerUpCard
		out.DealerUpCard = &c
	}
	return out
}

// TransportPath records which invocation path produced the model text.
type TransportPath string

const (
	PathStream   TransportPath = "stream"
	PathSingle   TransportPath = "single"
	PathFallback TransportPath = "fallback"
)

// Extraction records which extractor produced the action.
type Extraction string

const (
	ExtractionParsed    Extraction = "parsed"
	ExtractionHeuristic Extraction = "heuristic"
	ExtractionNone      Extraction = "none"
)

// Recommendation is the result of one advisor round trip. Values are
// immutable once returned.
type Recommendation struct {
	ID         string        `json:"id"`
	Provider   Provider      `json:"provider"`
	ModelID    string        `json:"modelId"`
	Action     Action        `json:"action"`
	Rationale  string        `json:"rationale,omitempty"`
	LatencyMs  float64       `json:"latencyMs"`
	TtftMs     *float64      `json:"ttftMs,omitempty"`
	Path       TransportPath `json:"path"`
	Extraction Extraction    `json:"extraction"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Metric is one timing sample recorded after every recommendation.
type Metric struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  Provider  `json:"provider"`
	ModelID   string    `json:"modelId,omitempty"`
	LatencyMs float64   `json:"latencyMs"`
	TtftMs    *float64  `json:"ttftMs,omitempty"`
}

// MetricFrom derives the timing sample for a recommendation.
func MetricFrom(r Recommendation) Metric {
	m := Metric{
		Timestamp: r.CreatedAt,
		Provider:  r.Provider,
		ModelID:   r.ModelID,
		LatencyMs: r.LatencyMs,
	}
	if r.TtftMs != nil {
		v := *r.TtftMs
		m.TtftMs = &v
	}
	return m
}

// Decision is a structured answer extracted from model output.
type Decision struct {
	Action Action `json:"action"`
	Reason string `json:"reason"`
}
