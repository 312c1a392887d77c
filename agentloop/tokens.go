package agentloop

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/martinemde/grokagent/unifiedllm"
)

// TokenCounter estimates how many tokens text occupies in the model's
// context window.
type TokenCounter interface {
	Count(text string) int
	CountMessages(msgs []unifiedllm.Message) int
}

// perMessageOverhead approximates the role and framing tokens each message
// adds on top of its content.
const perMessageOverhead = 3

// HeuristicCounter estimates four characters per token. It needs no
// encoding data.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

func (h HeuristicCounter) CountMessages(msgs []unifiedllm.Message) int {
	return countMessages(h, msgs)
}

// TiktokenCounter counts with a BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter returns a counter using the encoding for model, or
// cl100k_base when the model is unknown. If no encoding can be loaded it
// returns a HeuristicCounter and the load error.
func NewTiktokenCounter(model string) (TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	}
	if err != nil {
		return HeuristicCounter{}, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *TiktokenCounter) CountMessages(msgs []unifiedllm.Message) int {
	return countMessages(t, msgs)
}

func countMessages(c TokenCounter, msgs []unifiedllm.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead + c.Count(m.TextContent())
		for _, call := range m.ToolCalls() {
			total += c.Count(call.Name) + c.Count(call.Arguments)
		}
		for _, r := range m.ToolResults() {
			total += c.Count(r.Output.Value)
		}
	}
	return total
}
