package llm

import (
	"encoding/json"
	"strings"

	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

const systemPrompt = `You review labels scraped from construction drawings.
Each request gives the raw label, the component category a rule engine assigned,
its confidence and the parsed dimensions in metres.
Answer with one JSON object and nothing else:
{"outcome": "accept" | "reject" | "adjust", "delta": number, "reason": string}
Use "accept" when the category and dimensions are right, "reject" when the label
is not that component or the dimensions are implausible, and "adjust" with a
delta between -0.2 and 0.2 when you are only partly sure.`

func userPrompt(req recognizer.VerificationRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseVerdict decodes a model answer.  Markdown code fences around the JSON
// object are tolerated; an unknown outcome is an error.
func ParseVerdict(content string) (*recognizer.Verdict, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}

	var v recognizer.Verdict
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVerifierBadResponse, "verifier answer is not a verdict").WithDetail(content)
	}
	v.Outcome = recognizer.Outcome(strings.ToLower(strings.TrimSpace(string(v.Outcome))))
	switch v.Outcome {
	case recognizer.OutcomeAccept, recognizer.OutcomeReject, recognizer.OutcomeAdjust:
		return &v, nil
	}
	return nil, errors.Newf(errors.ErrCodeVerifierBadResponse, "unknown verdict outcome %q", v.Outcome)
}

//Personal.AI order the ending
