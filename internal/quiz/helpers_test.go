package quiz

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/felixgeelhaar/studycoach/internal/llm"
)

// scriptedProvider replays canned responses and records requests
type scriptedProvider struct {
	contents []string
	err      error
	requests []*llm.Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.contents) == 0 {
		return nil, errors.New("no scripted response left")
	}
	content := p.contents[0]
	p.contents = p.contents[1:]
	return &llm.Response{Content: content, FinishReason: "stop"}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
