package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixell07/localrag/internal/contextfmt"
	"github.com/pixell07/localrag/internal/entity"
)

type fakeLLM struct {
	fragments []string
	err       error
	lastTemp  float64
	lastMsgs  []entity.ChatMessage
}

func (f *fakeLLM) GenerateChatResponse(ctx context.Context, model string, messages []entity.ChatMessage, temperature float64, out chan<- string) error {
	defer close(out)
	f.lastTemp = temperature
	f.lastMsgs = messages
	for _, frag := range f.fragments {
		out <- frag
	}
	return f.err
}

type fakeRetriever struct {
	results []entity.RetrievalResult
	err     error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ int, _ float64, _ string) ([]entity.RetrievalResult, error) {
	return f.results, f.err
}

func drain(events <-chan Event) []Event {
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestStreamPassthroughWhenRetrievalDisabled(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"hi", " there"}}
	o := New(llm, &fakeRetriever{}, "llama3", contextfmt.DefaultOptions(), 0.7, nil)

	events := make(chan Event, 10)
	o.Stream(context.Background(), Request{Message: "hello", UseRetrieval: false}, events)

	got := drain(events)
	require.Equal(t, "hi", got[0].Content)
	require.Equal(t, " there", got[1].Content)
	require.True(t, got[len(got)-1].Done)
	require.Equal(t, 0.7, llm.lastTemp)
}

func TestStreamUsesRAGPromptWhenResultsFound(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"answer"}}
	ret := &fakeRetriever{results: []entity.RetrievalResult{
		{Filename: "doc.txt", ChunkText: "the sky is blue", Similarity: 0.9},
	}}
	o := New(llm, ret, "llama3", contextfmt.DefaultOptions(), 0.7, nil)

	events := make(chan Event, 10)
	o.Stream(context.Background(), Request{Message: "what color is the sky?", UseRetrieval: true}, events)

	got := drain(events)
	require.True(t, got[len(got)-1].Done)
	require.Equal(t, ragTemperature, llm.lastTemp)
	require.Contains(t, llm.lastMsgs[0].Content, "ONLY the information")
	require.Contains(t, llm.lastMsgs[1].Content, "doc.txt")
}

func TestStreamKeepsHistoryInRAGPrompt(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"answer"}}
	ret := &fakeRetriever{results: []entity.RetrievalResult{
		{Filename: "doc.txt", ChunkText: "the sky is blue", Similarity: 0.9},
	}}
	o := New(llm, ret, "llama3", contextfmt.DefaultOptions(), 0.7, nil)

	history := []entity.ChatMessage{
		{Role: entity.RoleUser, Content: "earlier question"},
		{Role: entity.RoleAssistant, Content: "earlier answer"},
	}
	events := make(chan Event, 10)
	o.Stream(context.Background(), Request{Message: "what color is the sky?", UseRetrieval: true, History: history}, events)
	drain(events)

	require.Len(t, llm.lastMsgs, 4)
	require.Equal(t, entity.RoleSystem, llm.lastMsgs[0].Role)
	require.Equal(t, history[0], llm.lastMsgs[1])
	require.Equal(t, history[1], llm.lastMsgs[2])
	require.Contains(t, llm.lastMsgs[3].Content, "doc.txt")
}

func TestStreamUsesNoContextPromptWhenNoResults(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"sorry"}}
	o := New(llm, &fakeRetriever{}, "llama3", contextfmt.DefaultOptions(), 0.7, nil)

	events := make(chan Event, 10)
	o.Stream(context.Background(), Request{Message: "anything?", UseRetrieval: true}, events)

	got := drain(events)
	require.True(t, got[len(got)-1].Done)
	require.Contains(t, llm.lastMsgs[0].Content, "No relevant documents")
}

func TestStreamEmitsErrorEventOnUpstreamFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("upstream down")}
	o := New(llm, &fakeRetriever{}, "llama3", contextfmt.DefaultOptions(), 0.7, nil)

	events := make(chan Event, 10)
	o.Stream(context.Background(), Request{Message: "hello", UseRetrieval: false}, events)

	got := drain(events)
	last := got[len(got)-1]
	require.Equal(t, "upstream_error", last.Error)
}

func TestStreamEmitsErrorEventOnRetrievalFailure(t *testing.T) {
	llm := &fakeLLM{}
	o := New(llm, &fakeRetriever{err: errors.New("db down")}, "llama3", contextfmt.DefaultOptions(), 0.7, nil)

	events := make(chan Event, 10)
	o.Stream(context.Background(), Request{Message: "hello", UseRetrieval: true}, events)

	got := drain(events)
	require.Len(t, got, 1)
	require.Equal(t, "retrieval_failed", got[0].Error)
}
