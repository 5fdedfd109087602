package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/meteo-agent/internal/llm"
	"github.com/i474232898/meteo-agent/internal/weather"
)

func newTestAgent(stub *llm.StubClient, prov *fakeProvider) *Agent {
	return NewAgent(Config{
		LLM:            stub,
		Weather:        prov,
		LLMTimeout:     time.Second,
		WeatherTimeout: time.Second,
		Logger:         discardLogger,
	})
}

func TestHandleMessage_Success(t *testing.T) {
	stub := llm.NewStubClient(
		llm.StubReply{Text: `{"city":"Paris","language":"en"}`},
		llm.StubReply{Text: "Sunny and mild in Paris."},
	)
	prov := &fakeProvider{current: parisSnapshot, forecast: parisForecast}

	res := newTestAgent(stub, prov).HandleMessage(context.Background(), "weather in Paris?", nil)

	assert.Equal(t, Result{
		Success:  true,
		Message:  "Sunny and mild in Paris.",
		Language: "en",
		Data:     &parisSnapshot,
		Forecast: parisForecast,
	}, res)
	assert.ElementsMatch(t, []string{"current:Paris:en", "forecast:Paris:en"}, prov.calls)

	calls := stub.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, llm.Options{Temperature: 0.3, JSON: true}, calls[0].Options)
	assert.Equal(t, llm.Options{Temperature: 0.7}, calls[1].Options)
}

func TestHandleMessage_NoLookupWithoutCity(t *testing.T) {
	tests := []struct {
		name  string
		reply llm.StubReply
		want  Result
	}{
		{
			name:  "model asks for city",
			reply: llm.StubReply{Text: `{"action":"demander_ville","message":"Which city?","language":"en"}`},
			want:  Result{Message: "Which city?", Language: "en"},
		},
		{
			name:  "blank clarification",
			reply: llm.StubReply{Text: `{"action":"demander_ville","message":"  ","language":"en"}`},
			want:  Result{Message: MsgClarify, Language: "en"},
		},
		{
			name:  "action wins over city",
			reply: llm.StubReply{Text: `{"action":"demander_ville","message":"Laquelle ?","city":"Paris"}`},
			want:  Result{Message: "Laquelle ?", Language: "fr"},
		},
		{
			name:  "unparseable reply",
			reply: llm.StubReply{Text: "I think you mean Paris"},
			want:  Result{Message: MsgClarify, Language: "fr"},
		},
		{
			name:  "model failure",
			reply: llm.StubReply{Err: errors.New("rate limited")},
			want:  Result{Message: MsgClarify, Language: "fr"},
		},
		{
			name:  "unexpected shape",
			reply: llm.StubReply{Text: `{"answer":"sunny","language":"de"}`},
			want:  Result{Message: MsgNoCity, Language: "de"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := llm.NewStubClient(tt.reply)
			prov := &fakeProvider{current: parisSnapshot}

			res := newTestAgent(stub, prov).HandleMessage(context.Background(), "hello", nil)
			assert.Equal(t, tt.want, res)
			assert.Zero(t, prov.callCount())
			assert.Len(t, stub.Calls(), 1)
		})
	}
}

func TestHandleMessage_CityNotFound(t *testing.T) {
	stub := llm.NewStubClient(llm.StubReply{Text: `{"city":"Atlantis","language":"en"}`})
	prov := &fakeProvider{currentErr: weather.ErrNotFound, forecastErr: weather.ErrNotFound}

	res := newTestAgent(stub, prov).HandleMessage(context.Background(), "weather in Atlantis?", nil)

	assert.Equal(t, Result{
		Success:  false,
		Message:  "Sorry, I can't find the city 'Atlantis'. Could you check the spelling?",
		Language: "en",
	}, res)
	assert.Len(t, stub.Calls(), 1)
}

func TestHandleMessage_TechnicalIssue(t *testing.T) {
	stub := llm.NewStubClient(llm.StubReply{Text: `{"city":"Paris","language":"fr"}`})
	prov := &fakeProvider{currentErr: errors.New("upstream 500"), forecast: parisForecast}

	res := newTestAgent(stub, prov).HandleMessage(context.Background(), "Paris", nil)

	assert.Equal(t, Result{Message: MsgTechnicalIssue, Language: "fr"}, res)
	assert.Len(t, stub.Calls(), 1)
}

func TestHandleMessage_CurrentPanics(t *testing.T) {
	stub := llm.NewStubClient(llm.StubReply{Text: `{"city":"Paris","language":"fr"}`})
	prov := &fakeProvider{currentPanic: true}

	res := newTestAgent(stub, prov).HandleMessage(context.Background(), "Paris", nil)
	assert.Equal(t, Result{Message: MsgTechnicalIssue, Language: "fr"}, res)
}

type panickingComposer struct{}

func (panickingComposer) Compose(context.Context, weather.Snapshot, []weather.ForecastDay) string {
	panic("composer exploded")
}

func TestHandleMessage_ComposerPanics(t *testing.T) {
	stub := llm.NewStubClient(llm.StubReply{Text: `{"city":"Paris","language":"fr"}`})
	agent := NewAgent(Config{
		LLM:      stub,
		Weather:  &fakeProvider{current: parisSnapshot},
		Composer: panickingComposer{},
		Logger:   discardLogger,
	})

	res := agent.HandleMessage(context.Background(), "Paris", nil)
	assert.Equal(t, Result{Message: MsgTechnicalIssue, Language: "fr"}, res)
}

func TestHandleMessage_ForecastDegrades(t *testing.T) {
	tests := []struct {
		name string
		prov *fakeProvider
	}{
		{name: "forecast error", prov: &fakeProvider{current: parisSnapshot, forecastErr: errors.New("boom")}},
		{name: "forecast not found", prov: &fakeProvider{current: parisSnapshot, forecastErr: weather.ErrNotFound}},
		{name: "forecast panics", prov: &fakeProvider{current: parisSnapshot, forecastPanic: true}},
		{name: "forecast empty", prov: &fakeProvider{current: parisSnapshot, forecast: []weather.ForecastDay{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := llm.NewStubClient(
				llm.StubReply{Text: `{"city":"Paris","language":"fr"}`},
				llm.StubReply{Text: "Beau temps."},
			)

			res := newTestAgent(stub, tt.prov).HandleMessage(context.Background(), "Paris", nil)
			require.True(t, res.Success)
			assert.Equal(t, "Beau temps.", res.Message)
			assert.Empty(t, res.Forecast)

			body, err := json.Marshal(res)
			require.NoError(t, err)
			assert.NotContains(t, string(body), "forecast")
		})
	}
}

func TestHandleMessage_ComposerFallbackTemplate(t *testing.T) {
	stub := llm.NewStubClient(
		llm.StubReply{Text: `{"city":"Paris","language":"en"}`},
		llm.StubReply{Err: errors.New("overloaded")},
	)
	prov := &fakeProvider{current: parisSnapshot}

	res := newTestAgent(stub, prov).HandleMessage(context.Background(), "Paris", nil)
	assert.True(t, res.Success)
	assert.Equal(t, "In Paris, it is 12.0°C with clear sky.", res.Message)
	assert.Equal(t, &parisSnapshot, res.Data)
}

func TestHandleMessage_MalformedHistoryIgnored(t *testing.T) {
	history := []Turn{
		{Role: "user", Content: "Quel temps à Lyon ?"},
		{Role: "assistant", Content: ""},
		{Role: "wizard", Content: "abracadabra"},
		{Role: "assistant", Content: "À Lyon, il fait 20°C."},
	}
	clean := []Turn{history[0], history[3]}

	run := func(h []Turn) []llm.Message {
		stub := llm.NewStubClient(
			llm.StubReply{Text: `{"city":"Lyon","language":"fr"}`},
			llm.StubReply{Text: "ok"},
		)
		prov := &fakeProvider{current: weather.Snapshot{City: "Lyon"}}
		res := newTestAgent(stub, prov).HandleMessage(context.Background(), "et demain ?", h)
		require.True(t, res.Success)
		return stub.Calls()[0].Messages
	}

	assert.Equal(t, run(clean), run(history))
}

func TestHandleMessage_UsesResolvedCityFromProvider(t *testing.T) {
	stub := llm.NewStubClient(
		llm.StubReply{Text: `{"city":"paris","language":"fr"}`},
		llm.StubReply{Text: "ok"},
	)
	prov := &fakeProvider{current: parisSnapshot}

	res := newTestAgent(stub, prov).HandleMessage(context.Background(), "paris", nil)
	require.NotNil(t, res.Data)
	assert.Equal(t, "Paris", res.Data.City)
	assert.ElementsMatch(t, []string{"current:paris:fr", "forecast:paris:fr"}, prov.calls)
}

func TestGuard(t *testing.T) {
	err := guard(func() error { panic("oops") })()
	require.Error(t, err)
	assert.ErrorIs(t, err, errPanic)
	assert.Contains(t, err.Error(), "oops")

	sentinel := errors.New("plain")
	assert.Equal(t, sentinel, guard(func() error { return sentinel })())
}

type panickingLLM struct{}

func (panickingLLM) Complete(context.Context, []llm.Message, llm.Options) (string, error) {
	panic("llm exploded")
}

func TestHandleMessage_ExtractionPanics(t *testing.T) {
	prov := &fakeProvider{current: parisSnapshot}
	agent := NewAgent(Config{
		LLM:     panickingLLM{},
		Weather: prov,
		Logger:  discardLogger,
	})

	var res Result
	require.NotPanics(t, func() {
		res = agent.HandleMessage(context.Background(), "Paris", nil)
	})
	assert.Equal(t, Result{Message: MsgClarify, Language: DefaultLanguage}, res)
	assert.Zero(t, prov.callCount())
}

func TestHandleMessage_SlowForecastBoundedByWeatherTimeout(t *testing.T) {
	stub := llm.NewStubClient(
		llm.StubReply{Text: `{"city":"Paris","language":"fr"}`},
		llm.StubReply{Text: "Beau temps."},
	)
	prov := &fakeProvider{current: parisSnapshot, forecast: parisForecast, forecastDelay: time.Minute}
	agent := NewAgent(Config{
		LLM:            stub,
		Weather:        prov,
		WeatherTimeout: 50 * time.Millisecond,
		Logger:         discardLogger,
	})

	start := time.Now()
	res := agent.HandleMessage(context.Background(), "Paris", nil)

	assert.Less(t, time.Since(start), 5*time.Second)
	require.True(t, res.Success)
	assert.Equal(t, &parisSnapshot, res.Data)
	assert.Empty(t, res.Forecast)
}
