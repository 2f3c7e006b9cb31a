package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"go.uber.org/goleak"
)

type fakeStage struct {
	name  string
	runs  atomic.Int32
	onRun func(ctx context.Context, rc *RunContext) error
	log   *[]string
	mu    *sync.Mutex
}

func (f *fakeStage) Name() string        { return f.name }
func (f *fakeStage) Description() string { return "fake " + f.name }

func (f *fakeStage) Run(ctx context.Context, rc *RunContext) error {
	f.runs.Add(1)
	if f.log != nil {
		f.mu.Lock()
		*f.log = append(*f.log, f.name)
		f.mu.Unlock()
	}
	if f.onRun != nil {
		return f.onRun(ctx, rc)
	}
	rc.Processed(f.name)
	return nil
}

func newOrchestrator(t *testing.T, stages ...*fakeStage) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(arbor.NewLogger())
	for _, s := range stages {
		require.NoError(t, o.Register(s))
	}
	return o
}

func allStages(log *[]string) []*fakeStage {
	mu := &sync.Mutex{}
	var stages []*fakeStage
	for _, name := range []string{StageAgentic, StageRules, StageSentiment, StageFetch} {
		stages = append(stages, &fakeStage{name: name, log: log, mu: mu})
	}
	return stages
}

func TestSelect(t *testing.T) {
	o := newOrchestrator(t, allStages(nil)...)

	tests := []struct {
		name     string
		requests []string
		expected []string
	}{
		{"empty selects all in order", nil, []string{"fetch", "sentiment", "rules", "agentic"}},
		{"request order ignored", []string{"agentic", "fetch"}, []string{"fetch", "agentic"}},
		{"aliases resolve", []string{"agentictrader", "algotrader"}, []string{"rules", "agentic"}},
		{"case and duplicates", []string{"Sentiment", "sentiment", " RULES "}, []string{"sentiment", "rules"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages, err := o.Select(tt.requests)
			require.NoError(t, err)
			var names []string
			for _, s := range stages {
				names = append(names, s.Name())
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestSelectUnknownStage(t *testing.T) {
	o := newOrchestrator(t, allStages(nil)...)

	_, err := o.Select([]string{"fetch", "backtest"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConfiguration)
	assert.Contains(t, err.Error(), "backtest")

	partial := newOrchestrator(t, &fakeStage{name: StageFetch})
	_, err = partial.Select([]string{"rules"})
	assert.ErrorIs(t, err, common.ErrConfiguration)

	assert.Error(t, NewOrchestrator(arbor.NewLogger()).Register(&fakeStage{name: "bogus"}))
}

func TestRunOnceRunsInOrderAndContainsFailures(t *testing.T) {
	var log []string
	stages := allStages(&log)
	stages[2].onRun = func(ctx context.Context, rc *RunContext) error { // sentiment
		panic("scorer exploded")
	}
	stages[1].onRun = func(ctx context.Context, rc *RunContext) error { // rules
		return errors.New("storage unavailable")
	}
	o := newOrchestrator(t, stages...)

	rc, err := o.RunOnce(context.Background(), []string{"agentic", "sentiment", "rules", "fetch"})
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch", "sentiment", "rules", "agentic"}, log)
	assert.True(t, rc.HasErrors())
	require.Len(t, rc.Errors(), 2)

	var panicErr *common.PanicError
	assert.ErrorAs(t, rc.Errors()[0], &panicErr)
	assert.Equal(t, StageSentiment, rc.Errors()[0].Stage)
	assert.Equal(t, StageRules, rc.Errors()[1].Stage)
	assert.Equal(t, 1, rc.Counters(StageAgentic).Processed)
	assert.NotEmpty(t, rc.RunID)
}

func TestRunOnceStopsAfterCancellation(t *testing.T) {
	var log []string
	stages := allStages(&log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stages[3].onRun = func(ctx context.Context, rc *RunContext) error { // fetch
		cancel()
		return nil
	}
	o := newOrchestrator(t, stages...)

	rc, err := o.RunOnce(ctx, nil)
	require.NoError(t, err)
	assert.False(t, rc.HasErrors())
	assert.Equal(t, []string{"fetch"}, log)
}

func TestRunContinuousStopsCleanly(t *testing.T) {
	logger := arbor.NewLogger()
	logger.Debug().Msg("logger ready")
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetch := &fakeStage{name: StageFetch}
	fetch.onRun = func(ctx context.Context, rc *RunContext) error {
		if fetch.runs.Load() >= 2 {
			cancel()
		}
		return errors.New("feed down")
	}

	o := NewOrchestrator(logger)
	require.NoError(t, o.Register(fetch))

	done := make(chan error, 1)
	go func() {
		done <- o.RunContinuous(ctx, []string{"fetch"}, time.Second)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("continuous run did not stop")
	}
	assert.Equal(t, int32(2), fetch.runs.Load())
}

func TestRunContinuousValidates(t *testing.T) {
	o := newOrchestrator(t, allStages(nil)...)

	err := o.RunContinuous(context.Background(), []string{"nope"}, time.Minute)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	err = o.RunContinuous(context.Background(), nil, 10*time.Millisecond)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestDescribe(t *testing.T) {
	o := newOrchestrator(t, allStages(nil)...)
	infos := o.Describe()
	require.Len(t, infos, 4)
	assert.Equal(t, StageFetch, infos[0].Name)
	assert.Equal(t, "fake fetch", infos[0].Description)
	assert.Equal(t, StageAgentic, infos[3].Name)
	assert.Contains(t, DataFlow, "SEC EDGAR")
}

func TestRunContextConcurrentUse(t *testing.T) {
	rc := NewRunContext(arbor.NewLogger())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc.Processed(StageSentiment)
			if i%10 == 0 {
				rc.RecordError(StageSentiment, "acc", errors.New("boom"))
			}
		}(i)
	}
	wg.Wait()

	counters := rc.Counters(StageSentiment)
	assert.Equal(t, 50, counters.Processed)
	assert.Equal(t, 5, counters.Failed)
	assert.Len(t, rc.Errors(), 5)
	assert.Error(t, rc.Err())
}
