package toolserver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-go/agentflow/tool"
)

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

type addOutput struct {
	Sum int `json:"sum"`
}

func addTool() tool.Dyn {
	return tool.Func("add", "adds two integers", func(ctx context.Context, args addArgs) (addOutput, error) {
		return addOutput{Sum: args.A + args.B}, nil
	})
}

func TestCallToolRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, tool.NewSet(addTool()), nil, 4, nil)

	out, err := s.CallTool(ctx, "add", `{"a":2,"b":3}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":5}`, out)
}

func TestCallToolUnknownName(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, tool.NewSet(), nil, 4, nil)

	_, err := s.CallTool(ctx, "missing", `{}`)
	require.Error(t, err)
	var notFound *tool.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestAddRemoveTool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, tool.NewSet(), nil, 4, nil)

	require.NoError(t, s.AddTool(ctx, addTool()))
	defs, err := s.GetToolDefs(ctx, nil)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "add", defs[0].Name)

	require.NoError(t, s.RemoveTool(ctx, "add"))
	defs, err = s.GetToolDefs(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, defs, 0)
}

func TestConcurrentCallToolOverlaps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := tool.Func("slow", "sleeps then echoes", func(ctx context.Context, args addArgs) (addOutput, error) {
		time.Sleep(50 * time.Millisecond)
		return addOutput{Sum: args.A}, nil
	})
	s := New(ctx, tool.NewSet(slow), nil, 4, nil)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.CallTool(ctx, "slow", `{"a":1,"b":0}`)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// Four 50ms calls running concurrently under a concurrency limit of 4
	// should take close to one call's duration, not four serialized ones.
	assert.Less(t, elapsed, 200*time.Millisecond)
}

type fakeDynamicSource struct {
	ids []string
}

func (f *fakeDynamicSource) TopNIDs(ctx context.Context, query string, sampleCount int) ([]string, error) {
	return f.ids, nil
}

func TestGetToolDefsWithDynamicSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dyn := &fakeDynamicSource{ids: []string{"add", "ghost"}}
	s := New(ctx, tool.NewSet(addTool()), []DynamicEntrySpec{{SampleCount: 4, Source: dyn}}, 4, nil)

	prompt := "what's 2 plus 3?"
	defs, err := s.GetToolDefs(ctx, &prompt)
	require.NoError(t, err)

	// "add" appears once from the static set and once from the dynamic
	// resolution pass; "ghost" is silently skipped as not present in the
	// toolset (logged at Warn, not surfaced as an error).
	names := map[string]int{}
	for _, d := range defs {
		names[d.Name]++
	}
	assert.Equal(t, 2, names["add"])
	assert.Equal(t, 0, names["ghost"])
}
