package addons

import (
	"context"
	"errors"
	"testing"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/testutil"
	"github.com/stretchr/testify/require"
)

// testAddon is a configurable addon used to check pipeline ordering and
// merging
type testAddon struct {
	name       string
	priority   int
	applicable bool
	suffix     string
	dataSet    map[string]string
	piece      map[string]string
	err        error
	invalid    bool
}

var _ ConfigExporter = (*testAddon)(nil)
var _ Validator = (*testAddon)(nil)

func (a *testAddon) Name() string                       { return a.name }
func (a *testAddon) Priority() int                      { return a.priority }
func (a *testAddon) IsApplicable(types.DealConfig) bool { return a.applicable }

func (a *testAddon) Preprocess(_ context.Context, pc *Context) (*Output, error) {
	if a.err != nil {
		return nil, a.err
	}
	data := append(append([]byte(nil), pc.Data...), []byte(a.suffix)...)
	return &Output{Data: data, Size: int64(len(data)), Metadata: map[string]interface{}{"seen": len(pc.Metadata)}}, nil
}

func (a *testAddon) Validate(*Output) error {
	if a.invalid {
		return errors.New("output rejected")
	}
	return nil
}

func (a *testAddon) ProviderConfig(types.AddonMetadata) (types.ProviderConfig, error) {
	cfg := types.NewProviderConfig()
	for k, v := range a.dataSet {
		cfg.DataSet[k] = v
	}
	for k, v := range a.piece {
		cfg.Piece[k] = v
	}
	return cfg, nil
}

func newTestPipeline(t *testing.T, addons ...Addon) *Pipeline {
	reg, err := NewRegistry(NewDirect(), addons...)
	require.NoError(t, err)
	return NewPipeline(reg)
}

func testConfig(data []byte) types.DealConfig {
	return types.DealConfig{Payload: types.Payload{Name: "payload", Data: data, Size: int64(len(data))}}
}

func TestPipelineOrdering(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t,
		&testAddon{name: "c", priority: 30, applicable: true, suffix: "c"},
		&testAddon{name: "a1", priority: 10, applicable: true, suffix: "a"},
		&testAddon{name: "skipped", priority: 1, applicable: false, suffix: "x"},
		&testAddon{name: "b", priority: 20, applicable: true, suffix: "b"},
		&testAddon{name: "a2", priority: 10, applicable: true, suffix: "A"},
	)

	res, err := p.Run(ctx, testConfig([]byte("data-")))
	require.NoError(t, err)

	// Sorted by priority, ties keep registration order
	require.Equal(t, []string{"a1", "a2", "b", "c"}, res.Names())
	// Each addon receives the previous addon's output
	require.Equal(t, "data-aAbc", string(res.Data))
	require.EqualValues(t, len("data-aAbc"), res.Size)
	require.Equal(t, "payload", res.Name)
	require.Len(t, res.Metadata, 4)
	require.Equal(t, map[string]interface{}{"seen": 3}, res.Metadata["c"])
	require.NotContains(t, res.Metadata, "skipped")
}

func TestPipelineFallback(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, NewCDN(), NewIpni(DefaultIpniOptions(), nil))

	data := testutil.RandomBytes(100)
	res, err := p.Run(ctx, testConfig(data))
	require.NoError(t, err)
	require.Equal(t, []string{DirectName}, res.Names())
	require.Equal(t, data, res.Data)
	require.Empty(t, res.ProviderConfig.DataSet)
	require.Empty(t, res.ProviderConfig.Piece)
	require.Equal(t, &DirectMetadata{Size: 100}, res.Metadata[DirectName])
}

func TestPipelineCDNOnly(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, NewCDN(), NewIpni(DefaultIpniOptions(), nil))

	data := testutil.RandomBytes(2048)
	cfg := testConfig(data)
	cfg.EnableCDN = true
	res, err := p.Run(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, []string{CDNName}, res.Names())
	require.Equal(t, data, res.Data)
	require.Equal(t, map[string]string{WithCDNKey: ""}, res.ProviderConfig.DataSet)
}

func TestPipelineIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, NewCDN(), NewIpni(DefaultIpniOptions(), nil))

	cfg := testConfig(testutil.RandomBytes(4096))
	cfg.EnableCDN = true
	cfg.EnableIpni = true

	res1, err := p.Run(ctx, cfg)
	require.NoError(t, err)
	res2, err := p.Run(ctx, cfg)
	require.NoError(t, err)

	require.Equal(t, []string{IpniName, CDNName}, res1.Names())
	require.Equal(t, res1.Names(), res2.Names())
	require.Equal(t, res1.ProviderConfig, res2.ProviderConfig)
	require.Equal(t, res1.Data, res2.Data)
}

func TestPipelineMergeLastWriteWins(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t,
		&testAddon{name: "late", priority: 20, applicable: true,
			dataSet: map[string]string{"shared": "late", "late-only": "1"},
			piece:   map[string]string{"p": "late"}},
		&testAddon{name: "early", priority: 10, applicable: true,
			dataSet: map[string]string{"shared": "early", "early-only": "1"},
			piece:   map[string]string{"p": "early", "q": "early"}},
	)

	res, err := p.Run(ctx, testConfig([]byte("x")))
	require.NoError(t, err)
	require.Equal(t, []string{"early", "late"}, res.Names())
	require.Equal(t, map[string]string{"shared": "late", "late-only": "1", "early-only": "1"}, res.ProviderConfig.DataSet)
	require.Equal(t, map[string]string{"p": "late", "q": "early"}, res.ProviderConfig.Piece)
}

func TestPipelineAddonFailure(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("transform exploded")
	p := newTestPipeline(t,
		&testAddon{name: "ok", priority: 1, applicable: true},
		&testAddon{name: "broken", priority: 2, applicable: true, err: cause},
	)

	res, err := p.Run(ctx, testConfig([]byte("x")))
	require.Nil(t, res)
	var perr *types.PipelineError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "broken", perr.Addon)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "PIPELINE", types.ErrorCode(err))
}

func TestPipelineValidationFailure(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t,
		&testAddon{name: "invalid", priority: 1, applicable: true, invalid: true},
		&testAddon{name: "never", priority: 2, applicable: true, err: errors.New("should not run")},
	)

	_, err := p.Run(ctx, testConfig([]byte("x")))
	var perr *types.PipelineError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "invalid", perr.Addon)
	require.Contains(t, err.Error(), "output rejected")
}

func TestRegistry(t *testing.T) {
	_, err := NewRegistry(NewDirect(), NewCDN(), NewCDN())
	require.Error(t, err)

	// The default addon name is reserved too
	_, err = NewRegistry(NewDirect(), &testAddon{name: DirectName})
	require.Error(t, err)

	_, err = NewRegistry(nil)
	require.Error(t, err)

	reg, err := NewRegistry(NewDirect(), NewCDN())
	require.NoError(t, err)
	require.Equal(t, []string{DirectName, CDNName}, reg.Names())
	require.Equal(t, DirectName, reg.Default().Name())
	a, ok := reg.Get(CDNName)
	require.True(t, ok)
	require.Equal(t, CDNName, a.Name())
	_, ok = reg.Get("nope")
	require.False(t, ok)
}
