package datasource

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/schema"
)

type call struct {
	method string
	target string
	arg    any
}

var okResponse = json.RawMessage(`{"ok":true}`)

type fakeCubeOps struct {
	calls []call
}

func (f *fakeCubeOps) record(method, target string, arg any) (json.RawMessage, error) {
	f.calls = append(f.calls, call{method, target, arg})
	return okResponse, nil
}

func (f *fakeCubeOps) BuildCube(_ context.Context, cube string, req schema.BuildRequest) (json.RawMessage, error) {
	return f.record("BuildCube", cube, req)
}

func (f *fakeCubeOps) BuildStreamingCube(_ context.Context, cube string, req schema.StreamingBuildRequest) (json.RawMessage, error) {
	return f.record("BuildStreamingCube", cube, req)
}

func (f *fakeCubeOps) CubeSegments(_ context.Context, cube string) ([]schema.Segment, error) {
	f.calls = append(f.calls, call{"CubeSegments", cube, nil})
	return []schema.Segment{{UUID: "b5999bec-2381-77c7-cafb-c59407a7a032", Name: "20120101000000_20140101000000"}}, nil
}

func (f *fakeCubeOps) DeleteSegment(_ context.Context, cube, segment string) (json.RawMessage, error) {
	return f.record("DeleteSegment", cube, segment)
}

func (f *fakeCubeOps) MaintainCube(_ context.Context, cube, action string, body any) (json.RawMessage, error) {
	return f.record("MaintainCube:"+action, cube, body)
}

func (f *fakeCubeOps) DropCube(_ context.Context, cube string) (json.RawMessage, error) {
	return f.record("DropCube", cube, nil)
}

type fakeModelOps struct {
	calls []call
}

func (f *fakeModelOps) record(method, target string, arg any) (json.RawMessage, error) {
	f.calls = append(f.calls, call{method, target, arg})
	return okResponse, nil
}

func (f *fakeModelOps) BuildSegment(_ context.Context, model string, start, end int64) (json.RawMessage, error) {
	return f.record("BuildSegment", model, [2]int64{start, end})
}

func (f *fakeModelOps) MergeSegments(_ context.Context, model string, ids []string) (json.RawMessage, error) {
	return f.record("MergeSegments", model, ids)
}

func (f *fakeModelOps) RefreshSegments(_ context.Context, model string, ids []string) (json.RawMessage, error) {
	return f.record("RefreshSegments", model, ids)
}

func (f *fakeModelOps) DeleteSegments(_ context.Context, model string, ids []string) (json.RawMessage, error) {
	return f.record("DeleteSegments", model, ids)
}

func (f *fakeModelOps) ModelSegments(_ context.Context, model string) ([]schema.Segment, error) {
	f.calls = append(f.calls, call{"ModelSegments", model, nil})
	return []schema.Segment{{ID: "6dcc77dd-8e9b-488a-a52e-ed7cb0245d79", Status: "READY"}}, nil
}

func (f *fakeModelOps) RefreshCatalogCache(_ context.Context, tables []string) (json.RawMessage, error) {
	return f.record("RefreshCatalogCache", "", tables)
}

func (f *fakeModelOps) Indexes(_ context.Context, model string) (json.RawMessage, error) {
	f.calls = append(f.calls, call{"Indexes", model, nil})
	return json.RawMessage(`[1,2,3,4]`), nil
}

func (f *fakeModelOps) BuildIndexes(_ context.Context, model string) (json.RawMessage, error) {
	return f.record("BuildIndexes", model, nil)
}

func (f *fakeModelOps) DeleteIndex(_ context.Context, model string, id int64) (json.RawMessage, error) {
	return f.record("DeleteIndex", model, id)
}

func (f *fakeModelOps) IndexRules(_ context.Context, model string) (json.RawMessage, error) {
	return f.record("IndexRules", model, nil)
}

func (f *fakeModelOps) PutIndexRules(_ context.Context, model string, rules any) (json.RawMessage, error) {
	return f.record("PutIndexRules", model, rules)
}

func TestCubeCommands(t *testing.T) {
	cube := v1Cube(t)
	assert.Equal(t, []string{
		"build", "build_streaming", "clone", "delete", "disable", "drop", "enable",
		"fullbuild", "merge", "merge_streaming", "purge", "refresh", "refresh_streaming",
	}, cube.Commands())
}

func TestCubeInvokeBuild(t *testing.T) {
	ops := &fakeCubeOps{}
	cube := v1Cube(t, WithCubeOperator(ops))
	ctx := context.Background()

	start := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)

	out, err := cube.Invoke(ctx, "build", Args{Start: start, End: end})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))

	_, err = cube.Invoke(ctx, "merge", Args{Start: start, End: end})
	require.NoError(t, err)
	_, err = cube.Invoke(ctx, "refresh_streaming", Args{OffsetStart: 10, OffsetEnd: 20})
	require.NoError(t, err)

	require.Len(t, ops.calls, 3)
	assert.Equal(t, call{"BuildCube", "kylin_sales_cube", schema.BuildRequest{
		StartTime: 1325376000000, EndTime: 1388534400000, BuildType: "BUILD",
	}}, ops.calls[0])
	assert.Equal(t, "MERGE", ops.calls[1].arg.(schema.BuildRequest).BuildType)
	assert.Equal(t, call{"BuildStreamingCube", "kylin_sales_cube", schema.StreamingBuildRequest{
		SourceOffsetStart: 10, SourceOffsetEnd: 20, BuildType: "REFRESH",
	}}, ops.calls[2])
}

func TestCubeFullBuildStartsAtEpoch(t *testing.T) {
	ops := &fakeCubeOps{}
	cube := v1Cube(t, WithCubeOperator(ops))

	before := time.Now().UnixMilli()
	_, err := cube.Invoke(context.Background(), "fullbuild", Args{})
	require.NoError(t, err)

	req := ops.calls[0].arg.(schema.BuildRequest)
	assert.Zero(t, req.StartTime)
	assert.GreaterOrEqual(t, req.EndTime, before)
}

func TestCubeRangeCommandsDefaultOpenBounds(t *testing.T) {
	ops := &fakeCubeOps{}
	now := time.Date(2020, 2, 10, 14, 5, 42, 0, time.UTC)
	cube := v1Cube(t, WithCubeOperator(ops), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	start := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, command := range []string{"build", "merge", "refresh"} {
		_, err := cube.Invoke(ctx, command, Args{})
		require.NoError(t, err, command)
	}
	_, err := cube.Invoke(ctx, "build", Args{Start: start})
	require.NoError(t, err)

	require.Len(t, ops.calls, 4)
	for i, buildType := range []string{"BUILD", "MERGE", "REFRESH"} {
		assert.Equal(t, schema.BuildRequest{
			StartTime: 0, EndTime: now.UnixMilli(), BuildType: buildType,
		}, ops.calls[i].arg, buildType)
	}
	assert.Equal(t, schema.BuildRequest{
		StartTime: start.UnixMilli(), EndTime: now.UnixMilli(), BuildType: "BUILD",
	}, ops.calls[3].arg)
}

func TestModelBuildOpenBounds(t *testing.T) {
	ops := &fakeModelOps{}
	model, err := NewModel(v4ModelDesc(t), WithModelOperator(ops))
	require.NoError(t, err)

	_, err = model.Invoke(context.Background(), "build", Args{})
	require.NoError(t, err)
	require.Len(t, ops.calls, 1)
	assert.Equal(t, [2]int64{0, 0}, ops.calls[0].arg)
}

func TestCubeMaintenance(t *testing.T) {
	ops := &fakeCubeOps{}
	cube := v1Cube(t, WithCubeOperator(ops))
	ctx := context.Background()

	for _, name := range []string{"disable", "enable", "purge", "drop"} {
		_, err := cube.Invoke(ctx, name, Args{})
		require.NoError(t, err, name)
	}
	_, err := cube.Invoke(ctx, "clone", Args{})
	require.NoError(t, err)
	_, err = cube.Invoke(ctx, "clone", Args{Name: "sales_copy"})
	require.NoError(t, err)
	_, err = cube.Invoke(ctx, "delete", Args{Segment: "20120101000000_20140101000000"})
	require.NoError(t, err)

	var methods []string
	for _, c := range ops.calls {
		methods = append(methods, c.method)
	}
	assert.Equal(t, []string{
		"MaintainCube:disable", "MaintainCube:enable", "MaintainCube:purge", "DropCube",
		"MaintainCube:clone", "MaintainCube:clone", "DeleteSegment",
	}, methods)
	assert.Equal(t, map[string]string{"cubeName": "kylin_sales_cube_clone"}, ops.calls[4].arg)
	assert.Equal(t, map[string]string{"cubeName": "sales_copy"}, ops.calls[5].arg)

	segs, err := cube.ListSegments(ctx)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "b5999bec-2381-77c7-cafb-c59407a7a032", segs[0].Identifier())
}

func TestCubeInvokeErrors(t *testing.T) {
	ctx := context.Background()

	cube := v1Cube(t, WithCubeOperator(&fakeCubeOps{}))
	_, err := cube.Invoke(ctx, "rebuild_everything", Args{})
	assert.ErrorIs(t, err, apperrors.ErrCube)

	_, err = cube.Invoke(ctx, "delete", Args{})
	assert.ErrorIs(t, err, apperrors.ErrCube)

	unbound := v1Cube(t)
	_, err = unbound.Invoke(ctx, "build", Args{})
	assert.ErrorIs(t, err, apperrors.ErrCube)
}

func TestModelCommands(t *testing.T) {
	model, err := NewModel(v4ModelDesc(t))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"build", "delete", "fullbuild", "list_segment", "merge", "refresh", "refresh_catalog_cache",
	}, model.Commands())
}

func TestModelInvokeSegments(t *testing.T) {
	ops := &fakeModelOps{}
	model, err := NewModel(v4ModelDesc(t), WithModelOperator(ops))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = model.Invoke(ctx, "fullbuild", Args{})
	require.NoError(t, err)
	_, err = model.Invoke(ctx, "build", Args{
		Start: time.UnixMilli(1325376000000),
		End:   time.UnixMilli(1356998400000),
	})
	require.NoError(t, err)

	ids := []string{"6dcc77dd-8e9b-488a-a52e-ed7cb0245d79"}
	for _, name := range []string{"merge", "refresh", "delete"} {
		_, err = model.Invoke(ctx, name, Args{IDs: ids})
		require.NoError(t, err, name)
	}

	out, err := model.Invoke(ctx, "list_segment", Args{})
	require.NoError(t, err)
	var segs []schema.Segment
	require.NoError(t, json.Unmarshal(out, &segs))
	require.Len(t, segs, 1)
	assert.Equal(t, "6dcc77dd-8e9b-488a-a52e-ed7cb0245d79", segs[0].Identifier())

	require.Len(t, ops.calls, 6)
	assert.Equal(t, call{"BuildSegment", "kylin_sales_model", [2]int64{0, 0}}, ops.calls[0])
	assert.Equal(t, call{"BuildSegment", "kylin_sales_model", [2]int64{1325376000000, 1356998400000}}, ops.calls[1])
	assert.Equal(t, call{"MergeSegments", "kylin_sales_model", ids}, ops.calls[2])
	assert.Equal(t, call{"RefreshSegments", "kylin_sales_model", ids}, ops.calls[3])
	assert.Equal(t, call{"DeleteSegments", "kylin_sales_model", ids}, ops.calls[4])
}

func TestModelRefreshCatalogCacheDefaultsToModelTables(t *testing.T) {
	ops := &fakeModelOps{}
	model, err := NewModel(v4ModelDesc(t), WithModelOperator(ops))
	require.NoError(t, err)

	_, err = model.Invoke(context.Background(), "refresh_catalog_cache", Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"DEFAULT.KYLIN_SALES", "DEFAULT.KYLIN_CAL_DT", "DEFAULT.KYLIN_ACCOUNT",
		"DEFAULT.KYLIN_CATEGORY_GROUPINGS", "DEFAULT.KYLIN_COUNTRY",
	}, ops.calls[0].arg)

	_, err = model.RefreshCatalogCache(context.Background(), []string{"SSB.DATES"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SSB.DATES"}, ops.calls[1].arg)
}

func TestModelIndexes(t *testing.T) {
	ops := &fakeModelOps{}
	model, err := NewModel(v4ModelDesc(t), WithModelOperator(ops))
	require.NoError(t, err)
	ctx := context.Background()

	out, err := model.ListIndexes(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3,4]`, string(out))

	_, err = model.BuildIndexes(ctx)
	require.NoError(t, err)
	_, err = model.DeleteIndex(ctx, 20000000001)
	require.NoError(t, err)
	_, err = model.ListIndexRules(ctx)
	require.NoError(t, err)
	_, err = model.ClearUpIndexRules(ctx)
	require.NoError(t, err)

	require.Len(t, ops.calls, 5)
	assert.Equal(t, int64(20000000001), ops.calls[2].arg)

	rules, ok := ops.calls[4].arg.(IndexRules)
	require.True(t, ok)
	assert.Equal(t, modelDimensionIDs, rules.Dimensions)
	assert.Empty(t, rules.AggregateGroups)

	body, err := json.Marshal(rules)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"aggregation_groups":[]`)
}

func TestModelInvokeErrors(t *testing.T) {
	ctx := context.Background()

	model, err := NewModel(v4ModelDesc(t), WithModelOperator(&fakeModelOps{}))
	require.NoError(t, err)

	_, err = model.Invoke(ctx, "purge", Args{})
	assert.ErrorIs(t, err, apperrors.ErrModel)

	_, err = model.Invoke(ctx, "merge", Args{})
	assert.ErrorIs(t, err, apperrors.ErrModel)

	unbound, err := NewModel(v4ModelDesc(t))
	require.NoError(t, err)
	_, err = unbound.ListIndexes(ctx)
	assert.ErrorIs(t, err, apperrors.ErrModel)
}
