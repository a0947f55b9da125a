package workflows_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/usecases"
	"github.com/dirtio/soilmap/internal/workflows"
)

type stubSource struct {
	units []domain.MapUnit
	err   error
}

func (s *stubSource) MapUnitsAt(ctx context.Context, lon, lat float64) ([]domain.MapUnit, error) {
	return s.units, s.err
}

func TestPrefetchWorkflow_CountsWarmedAndFailed(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	acts := &workflows.PrefetchActivities{}
	env.RegisterActivity(acts)
	env.OnActivity(acts.FetchMapUnits, mock.Anything, -122.45, 37.49).Return(2, nil)
	env.OnActivity(acts.FetchMapUnits, mock.Anything, -100.0, 30.0).Return(1, nil)
	env.OnActivity(acts.FetchMapUnits, mock.Anything, 0.0, 0.0).Return(0, errors.New("upstream down"))

	env.ExecuteWorkflow(workflows.PrefetchWorkflow, workflows.PrefetchInput{
		Points: []domain.Coordinate{
			{Lat: 37.49, Lng: -122.45},
			{Lat: 30, Lng: -100},
			{Lat: 0, Lng: 0},
		},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res workflows.PrefetchResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, workflows.PrefetchResult{Points: 3, Warmed: 2, Failed: 1, MapUnits: 3}, res)
}

func TestPrefetchWorkflow_NoPoints(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&workflows.PrefetchActivities{})

	env.ExecuteWorkflow(workflows.PrefetchWorkflow, workflows.PrefetchInput{})

	require.True(t, env.IsWorkflowCompleted())
	var res workflows.PrefetchResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Zero(t, res)
}

func TestFetchMapUnitsActivity(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()

	src := &stubSource{units: []domain.MapUnit{{
		MuPolygonKey: "1",
		MuKey:        "2",
		WKT:          "POLYGON ((-1 -1, 1 -1, 1 1, -1 1, -1 -1))",
	}}}
	acts := &workflows.PrefetchActivities{Soil: usecases.NewSoilService(src, nil, nil, 0)}
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.FetchMapUnits, 0.5, 0.5)
	require.NoError(t, err)

	var n int
	require.NoError(t, val.Get(&n))
	assert.Equal(t, 1, n)
}

func TestFetchMapUnitsActivity_InvalidPoint(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()

	acts := &workflows.PrefetchActivities{Soil: usecases.NewSoilService(&stubSource{}, nil, nil, 0)}
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.FetchMapUnits, 500.0, 0.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid point")
}

func TestParsePoints(t *testing.T) {
	points, err := workflows.ParsePoints([]string{"-122.4194 37.7749", " -100 , 30 ", "-99,31", "\t-98\t32"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Coordinate{
		{Lat: 37.7749, Lng: -122.4194},
		{Lat: 30, Lng: -100},
		{Lat: 31, Lng: -99},
		{Lat: 32, Lng: -98},
	}, points)

	for _, bad := range []string{"1", "-122.4194", "a 1", "1 b", "200 0", "1 2 3", ""} {
		_, err := workflows.ParsePoints([]string{bad})
		assert.Error(t, err, bad)
	}
}
