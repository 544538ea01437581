package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/sporks/rota/internal/entity"
)

// RunWithGolden executes a scenario, checks its inline expectations,
// and compares the canonical schedule snapshot against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) error {
	t.Helper()

	res, err := Run(sc)
	if err != nil {
		return err
	}
	if err := Check(sc, res); err != nil {
		return err
	}
	if res.Schedule == nil {
		return nil
	}

	snapshot := map[string]any{
		"scenario": sc.Name,
		"schedule": res.Schedule.Canonical(),
	}
	data, err := entity.MarshalCanonical(snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, data)
	return nil
}
