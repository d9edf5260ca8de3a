//go:build integration

package integration

import (
	"database/sql"
	"slices"
	"testing"
	"time"

	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/report"
	"github.com/kylinctl/kylinctl/internal/service"
	"github.com/kylinctl/kylinctl/pkg/kylinsql"
)

func TestAuthenticateAndProjects(t *testing.T) {
	p := connect(t)
	ctx := testContext(t)

	user, err := p.Authenticate(ctx)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Username == "" {
		t.Error("empty username")
	}

	projects, err := p.Projects(ctx)
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if !slices.Contains(projects, p.Name()) {
		t.Errorf("projects %v do not contain %s", projects, p.Name())
	}
}

func TestDescribeDatasources(t *testing.T) {
	p := connect(t)
	ctx := testContext(t)

	names, err := p.AllDatasourceNames(ctx)
	if err != nil {
		t.Fatalf("datasource names: %v", err)
	}
	if len(names[datasource.KindTable]) == 0 {
		t.Fatal("no tables in the project")
	}

	kind := p.SourceTypes()[0]
	name := sampleCube()
	if kind == datasource.KindModel {
		if len(names[kind]) == 0 {
			t.Skip("no models in the project")
		}
		name = names[kind][0]
	}
	ds, err := p.Datasource(ctx, name, kind)
	if err != nil {
		t.Fatalf("datasource %s: %v", name, err)
	}
	if len(ds.Dimensions()) == 0 || len(ds.Measures()) == 0 {
		t.Errorf("%s has %d dimensions and %d measures", name, len(ds.Dimensions()), len(ds.Measures()))
	}

	r, err := report.Generate(ds, time.Now())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.FormatReport(r) == "" {
		t.Error("empty report")
	}
}

func TestQueryThroughDatabaseSQL(t *testing.T) {
	p := connect(t)
	ctx := testContext(t)

	db := sql.OpenDB(kylinsql.NewConnector(p))
	defer db.Close()

	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM KYLIN_SALES").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n <= 0 {
		t.Errorf("count = %d, want > 0", n)
	}
}

func TestRecentJobs(t *testing.T) {
	p := connect(t)
	ctx := testContext(t)

	jobs, err := p.Jobs(ctx, service.JobFilter{TimeFilter: service.LastMonth})
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	for _, j := range jobs {
		if j.ID == "" {
			t.Errorf("job without id: %+v", j)
		}
	}
}
