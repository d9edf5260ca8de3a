package datasource

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kylinctl/kylinctl/internal/schema"
)

// The service package owns the recorded responses; they are shared here
// so both layers are checked against the same metadata.
const fixtureDir = "../service/testdata"

func loadFixture(t *testing.T, version, name string, v any) {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(fixtureDir, version, name))
	require.NoError(t, err)

	var env map[string]json.RawMessage
	if json.Unmarshal(raw, &env) == nil && len(env) == 3 {
		_, hasCode := env["code"]
		_, hasMsg := env["msg"]
		if data, ok := env["data"]; ok && hasCode && hasMsg {
			raw = data
		}
	}
	require.NoError(t, json.Unmarshal(raw, v))
}

func v1Cube(t *testing.T, opts ...Option) *Cube {
	t.Helper()
	var descs []schema.CubeDesc
	loadFixture(t, "v1", "cube_desc.json", &descs)
	require.Len(t, descs, 1)

	return buildCube(t, &descs[0], "v1", opts...)
}

func v2Cube(t *testing.T, opts ...Option) *Cube {
	t.Helper()
	var wrapped struct {
		Cube schema.CubeDesc `json:"cube"`
	}
	loadFixture(t, "v2", "cube_desc.json", &wrapped)
	return buildCube(t, &wrapped.Cube, "v2", opts...)
}

func buildCube(t *testing.T, desc *schema.CubeDesc, version string, opts ...Option) *Cube {
	t.Helper()
	cube, err := NewCube(desc, salesModel(t, version), salesCatalog(t, version), append(opts, WithVersion(version))...)
	require.NoError(t, err)
	return cube
}

func salesModel(t *testing.T, version string) *schema.ModelDesc {
	t.Helper()
	var models []schema.ModelDesc
	if version == "v2" {
		var wrapped struct {
			Models []schema.ModelDesc `json:"models"`
		}
		loadFixture(t, version, "models.json", &wrapped)
		models = wrapped.Models
	} else {
		loadFixture(t, version, "models.json", &models)
	}
	for i := range models {
		if models[i].Name == "kylin_sales_model" {
			return &models[i]
		}
	}
	t.Fatalf("kylin_sales_model not in %s fixtures", version)
	return nil
}

func salesCatalog(t *testing.T, version string) schema.TableCatalog {
	t.Helper()
	var tables []schema.CatalogTable
	loadFixture(t, version, "tables_and_columns.json", &tables)
	return schema.NewTableCatalog(tables)
}

func v4ModelDesc(t *testing.T) *schema.V4ModelDesc {
	t.Helper()
	var desc schema.V4ModelDesc
	loadFixture(t, "v4", "model_desc.json", &desc)
	return &desc
}
