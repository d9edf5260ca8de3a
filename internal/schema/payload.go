package schema

// Raw metadata shapes returned by the remote service, after the transport
// has unwrapped any response envelope.

// CubeDesc is a v1/v2 cube description.
type CubeDesc struct {
	UUID         string          `json:"uuid"`
	Name         string          `json:"name"`
	ModelName    string          `json:"model_name"`
	LastModified int64           `json:"last_modified"`
	Dimensions   []CubeDimension `json:"dimensions"`
	Measures     []CubeMeasure   `json:"measures"`
	Rowkey       *Rowkey         `json:"rowkey,omitempty"`
	Status       string          `json:"status,omitempty"`
}

// CubeDimension is a dimension entry of a cube description.
type CubeDimension struct {
	Name    string   `json:"name"`
	Table   string   `json:"table"`
	Column  string   `json:"column"`
	Derived []string `json:"derived"`
}

// PhysicalColumn returns Derived[0] when the dimension is derived, else Column.
func (d CubeDimension) PhysicalColumn() string {
	if len(d.Derived) > 0 {
		return d.Derived[0]
	}
	return d.Column
}

// CubeMeasure is a measure entry of a cube description.
type CubeMeasure struct {
	Name     string          `json:"name"`
	Function MeasureFunction `json:"function"`
}

// MeasureFunction is the aggregation of a cube measure.
type MeasureFunction struct {
	Expression string         `json:"expression"`
	Parameter  *ParameterNode `json:"parameter"`
	ReturnType string         `json:"returntype,omitempty"`
}

// Rowkey lists the rowkey columns of a cube.
type Rowkey struct {
	Columns []RowkeyColumn `json:"rowkey_columns"`
}

// RowkeyColumn is a rowkey entry, Column is "<alias>.<column>".
type RowkeyColumn struct {
	Column   string `json:"column"`
	Encoding string `json:"encoding,omitempty"`
}

// ModelDesc is a v1/v2 model description.
type ModelDesc struct {
	UUID         string           `json:"uuid"`
	Name         string           `json:"name"`
	FactTable    string           `json:"fact_table"`
	Lookups      []LookupEdge     `json:"lookups"`
	Dimensions   []ModelDimension `json:"dimensions"`
	Metrics      []string         `json:"metrics"`
	LastModified int64            `json:"last_modified"`
}

// ModelDimension lists the columns a model exposes from one table.
type ModelDimension struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// V4ModelDesc is a v4 model description with pre-flattened metadata.
type V4ModelDesc struct {
	UUID                 string        `json:"uuid"`
	Name                 string        `json:"name"`
	Alias                string        `json:"alias"`
	Project              string        `json:"project,omitempty"`
	FactTable            string        `json:"fact_table"`
	LastModified         int64         `json:"last_modified"`
	Status               string        `json:"status,omitempty"`
	Lookups              []LookupEdge  `json:"lookups"`
	SimplifiedDimensions []V4Dimension `json:"simplified_dimensions"`
	SimplifiedMeasures   []V4Measure   `json:"simplified_measures"`
	SimplifiedTables     []V4Table     `json:"simplified_tables"`
}

// V4Dimension is a flattened dimension; Column is "<alias>.<column>".
type V4Dimension struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Column string `json:"column"`
	Status string `json:"status"`
}

// V4Measure is a flattened measure.
type V4Measure struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	Expression     string          `json:"expression"`
	ParameterValue []ParameterNode `json:"parameter_value"`
	ReturnType     string          `json:"return_type,omitempty"`
}

// V4Table is a table of a v4 model with its declared column types.
type V4Table struct {
	Table   string     `json:"table"`
	Columns []V4Column `json:"columns"`
}

// V4Column is a column of a V4Table.
type V4Column struct {
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
}

// DatasetDesc is a dataset description built on top of a model.
type DatasetDesc struct {
	DatasetName       string              `json:"dataset_name"`
	Project           string              `json:"project"`
	LastModified      int64               `json:"last_modified"`
	Models            []DatasetModel      `json:"models"`
	CalculateMeasures []CalculatedMeasure `json:"calculate_measures"`
}

// DatasetModel is the model part of a dataset.
type DatasetModel struct {
	ModelName       string            `json:"model_name,omitempty"`
	FactTable       string            `json:"fact_table"`
	DimensionTables []DatasetDimTable `json:"dimension_tables"`
	Measures        []DatasetMeasure  `json:"measures"`
}

// DatasetDimTable is one table of dataset dimensions.
type DatasetDimTable struct {
	Name        string             `json:"name"`
	DimCols     []DatasetDimCol    `json:"dim_cols"`
	Hierarchies []DatasetHierarchy `json:"hierarchys,omitempty"`
}

// DatasetDimCol is a dataset dimension column.
type DatasetDimCol struct {
	Name     string `json:"name"`
	Alias    string `json:"alias"`
	DataType string `json:"data_type"`
	Desc     string `json:"desc,omitempty"`
}

// DatasetHierarchy groups dimension columns of one table.
type DatasetHierarchy struct {
	Name    string   `json:"name"`
	Desc    string   `json:"desc,omitempty"`
	DimCols []string `json:"dim_cols"`
}

// DatasetMeasure is a dataset measure; DimColumn is "<alias>.<column>" or "constant".
type DatasetMeasure struct {
	Name       string `json:"name"`
	Alias      string `json:"alias"`
	Expression string `json:"expression"`
	DimColumn  string `json:"dim_column"`
	Desc       string `json:"desc,omitempty"`
}

// CalculatedMeasure is a dataset measure with a literal expression.
type CalculatedMeasure struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Desc       string `json:"desc,omitempty"`
}

// Project is a project entry.
type Project struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Status       string `json:"status,omitempty"`
	LastModified int64  `json:"last_modified"`
}

// CubeInfo is an entry of the cube list.
type CubeInfo struct {
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Project      string    `json:"project,omitempty"`
	Model        string    `json:"model,omitempty"`
	SizeKB       int64     `json:"size_kb"`
	InputRecords int64     `json:"input_records_count"`
	LastModified int64     `json:"last_modified"`
	Segments     []Segment `json:"segments,omitempty"`
}

// Segment is a built range of a cube or model.
type Segment struct {
	UUID           string `json:"uuid,omitempty"`
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	DateRangeStart int64  `json:"date_range_start"`
	DateRangeEnd   int64  `json:"date_range_end"`
	SizeKB         int64  `json:"size_kb,omitempty"`
	BytesSize      int64  `json:"bytes_size,omitempty"`
	LastBuildTime  int64  `json:"last_build_time,omitempty"`
}

// Identifier returns the segment id, preferring the v4 field.
func (s Segment) Identifier() string {
	if s.ID != "" {
		return s.ID
	}
	return s.UUID
}

// Size returns the segment size in bytes.
func (s Segment) Size() int64 {
	if s.BytesSize > 0 {
		return s.BytesSize
	}
	return s.SizeKB * 1024
}

// UserDetails is the authenticated user.
type UserDetails struct {
	Username    string      `json:"username"`
	Authorities []Authority `json:"authorities"`
	Disabled    bool        `json:"disabled,omitempty"`
}

// Authority is a granted role.
type Authority struct {
	Authority string `json:"authority"`
}

// TableDesc is a table loaded into the project (the pushdown catalog).
type TableDesc struct {
	UUID     string       `json:"uuid,omitempty"`
	Database string       `json:"database"`
	Name     string       `json:"name"`
	Columns  []DescColumn `json:"columns"`
}

// FullName returns "<database>.<name>".
func (t TableDesc) FullName() string {
	return t.Database + "." + t.Name
}

// DescColumn is a column of a TableDesc.
type DescColumn struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
}

// QueryRequest is the body of a query call.
type QueryRequest struct {
	AcceptPartial bool   `json:"acceptPartial"`
	Limit         int    `json:"limit"`
	Offset        int    `json:"offset"`
	Project       string `json:"project"`
	SQL           string `json:"sql"`
}

// QueryResult is the response of a query call.
type QueryResult struct {
	ColumnMetas      []ColumnMeta `json:"columnMetas"`
	Results          [][]*string  `json:"results"`
	Cube             string       `json:"cube,omitempty"`
	AffectedRowCount int          `json:"affectedRowCount"`
	IsException      bool         `json:"isException"`
	ExceptionMessage string       `json:"exceptionMessage,omitempty"`
	Duration         int64        `json:"duration"`
	TotalScanCount   int64        `json:"totalScanCount"`
	Pushdown         bool         `json:"pushDown"`
}

// ColumnMeta describes one result column.
type ColumnMeta struct {
	Label          string `json:"label"`
	Name           string `json:"name"`
	ColumnTypeName string `json:"columnTypeName"`
	DisplaySize    int    `json:"displaySize"`
	Precision      int    `json:"precision"`
	Scale          int    `json:"scale"`
	IsNullable     int    `json:"isNullable"`
	SchemaName     string `json:"schemaName,omitempty"`
	TableName      string `json:"tableName,omitempty"`
}

// BuildRequest is the body of a cube rebuild call. Times are epoch ms.
type BuildRequest struct {
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	BuildType string `json:"buildType"`
}

// StreamingBuildRequest is the body of a streaming cube rebuild call.
type StreamingBuildRequest struct {
	SourceOffsetStart int64  `json:"sourceOffsetStart"`
	SourceOffsetEnd   int64  `json:"sourceOffsetEnd"`
	BuildType         string `json:"buildType"`
}

// Build types.
const (
	BuildTypeBuild   = "BUILD"
	BuildTypeMerge   = "MERGE"
	BuildTypeRefresh = "REFRESH"
)

// JobDesc is a build job as reported by v1 and v2 services.
type JobDesc struct {
	UUID            string         `json:"uuid"`
	Name            string         `json:"name"`
	Type            string         `json:"type"`
	Duration        int64          `json:"duration"`
	RelatedCube     string         `json:"related_cube"`
	DisplayCubeName string         `json:"display_cube_name"`
	RelatedSegment  string         `json:"related_segment,omitempty"`
	ProjectName     string         `json:"project_name"`
	Status          string         `json:"job_status"`
	Progress        float64        `json:"progress"`
	Submitter       string         `json:"submitter"`
	LastModified    int64          `json:"last_modified"`
	ExecStartTime   int64          `json:"exec_start_time,omitempty"`
	ExecEndTime     int64          `json:"exec_end_time,omitempty"`
	Info            map[string]any `json:"info,omitempty"`
	Steps           []JobStep      `json:"steps"`
}

// JobStep is one step of a job.
type JobStep struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	SequenceID    int            `json:"sequence_id"`
	Status        string         `json:"step_status"`
	ExecStartTime int64          `json:"exec_start_time,omitempty"`
	ExecEndTime   int64          `json:"exec_end_time,omitempty"`
	Info          map[string]any `json:"info,omitempty"`
}
