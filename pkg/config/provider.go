package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetAnalysis() (*AnalysisData, error)
	GetSource() (*SourceData, error)
	GetOutput() (*OutputData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Analysis AnalysisData `json:"analysis,omitempty"`
	Source   SourceData   `json:"source,omitempty"`
	Output   OutputData   `json:"output,omitempty"`
}

// AnalysisData holds the statistical settings for an analysis run.
// Zero values mean "use the built-in default".
type AnalysisData struct {
	ConfidenceLevel float64 `json:"confidence_level,omitempty"`
	ResampleCount   int     `json:"resample_count,omitempty"`
	DurationScale   float64 `json:"duration_scale,omitempty"`
	Seed            int64   `json:"seed,omitempty"`
	Workers         int     `json:"workers,omitempty"`
	Policy          string  `json:"policy,omitempty"`
}

// SourceData holds the configuration for sample data sources
type SourceData struct {
	CSV      *CSVSourceData      `json:"csv,omitempty"`
	Database *DatabaseSourceData `json:"database,omitempty"`
}

// CSVSourceData describes a sample CSV file and its column mapping
type CSVSourceData struct {
	Path          string `json:"path"`
	StationColumn string `json:"station_column,omitempty"`
	DateColumn    string `json:"date_column,omitempty"`
	ValueColumn   string `json:"value_column,omitempty"`
	DateFormat    string `json:"date_format,omitempty"`
}

// DatabaseSourceData describes a sample database query
type DatabaseSourceData struct {
	ConnectionString string `json:"connection_string"`
	Parameter        string `json:"parameter"`
	Start            string `json:"start,omitempty"`
	End              string `json:"end,omitempty"`
}

// OutputData holds the configuration for result sinks
type OutputData struct {
	ResultsCSV string `json:"results_csv,omitempty"`
	StorePath  string `json:"store_path,omitempty"`
}
