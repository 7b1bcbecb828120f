package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Analysis AnalysisYAML `yaml:"analysis,omitempty"`
		Source   SourceYAML   `yaml:"source,omitempty"`
		Output   OutputYAML   `yaml:"output,omitempty"`
	}

	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Analysis: AnalysisData{
			ConfidenceLevel: yamlConfig.Analysis.ConfidenceLevel,
			ResampleCount:   yamlConfig.Analysis.ResampleCount,
			DurationScale:   yamlConfig.Analysis.DurationScale,
			Seed:            yamlConfig.Analysis.Seed,
			Workers:         yamlConfig.Analysis.Workers,
			Policy:          yamlConfig.Analysis.Policy,
		},
		Output: OutputData{
			ResultsCSV: yamlConfig.Output.ResultsCSV,
			StorePath:  yamlConfig.Output.StorePath,
		},
	}

	if yamlConfig.Source.CSV != nil {
		config.Source.CSV = &CSVSourceData{
			Path:          yamlConfig.Source.CSV.Path,
			StationColumn: yamlConfig.Source.CSV.StationColumn,
			DateColumn:    yamlConfig.Source.CSV.DateColumn,
			ValueColumn:   yamlConfig.Source.CSV.ValueColumn,
			DateFormat:    yamlConfig.Source.CSV.DateFormat,
		}
	}

	if yamlConfig.Source.Database != nil {
		config.Source.Database = &DatabaseSourceData{
			ConnectionString: yamlConfig.Source.Database.ConnectionString,
			Parameter:        yamlConfig.Source.Database.Parameter,
			Start:            yamlConfig.Source.Database.Start,
			End:              yamlConfig.Source.Database.End,
		}
	}

	y.config = config
	return config, nil
}

// GetAnalysis returns the analysis settings
func (y *YAMLProvider) GetAnalysis() (*AnalysisData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Analysis, nil
}

// GetSource returns the data source configuration
func (y *YAMLProvider) GetSource() (*SourceData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Source, nil
}

// GetOutput returns the output configuration
func (y *YAMLProvider) GetOutput() (*OutputData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Output, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags for parsing the on-disk format
type AnalysisYAML struct {
	ConfidenceLevel float64 `yaml:"confidence_level,omitempty"`
	ResampleCount   int     `yaml:"resample_count,omitempty"`
	DurationScale   float64 `yaml:"duration_scale,omitempty"`
	Seed            int64   `yaml:"seed,omitempty"`
	Workers         int     `yaml:"workers,omitempty"`
	Policy          string  `yaml:"policy,omitempty"`
}

type SourceYAML struct {
	CSV      *CSVSourceYAML      `yaml:"csv,omitempty"`
	Database *DatabaseSourceYAML `yaml:"database,omitempty"`
}

type CSVSourceYAML struct {
	Path          string `yaml:"path"`
	StationColumn string `yaml:"station_column,omitempty"`
	DateColumn    string `yaml:"date_column,omitempty"`
	ValueColumn   string `yaml:"value_column,omitempty"`
	DateFormat    string `yaml:"date_format,omitempty"`
}

type DatabaseSourceYAML struct {
	ConnectionString string `yaml:"connection_string"`
	Parameter        string `yaml:"parameter"`
	Start            string `yaml:"start,omitempty"`
	End              string `yaml:"end,omitempty"`
}

type OutputYAML struct {
	ResultsCSV string `yaml:"results_csv,omitempty"`
	StorePath  string `yaml:"store_path,omitempty"`
}
