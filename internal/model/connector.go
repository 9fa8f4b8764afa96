package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Connector types. CSV connectors are fed by file upload; pull connectors
// fetch paginated records from an external source on sync.
const (
	ConnectorCSV       = "csv"
	ConnectorHubSpot   = "hubspot"
	ConnectorGoogleAds = "google_ads"
)

// CSVOptions declares how an uploaded file must be parsed
type CSVOptions struct {
	Delimiter       string   `json:"delimiter,omitempty"`
	Encoding        string   `json:"encoding,omitempty"`
	HasHeader       bool     `json:"has_header"`
	RequiredColumns []string `json:"required_columns,omitempty"`
}

// PullOptions holds credentials and paging for a pull-based source
type PullOptions struct {
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// ConnectorConfig is a tagged variant: exactly one branch is set, matching
// the connector's type. Free-form dicts are deliberately not accepted here.
type ConnectorConfig struct {
	CSV  *CSVOptions  `json:"csv,omitempty"`
	Pull *PullOptions `json:"pull,omitempty"`
}

func (c ConnectorConfig) Value() (driver.Value, error) { return jsonValue(c) }
func (c *ConnectorConfig) Scan(src interface{}) error  { return jsonScan(c, src) }

// Validate checks that the config branch matches the connector type
func (c ConnectorConfig) Validate(connectorType string) error {
	switch connectorType {
	case ConnectorCSV:
		if c.CSV == nil {
			return fmt.Errorf("connector type %q requires csv options", connectorType)
		}
	case ConnectorHubSpot, ConnectorGoogleAds:
		if c.Pull == nil || c.Pull.BaseURL == "" {
			return fmt.Errorf("connector type %q requires pull options with a base_url", connectorType)
		}
	default:
		return fmt.Errorf("unsupported connector type %q", connectorType)
	}
	return nil
}

// Connector is a configured data source under a tenant. The registry only
// tracks configuration; data movement happens in the ingestion pipeline.
type Connector struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	TenantID   uint            `json:"tenant_id" gorm:"index;not null"`
	Type       string          `json:"type" gorm:"type:varchar(50);not null"`
	Config     ConnectorConfig `json:"config" gorm:"type:jsonb"`
	Active     bool            `json:"active" gorm:"default:true"`
	LastSyncAt *time.Time      `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `json:"-" gorm:"index"`
}

// IngestMeta records provenance for one sync or upload
type IngestMeta struct {
	BatchID     string    `json:"batch_id"`
	FileName    string    `json:"file_name,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
	Source      string    `json:"source,omitempty"`
	RecordCount int       `json:"record_count"`
	Columns     []string  `json:"columns,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

func (m IngestMeta) Value() (driver.Value, error) { return jsonValue(m) }
func (m *IngestMeta) Scan(src interface{}) error  { return jsonScan(m, src) }

// RawIngest is the immutable snapshot of one sync or upload. Append-only;
// rows are stored verbatim in Records.
type RawIngest struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	ConnectorID uint           `json:"connector_id" gorm:"index;not null"`
	Records     datatypes.JSON `json:"records" gorm:"type:jsonb"`
	Meta        IngestMeta     `json:"meta" gorm:"type:jsonb"`
	Status      string         `json:"status" gorm:"type:varchar(50);default:'pending'"`
	CreatedAt   time.Time      `json:"created_at"`

	Connector Connector `json:"-" gorm:"foreignKey:ConnectorID"`
}

// Raw ingest processing states
const (
	IngestPending   = "pending"
	IngestProcessed = "processed"
	IngestFailed    = "failed"
)

// NormalizedRecord is one ingest row after field mapping. Never mutated, only
// superseded by new syncs.
type NormalizedRecord struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	RawIngestID uint           `json:"raw_ingest_id" gorm:"index;not null"`
	EntityType  string         `json:"entity_type" gorm:"type:varchar(100)"`
	Fields      datatypes.JSON `json:"fields" gorm:"type:jsonb"`
	RowIndex    int            `json:"row_index"`
	CreatedAt   time.Time      `json:"created_at"`
}
