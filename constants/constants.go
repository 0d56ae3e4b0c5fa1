package constants

// Pipeline

const (
	TimeFormatWatermark          = "2006-01-02 15:04:05" // the textual form of warehouse timestamps before ISO conversion.
	TimeFormatWatermarkRegex     = `^[0-9]{4}-[0-9]{2}-[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}(\.[0-9]+)?$`
	DefaultWatermark             = "2001-04-16T00:00:00Z" // used when the target table holds no tickets.
	DefaultWatermarkTable        = "TICKETS"
	DefaultWatermarkUpdatedCol   = "UPDATED_AT"
	DefaultWatermarkCreatedCol   = "CREATED_AT"
	DefaultApiPassword           = "X" // Freshservice ignores the password when an API key is the username.
	DefaultPerPage               = 100
	FlattenSeparator             = "."
	CustomFieldsColumnPrefix     = "CUSTOM_FIELDS."
	ContentTypeJson              = "application/json"
	ContentTypeCsv               = "text/csv"
	BlobMetadataRows             = "rows"
	BlobMetadataComplete         = "complete"
	BlobMetadataRunID            = "run_id"
	BlobMetadataWatermark        = "watermark"
	EnvVarPrefix                 = "FP" // prefixed for environment variables in twelveFactorMode
	ServiceName                  = "freshpipe"
	ConnectionTypeSnowflake      = "snowflake"
	ConnectionTypeSqlServer      = "sqlserver"
	SinkTypeAzure                = "azure"
	SinkTypeS3                   = "s3"
	SinkTypeLocal                = "local"
	ResourceNameTickets          = "tickets"
	ResourceNameTicketFields     = "ticket_fields"
	ResourceNameGroups           = "groups"
	BlobPathTickets              = "API_FRESHSERVICE/TICKETS.csv"
	BlobPathTicketFields         = "API_FRESHSERVICE/TICKET_FIELDS.csv"
	BlobPathAgentGroups          = "API_FRESHSERVICE/AGENTGROUPS.csv"
	WatermarkTemplateVar         = "${watermark}" // replaced in resource endpoints by the value read from the warehouse.
	PerPageTemplateVar           = "${perPage}"
)
