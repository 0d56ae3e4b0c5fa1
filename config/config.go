package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"time"

	"github.com/diegoholiveira/jsonlogic"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/helper"
)

const (
	MainDir            = ".freshpipe"
	MainFileNamePrefix = "config"
	MainFileNameExt    = "yaml"
	MainFileFullName   = MainFileNamePrefix + "." + MainFileNameExt
)

// FileNotFoundError denotes failing to find configuration file.
type FileNotFoundError struct {
	name string
}

// Error returns the formatted configuration error.
func (f FileNotFoundError) Error() string {
	return fmt.Sprintf("config file %q not found", f.name)
}

// Pipeline holds everything a sync run needs.
// It is built by Default, then overlaid by a config file, environment variables and finally CLI flags.
type Pipeline struct {
	Freshservice  Freshservice `json:"freshservice" yaml:"freshservice"`
	Warehouse     Warehouse    `json:"warehouse" yaml:"warehouse"`
	Sink          Sink         `json:"sink" yaml:"sink"`
	Resources     []Resource   `json:"resources" yaml:"resources"`
	UploadOrder   []string     `json:"uploadOrder,omitempty" yaml:"uploadOrder,omitempty"`
	RejectPartial bool         `json:"rejectPartial" yaml:"rejectPartial"`
	LogLevel      string       `json:"logLevel" yaml:"logLevel"`
	PrintStack    bool         `json:"printStack" yaml:"printStack"`
}

type Freshservice struct {
	Domain     string   `json:"domain" yaml:"domain"`
	BaseUrl    string   `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	ApiKeyFile string   `json:"apiKeyFile" yaml:"apiKeyFile" errorTxt:"freshservice.apiKeyFile" mandatory:"yes"`
	Password   string   `json:"password" yaml:"password"`
	PerPage    int      `json:"perPage" yaml:"perPage" errorTxt:"freshservice.perPage" mandatory:"yes"`
	Timeout    Duration `json:"timeout" yaml:"timeout"`
	Retry      Retry    `json:"retry" yaml:"retry"`
}

// Retry configures the backoff applied when the API answers 429.
type Retry struct {
	InitialWait Duration `json:"initialWait" yaml:"initialWait"`
	MaxWait     Duration `json:"maxWait" yaml:"maxWait"`
	Multiplier  float64  `json:"multiplier" yaml:"multiplier"`
	MaxAttempts int      `json:"maxAttempts" yaml:"maxAttempts" errorTxt:"freshservice.retry.maxAttempts" mandatory:"yes"`
}

type Warehouse struct {
	Type             string `json:"type" yaml:"type" errorTxt:"warehouse.type" mandatory:"yes"`
	CredentialsFile  string `json:"credentialsFile" yaml:"credentialsFile" errorTxt:"warehouse.credentialsFile" mandatory:"yes"`
	Table            string `json:"table" yaml:"table" errorTxt:"warehouse.table" mandatory:"yes"`
	UpdatedColumn    string `json:"updatedColumn" yaml:"updatedColumn" errorTxt:"warehouse.updatedColumn" mandatory:"yes"`
	CreatedColumn    string `json:"createdColumn" yaml:"createdColumn" errorTxt:"warehouse.createdColumn" mandatory:"yes"`
	DefaultWatermark string `json:"defaultWatermark" yaml:"defaultWatermark" errorTxt:"warehouse.defaultWatermark" mandatory:"yes"`
}

// Sink describes where CSV files are written.
// Container doubles as the bucket name for S3.
type Sink struct {
	Type      string `json:"type" yaml:"type" errorTxt:"sink.type" mandatory:"yes"`
	Account   string `json:"account,omitempty" yaml:"account,omitempty"`
	Container string `json:"container,omitempty" yaml:"container,omitempty"`
	SasToken  string `json:"sasToken,omitempty" yaml:"sasToken,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`
}

// Resource is one Freshservice collection to extract.
// Endpoint may contain ${watermark} and ${perPage}.
type Resource struct {
	Name        string `json:"name" yaml:"name" errorTxt:"resource name" mandatory:"yes"`
	Endpoint    string `json:"endpoint" yaml:"endpoint" errorTxt:"resource endpoint" mandatory:"yes"`
	RecordPath  string `json:"recordPath" yaml:"recordPath" errorTxt:"resource recordPath" mandatory:"yes"`
	BlobPath    string `json:"blobPath" yaml:"blobPath" errorTxt:"resource blobPath" mandatory:"yes"`
	StripPrefix string `json:"stripPrefix,omitempty" yaml:"stripPrefix,omitempty"`
	Filter      string `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// Default returns a Pipeline that reproduces the standard tickets, ticket fields and groups extract.
func Default() *Pipeline {
	return &Pipeline{
		Freshservice: Freshservice{
			Password: constants.DefaultApiPassword,
			PerPage:  constants.DefaultPerPage,
			Timeout:  Duration{2 * time.Minute},
			Retry: Retry{
				InitialWait: Duration{60 * time.Second},
				MaxWait:     Duration{10 * time.Minute},
				Multiplier:  2,
				MaxAttempts: 5,
			},
		},
		Warehouse: Warehouse{
			Type:             constants.ConnectionTypeSnowflake,
			Table:            constants.DefaultWatermarkTable,
			UpdatedColumn:    constants.DefaultWatermarkUpdatedCol,
			CreatedColumn:    constants.DefaultWatermarkCreatedCol,
			DefaultWatermark: constants.DefaultWatermark,
		},
		Sink: Sink{
			Type: constants.SinkTypeAzure,
		},
		Resources: []Resource{
			{
				Name:        constants.ResourceNameTickets,
				Endpoint:    "tickets?per_page=" + constants.PerPageTemplateVar + "&updated_since=" + constants.WatermarkTemplateVar,
				RecordPath:  "tickets",
				BlobPath:    constants.BlobPathTickets,
				StripPrefix: constants.CustomFieldsColumnPrefix,
			},
			{
				Name:       constants.ResourceNameTicketFields,
				Endpoint:   "ticket_form_fields?per_page=" + constants.PerPageTemplateVar,
				RecordPath: "ticket_fields",
				BlobPath:   constants.BlobPathTicketFields,
			},
			{
				Name:       constants.ResourceNameGroups,
				Endpoint:   "groups?per_page=" + constants.PerPageTemplateVar,
				RecordPath: "groups",
				BlobPath:   constants.BlobPathAgentGroups,
			},
		},
		UploadOrder: []string{
			constants.ResourceNameGroups,
			constants.ResourceNameTickets,
			constants.ResourceNameTicketFields,
		},
		LogLevel: "info",
	}
}

// DefaultFilePath returns ~/.freshpipe/config.yaml.
func DefaultFilePath() (string, error) {
	d, err := getConfigHomeDir()
	if err != nil {
		return "", err
	}
	return path.Join(d, MainFileFullName), nil
}

// Load builds a Pipeline from Default, overlaid with the YAML or JSON file fileName.
// If fileName is empty the default config file is used when it exists.
// Environment variables are applied last.
func Load(fileName string) (*Pipeline, error) {
	p := Default()
	explicit := fileName != ""
	if !explicit {
		var err error
		if fileName, err = DefaultFilePath(); err != nil {
			return nil, err
		}
	}
	err := p.LoadFile(fileName)
	var fnf FileNotFoundError
	if errors.As(err, &fnf) && !explicit { // if the default file is simply absent...
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if err = p.ApplyEnv(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile overlays the contents of a YAML or JSON file onto p.
// Keys missing from the file keep their current values.
func (p *Pipeline) LoadFile(fileName string) error {
	fileName, err := expandPath(fileName)
	if err != nil {
		return err
	}
	b, err := ioutil.ReadFile(fileName)
	if os.IsNotExist(err) {
		return FileNotFoundError{name: fileName}
	} else if err != nil {
		return errors.Wrapf(err, "error reading config file %q", fileName)
	}
	if ext := strings.ToLower(path.Ext(fileName)); ext != ".json" { // if the file is not JSON...
		b, err = yaml.YAMLToJSON(b)
		if err != nil {
			return errors.Wrapf(err, "error converting YAML in config file %q", fileName)
		}
	}
	if err = json.Unmarshal(b, p); err != nil {
		return errors.Wrapf(err, "error parsing config file %q", fileName)
	}
	return nil
}

// ApplyEnv overrides fields of p from FP_* environment variables.
func (p *Pipeline) ApplyEnv() error {
	strs := map[string]*string{
		"freshservice.domain":        &p.Freshservice.Domain,
		"freshservice.base-url":      &p.Freshservice.BaseUrl,
		"freshservice.api-key-file":  &p.Freshservice.ApiKeyFile,
		"freshservice.password":      &p.Freshservice.Password,
		"warehouse.type":             &p.Warehouse.Type,
		"warehouse.credentials-file": &p.Warehouse.CredentialsFile,
		"warehouse.table":            &p.Warehouse.Table,
		"sink.type":                  &p.Sink.Type,
		"sink.account":               &p.Sink.Account,
		"sink.container":             &p.Sink.Container,
		"sink.sas-token":             &p.Sink.SasToken,
		"sink.region":                &p.Sink.Region,
		"sink.prefix":                &p.Sink.Prefix,
		"sink.directory":             &p.Sink.Directory,
		"log-level":                  &p.LogLevel,
	}
	for k, v := range strs {
		helper.OverrideStringFromEnv(helper.GetEnvVarName(k), v)
	}
	if err := helper.OverrideIntFromEnv(helper.GetEnvVarName("freshservice.per-page"), &p.Freshservice.PerPage); err != nil {
		return err
	}
	if err := helper.OverrideIntFromEnv(helper.GetEnvVarName("freshservice.retry.max-attempts"), &p.Freshservice.Retry.MaxAttempts); err != nil {
		return err
	}
	durations := map[string]*time.Duration{
		"freshservice.timeout":            &p.Freshservice.Timeout.Duration,
		"freshservice.retry.initial-wait": &p.Freshservice.Retry.InitialWait.Duration,
		"freshservice.retry.max-wait":     &p.Freshservice.Retry.MaxWait.Duration,
	}
	for k, v := range durations {
		if err := helper.OverrideDurationFromEnv(helper.GetEnvVarName(k), v); err != nil {
			return err
		}
	}
	var order string
	if helper.ReadValueFromEnv(helper.GetEnvVarName("upload-order"), &order) == nil { // e.g. FP_UPLOAD_ORDER=groups,tickets
		p.UploadOrder = helper.CsvToStringSliceTrimSpaces(order)
	}
	if err := helper.OverrideBoolFromEnv(helper.GetEnvVarName("reject-partial"), &p.RejectPartial); err != nil {
		return err
	}
	return helper.OverrideBoolFromEnv(helper.GetEnvVarName("print-stack"), &p.PrintStack)
}

// Validate checks that p is complete enough to run a sync.
func (p *Pipeline) Validate() error {
	if err := helper.ValidateStructIsPopulated(p); err != nil {
		return err
	}
	if p.Freshservice.Domain == "" && p.Freshservice.BaseUrl == "" {
		return errors.New("please supply a value for freshservice.domain or freshservice.baseUrl")
	}
	r := p.Freshservice.Retry
	if r.Multiplier < 1 {
		return fmt.Errorf("freshservice.retry.multiplier must be at least 1, got %v", r.Multiplier)
	}
	if r.InitialWait.Duration <= 0 || r.MaxWait.Duration <= 0 {
		return fmt.Errorf("freshservice.retry.initialWait and maxWait must be greater than 0, got %v and %v", r.InitialWait, r.MaxWait)
	}
	if r.MaxAttempts < 1 {
		return fmt.Errorf("freshservice.retry.maxAttempts must be at least 1, got %v", r.MaxAttempts)
	}
	switch p.Warehouse.Type {
	case constants.ConnectionTypeSnowflake, constants.ConnectionTypeSqlServer:
	default:
		return fmt.Errorf("unsupported warehouse.type %q", p.Warehouse.Type)
	}
	if err := p.Sink.validate(); err != nil {
		return err
	}
	if len(p.Resources) == 0 {
		return errors.New("please supply at least one resource")
	}
	names := make(map[string]bool, len(p.Resources))
	for _, r := range p.Resources {
		if names[r.Name] {
			return fmt.Errorf("duplicate resource name %q", r.Name)
		}
		names[r.Name] = true
		if r.Filter != "" && !jsonlogic.IsValid(strings.NewReader(r.Filter)) {
			return fmt.Errorf("invalid filter for resource %q", r.Name)
		}
	}
	for _, n := range p.UploadOrder {
		if !names[n] {
			return fmt.Errorf("uploadOrder names unknown resource %q", n)
		}
	}
	return nil
}

// OrderedUploads returns the resources in the order they should be uploaded.
// Resources missing from UploadOrder follow in their configured order.
func (p *Pipeline) OrderedUploads() []Resource {
	byName := make(map[string]Resource, len(p.Resources))
	for _, r := range p.Resources {
		byName[r.Name] = r
	}
	out := make([]Resource, 0, len(p.Resources))
	seen := make(map[string]bool, len(p.Resources))
	for _, n := range p.UploadOrder {
		if r, ok := byName[n]; ok && !seen[n] {
			out = append(out, r)
			seen[n] = true
		}
	}
	for _, r := range p.Resources {
		if !seen[r.Name] {
			out = append(out, r)
		}
	}
	return out
}

// ApiBaseUrl returns the API root, either the explicit override or the one derived from the domain.
func (f Freshservice) ApiBaseUrl() string {
	if f.BaseUrl != "" {
		return strings.TrimRight(f.BaseUrl, "/")
	}
	return fmt.Sprintf("https://%v.freshservice.com/api/v2", f.Domain)
}

func (s Sink) validate() error {
	var missing []string
	req := func(v, name string) {
		if v == "" {
			missing = append(missing, name)
		}
	}
	switch s.Type {
	case constants.SinkTypeAzure:
		req(s.Account, "sink.account")
		req(s.Container, "sink.container")
		req(s.SasToken, "sink.sasToken")
	case constants.SinkTypeS3:
		req(s.Container, "sink.container")
		req(s.Region, "sink.region")
	case constants.SinkTypeLocal:
		req(s.Directory, "sink.directory")
	default:
		return fmt.Errorf("unsupported sink.type %q", s.Type)
	}
	if len(missing) > 0 {
		return fmt.Errorf("please supply values for %v", strings.Join(missing, ", "))
	}
	return nil
}
