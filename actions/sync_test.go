package actions

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/relloyd/freshpipe/blob"
	"github.com/relloyd/freshpipe/blob/mocks"
	"github.com/relloyd/freshpipe/config"
	"github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/rdbms/shared"
)

// fakeWarehouse answers the watermark query.
type fakeWarehouse struct {
	value   interface{}
	err     error
	queries int
	closed  bool
}

func (f *fakeWarehouse) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeWarehouse) QueryScalar(ctx context.Context, query string) (interface{}, error) {
	f.queries++
	return f.value, f.err
}

func (f *fakeWarehouse) Close() error {
	f.closed = true
	return nil
}

func (f *fakeWarehouse) GetType() string {
	return constants.ConnectionTypeSnowflake
}

// fakeFreshservice serves tickets, ticket form fields and groups with page sizes of perPage.
type fakeFreshservice struct {
	srv          *httptest.Server
	mu           sync.Mutex
	perPage      int
	counts       map[string]int // records per collection.
	failures     map[string]int // HTTP status to return for a collection.
	requests     int
	updatedSince string
}

func newFakeFreshservice(t *testing.T, tickets, fields, groups int) *fakeFreshservice {
	f := &fakeFreshservice{
		perPage:  100,
		counts:   map[string]int{"tickets": tickets, "ticket_form_fields": fields, "groups": groups},
		failures: map[string]int{},
	}
	r := mux.NewRouter()
	r.HandleFunc("/api/v2/{collection}", f.handle).Methods(http.MethodGet)
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeFreshservice) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	collection := mux.Vars(r)["collection"]
	if status, ok := f.failures[collection]; ok {
		w.WriteHeader(status)
		return
	}
	if collection == "tickets" && r.URL.Query().Get("updated_since") != "" {
		f.updatedSince = r.URL.Query().Get("updated_since")
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		page, _ = strconv.Atoi(p)
	}
	total := f.counts[collection]
	records := make([]map[string]interface{}, 0)
	for i := (page - 1) * f.perPage; i < total && i < page*f.perPage; i++ {
		rec := map[string]interface{}{"id": i + 1, "name": fmt.Sprintf("%v %v", collection, i+1)}
		if collection == "tickets" {
			rec["custom_fields"] = map[string]interface{}{"cost_centre": "CC1", "site": nil}
			rec["tags"] = []string{"a", "b"}
		}
		records = append(records, rec)
	}
	if page*f.perPage < total {
		w.Header().Set("Link", fmt.Sprintf(`<%v/api/v2/%v?per_page=%v&page=%v>; rel="next"`, f.srv.URL, collection, f.perPage, page+1))
	}
	key := collection
	if collection == "ticket_form_fields" {
		key = "ticket_fields"
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{key: records})
}

type testEnv struct {
	pipeline  *config.Pipeline
	deps      Deps
	warehouse *fakeWarehouse
	api       *fakeFreshservice
	outDir    string
}

func newTestEnv(t *testing.T, tickets, fields, groups int) *testEnv {
	dir, err := ioutil.TempDir("", "freshpipe-actions")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	sfCreds := filepath.Join(dir, "sf.csv")
	apiKey := filepath.Join(dir, "key.csv")
	if err = ioutil.WriteFile(sfCreds, []byte("account,xy123\nuser,loader\npassword,secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err = ioutil.WriteFile(apiKey, []byte("abc123\n"), 0600); err != nil {
		t.Fatal(err)
	}
	e := &testEnv{
		warehouse: &fakeWarehouse{value: "2024-03-01 09:30:00"},
		api:       newFakeFreshservice(t, tickets, fields, groups),
		outDir:    filepath.Join(dir, "out"),
	}
	p := config.Default()
	p.Freshservice.BaseUrl = e.api.srv.URL + "/api/v2"
	p.Freshservice.ApiKeyFile = apiKey
	p.Freshservice.Retry.InitialWait = config.Duration{Duration: time.Millisecond}
	p.Warehouse.CredentialsFile = sfCreds
	p.Sink = config.Sink{Type: constants.SinkTypeLocal, Directory: e.outDir}
	e.pipeline = p
	e.deps = DefaultDeps()
	e.deps.OpenDbConnection = func(log logger.Logger, c shared.ConnectionDetails) (shared.Connector, error) {
		if c.Data["user"] != "loader" {
			return nil, fmt.Errorf("unexpected credentials %v", c)
		}
		return e.warehouse, nil
	}
	return e
}

func (e *testEnv) run(t *testing.T) (*SyncResult, error) {
	log := logger.NewLogger("freshpipe", "error", false)
	return RunSync(context.Background(), log, &SyncConfig{Pipeline: e.pipeline, Deps: e.deps})
}

func readCsv(t *testing.T, fn string) [][]string {
	t.Helper()
	f, err := os.Open(fn)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRunSyncEndToEnd(t *testing.T) {
	e := newTestEnv(t, 101, 7, 3)
	res, err := e.run(t)
	if err != nil {
		t.Fatal(err)
	}
	if res.SoftFailure || res.Watermark != "2024-03-01T09:30:00Z" {
		t.Fatalf("unexpected result %+v", res)
	}
	if e.warehouse.queries != 1 || !e.warehouse.closed {
		t.Fatalf("expected one watermark query and a closed session; got queries=%v closed=%v", e.warehouse.queries, e.warehouse.closed)
	}
	if e.api.updatedSince != "2024-03-01T09:30:00Z" {
		t.Fatalf("expected tickets to be fetched since the watermark; got %q", e.api.updatedSince)
	}
	expected := map[string]int{
		constants.BlobPathTickets:      101,
		constants.BlobPathTicketFields: 7,
		constants.BlobPathAgentGroups:  3,
	}
	for key, n := range expected {
		rows := readCsv(t, filepath.Join(e.outDir, filepath.FromSlash(key)))
		if len(rows)-1 != n {
			t.Fatalf("%v: expected %v data rows; got %v", key, n, len(rows)-1)
		}
	}
	header := readCsv(t, filepath.Join(e.outDir, filepath.FromSlash(constants.BlobPathTickets)))[0]
	if strings.Join(header, ",") != "ID,NAME,TAGS,COST_CENTRE,SITE" {
		t.Fatalf("unexpected tickets header %v", header)
	}
	// Upload order follows the configured order.
	got := make([]string, 0)
	for _, r := range res.Resources {
		got = append(got, r.BlobPath)
		if !r.Complete {
			t.Fatalf("expected %v to be complete", r.Name)
		}
	}
	if strings.Join(got, ",") != strings.Join([]string{constants.BlobPathAgentGroups, constants.BlobPathTickets, constants.BlobPathTicketFields}, ",") {
		t.Fatalf("unexpected upload order %v", got)
	}
}

func TestRunSyncEmptyWarehouseUsesDefaultWatermark(t *testing.T) {
	e := newTestEnv(t, 3, 1, 1)
	e.warehouse.value = nil // MAX over an empty table.
	e.pipeline.Warehouse.DefaultWatermark = ""
	res, err := e.run(t)
	if err != nil {
		t.Fatal(err)
	}
	if res.SoftFailure || res.Watermark != constants.DefaultWatermark {
		t.Fatalf("expected the default watermark; got %+v", res)
	}
	if e.api.updatedSince != "2001-04-16T00:00:00Z" {
		t.Fatalf("expected tickets to be fetched since 2001-04-16T00:00:00Z; got %q", e.api.updatedSince)
	}
	rows := readCsv(t, filepath.Join(e.outDir, filepath.FromSlash(constants.BlobPathTickets)))
	if len(rows)-1 != 3 {
		t.Fatalf("expected 3 ticket rows; got %v", len(rows)-1)
	}
}

func TestRunSyncUploadOrderAndMetadata(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	e := newTestEnv(t, 2, 1, 1)
	m := mocks.NewMockPutter(ctrl)
	e.deps.NewPutter = func(s config.Sink) (blob.Putter, error) { return m, nil }
	var runID string
	checkMeta := func(ctx context.Context, key string, data []byte, meta map[string]string) {
		if meta[constants.BlobMetadataComplete] != "true" || meta[constants.BlobMetadataWatermark] != "2024-03-01T09:30:00Z" {
			t.Fatalf("%v: unexpected metadata %v", key, meta)
		}
		if runID == "" {
			runID = meta[constants.BlobMetadataRunID]
		} else if runID != meta[constants.BlobMetadataRunID] {
			t.Fatalf("expected one run id per run; got %v and %v", runID, meta[constants.BlobMetadataRunID])
		}
	}
	gomock.InOrder(
		m.EXPECT().Put(gomock.Any(), constants.BlobPathAgentGroups, gomock.Any(), gomock.Any()).Do(checkMeta).Return(nil),
		m.EXPECT().Put(gomock.Any(), constants.BlobPathTickets, gomock.Any(), gomock.Any()).Do(checkMeta).Return(nil),
		m.EXPECT().Put(gomock.Any(), constants.BlobPathTicketFields, gomock.Any(), gomock.Any()).Do(checkMeta).Return(nil),
	)
	res, err := e.run(t)
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID == "" || res.RunID != runID {
		t.Fatalf("expected run id %q in metadata; got %q", res.RunID, runID)
	}
}

func TestRunSyncUploadFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	e := newTestEnv(t, 2, 1, 1)
	m := mocks.NewMockPutter(ctrl)
	e.deps.NewPutter = func(s config.Sink) (blob.Putter, error) { return m, nil }
	m.EXPECT().Put(gomock.Any(), constants.BlobPathAgentGroups, gomock.Any(), gomock.Any()).Return(errors.New("AuthenticationFailed"))
	if _, err := e.run(t); err == nil {
		t.Fatal("expected upload failure to end the run")
	}
}

func TestRunSyncSoftFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	e := newTestEnv(t, 2, 1, 1)
	e.warehouse.err = shared.NewQueryError("q", mssql.Error{Number: 208, Message: "Invalid object name 'TICKETS'."})
	m := mocks.NewMockPutter(ctrl) // no calls expected.
	e.deps.NewPutter = func(s config.Sink) (blob.Putter, error) { return m, nil }
	res, err := e.run(t)
	if err != nil {
		t.Fatalf("expected soft failure without error; got %v", err)
	}
	if !res.SoftFailure {
		t.Fatal("expected SoftFailure to be set")
	}
	if e.api.requests != 0 {
		t.Fatalf("expected no API requests; got %v", e.api.requests)
	}
	if !e.warehouse.closed {
		t.Fatal("expected warehouse session to be closed")
	}
}

func TestRunSyncWarehouseErrorIsFatal(t *testing.T) {
	e := newTestEnv(t, 2, 1, 1)
	e.warehouse.err = shared.NewQueryError("q", errors.New("connection reset by peer"))
	if _, err := e.run(t); err == nil {
		t.Fatal("expected fatal error")
	}
	if e.api.requests != 0 {
		t.Fatalf("expected no API requests; got %v", e.api.requests)
	}
}

func TestRunSyncMissingCredentials(t *testing.T) {
	e := newTestEnv(t, 2, 1, 1)
	e.pipeline.Freshservice.ApiKeyFile = filepath.Join(e.outDir, "missing.csv")
	if _, err := e.run(t); err == nil {
		t.Fatal("expected error for missing API key file")
	}
	if e.warehouse.queries != 0 {
		t.Fatal("expected no warehouse query before credentials load")
	}
}

func TestRunSyncPartial(t *testing.T) {
	// Without rejectPartial, incomplete resources are uploaded and flagged.
	e := newTestEnv(t, 2, 1, 1)
	e.api.failures["groups"] = http.StatusInternalServerError
	res, err := e.run(t)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res.Resources {
		if r.Name == constants.ResourceNameGroups && (r.Complete || r.Err == "") {
			t.Fatalf("expected groups to be incomplete; got %+v", r)
		}
	}
	// With rejectPartial nothing is uploaded.
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	e = newTestEnv(t, 2, 1, 1)
	e.api.failures["groups"] = http.StatusInternalServerError
	e.pipeline.RejectPartial = true
	m := mocks.NewMockPutter(ctrl)
	e.deps.NewPutter = func(s config.Sink) (blob.Putter, error) { return m, nil }
	if _, err = e.run(t); !errors.Is(err, ErrPartialFetch) {
		t.Fatalf("expected ErrPartialFetch; got %v", err)
	}
}

func TestRunSyncRateLimitExhaustedIsFatal(t *testing.T) {
	e := newTestEnv(t, 2, 1, 1)
	e.api.failures["tickets"] = http.StatusTooManyRequests
	e.pipeline.Freshservice.Retry.MaxAttempts = 2
	e.pipeline.Freshservice.Retry.MaxWait = config.Duration{Duration: 5 * time.Millisecond}
	if _, err := e.run(t); err == nil {
		t.Fatal("expected rate limit exhaustion to end the run")
	}
	if _, err := os.Stat(e.outDir); !os.IsNotExist(err) {
		t.Fatal("expected nothing to be uploaded")
	}
}

func TestRunWatermark(t *testing.T) {
	e := newTestEnv(t, 0, 0, 0)
	e.warehouse.value = nil
	log := logger.NewLogger("freshpipe", "error", false)
	w, err := RunWatermark(context.Background(), log, &WatermarkConfig{Pipeline: e.pipeline, Deps: e.deps})
	if err != nil {
		t.Fatal(err)
	}
	if w != constants.DefaultWatermark {
		t.Fatalf("expected default watermark; got %q", w)
	}
	if e.api.requests != 0 {
		t.Fatal("expected no API requests")
	}
}

func TestResourceEndpoint(t *testing.T) {
	r := config.Default().Resources[0]
	got := resourceEndpoint(r, "2024-03-01T09:30:00Z", 100)
	if got != "tickets?per_page=100&updated_since=2024-03-01T09:30:00Z" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}
