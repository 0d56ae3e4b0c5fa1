package blob

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/gorilla/mux"
)

type fakeBlobService struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	headers map[string]http.Header
	queries map[string]url.Values
	status  int
}

func (f *fakeBlobService) putBlob(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	b, _ := ioutil.ReadAll(r.Body)
	key := mux.Vars(r)["container"] + "/" + mux.Vars(r)["blob"]
	f.bodies[key] = b
	f.headers[key] = r.Header.Clone()
	f.queries[key] = r.URL.Query()
	w.WriteHeader(http.StatusCreated)
}

func newFakeBlobService(t *testing.T) (*fakeBlobService, *httptest.Server) {
	f := &fakeBlobService{bodies: map[string][]byte{}, headers: map[string]http.Header{}, queries: map[string]url.Values{}}
	r := mux.NewRouter()
	r.HandleFunc("/{container}/{blob:.+}", f.putBlob).Methods(http.MethodPut)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func TestAzurePutter(t *testing.T) {
	f, srv := newFakeBlobService(t)
	u, _ := url.Parse(srv.URL + "/raw?sv=2020-08-04&sig=abc")
	p := NewAzurePutterWithPipeline(*u, azblob.NewPipeline(azblob.NewAnonymousCredential(), azblob.PipelineOptions{}), "")
	meta := map[string]string{"rows": "2", "complete": "true"}
	if err := p.Put(context.Background(), "API_FRESHSERVICE/AGENTGROUPS.csv", []byte("ID\n1\n2\n"), meta); err != nil {
		t.Fatal(err)
	}
	key := "raw/API_FRESHSERVICE/AGENTGROUPS.csv"
	if string(f.bodies[key]) != "ID\n1\n2\n" {
		t.Fatalf("unexpected body %q", f.bodies[key])
	}
	h := f.headers[key]
	if h.Get("x-ms-blob-type") != "BlockBlob" || h.Get("x-ms-blob-content-type") != "text/csv" {
		t.Fatalf("unexpected blob headers %v", h)
	}
	if h.Get("x-ms-meta-rows") != "2" || h.Get("x-ms-meta-complete") != "true" {
		t.Fatalf("expected metadata headers; got %v", h)
	}
	if f.queries[key].Get("sig") != "abc" {
		t.Fatalf("expected SAS token in query; got %v", f.queries[key])
	}
}

func TestAzurePutterError(t *testing.T) {
	f, srv := newFakeBlobService(t)
	f.status = http.StatusForbidden
	u, _ := url.Parse(srv.URL + "/raw")
	p := NewAzurePutterWithPipeline(*u, azblob.NewPipeline(azblob.NewAnonymousCredential(), azblob.PipelineOptions{}), "landing")
	if err := p.Put(context.Background(), "X.csv", []byte("A\n"), nil); err == nil {
		t.Fatal("expected error for forbidden upload")
	}
}

func TestNewAzurePutterTrimsSas(t *testing.T) {
	p, err := NewAzurePutter("acct", "raw", "?sv=1&sig=x", "")
	if err != nil {
		t.Fatal(err)
	}
	a := p.(*azurePutter)
	u := a.container.URL()
	if u.Host != "acct.blob.core.windows.net" || u.Path != "/raw" || u.RawQuery != "sv=1&sig=x" {
		t.Fatalf("unexpected container URL %v", u.String())
	}
}
