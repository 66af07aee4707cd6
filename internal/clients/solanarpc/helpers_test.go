package solanarpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
)

// fakeRPC answers JSON-RPC calls from a method → result table
type fakeRPC struct {
	mu      sync.Mutex
	results map[string]string
	errors  map[string]string
	methods []string
	params  map[string]json.RawMessage
}

func newFakeRPC(t *testing.T) (*fakeRPC, *rpc.Client) {
	t.Helper()
	f := &fakeRPC{
		results: make(map[string]string),
		errors:  make(map[string]string),
		params:  make(map[string]json.RawMessage),
	}
	server := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(server.Close)
	return f, rpc.New(server.URL)
}

func (f *fakeRPC) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	f.params[req.Method] = req.Params
	result, ok := f.results[req.Method]
	rpcErr, failed := f.errors[req.Method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case failed:
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":%q}}`, req.ID, rpcErr)
	case ok:
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	default:
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
	}
}

func (f *fakeRPC) set(method, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = result
}

func (f *fakeRPC) fail(method, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[method] = message
}

func (f *fakeRPC) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.methods))
	copy(out, f.methods)
	return out
}

func (f *fakeRPC) paramsOf(method string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.params[method])
}
