package chain

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type rpcCall struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// rpcHandler answers one JSON-RPC method call with a result or an error.
type rpcHandler func(method string, params []json.RawMessage) (result any, rpcErr string)

// fakeRPC is a JSON-RPC 2.0 server that also understands batches.
type fakeRPC struct {
	*httptest.Server
	calls   atomic.Int32
	mu      sync.Mutex
	methods []string
}

func newFakeRPC(t *testing.T, h rpcHandler) *fakeRPC {
	t.Helper()
	f := &fakeRPC{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		answer := func(c rpcCall) map[string]any {
			f.mu.Lock()
			f.methods = append(f.methods, c.Method)
			f.mu.Unlock()
			resp := map[string]any{"jsonrpc": "2.0", "id": c.ID}
			result, errMsg := h(c.Method, c.Params)
			if errMsg != "" {
				resp["error"] = map[string]any{"code": -32000, "message": errMsg}
			} else {
				resp["result"] = result
			}
			return resp
		}

		if bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
			var batch []rpcCall
			if err := json.Unmarshal(body, &batch); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			out := make([]map[string]any, len(batch))
			for i, c := range batch {
				out[i] = answer(c)
			}
			_ = json.NewEncoder(w).Encode(out)
			return
		}

		var c rpcCall
		if err := json.Unmarshal(body, &c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(answer(c))
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeRPC) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func paramString(p []json.RawMessage, i int) string {
	if i >= len(p) {
		return ""
	}
	var s string
	_ = json.Unmarshal(p[i], &s)
	return s
}

func evmWallet() string {
	return "0xAbc" + strings.Repeat("0", 33) + "1234"
}
