package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/require"
)

const testToken = "1234567890:" + "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// apiCall is one request received by the fake Bot API.
type apiCall struct {
	Method   string
	Fields   map[string]string
	FileName string
	FileData string
	FileKey  string
}

// fakeBotAPI is an httptest Bot API server. fail, when set, decides the
// reply per method: a non-zero code makes the call fail with that code.
type fakeBotAPI struct {
	srv  *httptest.Server
	mu   sync.Mutex
	seen []apiCall
	fail func(method string) (code int, description string)
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()

	f := &fakeBotAPI{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeBotAPI) handle(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	call := apiCall{Method: method, Fields: map[string]string{}}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				call.Fields[k] = v[0]
			}

			for k, files := range r.MultipartForm.File {
				call.FileKey = k
				call.FileName = files[0].Filename

				if fh, err := files[0].Open(); err == nil {
					data, _ := io.ReadAll(fh)
					call.FileData = string(data)
					fh.Close()
				}
			}
		}
	} else {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		for k, v := range body {
			if s, ok := v.(string); ok {
				call.Fields[k] = s
			} else {
				raw, _ := json.Marshal(v)
				call.Fields[k] = string(raw)
			}
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, call)
	fail := f.fail
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if fail != nil {
		if code, desc := fail(method); code != 0 {
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": code, "description": desc})

			return
		}
	}

	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
}

func (f *fakeBotAPI) calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]apiCall(nil), f.seen...)
}

func (f *fakeBotAPI) bot(t *testing.T) *telego.Bot {
	t.Helper()

	bot, err := NewBot(testToken, f.srv.URL, f.srv.Client(), slog.Default())
	require.NoError(t, err)

	return bot
}
