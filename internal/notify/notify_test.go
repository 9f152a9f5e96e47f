package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nadmax/img2md/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() *task.Summary {
	s := task.NewSummary(3)
	s.Record(task.Succeeded(task.NewImageTask("/in/a.jpg"), "# a"))
	s.Record(task.Succeeded(task.NewImageTask("/in/b.jpg"), "# b"))
	s.Record(task.Failed(task.NewImageTask("/in/c.png"), task.KindAuth, "bad key"))
	s.Finish(3 * time.Second)
	return s
}

func TestNewNotifier_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"no key", Options{FromAddress: "a@example.com", To: []string{"b@example.com"}}, "api key"},
		{"no sender", Options{APIKey: "SG.key", To: []string{"b@example.com"}}, "sender"},
		{"no recipients", Options{APIKey: "SG.key", FromAddress: "a@example.com"}, "recipients"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNotifier(tt.opts)
			assert.Nil(t, n)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "img2md: 2/3 images converted, 1 failed", Subject(sampleSummary()))

	clean := task.NewSummary(1)
	clean.Record(task.Succeeded(task.NewImageTask("x.jpg"), "x"))
	assert.Equal(t, "img2md: 1/1 images converted", Subject(clean))
}

func TestSend(t *testing.T) {
	var gotAuth, gotPath string
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n, err := NewNotifier(Options{
		APIKey:      "SG.test",
		Host:        server.URL,
		FromName:    "img2md",
		FromAddress: "img2md@example.com",
		To:          []string{"ops@example.com", "dev@example.com"},
	})
	require.NoError(t, err)

	s := sampleSummary()
	require.NoError(t, n.Send(s, "/data/out"))

	assert.Equal(t, "Bearer SG.test", gotAuth)
	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, "img2md: 2/3 images converted, 1 failed", payload["subject"])

	from := payload["from"].(map[string]any)
	assert.Equal(t, "img2md@example.com", from["email"])

	personalizations := payload["personalizations"].([]any)
	require.Len(t, personalizations, 1)
	tos := personalizations[0].(map[string]any)["to"].([]any)
	assert.Len(t, tos, 2)

	content := payload["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "text/plain", content["type"])
	text := content["value"].(string)
	assert.Contains(t, text, "Run "+s.RunID)
	assert.Contains(t, text, "Failed conversions:     1")
	assert.Contains(t, text, "c.png (auth_error)")
	assert.Contains(t, text, "Output location: /data/out")
}

func TestSend_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer server.Close()

	n, err := NewNotifier(Options{APIKey: "SG.bad", Host: server.URL, FromAddress: "a@example.com", To: []string{"b@example.com"}})
	require.NoError(t, err)

	err = n.Send(sampleSummary(), ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
