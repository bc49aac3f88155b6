package emailsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursepalette/coursepalette/core"
)

func TestMain(m *testing.M) {
	core.ParseEmailTemplates(core.StdLogger{Quiet: true}, true)
	os.Exit(m.Run())
}

func resetMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Jane", Address: "jane@test.test"}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": "Jane", "UID": "dWlk", "Token": "TS-sig"},
	}
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(core.NewTestConfig())

	svc.SendMessages(resetMessage(), &core.EmailMessage{Subject: "no recipient", BodyStr: "hi"})

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "http://localhost:8000/password-reset/dWlk/TS-sig")
	assert.Contains(t, sent[0].HTMLContent, "http://localhost:8000/password-reset/dWlk/TS-sig")

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_Format(t *testing.T) {
	svc := NewConsoleServiceMock(core.NewTestConfig())
	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: "a@test.test"}},
		Subject: "Invoice",
		BodyStr: "see attached",
	}
	require.NoError(t, msg.Attach(strings.NewReader("%PDF-1.4"), "invoice.pdf", "application/pdf"))
	require.NoError(t, msg.Render(""))

	body, err := svc.format(*msg)
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [CoursePalette] Invoice")
	assert.Contains(t, body, "multipart/mixed")
	assert.Contains(t, body, "filename=invoice.pdf")
	assert.Contains(t, body, "see attached")
}

func TestSendgridService_Send(t *testing.T) {
	var got map[string]interface{}
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	conf := core.NewTestConfig()
	conf.SendgridApiKey = "SG.key"
	svc := NewSendgridService(core.StdLogger{Quiet: true}, conf)
	svc.host = ts.URL

	msg := resetMessage()
	require.NoError(t, msg.Render(conf.FrontendBaseURL))
	require.NoError(t, svc.send(*msg))

	assert.Equal(t, "Bearer SG.key", auth)
	personalizations := got["personalizations"].([]interface{})
	require.Len(t, personalizations, 1)
	assert.Equal(t, "[CoursePalette] Password Reset", personalizations[0].(map[string]interface{})["subject"])
	assert.Len(t, got["content"], 2)
}

func TestSendgridService_SendFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	svc := NewSendgridService(core.StdLogger{Quiet: true}, core.NewTestConfig())
	svc.host = ts.URL

	err := svc.send(core.EmailMessage{To: []mail.Address{{Address: "a@test.test"}}, TextContent: "x"})
	assert.Error(t, err)
}
