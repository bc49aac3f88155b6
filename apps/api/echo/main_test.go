package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/coursepalette/coursepalette/apps/api/echo"
	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/access"
	"github.com/coursepalette/coursepalette/core/session"
	"github.com/coursepalette/coursepalette/core/user"
	emailsvc "github.com/coursepalette/coursepalette/services/email"
	inmemdb "github.com/coursepalette/coursepalette/storage/database/inmem"
	testutil "github.com/coursepalette/coursepalette/tests"
)

var (
	conf    = core.NewTestConfig()
	signer  = session.NewSigner(conf)
	routes  *access.Table
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleServiceMock

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	core.ParseEmailTemplates(core.StdLogger{Quiet: true}, true)

	var err error
	if routes, err = access.LoadTableFile(""); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// setup returns a server over a fresh in-memory database.
// users overrides the store sessions are resolved from.
func setup(t *testing.T, users ...session.UserGetter) Server {
	t.Helper()
	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	mailSvc = emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceFromConfig(conf, usrRepo, mailSvc)

	var getter session.UserGetter = usrSvc
	if len(users) > 0 {
		getter = users[0]
	}
	opts := session.OptionsFromConfig(conf.Session)
	opts.Wait = 200 * time.Millisecond

	return NewServer(Deps{
		Conf:       conf,
		Logger:     core.StdLogger{Quiet: true},
		UserSvc:    usrSvc,
		Signer:     signer,
		Sessions:   session.NewProvider(signer, getter, core.StdLogger{Quiet: true}, opts),
		Routes:     routes,
		Validate:   testutil.NewValidator(),
		Translator: core.NewTranslator(),
	})
}

// blockingUsers reads from usrRepo once released.
type blockingUsers struct {
	release chan struct{}
}

func (b blockingUsers) GetByID(ctx context.Context, id string) (user.User, error) {
	select {
	case <-b.release:
		return usrRepo.GetUser(ctx, user.GetFilter{ID: id})
	case <-ctx.Done():
		return user.User{}, ctx.Err()
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	token, err := signer.GenerateToken(signer.UserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func createUser(t *testing.T, name, uname string, role access.Role, isActive bool, createdAt ...time.Time) user.User {
	return testutil.CreateUser(t, usrRepo, name, uname, uname+"@test.test", testutil.Password, role, isActive, createdAt...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String()) {
		t.FailNow()
	}
}
