package echoapi_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/coursepalette/coursepalette/apps/api/echo"
	"github.com/coursepalette/coursepalette/core/access"
	"github.com/coursepalette/coursepalette/core/user"
	testutil "github.com/coursepalette/coursepalette/tests"
)

func sessionOf(t *testing.T, app Server, token string) access.Session {
	t.Helper()
	req, rec := newAuthRequest(http.MethodGet, "/v1/session", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var s access.Session
	decode(t, rec, &s)
	return s
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	student := createUser(t, "Stu Dent", "student", access.RoleStudent, true)
	createUser(t, "N Dog", "ndog", access.RoleStudent, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{name: "no data", body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"username":"this field is required","password":"this field is required"}`)},
		{name: "unknown user", body: login("nobody", "lol"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "wrong password", body: login("student", "lol"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "deactivated", body: login("ndog", testutil.Password), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "username", body: login(" STUDENT ", testutil.Password), wantCode: http.StatusOK},
		{name: "email", body: login("student@test.test", testutil.Password), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode != http.StatusOK {
				return
			}

			var res LoginResponse
			decode(t, rec, &res)
			assert.Equal(t, student.ID, res.User.ID)
			assert.False(t, res.User.LastLogin.IsZero())

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, conf.Session.CookieName, cookies[0].Name)
			assert.Equal(t, res.Token, cookies[0].Value)
			assert.True(t, cookies[0].HttpOnly)

			s := sessionOf(t, app, res.Token)
			assert.True(t, s.IsAuthenticated)
			assert.Equal(t, access.RoleStudent, s.Role())
		})
	}
}

func Test_userApi_logout(t *testing.T) {
	app := setup(t)
	student := createUser(t, "Stu Dent", "student", access.RoleStudent, true)
	token := getToken(t, student)
	require.True(t, sessionOf(t, app, token).IsAuthenticated)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/logout", token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	student := createUser(t, "Stu Dent", "student", access.RoleStudent, true)
	naughty := createUser(t, "N Dog", "ndog", access.RoleStudent, false)

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "bad token", token: "lol", wantCode: http.StatusUnauthorized},
		{name: "deactivated", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "ok", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				var res LoginResponse
				decode(t, rec, &res)
				claims, err := signer.ParseToken(res.Token)
				require.NoError(t, err)
				assert.Equal(t, student.ID, claims.Subject)
			}
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	student := createUser(t, "Stu Dent", "student", access.RoleStudent, true)
	oldToken := getToken(t, student)
	require.True(t, sessionOf(t, app, oldToken).IsAuthenticated)

	successMsg := "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."

	// request
	for _, email := range []string{"nobody@test.test", "STUDENT@test.test"} {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, PasswordResetRequest{Email: email}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: successMsg})}, rec)
	}
	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	data := sent[0].TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)

	newPwd := "Brand-New-Secret-7"
	confirm := func(uid, token, pwd, confirm string) []byte {
		return marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: pwd, PasswordConfirm: confirm})
	}
	tests := []httpTest{
		{name: "no data", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "mismatch", body: confirm(uid, token, newPwd, "lol"), wantCode: http.StatusBadRequest},
		{name: "weak password", body: confirm(uid, token, "password", "password"), wantCode: http.StatusBadRequest, wantData: []byte(`{"password":"password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}`)},
		{name: "bad token", body: confirm(uid, token+"x", newPwd, newPwd), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrInvalidToken.Error()})},
		{name: "ok", body: confirm(uid, token, newPwd, newPwd), wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: "Password has been reset with the new password."})},
		{name: "token already used", body: confirm(uid, token, newPwd, newPwd), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Username: "student", Password: newPwd}))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_userApi_create(t *testing.T) {
	app := setup(t)
	admin := createUser(t, "Ad Min", "admin", access.RoleAdmin, true)
	teacher := createUser(t, "Tea Cher", "teacher", access.RoleTeacher, true)
	adminToken := getToken(t, admin)

	newUser := func(uname, role string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New " + uname,
			Username:        uname,
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            role,
		})
	}

	tests := []httpTest{
		{name: "no token", body: newUser("newbie", ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "teacher", body: newUser("newbie", ""), token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "taken username", body: newUser("teacher", ""), token: adminToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"username":"a user with this username already exists"}`)},
		{name: "bad role", body: newUser("newbie", "janitor"), token: adminToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"role":"invalid role"}`)},
		{name: "student by default", body: newUser("newbie", ""), token: adminToken, wantCode: http.StatusCreated, extra: access.RoleStudent},
		{name: "teacher role", body: newUser("newteacher", "teacher"), token: adminToken, wantCode: http.StatusCreated, extra: access.RoleTeacher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
			if role, ok := tt.extra.(access.Role); ok {
				var usr user.User
				decode(t, rec, &usr)
				assert.Equal(t, role, usr.Role)
				assert.True(t, usr.IsActive)
			}
		})
	}
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	path := func(search, ordering string, createdFrom time.Time, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", map[bool]string{true: "true", false: "false"}[*isActive])
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now().UTC().Truncate(time.Second)
	admin := createUser(t, "Admin", "admin", access.RoleAdmin, true, now.Add(-3*time.Hour))
	teacher := createUser(t, "Teacher", "teacher", access.RoleTeacher, true, now.Add(-2*time.Hour))
	student := createUser(t, "Hero", "hero_student", access.RoleStudent, true, now.Add(-time.Hour))
	naughty := createUser(t, "N Dog", "ndog_student", access.RoleStudent, false, now)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "no token", path: path("", "", time.Time{}, nil), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "student", path: path("", "", time.Time{}, nil), token: getToken(t, student), wantCode: http.StatusForbidden},
		{name: "all", path: path("", "", time.Time{}, nil), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, admin, teacher, student, naughty)},
		{name: "ordering", path: path("", "-created_at,password_hash", time.Time{}, nil), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, naughty, student, teacher, admin)},
		{name: "search", path: path("STUDENT", "name", time.Time{}, nil), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, student, naughty)},
		{name: "roles", path: path("", "", time.Time{}, nil, "teacher", "ADMIN", "janitor"), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, admin, teacher)},
		{name: "inactive", path: path("", "", time.Time{}, bPtr(false)), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, naughty)},
		{name: "created from", path: path("", "", now.Add(-90*time.Minute), nil), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, student, naughty)},
		{name: "bad created from", path: "/v1/users?created_from=lol", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "no match", path: path("nobody", "", time.Time{}, nil), token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_queryRoles(t *testing.T) {
	app := setup(t)
	admin := createUser(t, "Admin", "admin", access.RoleAdmin, true)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", getToken(t, admin))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}, rec)
}

func Test_userApi_setActive(t *testing.T) {
	app := setup(t)
	admin := createUser(t, "Admin", "admin", access.RoleAdmin, true)
	student := createUser(t, "Hero", "hero_student", access.RoleStudent, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)
	require.True(t, sessionOf(t, app, studentToken).IsAuthenticated)

	active := func(b bool) []byte { return marchallObj(t, SetActiveRequest{IsActive: &b}) }
	tests := []httpTest{
		{name: "no data", path: "/v1/users/" + student.ID + "/active", body: []byte(`{}`), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "self", path: "/v1/users/" + admin.ID + "/active", body: active(false), token: adminToken, wantCode: http.StatusForbidden},
		{name: "unknown", path: "/v1/users/lol/active", body: active(false), token: adminToken, wantCode: http.StatusNotFound},
		{name: "not admin", path: "/v1/users/" + admin.ID + "/active", body: active(false), token: studentToken, wantCode: http.StatusForbidden},
		{name: "deactivate", path: "/v1/users/" + student.ID + "/active", body: active(false), token: adminToken, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the deactivated student's pages are closed right away
	assert.False(t, sessionOf(t, app, studentToken).IsAuthenticated)
	req, rec := newAuthRequest(http.MethodGet, "/my-courses", studentToken)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login?from="))

	// reactivating opens them again on the next request
	req, rec = newAuthRequest(http.MethodPut, "/v1/users/"+student.ID+"/active", adminToken, active(true))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.True(t, sessionOf(t, app, studentToken).IsAuthenticated)
	req, rec = newAuthRequest(http.MethodGet, "/my-courses", studentToken)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_userApi_destroyMultiple(t *testing.T) {
	app := setup(t)
	admin := createUser(t, "Admin", "admin", access.RoleAdmin, true)
	usr1 := createUser(t, "One", "user_one", access.RoleStudent, true)
	usr2 := createUser(t, "Two", "user_two", access.RoleTeacher, true)
	adminToken := getToken(t, admin)

	ids := func(ids ...string) string {
		v := make(url.Values)
		for _, id := range ids {
			v.Add("id", id)
		}
		return "/v1/users?" + v.Encode()
	}

	tests := []httpTest{
		{name: "no ids", path: "/v1/users", token: adminToken, wantCode: http.StatusNoContent},
		{name: "self", path: ids(usr1.ID, admin.ID), token: adminToken, wantCode: http.StatusForbidden},
		{name: "ok", path: ids(usr1.ID, usr2.ID), token: adminToken, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodDelete, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	req, rec := newAuthRequest(http.MethodGet, "/v1/users", adminToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, admin)}, rec)
}
