package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"profile-service/internal/auth"
	"profile-service/internal/handler"
	"profile-service/internal/model"
	sqliteRepo "profile-service/internal/repository/sqlite"
	"profile-service/internal/service"
)

// graphqlFixture mounts POST /graphql behind the either-kind token gate,
// the same way the server does.
type graphqlFixture struct {
	router chi.Router
	codec  *auth.TokenCodec
	db     *sqliteRepo.DB
}

func newGraphQLFixture(t *testing.T) *graphqlFixture {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	codec, err := auth.NewTokenCodec(testSecret)
	if err != nil {
		t.Fatalf("creating codec: %v", err)
	}

	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)
	svc := service.NewProfileService(db, passwords, testLogger())
	h, err := handler.NewGraphQLHandler(svc, testLogger())
	if err != nil {
		t.Fatalf("building graphql schema: %v", err)
	}

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(codec))
		r.Post("/graphql", h.HandleQuery)
	})

	return &graphqlFixture{router: router, codec: codec, db: db}
}

func (f *graphqlFixture) query(t *testing.T, kind model.ProfileKind, query string) map[string]interface{} {
	t.Helper()

	token, err := f.codec.Issue(auth.Identity{Email: "caller@x.com", Name: "Caller"}, kind)
	if err != nil {
		t.Fatalf("issuing test token: %v", err)
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		t.Fatalf("encoding query: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	// The GraphQL envelope always rides on a 200.
	assert.Equal(t, http.StatusOK, rr.Code)

	var result map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decoding graphql response: %v", err)
	}
	return result
}

func firstError(t *testing.T, result map[string]interface{}) (string, float64) {
	t.Helper()
	errs, ok := result["errors"].([]interface{})
	if !ok || len(errs) == 0 {
		t.Fatalf("expected errors in result, got %v", result)
	}
	errObj := errs[0].(map[string]interface{})
	message, _ := errObj["message"].(string)
	code := float64(0)
	if ext, ok := errObj["extensions"].(map[string]interface{}); ok {
		code, _ = ext["code"].(float64)
	}
	return message, code
}

func TestGraphQL_GetUserByID(t *testing.T) {
	f := newGraphQLFixture(t)
	seedProfile(t, f.db, model.KindUser, &model.Profile{
		ID: "U001", Email: "ada@x.com", Name: "Ada", PicURL: "https://example.com/a.png", Age: 30,
	})

	// The user lookup is for organiser callers.
	result := f.query(t, model.KindOrganiser, `{ getUserById(uid: "U001") { UID Name Email PicURL Age } }`)

	data := result["data"].(map[string]interface{})
	user := data["getUserById"].(map[string]interface{})
	assert.Equal(t, "U001", user["UID"])
	assert.Equal(t, "Ada", user["Name"])
	assert.Equal(t, "ada@x.com", user["Email"])
	assert.Equal(t, "https://example.com/a.png", user["PicURL"])
	assert.Equal(t, float64(30), user["Age"])
}

func TestGraphQL_GetOrganiserByID(t *testing.T) {
	f := newGraphQLFixture(t)
	seedProfile(t, f.db, model.KindOrganiser, &model.Profile{ID: "O001", Email: "olu@x.com", Name: "Olu"})

	result := f.query(t, model.KindUser, `{ getOrganiserById(oid: "O001") { OID Name } }`)

	data := result["data"].(map[string]interface{})
	organiser := data["getOrganiserById"].(map[string]interface{})
	assert.Equal(t, "O001", organiser["OID"])
	assert.Equal(t, "Olu", organiser["Name"])
}

func TestGraphQL_WrongKindNotAuthorized(t *testing.T) {
	f := newGraphQLFixture(t)
	seedProfile(t, f.db, model.KindUser, &model.Profile{ID: "U001", Email: "ada@x.com", Name: "Ada"})

	// A user token cannot drive the user lookup; the query surface is
	// for the opposite kind.
	result := f.query(t, model.KindUser, `{ getUserById(uid: "U001") { UID } }`)

	message, code := firstError(t, result)
	assert.Equal(t, "Not Authorized", message)
	assert.Equal(t, float64(http.StatusUnauthorized), code)
}

func TestGraphQL_UnknownKeyIsNotFound(t *testing.T) {
	f := newGraphQLFixture(t)

	result := f.query(t, model.KindOrganiser, `{ getUserById(uid: "ghost") { UID } }`)

	message, code := firstError(t, result)
	assert.Equal(t, "User does not exist", message)
	assert.Equal(t, float64(http.StatusNotFound), code)
}

func TestGraphQL_Variables(t *testing.T) {
	f := newGraphQLFixture(t)
	seedProfile(t, f.db, model.KindUser, &model.Profile{ID: "U001", Email: "ada@x.com", Name: "Ada"})

	token, err := f.codec.Issue(auth.Identity{Email: "caller@x.com"}, model.KindOrganiser)
	if err != nil {
		t.Fatalf("issuing test token: %v", err)
	}

	body := `{"query":"query ($uid: String!) { getUserById(uid: $uid) { Name } }","variables":{"uid":"U001"}}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Name":"Ada"`)
}

func TestGraphQL_RequiresToken(t *testing.T) {
	f := newGraphQLFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`{"query":"{ getUserById(uid: \"U001\") { UID } }"}`))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGraphQL_EmptyQuery(t *testing.T) {
	f := newGraphQLFixture(t)

	token, err := f.codec.Issue(auth.Identity{Email: "caller@x.com"}, model.KindUser)
	if err != nil {
		t.Fatalf("issuing test token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":""}`))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
