package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/geocode"
	"github.com/huddle/backend/internal/middleware"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/notify"
	"github.com/huddle/backend/internal/objectstore"
	"github.com/huddle/backend/internal/services"
	"github.com/huddle/backend/internal/session"
	"github.com/huddle/backend/internal/storage"
)

const (
	testSecret  = "test-secret"
	testAddress = "10 Downing Street, London"
)

type stubGeocoder struct {
	mu    sync.Mutex
	calls int
}

func (g *stubGeocoder) Lookup(ctx context.Context, query string) (*geocode.Place, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if geocode.NormalizeQuery(query) != geocode.NormalizeQuery(testAddress) {
		return nil, geocode.ErrNoMatch
	}
	return &geocode.Place{Latitude: 51.5033, Longitude: -0.1276, HouseNumber: "10", Road: "Downing Street", City: "London"}, nil
}

type apiResponse struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()

	accounts, err := storage.NewMemoryAccountStore("")
	require.NoError(t, err)
	profileStore, err := storage.NewMemoryProfileStore("")
	require.NoError(t, err)
	friendStore, err := storage.NewMemoryFriendStore("")
	require.NoError(t, err)
	eventStore, err := storage.NewMemoryEventStore("")
	require.NoError(t, err)

	uploadDir := t.TempDir()
	objects, err := objectstore.NewLocalStore(uploadDir, "http://localhost:8080")
	require.NoError(t, err)

	geo := &stubGeocoder{}
	revoker := session.NewMemoryRevoker()

	profiles := services.NewProfileService(profileStore, log)
	friends := services.NewFriendService(friendStore, profiles, notify.Nop{}, log)
	chat := services.NewChatService(eventStore, profiles, 200, time.UTC)
	events := services.NewEventService(eventStore, profiles, friends, chat, geo, notify.Nop{}, services.EventServiceConfig{
		StrictAddressCheck: true,
		Location:           time.UTC,
	}, log)

	svc := Services{
		Accounts:  services.NewAccountService(accounts, profiles, revoker, testSecret, time.Hour, log),
		Profiles:  profiles,
		Friends:   friends,
		Events:    events,
		Chat:      chat,
		Addresses: services.NewAddressService(geocode.NewDebouncer(geo, 150*time.Millisecond), log),
		Avatars:   services.NewAvatarService(objects, nil, profiles, log),
		Maps:      services.NewMapService(eventStore, geo, time.UTC, log),
	}
	handler := NewRouter(svc, RouterConfig{
		Verifiers: []middleware.Verifier{middleware.NewJWTVerifier(testSecret, revoker)},
		UploadDir: uploadDir,
	}, log)

	return &testServer{t: t, handler: handler}
}

func (s *testServer) send(method, path, token, contentType string, body []byte) (int, apiResponse) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func (s *testServer) do(method, path, token string, body interface{}) (int, apiResponse) {
	s.t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(s.t, err)
	}
	return s.send(method, path, token, "application/json", raw)
}

func (s *testServer) signUp(email, name string) models.AuthResponse {
	s.t.Helper()
	code, resp := s.do(http.MethodPost, "/api/auth/signup", "", models.SignUpRequest{
		Email: email, Password: "secret123", Name: name,
	})
	require.Equal(s.t, http.StatusCreated, code, resp.Error)
	var auth models.AuthResponse
	require.NoError(s.t, json.Unmarshal(resp.Data, &auth))
	require.NotEmpty(s.t, auth.Token)
	return auth
}

func (s *testServer) befriend(a, b models.AuthResponse) {
	s.t.Helper()
	code, resp := s.do(http.MethodPost, "/api/friends/requests", a.Token, models.SendFriendRequest{Email: b.Profile.Email})
	require.Equal(s.t, http.StatusCreated, code, resp.Error)
	var fr models.FriendRequest
	require.NoError(s.t, json.Unmarshal(resp.Data, &fr))

	code, resp = s.do(http.MethodPost, "/api/friends/requests/"+fr.ID+"/accept", b.Token, nil)
	require.Equal(s.t, http.StatusOK, code, resp.Error)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)

	code, _ = s.do(http.MethodGet, "/api/events", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSignUpSignInSignOut(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("Alice@Example.com", "Alice")
	assert.Equal(t, "alice@example.com", alice.Profile.Email)

	code, _ := s.do(http.MethodPost, "/api/auth/signup", "", models.SignUpRequest{
		Email: "alice@example.com", Password: "secret123", Name: "Alice",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, resp := s.do(http.MethodPost, "/api/auth/signin", "", models.SignInRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid email or password", resp.Error)

	code, resp = s.do(http.MethodPost, "/api/auth/signin", "", models.SignInRequest{Email: "alice@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, code)
	token := decode[models.AuthResponse](t, resp.Data).Token

	code, _ = s.do(http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, "/api/auth/signout", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSignUpValidation(t *testing.T) {
	s := newTestServer(t)
	code, resp := s.do(http.MethodPost, "/api/auth/signup", "", models.SignUpRequest{Email: "bad", Password: "1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Contains(t, resp.Errors, "email")
	assert.Contains(t, resp.Errors, "password")
	assert.Contains(t, resp.Errors, "name")
}

func TestCreateEventIsListedActiveWithCreatorFirst(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice@example.com", "Alice")
	bob := s.signUp("bob@example.com", "Bob")
	s.befriend(alice, bob)

	code, resp := s.do(http.MethodPost, "/api/events", alice.Token, models.CreateEventRequest{
		Title:    "Board games",
		Date:     "2099-06-01",
		Time:     "19:30",
		Location: testAddress,
		Invitees: []string{bob.Profile.ID},
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	created := decode[models.EventView](t, resp.Data)
	assert.Equal(t, []string{alice.Profile.ID, bob.Profile.ID}, created.Attendees)
	require.NotNil(t, created.Latitude)

	code, resp = s.do(http.MethodGet, "/api/events", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	lists := decode[models.EventLists](t, resp.Data)
	require.Len(t, lists.Active, 1)
	assert.Empty(t, lists.Expired)
	assert.Equal(t, created.ID, lists.Active[0].ID)
	assert.Equal(t, "Alice", lists.Active[0].AttendeeProfiles[0].Name)

	code, resp = s.do(http.MethodPost, "/api/events/"+created.ID+"/poll", bob.Token, models.VoteRequest{Response: models.PollYes})
	require.Equal(t, http.StatusOK, code, resp.Error)
	voted := decode[models.EventView](t, resp.Data)
	assert.Equal(t, 1, voted.PollCounts.Yes)

	code, resp = s.do(http.MethodGet, "/api/map/pins", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	pins := decode[[]models.MapPin](t, resp.Data)
	require.Len(t, pins, 1)
	assert.Contains(t, pins[0].DirectionsURL, "10%20Downing%20Street")
}

func TestCreateEventValidation(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice@example.com", "Alice")

	code, resp := s.do(http.MethodPost, "/api/events", alice.Token, models.CreateEventRequest{
		Title:    "Picnic",
		Date:     "06/01/2099",
		Time:     "noon",
		Location: "the park",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Errors, "date")
	assert.Contains(t, resp.Errors, "time")
	assert.Contains(t, resp.Errors, "location")

	code, _ = s.send(http.MethodPost, "/api/events", alice.Token, "application/json", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEventNotFoundForStrangers(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice@example.com", "Alice")
	carol := s.signUp("carol@example.com", "Carol")

	code, resp := s.do(http.MethodPost, "/api/events", alice.Token, models.CreateEventRequest{
		Title: "Dinner", Date: "2099-06-01", Time: "19:00", Location: testAddress,
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	id := decode[models.EventView](t, resp.Data).ID

	for _, path := range []string{"/api/events/" + id, "/api/events/" + id + "/chat", "/api/events/missing"} {
		code, _ = s.do(http.MethodGet, path, carol.Token, nil)
		assert.Equal(t, http.StatusNotFound, code, path)
	}

	code, _ = s.do(http.MethodDelete, "/api/events/"+id, carol.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestChatRoundTrip(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice@example.com", "Alice")

	code, resp := s.do(http.MethodPost, "/api/events", alice.Token, models.CreateEventRequest{
		Title: "Dinner", Date: "2099-06-01", Time: "19:00", Location: testAddress,
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	id := decode[models.EventView](t, resp.Data).ID

	code, _ = s.do(http.MethodPost, "/api/events/"+id+"/chat", alice.Token, models.SendChatMessageRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/events/"+id+"/chat", alice.Token, models.SendChatMessageRequest{Text: "See you there"})
	require.Equal(t, http.StatusCreated, code)

	code, resp = s.do(http.MethodGet, "/api/events/"+id+"/chat", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	msgs := decode[[]models.ChatMessage](t, resp.Data)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Alice", msgs[0].Sender)
	assert.Equal(t, "See you there", msgs[0].Text)
}

func TestFriendRequestByUnknownEmail(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice@example.com", "Alice")

	code, resp := s.do(http.MethodPost, "/api/friends/requests", alice.Token, models.SendFriendRequest{Email: "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No user with that email address has signed up yet", resp.Error)

	code, _ = s.do(http.MethodPost, "/api/friends/requests", alice.Token, models.SendFriendRequest{AddresseeID: alice.Profile.ID})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAddressValidateSuperseded(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice@example.com", "Alice")

	first := make(chan int, 1)
	go func() {
		code, _ := s.do(http.MethodPost, "/api/addresses/validate", alice.Token, models.ValidateAddressRequest{Address: "10 Downing"})
		first <- code
	}()
	time.Sleep(30 * time.Millisecond)

	code, resp := s.do(http.MethodPost, "/api/addresses/validate", alice.Token, models.ValidateAddressRequest{Address: testAddress})
	require.Equal(t, http.StatusOK, code)
	check := decode[services.AddressCheck](t, resp.Data)
	assert.True(t, check.Valid)

	assert.Equal(t, http.StatusConflict, <-first)
}

func TestAddressValidateRejectsShape(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice@example.com", "Alice")

	code, resp := s.do(http.MethodPost, "/api/addresses/validate", alice.Token, models.ValidateAddressRequest{Address: "somewhere nice"})
	require.Equal(t, http.StatusOK, code)
	check := decode[services.AddressCheck](t, resp.Data)
	assert.False(t, check.Valid)
	assert.NotEmpty(t, check.Reason)
}

func TestAvatarUpload(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp("alice@example.com", "Alice")

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	code, resp := s.send(http.MethodPost, "/api/me/avatar", alice.Token, mw.FormDataContentType(), body.Bytes())
	require.Equal(t, http.StatusCreated, code, resp.Error)
	upload := decode[models.AvatarUploadResponse](t, resp.Data)
	assert.True(t, strings.HasPrefix(upload.URL, "http://localhost:8080/uploads/avatars/"))
	require.NotNil(t, upload.Profile.Avatar)

	code, resp = s.do(http.MethodDelete, "/api/me/avatar", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, decode[models.Profile](t, resp.Data).Avatar)
}
