package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/services"
	jwtutil "github.com/Dias221467/bladder/pkg/jwt"
	"github.com/Dias221467/bladder/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockFriends struct {
	mock.Mock
}

func (m *mockFriends) SendRequest(ctx context.Context, fromID, toID primitive.ObjectID) (*models.FriendRequest, error) {
	args := m.Called(ctx, fromID, toID)
	req, _ := args.Get(0).(*models.FriendRequest)
	return req, args.Error(1)
}

func (m *mockFriends) ResolveRequest(ctx context.Context, requestID, callerID primitive.ObjectID, decision services.Decision) (*models.FriendRequest, error) {
	args := m.Called(ctx, requestID, callerID, decision)
	req, _ := args.Get(0).(*models.FriendRequest)
	return req, args.Error(1)
}

func (m *mockFriends) RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	return m.Called(ctx, userID, friendID).Error(0)
}

func (m *mockFriends) PendingReceived(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	reqs, _ := args.Get(0).([]models.FriendRequest)
	return reqs, args.Error(1)
}

func (m *mockFriends) PendingSent(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	reqs, _ := args.Get(0).([]models.FriendRequest)
	return reqs, args.Error(1)
}

func (m *mockFriends) AllInvolving(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	reqs, _ := args.Get(0).([]models.FriendRequest)
	return reqs, args.Error(1)
}

func (m *mockFriends) RequestBetween(ctx context.Context, userID1, userID2 primitive.ObjectID) (*models.FriendRequest, error) {
	args := m.Called(ctx, userID1, userID2)
	req, _ := args.Get(0).(*models.FriendRequest)
	return req, args.Error(1)
}

func (m *mockFriends) FriendsOf(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	args := m.Called(ctx, userID)
	ids, _ := args.Get(0).([]primitive.ObjectID)
	return ids, args.Error(1)
}

type mockMinis struct {
	mock.Mock
}

func (m *mockMinis) GetMiniByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.MiniUser, error) {
	args := m.Called(ctx, ids)
	users, _ := args.Get(0).([]models.MiniUser)
	return users, args.Error(1)
}

type chanNotifier struct {
	received chan *models.FriendRequest
	accepted chan *models.FriendRequest
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{
		received: make(chan *models.FriendRequest, 1),
		accepted: make(chan *models.FriendRequest, 1),
	}
}

func (n *chanNotifier) FriendRequestReceived(_ context.Context, req *models.FriendRequest, _ *models.MiniUser) {
	n.received <- req
}

func (n *chanNotifier) FriendRequestAccepted(_ context.Context, req *models.FriendRequest, _ *models.MiniUser) {
	n.accepted <- req
}

type friendTest struct {
	router   *mux.Router
	friends  *mockFriends
	minis    *mockMinis
	notifier *chanNotifier
	caller   primitive.ObjectID
}

func newFriendTest(t *testing.T, admin bool) *friendTest {
	t.Helper()
	ft := &friendTest{
		router:   mux.NewRouter(),
		friends:  new(mockFriends),
		minis:    new(mockMinis),
		notifier: newChanNotifier(),
		caller:   primitive.NewObjectID(),
	}
	ft.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Anonymous") != "" {
				next.ServeHTTP(w, r)
				return
			}
			claims := &jwtutil.Claims{UserID: ft.caller.Hex(), FullName: "Caller", IsAdmin: admin}
			next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), claims)))
		})
	})
	h := NewFriendHandler(ft.friends, ft.minis, ft.notifier)
	h.RegisterRoutes(ft.router.PathPrefix("/api/friend-request").Subrouter())
	return ft
}

func (ft *friendTest) do(method, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	ft.router.ServeHTTP(w, r)
	return w
}

func errMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Err
}

func TestSendFriendRequestHandler(t *testing.T) {
	ft := newFriendTest(t, false)
	to := primitive.NewObjectID()
	created := &models.FriendRequest{ID: primitive.NewObjectID(), FromUserID: ft.caller, ToUserID: to, Status: models.StatusPending}

	ft.friends.On("SendRequest", mock.Anything, ft.caller, to).Return(created, nil)
	ft.minis.On("GetMiniByIDs", mock.Anything, []primitive.ObjectID{ft.caller}).
		Return([]models.MiniUser{{ID: ft.caller, FullName: "Caller"}}, nil)

	w := ft.do(http.MethodPost, "/api/friend-request", `{"toUserId":"`+to.Hex()+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var got models.FriendRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)

	select {
	case req := <-ft.notifier.received:
		assert.Equal(t, created.ID, req.ID)
	case <-time.After(time.Second):
		t.Fatal("recipient was not notified")
	}
}

func TestSendFriendRequestHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"missing body", `{}`, nil, http.StatusBadRequest},
		{"malformed id", `{"toUserId":"nope"}`, nil, http.StatusNotFound},
		{"unknown user", "", services.ErrUserNotFound, http.StatusNotFound},
		{"self", "", services.ErrInvalidRequest, http.StatusBadRequest},
		{"already friends", "", services.ErrAlreadyFriends, http.StatusBadRequest},
		{"duplicate", "", services.ErrDuplicateRequest, http.StatusBadRequest},
		{"store", "", &services.StoreError{Op: "insert request", Err: assert.AnError}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ft := newFriendTest(t, false)
			body := tc.body
			if tc.err != nil {
				to := primitive.NewObjectID()
				body = `{"toUserId":"` + to.Hex() + `"}`
				ft.friends.On("SendRequest", mock.Anything, ft.caller, to).Return(nil, tc.err)
			}

			w := ft.do(http.MethodPost, "/api/friend-request", body)
			assert.Equal(t, tc.status, w.Code)
			msg := errMessage(t, w)
			assert.NotEmpty(t, msg)
			assert.NotContains(t, msg, assert.AnError.Error())
		})
	}
}

func TestResolveHandlers(t *testing.T) {
	cases := []struct {
		path     string
		decision services.Decision
	}{
		{"accept", services.DecisionAccept},
		{"decline", services.DecisionDecline},
		{"cancel", services.DecisionCancel},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			ft := newFriendTest(t, false)
			id := primitive.NewObjectID()
			resolved := &models.FriendRequest{ID: id, FromUserID: primitive.NewObjectID(), ToUserID: ft.caller, Status: models.StatusAccepted}
			ft.friends.On("ResolveRequest", mock.Anything, id, ft.caller, tc.decision).Return(resolved, nil)
			ft.minis.On("GetMiniByIDs", mock.Anything, mock.Anything).Return([]models.MiniUser{}, nil).Maybe()

			w := ft.do(http.MethodPut, "/api/friend-request/"+id.Hex()+"/"+tc.path, "")
			require.Equal(t, http.StatusOK, w.Code)
			ft.friends.AssertExpectations(t)

			if tc.decision == services.DecisionAccept {
				select {
				case req := <-ft.notifier.accepted:
					assert.Equal(t, id, req.ID)
				case <-time.After(time.Second):
					t.Fatal("sender was not notified")
				}
			}
		})
	}
}

func TestResolveHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", services.ErrRequestNotFound, http.StatusNotFound},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"not pending", services.ErrInvalidState, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ft := newFriendTest(t, false)
			id := primitive.NewObjectID()
			ft.friends.On("ResolveRequest", mock.Anything, id, ft.caller, services.DecisionAccept).Return(nil, tc.err)

			w := ft.do(http.MethodPut, "/api/friend-request/"+id.Hex()+"/accept", "")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.err.Error(), errMessage(t, w))
		})
	}

	ft := newFriendTest(t, false)
	w := ft.do(http.MethodPut, "/api/friend-request/not-an-id/accept", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	ft.friends.AssertNotCalled(t, "ResolveRequest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPendingAndSentHandlersDecorate(t *testing.T) {
	ft := newFriendTest(t, false)
	sender := primitive.NewObjectID()
	recipient := primitive.NewObjectID()

	incoming := []models.FriendRequest{{ID: primitive.NewObjectID(), FromUserID: sender, ToUserID: ft.caller, Status: models.StatusPending}}
	outgoing := []models.FriendRequest{{ID: primitive.NewObjectID(), FromUserID: ft.caller, ToUserID: recipient, Status: models.StatusPending}}

	ft.friends.On("PendingReceived", mock.Anything, ft.caller).Return(incoming, nil)
	ft.friends.On("PendingSent", mock.Anything, ft.caller).Return(outgoing, nil)
	ft.minis.On("GetMiniByIDs", mock.Anything, mock.Anything).Return([]models.MiniUser{
		{ID: sender, Username: "sender"},
		{ID: recipient, Username: "recipient"},
	}, nil)

	w := ft.do(http.MethodGet, "/api/friend-request/pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	var received []models.ReceivedFriendRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &received))
	require.Len(t, received, 1)
	require.NotNil(t, received[0].FromUser)
	assert.Equal(t, "sender", received[0].FromUser.Username)

	w = ft.do(http.MethodGet, "/api/friend-request/sent", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sent []models.SentFriendRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].ToUser)
	assert.Equal(t, "recipient", sent[0].ToUser.Username)
}

func TestAllRequestsHandlerSplits(t *testing.T) {
	ft := newFriendTest(t, false)
	other := primitive.NewObjectID()
	all := []models.FriendRequest{
		{ID: primitive.NewObjectID(), FromUserID: ft.caller, ToUserID: other, Status: models.StatusPending},
		{ID: primitive.NewObjectID(), FromUserID: primitive.NewObjectID(), ToUserID: ft.caller, Status: models.StatusPending},
	}
	ft.friends.On("AllInvolving", mock.Anything, ft.caller).Return(all, nil)
	ft.minis.On("GetMiniByIDs", mock.Anything, mock.Anything).Return([]models.MiniUser{}, nil)

	w := ft.do(http.MethodGet, "/api/friend-request/all", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		SentRequests     []models.SentFriendRequest     `json:"sentRequests"`
		ReceivedRequests []models.ReceivedFriendRequest `json:"receivedRequests"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.SentRequests, 1)
	assert.Len(t, body.ReceivedRequests, 1)
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	ft := newFriendTest(t, false)
	ft.friends.On("PendingReceived", mock.Anything, ft.caller).Return([]models.FriendRequest{}, nil)
	ft.friends.On("FriendsOf", mock.Anything, ft.caller).Return([]primitive.ObjectID{}, nil)
	ft.minis.On("GetMiniByIDs", mock.Anything, []primitive.ObjectID{}).Return([]models.MiniUser{}, nil)

	w := ft.do(http.MethodGet, "/api/friend-request/pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ft.do(http.MethodGet, "/api/friend-request/friends", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestFriendsHandlerAuthorization(t *testing.T) {
	other := primitive.NewObjectID()

	ft := newFriendTest(t, false)
	w := ft.do(http.MethodGet, "/api/friend-request/friends/"+other.Hex(), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := newFriendTest(t, true)
	friend := primitive.NewObjectID()
	admin.friends.On("FriendsOf", mock.Anything, other).Return([]primitive.ObjectID{friend}, nil)
	admin.minis.On("GetMiniByIDs", mock.Anything, []primitive.ObjectID{friend}).
		Return([]models.MiniUser{{ID: friend, Username: "pal"}}, nil)

	w = admin.do(http.MethodGet, "/api/friend-request/friends/"+other.Hex(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var friends []models.MiniUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &friends))
	require.Len(t, friends, 1)
	assert.Equal(t, "pal", friends[0].Username)
}

func TestRemoveFriendHandler(t *testing.T) {
	ft := newFriendTest(t, false)
	friend := primitive.NewObjectID()
	stranger := primitive.NewObjectID()
	ft.friends.On("RemoveFriend", mock.Anything, ft.caller, friend).Return(nil)
	ft.friends.On("RemoveFriend", mock.Anything, ft.caller, stranger).Return(services.ErrNotFriends)

	w := ft.do(http.MethodDelete, "/api/friend-request/friends", `{"friendId":"`+friend.Hex()+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ft.do(http.MethodDelete, "/api/friend-request/friends", `{"friendId":"`+stranger.Hex()+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.ErrNotFriends.Error(), errMessage(t, w))

	w = ft.do(http.MethodDelete, "/api/friend-request/friends", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckRequestHandler(t *testing.T) {
	ft := newFriendTest(t, false)
	other := primitive.NewObjectID()
	none := primitive.NewObjectID()
	existing := &models.FriendRequest{ID: primitive.NewObjectID(), FromUserID: other, ToUserID: ft.caller, Status: models.StatusPending}

	ft.friends.On("RequestBetween", mock.Anything, ft.caller, other).Return(existing, nil)
	ft.friends.On("RequestBetween", mock.Anything, ft.caller, none).Return(nil, nil)

	w := ft.do(http.MethodGet, "/api/friend-request/check/"+other.Hex(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got models.FriendRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, existing.ID, got.ID)

	w = ft.do(http.MethodGet, "/api/friend-request/check/"+none.Hex(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))
}

func TestFriendRoutesRequireIdentity(t *testing.T) {
	ft := newFriendTest(t, false)
	r := httptest.NewRequest(http.MethodGet, "/api/friend-request/pending", nil)
	r.Header.Set("X-Anonymous", "1")
	w := httptest.NewRecorder()
	ft.router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
