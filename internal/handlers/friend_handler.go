package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Dias221467/bladder/internal/models"
	"github.com/Dias221467/bladder/internal/services"
	"github.com/Dias221467/bladder/pkg/logger"
	"github.com/Dias221467/bladder/pkg/middleware"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const notifyTimeout = 10 * time.Second

// FriendManager is the friend request lifecycle the handler drives.
type FriendManager interface {
	SendRequest(ctx context.Context, fromID, toID primitive.ObjectID) (*models.FriendRequest, error)
	ResolveRequest(ctx context.Context, requestID, callerID primitive.ObjectID, decision services.Decision) (*models.FriendRequest, error)
	RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error
	PendingReceived(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error)
	PendingSent(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error)
	AllInvolving(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error)
	RequestBetween(ctx context.Context, userID1, userID2 primitive.ObjectID) (*models.FriendRequest, error)
	FriendsOf(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// MiniUserLookup resolves users to their public summary.
type MiniUserLookup interface {
	GetMiniByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.MiniUser, error)
}

// FriendNotifier announces friend events to the affected user.
type FriendNotifier interface {
	FriendRequestReceived(ctx context.Context, req *models.FriendRequest, from *models.MiniUser)
	FriendRequestAccepted(ctx context.Context, req *models.FriendRequest, by *models.MiniUser)
}

// FriendHandler manages HTTP endpoints related to friend requests.
type FriendHandler struct {
	Service  FriendManager
	Users    MiniUserLookup
	Notifier FriendNotifier
}

// NewFriendHandler initializes a new FriendHandler. notifier may be nil.
func NewFriendHandler(service FriendManager, users MiniUserLookup, notifier FriendNotifier) *FriendHandler {
	return &FriendHandler{Service: service, Users: users, Notifier: notifier}
}

// RegisterRoutes mounts the friend request API on r. Every route needs an identity.
func (h *FriendHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/all", h.GetAllRequestsHandler).Methods(http.MethodGet)
	r.HandleFunc("/pending", h.GetPendingRequestsHandler).Methods(http.MethodGet)
	r.HandleFunc("/sent", h.GetSentRequestsHandler).Methods(http.MethodGet)
	r.HandleFunc("/friends", h.GetFriendsHandler).Methods(http.MethodGet)
	r.HandleFunc("/friends/{userId}", h.GetFriendsHandler).Methods(http.MethodGet)
	r.HandleFunc("/friends", h.RemoveFriendHandler).Methods(http.MethodDelete)
	r.HandleFunc("/check/{userId}", h.CheckRequestHandler).Methods(http.MethodGet)
	r.HandleFunc("", h.SendFriendRequestHandler).Methods(http.MethodPost)
	r.HandleFunc("/", h.SendFriendRequestHandler).Methods(http.MethodPost)
	r.HandleFunc("/{requestId}/accept", h.resolve(services.DecisionAccept)).Methods(http.MethodPut)
	r.HandleFunc("/{requestId}/decline", h.resolve(services.DecisionDecline)).Methods(http.MethodPut)
	r.HandleFunc("/{requestId}/cancel", h.resolve(services.DecisionCancel)).Methods(http.MethodPut)
}

// SendFriendRequestHandler allows a user to send a friend request.
func (h *FriendHandler) SendFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := callerID(r)
	if !ok {
		logger.Log.Warn("Send friend request rejected: not authenticated")
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var body struct {
		ToUserID string `json:"toUserId"`
	}
	if err := decodeJSON(r, &body); err != nil || body.ToUserID == "" {
		writeError(w, http.StatusBadRequest, "toUserId is required")
		return
	}
	receiverID, err := primitive.ObjectIDFromHex(body.ToUserID)
	if err != nil {
		// A malformed id cannot name an existing user.
		writeError(w, http.StatusNotFound, services.ErrUserNotFound.Error())
		return
	}

	request, err := h.Service.SendRequest(r.Context(), senderID, receiverID)
	if err != nil {
		writeServiceError(w, err, "Failed to send friend request")
		return
	}

	logger.Log.WithField("userID", senderID.Hex()).Infof("Friend request sent to %s", receiverID.Hex())
	h.notifyAsync(func(ctx context.Context) {
		h.Notifier.FriendRequestReceived(ctx, request, h.mini(ctx, request.FromUserID))
	})
	writeJSON(w, http.StatusCreated, request)
}

// resolve builds the accept, decline and cancel handlers.
func (h *FriendHandler) resolve(decision services.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		requestID, ok := pathID(r, "requestId")
		if !ok {
			middleware.RecordFriendTransition(string(decision), strconv.Itoa(http.StatusNotFound))
			writeError(w, http.StatusNotFound, services.ErrRequestNotFound.Error())
			return
		}

		resolved, err := h.Service.ResolveRequest(r.Context(), requestID, userID, decision)
		if err != nil {
			middleware.RecordFriendTransition(string(decision), strconv.Itoa(statusFor(err)))
			writeServiceError(w, err, "Failed to "+string(decision)+" friend request")
			return
		}
		middleware.RecordFriendTransition(string(decision), "ok")

		if decision == services.DecisionAccept {
			h.notifyAsync(func(ctx context.Context) {
				h.Notifier.FriendRequestAccepted(ctx, resolved, h.mini(ctx, resolved.ToUserID))
			})
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// GetPendingRequestsHandler shows all incoming friend requests with their senders.
func (h *FriendHandler) GetPendingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	requests, err := h.Service.PendingReceived(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Failed to get pending friend requests")
		return
	}
	index, err := h.index(r.Context(), requests)
	if err != nil {
		writeServiceError(w, err, "Failed to get pending friend requests")
		return
	}

	writeJSON(w, http.StatusOK, decorateReceived(requests, index))
}

// GetSentRequestsHandler shows all outgoing friend requests with their recipients.
func (h *FriendHandler) GetSentRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	requests, err := h.Service.PendingSent(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Failed to get sent friend requests")
		return
	}
	index, err := h.index(r.Context(), requests)
	if err != nil {
		writeServiceError(w, err, "Failed to get sent friend requests")
		return
	}

	writeJSON(w, http.StatusOK, decorateSent(requests, index))
}

// GetAllRequestsHandler splits the caller's pending requests into sent and received.
func (h *FriendHandler) GetAllRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	requests, err := h.Service.AllInvolving(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Failed to get all friend requests")
		return
	}
	index, err := h.index(r.Context(), requests)
	if err != nil {
		writeServiceError(w, err, "Failed to get all friend requests")
		return
	}

	var sent, received []models.FriendRequest
	for _, req := range requests {
		if req.FromUserID == userID {
			sent = append(sent, req)
		} else {
			received = append(received, req)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sentRequests":     decorateSent(sent, index),
		"receivedRequests": decorateReceived(received, index),
	})
}

// GetFriendsHandler lists the friends of the caller, or of another user for admins.
func (h *FriendHandler) GetFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	target := userID
	if hex := mux.Vars(r)["userId"]; hex != "" {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid user ID")
			return
		}
		target = id
	}
	claims := middleware.GetUserFromContext(r.Context())
	if target != userID && !claims.IsAdmin {
		logger.Log.WithField("userID", userID.Hex()).Warnf("Unauthorized access to friends of %s", target.Hex())
		writeError(w, http.StatusForbidden, "Not authorized")
		return
	}

	ids, err := h.Service.FriendsOf(r.Context(), target)
	if err != nil {
		writeServiceError(w, err, "Failed to get friends list")
		return
	}
	friends, err := h.Users.GetMiniByIDs(r.Context(), ids)
	if err != nil {
		writeServiceError(w, err, "Failed to get friends list")
		return
	}
	if friends == nil {
		friends = []models.MiniUser{}
	}

	writeJSON(w, http.StatusOK, friends)
}

// RemoveFriendHandler ends a friendship.
func (h *FriendHandler) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var body struct {
		FriendID string `json:"friendId"`
	}
	if err := decodeJSON(r, &body); err != nil || body.FriendID == "" {
		writeError(w, http.StatusBadRequest, "friendId is required")
		return
	}
	friendID, err := primitive.ObjectIDFromHex(body.FriendID)
	if err != nil {
		writeError(w, http.StatusBadRequest, services.ErrNotFriends.Error())
		return
	}

	if err := h.Service.RemoveFriend(r.Context(), userID, friendID); err != nil {
		writeServiceError(w, err, "Failed to remove friend")
		return
	}

	writeJSON(w, http.StatusOK, msgBody{Msg: "Friend removed successfully"})
}

// CheckRequestHandler returns the request between the caller and another user, or null.
func (h *FriendHandler) CheckRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	otherID, ok := pathID(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	request, err := h.Service.RequestBetween(r.Context(), userID, otherID)
	if err != nil {
		writeServiceError(w, err, "Failed to check friend request")
		return
	}

	writeJSON(w, http.StatusOK, request)
}

func (h *FriendHandler) notifyAsync(fn func(ctx context.Context)) {
	if h.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (h *FriendHandler) mini(ctx context.Context, id primitive.ObjectID) *models.MiniUser {
	users, err := h.Users.GetMiniByIDs(ctx, []primitive.ObjectID{id})
	if err != nil || len(users) == 0 {
		return nil
	}
	return &users[0]
}

// index fetches, in one batch, the mini projection of everyone on the other side of requests.
func (h *FriendHandler) index(ctx context.Context, requests []models.FriendRequest) (map[primitive.ObjectID]*models.MiniUser, error) {
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, req := range requests {
		for _, id := range []primitive.ObjectID{req.FromUserID, req.ToUserID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	index := make(map[primitive.ObjectID]*models.MiniUser, len(ids))
	if len(ids) == 0 {
		return index, nil
	}
	users, err := h.Users.GetMiniByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		index[users[i].ID] = &users[i]
	}
	return index, nil
}

func decorateReceived(requests []models.FriendRequest, index map[primitive.ObjectID]*models.MiniUser) []models.ReceivedFriendRequest {
	out := make([]models.ReceivedFriendRequest, 0, len(requests))
	for _, req := range requests {
		out = append(out, models.ReceivedFriendRequest{FriendRequest: req, FromUser: index[req.FromUserID]})
	}
	return out
}

func decorateSent(requests []models.FriendRequest, index map[primitive.ObjectID]*models.MiniUser) []models.SentFriendRequest {
	out := make([]models.SentFriendRequest, 0, len(requests))
	for _, req := range requests {
		out = append(out, models.SentFriendRequest{FriendRequest: req, ToUser: index[req.ToUserID]})
	}
	return out
}
