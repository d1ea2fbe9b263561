// README: Handler tests for chat, confirm and booking lookup.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concierge/internal/http/handlers"
	httpmiddleware "concierge/internal/http/middleware"
	"concierge/internal/infra"
	"concierge/internal/modules/aiusage"
	"concierge/internal/modules/booking"
	"concierge/internal/modules/memory"
	"concierge/internal/planner"
	"concierge/internal/service"
	"concierge/internal/types"
)

type stubTokenVerifier struct {
	uid string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.VerifiedCaller, error) {
	return &infra.VerifiedCaller{UID: s.uid}, nil
}

type fakeChat struct {
	chatErr    error
	confirmErr error
	lastChat   service.ChatRequest
	lastConf   service.ConfirmRequest
}

func (f *fakeChat) Chat(_ context.Context, req service.ChatRequest) (service.ChatReply, error) {
	f.lastChat = req
	reply := service.ChatReply{Message: "hello", DebugID: req.DebugID, SessionID: req.SessionID}
	if reply.SessionID == "" {
		reply.SessionID = "minted-session"
	}
	return reply, f.chatErr
}

func (f *fakeChat) Confirm(_ context.Context, req service.ConfirmRequest) (service.ConfirmReply, error) {
	f.lastConf = req
	return service.ConfirmReply{Message: "Confirmed.", DebugID: req.DebugID}, f.confirmErr
}

type fakeBookings struct {
	b   *booking.Booking
	err error
}

func (f *fakeBookings) Get(_ context.Context, caller booking.Caller, _ types.ID) (*booking.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.b.OwnedBy(caller) {
		return nil, booking.ErrForbidden
	}
	return f.b, nil
}

func buildTestRouter(chat handlers.ChatService, bookings handlers.BookingReader, verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(httpmiddleware.RequestID(), httpmiddleware.Auth(verifier))
	ch := handlers.NewChatHandler(chat)
	r.POST("/api/chat", ch.Chat)
	r.POST("/api/chat/confirm", ch.Confirm)
	bh := handlers.NewBookingHandler(bookings)
	r.GET("/api/bookings/:id", bh.Get)
	return r
}

func doRequest(r *gin.Engine, method, path string, body any, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:5555"
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestChat_Success(t *testing.T) {
	chat := &fakeChat{}
	r := buildTestRouter(chat, nil, nil)

	w := doRequest(r, http.MethodPost, "/api/chat", map[string]any{
		"sessionId": "sess-1",
		"userId":    "u-1",
		"message":   "find me a flight to Lisbon",
		"context":   map[string]any{"intentHint": "flight_search"},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "hello", body["message"])
	assert.Equal(t, "sess-1", body["sessionId"])
	assert.Equal(t, w.Header().Get(httpmiddleware.RequestIDHeader), body["debugId"])

	assert.Equal(t, "u-1", chat.lastChat.UserID)
	assert.Equal(t, "flight_search", chat.lastChat.IntentHint)
	assert.Equal(t, "203.0.113.7", chat.lastChat.ClientIP)
}

func TestChat_MissingSessionIsMinted(t *testing.T) {
	r := buildTestRouter(&fakeChat{}, nil, nil)
	w := doRequest(r, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "minted-session", decodeBody(t, w)["sessionId"])
}

func TestChat_BadRequests(t *testing.T) {
	long := bytes.Repeat([]byte("a"), 4001)
	cases := []struct {
		name string
		body any
	}{
		{"missing message", map[string]any{"sessionId": "s1"}},
		{"empty message", map[string]any{"message": ""}},
		{"oversized message", map[string]any{"message": string(long)}},
		{"bad session id", map[string]any{"sessionId": "has spaces", "message": "hi"}},
		{"not json", "just a string"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := buildTestRouter(&fakeChat{}, nil, nil)
			w := doRequest(r, http.MethodPost, "/api/chat", tc.body, "")
			require.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, "BAD_REQUEST", body["code"])
			assert.NotEmpty(t, body["debugId"])
		})
	}
}

func TestChat_ServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrBadRequest, http.StatusBadRequest, "BAD_REQUEST"},
		{service.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{aiusage.ErrInsufficientTokens, http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
		{planner.ErrPlanGenerationFailed, http.StatusInternalServerError, "PLAN_GENERATION_FAILED"},
		{memory.ErrOwnerMismatch, http.StatusForbidden, "FORBIDDEN"},
		{assert.AnError, http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			r := buildTestRouter(&fakeChat{chatErr: tc.err}, nil, nil)
			w := doRequest(r, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, "")
			require.Equal(t, tc.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tc.code, body["code"])
			assert.Equal(t, w.Header().Get(httpmiddleware.RequestIDHeader), body["debugId"])
		})
	}
}

func TestChat_ErrorBodyIsRedacted(t *testing.T) {
	r := buildTestRouter(&fakeChat{}, nil, nil)
	// sessionid validation fails and the message must not echo the email back.
	w := doRequest(r, http.MethodPost, "/api/chat", map[string]any{"sessionId": "jane@example.com", "message": "hi"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "jane@example.com")
}

func TestChat_AuthEnabledUserResolution(t *testing.T) {
	verifier := &stubTokenVerifier{uid: "token-user"}

	t.Run("token uid wins", func(t *testing.T) {
		chat := &fakeChat{}
		r := buildTestRouter(chat, nil, verifier)
		w := doRequest(r, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, "Bearer ok")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "token-user", chat.lastChat.UserID)
	})

	t.Run("matching body userId", func(t *testing.T) {
		chat := &fakeChat{}
		r := buildTestRouter(chat, nil, verifier)
		w := doRequest(r, http.MethodPost, "/api/chat", map[string]any{"message": "hi", "userId": "token-user"}, "Bearer ok")
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("mismatched body userId", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{}, nil, verifier)
		w := doRequest(r, http.MethodPost, "/api/chat", map[string]any{"message": "hi", "userId": "someone-else"}, "Bearer ok")
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", decodeBody(t, w)["code"])
	})

	t.Run("anonymous cannot claim a userId", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{}, nil, verifier)
		w := doRequest(r, http.MethodPost, "/api/chat", map[string]any{"message": "hi", "userId": "token-user"}, "")
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous without userId", func(t *testing.T) {
		chat := &fakeChat{}
		r := buildTestRouter(chat, nil, verifier)
		w := doRequest(r, http.MethodPost, "/api/chat", map[string]any{"message": "hi"}, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "", chat.lastChat.UserID)
	})
}

func TestConfirm(t *testing.T) {
	t.Run("confirm true", func(t *testing.T) {
		chat := &fakeChat{}
		r := buildTestRouter(chat, nil, nil)
		w := doRequest(r, http.MethodPost, "/api/chat/confirm", map[string]any{"sessionId": "s1", "confirm": true}, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, chat.lastConf.Confirm)
		assert.Equal(t, "s1", chat.lastConf.SessionID)
	})

	t.Run("confirm false is still a valid body", func(t *testing.T) {
		chat := &fakeChat{}
		r := buildTestRouter(chat, nil, nil)
		w := doRequest(r, http.MethodPost, "/api/chat/confirm", map[string]any{"sessionId": "s1", "confirm": false}, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, chat.lastConf.Confirm)
	})

	t.Run("missing session id", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{}, nil, nil)
		w := doRequest(r, http.MethodPost, "/api/chat/confirm", map[string]any{"confirm": true}, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing confirm flag", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{}, nil, nil)
		w := doRequest(r, http.MethodPost, "/api/chat/confirm", map[string]any{"sessionId": "s1"}, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no pending action", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{confirmErr: service.ErrNoPendingAction}, nil, nil)
		w := doRequest(r, http.MethodPost, "/api/chat/confirm", map[string]any{"sessionId": "s1", "confirm": true}, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "NO_PENDING_ACTION", decodeBody(t, w)["code"])
	})

	t.Run("confirmation already running", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{confirmErr: service.ErrConfirmInProgress}, nil, nil)
		w := doRequest(r, http.MethodPost, "/api/chat/confirm", map[string]any{"sessionId": "s1", "confirm": true}, "")
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "CONFLICT", decodeBody(t, w)["code"])
	})
}

func TestBookingGet(t *testing.T) {
	id := "0123456789abcdef0123456789abcdef"
	owner := "owner-1"
	b := &booking.Booking{ID: types.ID(id), SessionID: "s1", UserID: &owner, Status: booking.StatusDraft}

	t.Run("owner", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{}, &fakeBookings{b: b}, &stubTokenVerifier{uid: owner})
		w := doRequest(r, http.MethodGet, "/api/bookings/"+id, nil, "Bearer ok")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, id, decodeBody(t, w)["id"])
	})

	t.Run("other user", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{}, &fakeBookings{b: b}, &stubTokenVerifier{uid: "intruder"})
		w := doRequest(r, http.MethodGet, "/api/bookings/"+id, nil, "Bearer ok")
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{}, &fakeBookings{b: b}, &stubTokenVerifier{uid: owner})
		w := doRequest(r, http.MethodGet, "/api/bookings/"+id, nil, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{}, &fakeBookings{err: booking.ErrNotFound}, &stubTokenVerifier{uid: owner})
		w := doRequest(r, http.MethodGet, "/api/bookings/"+id, nil, "Bearer ok")
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		r := buildTestRouter(&fakeChat{}, &fakeBookings{b: b}, &stubTokenVerifier{uid: owner})
		w := doRequest(r, http.MethodGet, "/api/bookings/NOT-HEX", nil, "Bearer ok")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
