package alerts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// botAPIServer fakes the Bot API: getMe authorizes the bot, sendMessage
// is delegated to the handler.
func botAPIServer(t *testing.T, onSend http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"crashwatch","username":"crashwatch_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			onSend(w, r)
		default:
			t.Errorf("unexpected bot api call %s", r.URL.Path)
		}
	}))
}

func TestTelegram_Notify(t *testing.T) {
	var gotPath, gotChatID, gotText string
	srv := botAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotChatID = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})
	defer srv.Close()

	tg := NewTelegram("123:abc", "-100", WithTelegramEndpoint(srv.URL+"/bot%s/%s"))
	require.NoError(t, tg.Notify(context.Background(), "crash risk 72%"))

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "-100", gotChatID)
	assert.Equal(t, "crash risk 72%", gotText)
}

func TestTelegram_Notify_ChannelUsername(t *testing.T) {
	var gotChatID string
	srv := botAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotChatID = r.FormValue("chat_id")
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})
	defer srv.Close()

	tg := NewTelegram("123:abc", "@crashwatch_alerts", WithTelegramEndpoint(srv.URL+"/bot%s/%s"))
	require.NoError(t, tg.Notify(context.Background(), "hello"))
	assert.Equal(t, "@crashwatch_alerts", gotChatID)
}

func TestTelegram_Notify_APIRejection(t *testing.T) {
	srv := botAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"bot was blocked"}`))
	})
	defer srv.Close()

	tg := NewTelegram("123:abc", "-100", WithTelegramEndpoint(srv.URL+"/bot%s/%s"))
	err := tg.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot was blocked")
}

func TestTelegram_Notify_AuthorizationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("bad-token", "-100", WithTelegramEndpoint(srv.URL+"/bot%s/%s"))
	err := tg.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorizing bot")
}

func TestTelegram_Notify_BadChatID(t *testing.T) {
	srv := botAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("sendMessage must not be reached with an unparsable chat id")
	})
	defer srv.Close()

	tg := NewTelegram("123:abc", "not-a-chat", WithTelegramEndpoint(srv.URL+"/bot%s/%s"))
	err := tg.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat id")
}
