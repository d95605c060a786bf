package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/feature/coins/transport/handler"
	"crypto_backend/internal/feature/coins/transport/http/dto"
)

var testCoins = []entity.Coin{
	{ID: 1182, Name: "BTC", FullName: "Bitcoin", ImageURL: "/media/btc.png", Symbol: "BTC", Price: 50000, SequenceIndex: 0},
	{ID: 7605, Name: "ETH", FullName: "Ethereum", ImageURL: "/media/eth.png", Symbol: "ETH", Price: 3000, SequenceIndex: 1},
}

const testItemsJSON = `[
	{"id":1182,"name":"BTC","full_name":"Bitcoin","image_url":"/media/btc.png","symbol":"BTC","price":50000,"sequence_index":0},
	{"id":7605,"name":"ETH","full_name":"Ethereum","image_url":"/media/eth.png","symbol":"ETH","price":3000,"sequence_index":1}
]`

func newListingRouter(r *handler.ListingRegistry) *gin.Engine {
	h := handler.NewListingHandler(r, nil)
	router := gin.New()
	router.POST("/listings", h.Create)
	router.GET("/listings/:id", h.Get)
	router.POST("/listings/:id/more", h.More)
	router.POST("/listings/:id/refresh", h.Refresh)
	router.POST("/listings/:id/retry", h.Retry)
	router.DELETE("/listings/:id", h.Delete)
	router.GET("/listings/:id/ws", h.Stream)
	return router
}

func serve(router http.Handler, method, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestListingHandler_Create(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		url            string
		expectedStatus int
		expectedSize   int
	}{
		{name: "success: explicit page size", url: "/listings?page_size=5", expectedStatus: http.StatusCreated, expectedSize: 5},
		{name: "success: default page size", url: "/listings", expectedStatus: http.StatusCreated, expectedSize: 0},
		{name: "error: non numeric page size", url: "/listings?page_size=abc", expectedStatus: http.StatusBadRequest},
		{name: "error: negative page size", url: "/listings?page_size=-1", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sizes []int
			r := handler.NewListingRegistry(func(pageSize int) handler.Listing {
				sizes = append(sizes, pageSize)
				return newMockListing()
			}, nil, nil)
			defer r.CloseAll()

			w := serve(newListingRouter(r), http.MethodPost, tt.url)
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus != http.StatusCreated {
				assert.Equal(t, 0, r.Len())
				return
			}
			var body dto.CreateListingResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			_, err := r.Get(body.ID)
			assert.NoError(t, err)
			assert.Equal(t, []int{tt.expectedSize}, sizes)
		})
	}
}

func TestListingHandler_CreateAfterShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := handler.NewListingRegistry(func(int) handler.Listing { return newMockListing() }, nil, nil)
	r.CloseAll()

	w := serve(newListingRouter(r), http.MethodPost, "/listings")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"listing registry closed"}`, w.Body.String())
}

func TestListingHandler_Actions(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		method         string
		path           string
		loadMoreErr    error
		unknownID      bool
		expectedStatus int
		expectedBody   string
		check          func(t *testing.T, l *mockListing)
	}{
		{
			name:           "success: snapshot",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"id":"%s","items":` + testItemsJSON + `,"network":{"kind":"error","message":"not connected"},"refresh":null}`,
		},
		{
			name:           "success: load more",
			method:         http.MethodPost,
			path:           "/more",
			expectedStatus: http.StatusAccepted,
			expectedBody:   `{"id":"%s","items":` + testItemsJSON + `,"network":{"kind":"error","message":"not connected"},"refresh":null}`,
		},
		{
			name:           "error: load more fails",
			method:         http.MethodPost,
			path:           "/more",
			loadMoreErr:    errors.New("disk I/O error"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"disk I/O error"}`,
		},
		{
			name:           "success: refresh defaults to feedback",
			method:         http.MethodPost,
			path:           "/refresh",
			expectedStatus: http.StatusAccepted,
			check: func(t *testing.T, l *mockListing) {
				assert.Equal(t, []bool{true}, l.RefreshCalls())
			},
		},
		{
			name:           "success: refresh without feedback",
			method:         http.MethodPost,
			path:           "/refresh?feedback=false",
			expectedStatus: http.StatusAccepted,
			check: func(t *testing.T, l *mockListing) {
				assert.Equal(t, []bool{false}, l.RefreshCalls())
			},
		},
		{
			name:           "error: refresh with invalid feedback",
			method:         http.MethodPost,
			path:           "/refresh?feedback=maybe",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"feedback must be a boolean"}`,
			check: func(t *testing.T, l *mockListing) {
				assert.Empty(t, l.RefreshCalls())
			},
		},
		{
			name:           "success: retry",
			method:         http.MethodPost,
			path:           "/retry",
			expectedStatus: http.StatusAccepted,
			check: func(t *testing.T, l *mockListing) {
				assert.Equal(t, 1, l.RetryCalls())
			},
		},
		{
			name:           "success: delete",
			method:         http.MethodDelete,
			expectedStatus: http.StatusNoContent,
			check: func(t *testing.T, l *mockListing) {
				assert.Equal(t, int32(1), l.closeCalls.Load())
			},
		},
		{
			name:           "error: unknown listing",
			method:         http.MethodGet,
			unknownID:      true,
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"listing not found"}`,
		},
		{
			name:           "error: delete unknown listing",
			method:         http.MethodDelete,
			unknownID:      true,
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"listing not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newMockListing()
			l.ItemsFunc = func() []entity.Coin { return testCoins }
			l.LoadMoreFunc = func(context.Context) error { return tt.loadMoreErr }
			l.network.Publish(entity.Failed("not connected"))

			r := handler.NewListingRegistry(func(int) handler.Listing { return l }, nil, nil)
			defer r.CloseAll()
			id, _, err := r.Open(0)
			require.NoError(t, err)
			if tt.unknownID {
				id = "00000000-0000-0000-0000-000000000000"
			}

			w := serve(newListingRouter(r), tt.method, "/listings/"+id+tt.path)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				expected := tt.expectedBody
				if strings.Contains(expected, "%s") {
					expected = strings.Replace(expected, "%s", id, 1)
				}
				assert.JSONEq(t, expected, w.Body.String())
			}
			if tt.check != nil {
				tt.check(t, l)
			}
		})
	}
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) dto.StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg dto.StreamMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == typ {
			return msg
		}
	}
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestListingHandler_Stream(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l := newMockListing()
	l.network.Publish(entity.Loading())
	r := handler.NewListingRegistry(func(int) handler.Listing { return l }, nil, nil)
	defer r.CloseAll()
	id, _, err := r.Open(0)
	require.NoError(t, err)

	srv := httptest.NewServer(newListingRouter(r))
	defer srv.Close()
	conn := dial(t, srv, "/listings/"+id+"/ws")

	msg := readUntil(t, conn, dto.MessageNetwork)
	require.NotNil(t, msg.Status)
	assert.Equal(t, "loading", msg.Status.Kind)

	l.refresh.Publish(entity.Failed("http 429"))
	msg = readUntil(t, conn, dto.MessageRefresh)
	require.NotNil(t, msg.Status)
	assert.Equal(t, "error", msg.Status.Kind)
	assert.Equal(t, "http 429", msg.Status.Message)

	l.items.Publish(testCoins)
	msg = readUntil(t, conn, dto.MessageItems)
	require.Len(t, msg.Items, 2)
	assert.Equal(t, "ETH", msg.Items[1].Name)

	// closing the listing ends the stream with a normal close frame
	require.NoError(t, r.Close(id))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestListingHandler_StreamUnknownListing(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := handler.NewListingRegistry(func(int) handler.Listing { return newMockListing() }, nil, nil)
	w := serve(newListingRouter(r), http.MethodGet, "/listings/missing/ws")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
