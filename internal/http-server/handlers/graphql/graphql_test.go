package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventGraph/internal/http-server/handlers/graphql/mocks"
	"eventGraph/internal/lib/logger/handlers/slogdiscard"

	"github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGraphQLHandler(t *testing.T) {
	t.Parallel()

	logger := slogdiscard.NewDiscardLogger()

	testCases := []struct {
		name           string
		body           string
		mockSetup      func(m *mocks.Executor)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "Success",
			body: `{"query":"{ events { title } }"}`,
			mockSetup: func(m *mocks.Executor) {
				m.On("Exec", mock.Anything, "{ events { title } }", "", map[string]interface{}(nil)).
					Return(&graphql.Response{Data: json.RawMessage(`{"events":[{"title":"Meetup"}]}`)}).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"data":{"events":[{"title":"Meetup"}]}}`,
		},
		{
			name: "Operation name and variables are passed through",
			body: `{"query":"mutation B($id: ID!) { bookEvent(eventId: $id) { _id } }","operationName":"B","variables":{"id":"e1"}}`,
			mockSetup: func(m *mocks.Executor) {
				m.On("Exec", mock.Anything,
					"mutation B($id: ID!) { bookEvent(eventId: $id) { _id } }",
					"B",
					map[string]interface{}{"id": "e1"},
				).Return(&graphql.Response{Data: json.RawMessage(`{"bookEvent":{"_id":"b1"}}`)}).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"data":{"bookEvent":{"_id":"b1"}}}`,
		},
		{
			name: "Resolver errors keep status 200",
			body: `{"query":"{ bookings { _id } }"}`,
			mockSetup: func(m *mocks.Executor) {
				m.On("Exec", mock.Anything, "{ bookings { _id } }", "", map[string]interface{}(nil)).
					Return(&graphql.Response{
						Data: json.RawMessage(`{"bookings":null}`),
						Errors: []*gqlerrors.QueryError{{
							Message:    "unauthenticated",
							Path:       []interface{}{"bookings"},
							Extensions: map[string]interface{}{"code": "UNAUTHENTICATED"},
						}},
					}).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{
				"data":{"bookings":null},
				"errors":[{"message":"unauthenticated","path":["bookings"],"extensions":{"code":"UNAUTHENTICATED"}}]
			}`,
		},
		{
			name:           "Empty body",
			body:           "",
			mockSetup:      func(m *mocks.Executor) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"empty request"}`,
		},
		{
			name:           "Malformed JSON",
			body:           `{"query":`,
			mockSetup:      func(m *mocks.Executor) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"failed to decode request"}`,
		},
		{
			name:           "Missing query",
			body:           `{"operationName":"Q"}`,
			mockSetup:      func(m *mocks.Executor) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"field Query is a required field"}`,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			executor := mocks.NewExecutor(t)
			tc.mockSetup(executor)

			handler := New(logger, executor)

			req, err := http.NewRequest(http.MethodPost, "/graphql", bytes.NewReader([]byte(tc.body)))
			require.NoError(t, err)

			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code, "Status code mismatch")
			assert.JSONEq(t, tc.expectedBody, rr.Body.String(), "Response body mismatch")
		})
	}
}

type ctxKey struct{}

func TestGraphQLHandlerPassesRequestContext(t *testing.T) {
	t.Parallel()

	executor := mocks.NewExecutor(t)
	executor.On("Exec",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx.Value(ctxKey{}) == "marker" }),
		"{ events { _id } }", "", map[string]interface{}(nil),
	).Return(&graphql.Response{Data: json.RawMessage(`{"events":[]}`)}).Once()

	handler := New(slogdiscard.NewDiscardLogger(), executor)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader([]byte(`{"query":"{ events { _id } }"}`)))
	req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "marker"))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"events":[]}}`, rr.Body.String())
}
