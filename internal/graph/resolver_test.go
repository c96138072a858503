package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"eventGraph/internal/graph/mocks"
	"eventGraph/internal/lib/auth"
	"eventGraph/internal/lib/jwt"
	"eventGraph/internal/lib/loader"
	"eventGraph/internal/lib/logger/handlers/slogdiscard"
	"eventGraph/internal/models"
	"eventGraph/internal/storage"

	"github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	eventDate = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	ann = models.User{ID: "u1", Email: "ann@example.com", Password: "hash", CreatedEvents: []string{"e1"}}
	bob = models.User{ID: "u2", Email: "bob@example.com", Password: "hash", CreatedEvents: []string{"e2"}}

	meetup = models.Event{ID: "e1", Title: "Meetup", Description: "x", Price: 10, Date: eventDate, Creator: "u1"}
	talk   = models.Event{ID: "e2", Title: "Talk", Description: "y", Price: 0, Date: eventDate, Creator: "u2"}
	lunch  = models.Event{ID: "e3", Title: "Lunch", Description: "z", Price: 5.5, Date: eventDate, Creator: "u1"}

	annIdentity = auth.Identity{IsAuth: true, UserID: "u1"}
	fastLoader  = loader.Config{Wait: time.Millisecond}
)

const testSecret = "secret"

func newTestSchema(t *testing.T, store *mocks.Storage) *graphql.Schema {
	t.Helper()

	return newSchemaWith(t, store, jwt.New(testSecret, time.Hour), Config{BcryptCost: bcrypt.MinCost})
}

func newSchemaWith(t *testing.T, store *mocks.Storage, tokens TokenIssuer, cfg Config) *graphql.Schema {
	t.Helper()

	schema, err := NewSchema(slogdiscard.NewDiscardLogger(), store, tokens, cfg)
	require.NoError(t, err)

	return schema
}

func execute(
	t *testing.T,
	store *mocks.Storage,
	id auth.Identity,
	cfg loader.Config,
	query string,
	vars map[string]interface{},
) *graphql.Response {
	t.Helper()

	schema := newTestSchema(t, store)

	ctx := auth.WithIdentity(context.Background(), id)
	ctx = WithLoaders(ctx, NewLoaders(ctx, store, cfg))

	return schema.Exec(ctx, query, "", vars)
}

func errorCodes(resp *graphql.Response) []string {
	var codes []string
	for _, err := range resp.Errors {
		code, _ := err.Extensions["code"].(string)
		codes = append(codes, code)
	}
	return codes
}

func requireNoErrors(t *testing.T, resp *graphql.Response) {
	t.Helper()

	for _, err := range resp.Errors {
		t.Errorf("unexpected graphql error: %v", err)
	}
	require.Empty(t, resp.Errors)
}

func TestEventsLoadSharedCreatorOnce(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("Events", mock.Anything).Return([]models.Event{meetup, lunch, meetup}, nil).Once()
	store.On("UsersByIDs", mock.Anything, []string{"u1"}).Return([]models.User{ann}, nil).Once()

	resp := execute(t, store, auth.Identity{}, fastLoader,
		`{ events { _id title price creator { email } } }`, nil)
	requireNoErrors(t, resp)

	assert.JSONEq(t, `{"events":[
		{"_id":"e1","title":"Meetup","price":10,"creator":{"email":"ann@example.com"}},
		{"_id":"e3","title":"Lunch","price":5.5,"creator":{"email":"ann@example.com"}},
		{"_id":"e1","title":"Meetup","price":10,"creator":{"email":"ann@example.com"}}
	]}`, string(resp.Data))

	store.AssertNumberOfCalls(t, "UsersByIDs", 1)
}

func TestEventsBatchDistinctCreators(t *testing.T) {
	t.Parallel()

	twoIDs := mock.MatchedBy(func(ids []string) bool {
		return len(ids) == 2 && ids[0] != ids[1]
	})

	store := mocks.NewStorage(t)
	store.On("Events", mock.Anything).Return([]models.Event{meetup, talk, lunch}, nil).Once()
	// store order differs from request order on purpose
	store.On("UsersByIDs", mock.Anything, twoIDs).Return([]models.User{bob, ann}, nil).Once()

	resp := execute(t, store, auth.Identity{}, loader.Config{Wait: time.Hour, MaxBatch: 2},
		`{ events { title creator { _id email } } }`, nil)
	requireNoErrors(t, resp)

	assert.JSONEq(t, `{"events":[
		{"title":"Meetup","creator":{"_id":"u1","email":"ann@example.com"}},
		{"title":"Talk","creator":{"_id":"u2","email":"bob@example.com"}},
		{"title":"Lunch","creator":{"_id":"u1","email":"ann@example.com"}}
	]}`, string(resp.Data))
}

func TestEventsBatchCreatorsBeyondParallelism(t *testing.T) {
	t.Parallel()

	const n = 40

	events := make([]models.Event, 0, n)
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		userID := fmt.Sprintf("u%d", i)
		events = append(events, models.Event{ID: fmt.Sprintf("e%d", i), Title: "t", Date: eventDate, Creator: userID})
		users = append(users, models.User{ID: userID, Email: userID + "@example.com"})
	}

	allIDs := mock.MatchedBy(func(ids []string) bool { return len(ids) == n })

	store := mocks.NewStorage(t)
	store.On("Events", mock.Anything).Return(events, nil).Once()
	store.On("UsersByIDs", mock.Anything, allIDs).Return(users, nil).Once()

	// parallelism below the list length is raised to the batch size
	schema := newSchemaWith(t, store, jwt.New(testSecret, time.Hour), Config{
		BcryptCost:     bcrypt.MinCost,
		MaxParallelism: 10,
		MaxBatch:       n,
	})

	ctx := context.Background()
	ctx = WithLoaders(ctx, NewLoaders(ctx, store, loader.Config{Wait: time.Second, MaxBatch: n}))

	resp := schema.Exec(ctx, `{ events { creator { email } } }`, "", nil)
	requireNoErrors(t, resp)

	var data struct {
		Events []struct {
			Creator struct {
				Email string `json:"email"`
			} `json:"creator"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.Events, n)
	assert.Equal(t, "u39@example.com", data.Events[n-1].Creator.Email)

	store.AssertNumberOfCalls(t, "UsersByIDs", 1)
}

func TestEventsCreatorBatchFailure(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("Events", mock.Anything).Return([]models.Event{meetup, talk}, nil).Once()
	store.On("UsersByIDs", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	resp := execute(t, store, auth.Identity{}, loader.Config{Wait: time.Hour, MaxBatch: 2},
		`{ events { title creator { email } } }`, nil)

	require.NotEmpty(t, resp.Errors)
	for _, err := range resp.Errors {
		assert.Equal(t, "internal error", err.Message)
	}
	for _, code := range errorCodes(resp) {
		assert.Equal(t, string(CodeInternal), code)
	}
}

func TestEventsNestedCreatedEventsUsePrimedEvents(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("Events", mock.Anything).Return([]models.Event{meetup}, nil).Once()
	store.On("UsersByIDs", mock.Anything, []string{"u1"}).Return([]models.User{ann}, nil).Once()

	resp := execute(t, store, auth.Identity{}, fastLoader,
		`{ events { title creator { email createdEvents { title date } } } }`, nil)
	requireNoErrors(t, resp)

	assert.JSONEq(t, `{"events":[{"title":"Meetup","creator":{
		"email":"ann@example.com",
		"createdEvents":[{"title":"Meetup","date":"2024-01-01T10:00:00.000Z"}]
	}}]}`, string(resp.Data))
}

func TestEventsStoreFailure(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("Events", mock.Anything).Return(nil, errors.New("timeout")).Once()

	resp := execute(t, store, auth.Identity{}, fastLoader, `{ events { title } }`, nil)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "internal error", resp.Errors[0].Message)
	assert.Equal(t, []string{string(CodeInternal)}, errorCodes(resp))
}

const createEventMutation = `
	mutation CreateEvent($title: String!, $desc: String!, $price: Float!, $date: String!) {
		createEvent(eventInput: {title: $title, description: $desc, price: $price, date: $date}) {
			_id
			id
			title
			price
			date
			creator { _id email }
		}
	}`

func createEventVars(price float64, date string) map[string]interface{} {
	return map[string]interface{}{
		"title": "Meetup",
		"desc":  "x",
		"price": price,
		"date":  date,
	}
}

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("SaveEvent", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.Title == "Meetup" && e.Description == "x" && e.Price == 10 &&
			e.Date.Equal(eventDate) && e.Creator == "u1"
	})).Return(meetup, nil).Once()
	store.On("UsersByIDs", mock.Anything, []string{"u1"}).Return([]models.User{ann}, nil).Once()

	resp := execute(t, store, annIdentity, fastLoader,
		createEventMutation, createEventVars(10, "2024-01-01T10:00:00.000Z"))
	requireNoErrors(t, resp)

	assert.JSONEq(t, `{"createEvent":{
		"_id":"e1","id":"e1","title":"Meetup","price":10,
		"date":"2024-01-01T10:00:00.000Z",
		"creator":{"_id":"u1","email":"ann@example.com"}
	}}`, string(resp.Data))
}

func TestCreateEventRejected(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		identity auth.Identity
		vars     map[string]interface{}
		code     Code
		message  string
	}{
		{
			name:     "Unauthenticated",
			identity: auth.Identity{},
			vars:     createEventVars(10, "2024-01-01T10:00:00.000Z"),
			code:     CodeUnauthenticated,
			message:  "unauthenticated",
		},
		{
			name:     "Negative price",
			identity: annIdentity,
			vars:     createEventVars(-1, "2024-01-01T10:00:00.000Z"),
			code:     CodeValidation,
			message:  "field Price must be at least 0",
		},
		{
			name:     "Bad date",
			identity: annIdentity,
			vars:     createEventVars(10, "tomorrow"),
			code:     CodeValidation,
			message:  "field Date is not a valid timestamp",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := mocks.NewStorage(t)

			resp := execute(t, store, tc.identity, fastLoader, createEventMutation, tc.vars)

			require.Len(t, resp.Errors, 1)
			assert.Equal(t, tc.message, resp.Errors[0].Message)
			assert.Equal(t, []string{string(tc.code)}, errorCodes(resp))
			store.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateEventUnknownCreator(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("SaveEvent", mock.Anything, mock.Anything).
		Return(models.Event{}, fmt.Errorf("storage.postgres.SaveEvent: %w", storage.ErrUserNotFound)).Once()

	resp := execute(t, store, annIdentity, fastLoader,
		createEventMutation, createEventVars(10, "2024-01-01T10:00:00Z"))

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "user not found", resp.Errors[0].Message)
	assert.Equal(t, []string{string(CodeNotFound)}, errorCodes(resp))
}

const createUserMutation = `
	mutation CreateUser($email: String!, $password: String!) {
		createUser(userInput: {email: $email, password: $password}) { _id email password }
	}`

func TestCreateUser(t *testing.T) {
	t.Parallel()

	hashed := mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")) == nil
	})

	store := mocks.NewStorage(t)
	store.On("UserByEmail", mock.Anything, "new@example.com").
		Return(models.User{}, fmt.Errorf("storage.redis.UserByEmail: %w", storage.ErrUserNotFound)).Once()
	store.On("SaveUser", mock.Anything, "new@example.com", hashed).
		Return(models.User{ID: "u9", Email: "new@example.com", Password: "hash"}, nil).Once()

	resp := execute(t, store, auth.Identity{}, fastLoader, createUserMutation,
		map[string]interface{}{"email": "new@example.com", "password": "pw"})
	requireNoErrors(t, resp)

	assert.JSONEq(t, `{"createUser":{"_id":"u9","email":"new@example.com","password":null}}`, string(resp.Data))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("UserByEmail", mock.Anything, "ann@example.com").Return(ann, nil).Once()

	resp := execute(t, store, auth.Identity{}, fastLoader, createUserMutation,
		map[string]interface{}{"email": "ann@example.com", "password": "pw"})

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "user exists already", resp.Errors[0].Message)
	assert.Equal(t, []string{string(CodeConflict)}, errorCodes(resp))
	store.AssertNotCalled(t, "SaveUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateUserInvalidEmail(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)

	resp := execute(t, store, auth.Identity{}, fastLoader, createUserMutation,
		map[string]interface{}{"email": "not-an-email", "password": "pw"})

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "field Email is not a valid email", resp.Errors[0].Message)
	assert.Equal(t, []string{string(CodeValidation)}, errorCodes(resp))
}

func TestBookingsRequireAuth(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)

	resp := execute(t, store, auth.Identity{}, fastLoader, `{ bookings { _id } }`, nil)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "unauthenticated", resp.Errors[0].Message)
	assert.Equal(t, []string{string(CodeUnauthenticated)}, errorCodes(resp))
	assert.JSONEq(t, `{"bookings":null}`, string(resp.Data))
}

func TestBookingsResolveNestedFieldsOnce(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	bookings := []models.Booking{
		{ID: "b1", User: "u1", Event: "e1", CreatedAt: created, UpdatedAt: created},
		{ID: "b2", User: "u1", Event: "e1", CreatedAt: created, UpdatedAt: created.Add(time.Second)},
	}

	store := mocks.NewStorage(t)
	store.On("Bookings", mock.Anything).Return(bookings, nil).Once()
	store.On("EventsByIDs", mock.Anything, []string{"e1"}).Return([]models.Event{meetup}, nil).Once()
	store.On("UsersByIDs", mock.Anything, []string{"u1"}).Return([]models.User{ann}, nil).Once()

	resp := execute(t, store, annIdentity, fastLoader,
		`{ bookings { _id createdAt updatedAt event { title } user { email } } }`, nil)
	requireNoErrors(t, resp)

	assert.JSONEq(t, `{"bookings":[
		{"_id":"b1","createdAt":"2024-02-01T09:00:00.000Z","updatedAt":"2024-02-01T09:00:00.000Z",
		 "event":{"title":"Meetup"},"user":{"email":"ann@example.com"}},
		{"_id":"b2","createdAt":"2024-02-01T09:00:00.000Z","updatedAt":"2024-02-01T09:00:01.000Z",
		 "event":{"title":"Meetup"},"user":{"email":"ann@example.com"}}
	]}`, string(resp.Data))
}

func TestBookEvent(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	store := mocks.NewStorage(t)
	store.On("EventsByIDs", mock.Anything, []string{"e1"}).Return([]models.Event{meetup}, nil).Once()
	store.On("SaveBooking", mock.Anything, "u1", "e1").
		Return(models.Booking{ID: "b1", User: "u1", Event: "e1", CreatedAt: created, UpdatedAt: created}, nil).Once()

	resp := execute(t, store, annIdentity, fastLoader,
		`mutation { bookEvent(eventId: "e1") { _id createdAt event { title } } }`, nil)
	requireNoErrors(t, resp)

	assert.JSONEq(t, `{"bookEvent":{"_id":"b1","createdAt":"2024-02-01T09:00:00.000Z","event":{"title":"Meetup"}}}`,
		string(resp.Data))
}

func TestBookEventUnknownEvent(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("EventsByIDs", mock.Anything, []string{"e404"}).Return([]models.Event{}, nil).Once()

	resp := execute(t, store, annIdentity, fastLoader,
		`mutation { bookEvent(eventId: "e404") { _id } }`, nil)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "event not found", resp.Errors[0].Message)
	assert.Equal(t, []string{string(CodeNotFound)}, errorCodes(resp))
	store.AssertNotCalled(t, "SaveBooking", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelBooking(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("Booking", mock.Anything, "b1").
		Return(models.Booking{ID: "b1", User: "u1", Event: "e1"}, nil).Once()
	store.On("EventsByIDs", mock.Anything, []string{"e1"}).Return([]models.Event{meetup}, nil).Once()
	store.On("DeleteBooking", mock.Anything, "b1").Return(nil).Once()

	resp := execute(t, store, annIdentity, fastLoader,
		`mutation { cancelBooking(bookingId: "b1") { _id title } }`, nil)
	requireNoErrors(t, resp)

	assert.JSONEq(t, `{"cancelBooking":{"_id":"e1","title":"Meetup"}}`, string(resp.Data))
}

func TestCancelBookingNotFound(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("Booking", mock.Anything, "b404").
		Return(models.Booking{}, fmt.Errorf("storage.postgres.Booking: %w", storage.ErrBookingNotFound)).Once()

	resp := execute(t, store, annIdentity, fastLoader,
		`mutation { cancelBooking(bookingId: "b404") { _id } }`, nil)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "booking not found", resp.Errors[0].Message)
	assert.Equal(t, []string{string(CodeNotFound)}, errorCodes(resp))
	store.AssertNotCalled(t, "DeleteBooking", mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{ID: "u1", Email: "ann@example.com", Password: string(hash)}

	const query = `query Login($email: String!, $password: String!) {
		login(email: $email, password: $password) { userId token tokenExpiration }
	}`

	t.Run("Success", func(t *testing.T) {
		t.Parallel()

		store := mocks.NewStorage(t)
		store.On("UserByEmail", mock.Anything, "ann@example.com").Return(user, nil).Once()

		resp := execute(t, store, auth.Identity{}, fastLoader, query,
			map[string]interface{}{"email": "ann@example.com", "password": "pw"})
		requireNoErrors(t, resp)

		var data struct {
			Login struct {
				UserID          string `json:"userId"`
				Token           string `json:"token"`
				TokenExpiration int    `json:"tokenExpiration"`
			} `json:"login"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &data))

		assert.Equal(t, "u1", data.Login.UserID)
		assert.Equal(t, 1, data.Login.TokenExpiration)

		userID, err := jwt.New(testSecret, time.Hour).Parse(data.Login.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", userID)
	})

	t.Run("Wrong password", func(t *testing.T) {
		t.Parallel()

		store := mocks.NewStorage(t)
		store.On("UserByEmail", mock.Anything, "ann@example.com").Return(user, nil).Once()

		resp := execute(t, store, auth.Identity{}, fastLoader, query,
			map[string]interface{}{"email": "ann@example.com", "password": "nope"})

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "password is incorrect", resp.Errors[0].Message)
		assert.Equal(t, []string{string(CodeUnauthenticated)}, errorCodes(resp))
	})

	t.Run("Short token lifetime", func(t *testing.T) {
		t.Parallel()

		store := mocks.NewStorage(t)
		store.On("UserByEmail", mock.Anything, "ann@example.com").Return(user, nil).Once()

		schema := newSchemaWith(t, store, jwt.New(testSecret, 30*time.Minute), Config{BcryptCost: bcrypt.MinCost})

		ctx := context.Background()
		ctx = WithLoaders(ctx, NewLoaders(ctx, store, fastLoader))

		resp := schema.Exec(ctx, query, "", map[string]interface{}{"email": "ann@example.com", "password": "pw"})
		requireNoErrors(t, resp)

		assert.JSONEq(t, `{"login":{"tokenExpiration":1}}`, string(trimLogin(t, resp.Data)))
	})

	t.Run("Unknown user", func(t *testing.T) {
		t.Parallel()

		store := mocks.NewStorage(t)
		store.On("UserByEmail", mock.Anything, "ghost@example.com").
			Return(models.User{}, storage.ErrUserNotFound).Once()

		resp := execute(t, store, auth.Identity{}, fastLoader, query,
			map[string]interface{}{"email": "ghost@example.com", "password": "pw"})

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "user does not exist", resp.Errors[0].Message)
	})
}

func TestResolversWithoutLoaders(t *testing.T) {
	t.Parallel()

	store := mocks.NewStorage(t)
	store.On("Events", mock.Anything).Return([]models.Event{meetup}, nil).Once()

	schema := newTestSchema(t, store)

	resp := schema.Exec(context.Background(), `{ events { creator { email } } }`, "", nil)

	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "internal error", resp.Errors[0].Message)
}

// trimLogin keeps only tokenExpiration so the random token does not matter.
func trimLogin(t *testing.T, data json.RawMessage) []byte {
	t.Helper()

	var full struct {
		Login struct {
			TokenExpiration int `json:"tokenExpiration"`
		} `json:"login"`
	}
	require.NoError(t, json.Unmarshal(data, &full))

	out, err := json.Marshal(full)
	require.NoError(t, err)

	return out
}
