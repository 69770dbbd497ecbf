package ws

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/internal/presence"
	"github.com/rentalhub/rental-backend/internal/repository"
	"github.com/rentalhub/rental-backend/internal/room"
	"github.com/rentalhub/rental-backend/internal/service"
	"github.com/rentalhub/rental-backend/internal/testutil"
	"github.com/rentalhub/rental-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// fakeSession is a Session without a network connection
type fakeSession struct {
	id     string
	userID uint64
}

func (s *fakeSession) ID() string              { return s.id }
func (s *fakeSession) UserID() uint64          { return s.userID }
func (s *fakeSession) SetUserID(userID uint64) { s.userID = userID }

type DispatcherSuite struct {
	suite.Suite
	ctx        context.Context
	db         *gorm.DB
	tokens     *jwt.Manager
	registry   *presence.MemoryRegistry
	emitter    *testutil.RecordingEmitter
	dispatcher *Dispatcher

	tenant   *domain.User
	landlord *domain.User
	outsider *domain.User
	conv     *domain.Conversation
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewDB(s.T())
	s.tokens = jwt.NewManager("test-secret", 900)
	s.registry = presence.NewMemoryRegistry()
	s.emitter = testutil.NewRecordingEmitter()

	users := repository.NewUserRepository(s.db)
	convs := repository.NewConversationRepository(s.db)
	rooms := room.NewManager(convs, room.NewMemoryStore(), s.registry, s.emitter)
	chat := service.NewChatService(users, convs, repository.NewMessageRepository(s.db), rooms, 0)
	s.dispatcher = NewDispatcher(s.tokens, users, s.registry, rooms, chat)

	s.tenant = testutil.CreateUser(s.T(), s.db, "Amina", domain.RoleTenant)
	s.landlord = testutil.CreateUser(s.T(), s.db, "Baraka", domain.RoleLandlord)
	s.outsider = testutil.CreateUser(s.T(), s.db, "Chege", domain.RoleTenant)
	s.conv = testutil.CreateConversation(s.T(), s.db, s.tenant.ID, s.landlord.ID)
}

func (s *DispatcherSuite) frame(session *fakeSession, raw string) {
	s.dispatcher.HandleFrame(s.ctx, session, []byte(raw))
}

func (s *DispatcherSuite) login(user *domain.User, sessionID string) *fakeSession {
	session := &fakeSession{id: sessionID}
	token, err := s.tokens.GenerateAccessToken(user.ID, user.Role, user.FirstName)
	s.Require().NoError(err)

	s.dispatcher.HandleConnect(s.ctx, session)
	s.frame(session, `{"type":"authenticate","payload":{"token":"`+token+`"}}`)
	s.Require().Equal(user.ID, session.UserID())
	return session
}

func (s *DispatcherSuite) join(session *fakeSession) {
	s.frame(session, `{"type":"join_conversation","payload":{"conversation_id":`+id(s.conv.ID)+`}}`)
	s.Require().Len(s.emitter.Events(session.id, domain.EventJoinedConversation), 1)
}

func (s *DispatcherSuite) lastError(sessionID string) string {
	events := s.emitter.Events(sessionID, domain.EventError)
	s.Require().NotEmpty(events, "expected an error event")
	return events[len(events)-1].Payload.(domain.ErrorPayload).Message
}

func (s *DispatcherSuite) TestConnect() {
	session := &fakeSession{id: "sess-a"}
	s.dispatcher.HandleConnect(s.ctx, session)

	events := s.emitter.Events("sess-a", domain.EventConnected)
	s.Require().Len(events, 1)
	s.Equal("Connected to chat server", events[0].Payload.(domain.ConnectedPayload).Message)
}

func (s *DispatcherSuite) TestAuthenticate() {
	session := s.login(s.tenant, "sess-a")

	events := s.emitter.Events(session.id, domain.EventAuthenticated)
	s.Require().Len(events, 1)
	payload := events[0].Payload.(domain.AuthenticatedPayload)
	s.Equal(s.tenant.ID, payload.UserID)
	s.Equal("Amina", payload.User.FirstName)

	sid, ok := s.registry.Lookup(s.ctx, s.tenant.ID)
	s.True(ok)
	s.Equal("sess-a", sid)
}

func (s *DispatcherSuite) TestAuthenticate_Failures() {
	session := &fakeSession{id: "sess-x"}

	s.frame(session, `{"type":"authenticate","payload":{"token":"   "}}`)
	s.Equal("No token provided", s.lastError("sess-x"))

	s.frame(session, `{"type":"authenticate","payload":{"token":"garbage"}}`)
	s.Equal("Authentication failed", s.lastError("sess-x"))

	token, err := s.tokens.GenerateAccessToken(9999, domain.RoleTenant, "Ghost")
	s.Require().NoError(err)
	s.frame(session, `{"type":"authenticate","payload":{"token":"`+token+`"}}`)
	s.Equal("User not found", s.lastError("sess-x"))

	s.Zero(session.UserID())
	s.Empty(s.registry.List(s.ctx))
}

func (s *DispatcherSuite) TestFrameErrors() {
	session := &fakeSession{id: "sess-x"}

	s.frame(session, `{"type":"dance"}`)
	s.Equal("Invalid event", s.lastError("sess-x"))

	s.frame(session, `{"type":"send_message","payload":{"conversation_id":1}}`)
	s.Equal("Missing required fields", s.lastError("sess-x"))

	s.frame(session, `{"type":"join_conversation","payload":{"conversation_id":1}}`)
	s.Equal("Not authenticated", s.lastError("sess-x"))
}

func (s *DispatcherSuite) TestJoin_ConversationNotFound() {
	a := s.login(s.tenant, "sess-a")

	s.frame(a, `{"type":"join_conversation","payload":{"conversation_id":9999,"user_id":`+id(s.tenant.ID)+`}}`)

	s.Equal("Conversation not found", s.lastError("sess-a"))
	s.Empty(s.emitter.Events("sess-a", domain.EventJoinedConversation))
}

func (s *DispatcherSuite) TestJoin_AccessDenied() {
	s.login(s.tenant, "sess-a")
	s.login(s.landlord, "sess-b")
	c := s.login(s.outsider, "sess-c")

	s.frame(c, `{"type":"join_conversation","payload":{"conversation_id":`+id(s.conv.ID)+`,"user_id":`+id(s.outsider.ID)+`}}`)

	s.Equal("Access denied", s.lastError("sess-c"))
	s.Zero(s.emitter.CountType(domain.EventUserJoined))
}

func (s *DispatcherSuite) TestJoin_ClaimedUserMustMatch() {
	a := s.login(s.tenant, "sess-a")

	s.frame(a, `{"type":"join_conversation","payload":{"conversation_id":`+id(s.conv.ID)+`,"user_id":`+id(s.landlord.ID)+`}}`)
	s.Equal("Access denied", s.lastError("sess-a"))
}

func (s *DispatcherSuite) TestJoinAndLeave() {
	a := s.login(s.tenant, "sess-a")
	s.login(s.landlord, "sess-b")

	s.join(a)
	joined := s.emitter.Events("sess-a", domain.EventJoinedConversation)[0].Payload.(domain.JoinedConversationPayload)
	s.Equal("conversation_"+id(s.conv.ID), joined.Room)
	s.Len(s.emitter.Events("sess-b", domain.EventUserJoined), 1)

	s.frame(a, `{"type":"leave_conversation","payload":{"conversation_id":`+id(s.conv.ID)+`}}`)
	s.Len(s.emitter.Events("sess-a", domain.EventLeftConversation), 1)
	s.Len(s.emitter.Events("sess-b", domain.EventUserLeft), 1)
}

func (s *DispatcherSuite) TestSendMessage() {
	a := s.login(s.tenant, "sess-a")
	b := s.login(s.landlord, "sess-b")
	s.join(a)
	s.join(b)
	s.emitter.Reset()

	s.frame(a, `{"type":"send_message","payload":{"conversation_id":`+id(s.conv.ID)+`,"content":"hi"}}`)

	s.Len(s.emitter.Events("sess-a", domain.EventNewMessage), 1)
	s.Len(s.emitter.Events("sess-b", domain.EventNewMessage), 1)
	s.Len(s.emitter.Events("sess-b", domain.EventMessageNotification), 1)
	s.Empty(s.emitter.Events("sess-a", domain.EventError))
}

func (s *DispatcherSuite) TestSendMessage_Whitespace() {
	a := s.login(s.tenant, "sess-a")

	s.frame(a, `{"type":"send_message","payload":{"conversation_id":`+id(s.conv.ID)+`,"content":"   "}}`)
	s.Equal("message content is required", s.lastError("sess-a"))
}

func (s *DispatcherSuite) TestTyping() {
	a := s.login(s.tenant, "sess-a")
	s.login(s.landlord, "sess-b")

	s.frame(a, `{"type":"typing","payload":{"conversation_id":`+id(s.conv.ID)+`,"is_typing":true}}`)

	events := s.emitter.Events("sess-b", domain.EventUserTyping)
	s.Require().Len(events, 1)
	s.True(events[0].Payload.(domain.TypingPayload).IsTyping)
}

func (s *DispatcherSuite) TestMarkRead_UnreadBatch() {
	a := s.login(s.tenant, "sess-a")
	b := s.login(s.landlord, "sess-b")
	for i := 0; i < 3; i++ {
		s.frame(b, `{"type":"send_message","payload":{"conversation_id":`+id(s.conv.ID)+`,"content":"m`+strconv.Itoa(i)+`"}}`)
	}
	s.emitter.Reset()

	s.frame(a, `{"type":"mark_read","payload":{"conversation_id":`+id(s.conv.ID)+`}}`)

	marked := s.emitter.Events("sess-a", domain.EventMarkedRead)
	s.Require().Len(marked, 1)
	s.Equal(3, marked[0].Payload.(domain.MarkedReadPayload).Count)

	receipts := s.emitter.Events("sess-b", domain.EventMessagesRead)
	s.Require().Len(receipts, 1)
	s.Len(receipts[0].Payload.(domain.MessagesReadPayload).MessageIDs, 3)

	// A second call is confirmed with zero and tells nobody else
	s.frame(a, `{"type":"mark_read","payload":{"conversation_id":`+id(s.conv.ID)+`}}`)
	marked = s.emitter.Events("sess-a", domain.EventMarkedRead)
	s.Require().Len(marked, 2)
	s.Zero(marked[1].Payload.(domain.MarkedReadPayload).Count)
	s.Len(s.emitter.Events("sess-b", domain.EventMessagesRead), 1)
}

func (s *DispatcherSuite) TestOnlineUsers() {
	s.login(s.tenant, "sess-a")
	s.login(s.landlord, "sess-b")
	anon := &fakeSession{id: "sess-x"}

	s.frame(anon, `{"type":"get_online_users"}`)

	events := s.emitter.Events("sess-x", domain.EventOnlineUsers)
	s.Require().Len(events, 1)
	s.ElementsMatch([]uint64{s.tenant.ID, s.landlord.ID}, events[0].Payload.(domain.OnlineUsersPayload).UserIDs)
}

func (s *DispatcherSuite) TestDisconnect() {
	a := s.login(s.tenant, "sess-a")
	s.login(s.landlord, "sess-b")
	s.join(a)

	s.dispatcher.HandleDisconnect(s.ctx, a)

	_, ok := s.registry.Lookup(s.ctx, s.tenant.ID)
	s.False(ok)
	s.Len(s.emitter.Events("sess-b", domain.EventUserLeft), 1)
}

func (s *DispatcherSuite) TestReconnectKeepsNewestSession() {
	old := s.login(s.tenant, "sess-old")
	s.login(s.tenant, "sess-new")

	s.dispatcher.HandleDisconnect(s.ctx, old)

	sid, ok := s.registry.Lookup(s.ctx, s.tenant.ID)
	s.True(ok)
	s.Equal("sess-new", sid)
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func id(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func TestDispatcher_HeartbeatRenewsPresence(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry := presence.NewRedisRegistry(client, "test", time.Minute)
	users := repository.NewUserRepository(db)
	convs := repository.NewConversationRepository(db)
	rooms := room.NewManager(convs, room.NewRedisStore(client, "test"), registry, testutil.NewRecordingEmitter())
	chat := service.NewChatService(users, convs, repository.NewMessageRepository(db), rooms, 0)
	tokens := jwt.NewManager("test-secret", 900)
	dispatcher := NewDispatcher(tokens, users, registry, rooms, chat)

	tenant := testutil.CreateUser(t, db, "Amina", domain.RoleTenant)
	token, err := tokens.GenerateAccessToken(tenant.ID, tenant.Role, tenant.FirstName)
	require.NoError(t, err)

	anonymous := &fakeSession{id: "sess-anon"}
	dispatcher.HandleHeartbeat(ctx, anonymous)
	assert.Empty(t, registry.List(ctx))

	session := &fakeSession{id: "sess-a"}
	dispatcher.HandleFrame(ctx, session, []byte(`{"type":"authenticate","payload":{"token":"`+token+`"}}`))
	require.Equal(t, tenant.ID, session.UserID())

	for i := 0; i < 3; i++ {
		mr.FastForward(40 * time.Second)
		dispatcher.HandleHeartbeat(ctx, session)
	}
	sid, ok := registry.Lookup(ctx, tenant.ID)
	assert.True(t, ok, "pongs keep the lease alive past its ttl")
	assert.Equal(t, "sess-a", sid)

	mr.FastForward(70 * time.Second)
	_, ok = registry.Lookup(ctx, tenant.ID)
	assert.False(t, ok, "a silent session expires")
}
