package ws

import (
	"context"
	"errors"
	"strings"

	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/internal/metrics"
	"github.com/rentalhub/rental-backend/internal/presence"
	"github.com/rentalhub/rental-backend/internal/repository"
	"github.com/rentalhub/rental-backend/internal/room"
	"github.com/rentalhub/rental-backend/internal/service"
	"github.com/rentalhub/rental-backend/pkg/jwt"
	"github.com/rentalhub/rental-backend/pkg/logger"
)

// Error messages sent in the error event
const (
	msgConnected            = "Connected to chat server"
	msgInvalidEvent         = "Invalid event"
	msgMissingFields        = "Missing required fields"
	msgNoToken              = "No token provided"
	msgAuthFailed           = "Authentication failed"
	msgUserNotFound         = "User not found"
	msgNotAuthenticated     = "Not authenticated"
	msgConversationNotFound = "Conversation not found"
	msgAccessDenied         = "Access denied"
	msgSendFailed           = "Failed to send message"
	msgRequestFailed        = "Request failed"
)

var errNotAuthenticated = errors.New("session not authenticated")

// TokenVerifier resolves a bearer token to its claims
type TokenVerifier interface {
	VerifyToken(tokenString string) (*jwt.Claims, error)
}

// Dispatcher routes decoded commands to the chat core and answers the
// initiating session.
type Dispatcher struct {
	decoder  *Decoder
	tokens   TokenVerifier
	users    repository.UserRepository
	registry presence.Registry
	rooms    *room.Manager
	chat     *service.ChatService
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	tokens TokenVerifier,
	users repository.UserRepository,
	registry presence.Registry,
	rooms *room.Manager,
	chat *service.ChatService,
) *Dispatcher {
	return &Dispatcher{
		decoder:  NewDecoder(),
		tokens:   tokens,
		users:    users,
		registry: registry,
		rooms:    rooms,
		chat:     chat,
	}
}

// HandleConnect greets a new session
func (d *Dispatcher) HandleConnect(ctx context.Context, session Session) {
	log := logger.WithSessionID(session.ID())
	log.Info().Msg("websocket connected")
	d.reply(ctx, session, domain.EventConnected, domain.ConnectedPayload{
		Message:   msgConnected,
		SessionID: session.ID(),
	})
}

// HandleHeartbeat renews the presence lease of an authenticated session
func (d *Dispatcher) HandleHeartbeat(ctx context.Context, session Session) {
	if session.UserID() == 0 {
		return
	}
	d.registry.Touch(ctx, session.ID())
}

// HandleDisconnect drops the session from presence and from every room
func (d *Dispatcher) HandleDisconnect(ctx context.Context, session Session) {
	userID := session.UserID()
	d.registry.Unregister(ctx, session.ID())
	d.rooms.LeaveAll(ctx, userID, session.ID())

	log := logger.WithSessionID(session.ID())
	log.Info().Uint64("user_id", userID).Msg("websocket disconnected")
}

// HandleFrame decodes one frame and runs the matching operation
func (d *Dispatcher) HandleFrame(ctx context.Context, session Session, data []byte) {
	cmd, err := d.decoder.Decode(data)
	if err != nil {
		log := logger.WithSessionID(session.ID())
		log.Debug().Err(err).Msg("rejected frame")
		if errors.Is(err, ErrMissingFields) {
			d.replyError(ctx, session, msgMissingFields)
		} else {
			d.replyError(ctx, session, msgInvalidEvent)
		}
		return
	}
	d.Dispatch(ctx, session, cmd)
}

// Dispatch runs a decoded command on behalf of session
func (d *Dispatcher) Dispatch(ctx context.Context, session Session, cmd Command) {
	switch c := cmd.(type) {
	case *AuthenticateCommand:
		d.authenticate(ctx, session, c)

	case *JoinConversationCommand:
		userID, err := d.actor(session, c.UserID)
		if err != nil {
			d.fail(ctx, session, err, msgRequestFailed)
			return
		}
		roomName, err := d.rooms.Join(ctx, c.ConversationID, userID, session.ID())
		if err != nil {
			d.fail(ctx, session, err, msgRequestFailed)
			return
		}
		d.reply(ctx, session, domain.EventJoinedConversation, domain.JoinedConversationPayload{
			ConversationID: c.ConversationID,
			Room:           roomName,
		})

	case *LeaveConversationCommand:
		userID, err := d.actor(session, c.UserID)
		if err != nil {
			d.fail(ctx, session, err, msgRequestFailed)
			return
		}
		if err := d.rooms.Leave(ctx, c.ConversationID, userID, session.ID()); err != nil {
			d.fail(ctx, session, err, msgRequestFailed)
			return
		}
		d.reply(ctx, session, domain.EventLeftConversation, domain.LeftConversationPayload{
			ConversationID: c.ConversationID,
		})

	case *SendMessageCommand:
		userID, err := d.actor(session, c.UserID)
		if err != nil {
			d.fail(ctx, session, err, msgSendFailed)
			return
		}
		if _, err := d.chat.SendMessage(ctx, c.ConversationID, userID, c.Content, metrics.ChannelRealtime); err != nil {
			d.fail(ctx, session, err, msgSendFailed)
		}

	case *TypingCommand:
		userID, err := d.actor(session, c.UserID)
		if err != nil {
			d.fail(ctx, session, err, msgRequestFailed)
			return
		}
		if err := d.chat.Typing(ctx, c.ConversationID, userID, c.IsTyping); err != nil {
			d.fail(ctx, session, err, msgRequestFailed)
		}

	case *MarkReadCommand:
		userID, err := d.actor(session, c.UserID)
		if err != nil {
			d.fail(ctx, session, err, msgRequestFailed)
			return
		}
		ids, err := d.chat.MarkRead(ctx, c.ConversationID, userID)
		if err != nil {
			d.fail(ctx, session, err, msgRequestFailed)
			return
		}
		d.reply(ctx, session, domain.EventMarkedRead, domain.MarkedReadPayload{
			ConversationID: c.ConversationID,
			Count:          len(ids),
		})

	case *GetOnlineUsersCommand:
		d.reply(ctx, session, domain.EventOnlineUsers, domain.OnlineUsersPayload{
			UserIDs: d.registry.List(ctx),
		})
	}
}

func (d *Dispatcher) authenticate(ctx context.Context, session Session, c *AuthenticateCommand) {
	log := logger.WithSessionID(session.ID())

	token := strings.TrimSpace(strings.TrimPrefix(c.Token, "Bearer "))
	if token == "" {
		d.replyError(ctx, session, msgNoToken)
		return
	}

	claims, err := d.tokens.VerifyToken(token)
	if err != nil {
		log.Warn().Err(err).Msg("websocket authentication failed")
		d.replyError(ctx, session, msgAuthFailed)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		log.Warn().Err(err).Msg("websocket authentication failed")
		d.replyError(ctx, session, msgAuthFailed)
		return
	}

	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		if common.IsUserNotFound(err) {
			d.replyError(ctx, session, msgUserNotFound)
		} else {
			log.Error().Err(err).Msg("user lookup failed")
			d.replyError(ctx, session, msgAuthFailed)
		}
		return
	}

	// A session changing identity leaves the rooms it joined as the old user
	if prev := session.UserID(); prev != 0 && prev != userID {
		d.rooms.LeaveAll(ctx, prev, session.ID())
	}

	session.SetUserID(userID)
	d.registry.Register(ctx, userID, session.ID())
	log.Info().Uint64("user_id", userID).Msg("websocket authenticated")

	d.reply(ctx, session, domain.EventAuthenticated, domain.AuthenticatedPayload{
		UserID: userID,
		User:   user,
	})
}

// actor returns the user a command acts as. A user_id in the payload must
// match the authenticated identity.
func (d *Dispatcher) actor(session Session, claimed uint64) (uint64, error) {
	userID := session.UserID()
	if userID == 0 {
		return 0, errNotAuthenticated
	}
	if claimed != 0 && claimed != userID {
		return 0, common.ErrAccessDenied
	}
	return userID, nil
}

func (d *Dispatcher) fail(ctx context.Context, session Session, err error, fallback string) {
	msg := errorMessage(err, fallback)
	if msg == fallback {
		log := logger.WithSessionID(session.ID())
		log.Error().Err(err).Msg("websocket command failed")
	}
	d.replyError(ctx, session, msg)
}

// errorMessage maps an error to the text of the error event
func errorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, errNotAuthenticated):
		return msgNotAuthenticated
	case common.IsUserNotFound(err):
		return msgUserNotFound
	case common.IsNotFound(err):
		return msgConversationNotFound
	case errors.Is(err, common.ErrAccessDenied):
		return msgAccessDenied
	case errors.Is(err, common.ErrValidation):
		return common.ValidationMessage(err)
	default:
		return fallback
	}
}

func (d *Dispatcher) reply(ctx context.Context, session Session, eventType string, payload interface{}) {
	d.rooms.SendToSession(ctx, session.ID(), domain.NewEvent(eventType, payload))
}

func (d *Dispatcher) replyError(ctx context.Context, session Session, message string) {
	d.reply(ctx, session, domain.EventError, domain.ErrorPayload{Message: message})
}
