package commands

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"keeper/internal/models"
	"keeper/internal/observability"
)

type ActorResolver interface {
	Resolve(ctx context.Context, token string) (models.User, error)
}

type MessageHandler interface {
	SendMessage(ctx context.Context, actor models.User, roomID int64, content *string, replyToID *int64) (*models.Message, error)
	EditMessage(ctx context.Context, actor models.User, messageID int64, content string) error
	DeleteMessage(ctx context.Context, actor models.User, messageID int64) error
	TogglePin(ctx context.Context, actor models.User, messageID int64) (models.MessageView, error)
	ToggleReaction(ctx context.Context, actor models.User, messageID int64, emoji string) (models.MessageView, error)
	MarkSeen(ctx context.Context, actor models.User, roomID, lastMessageID int64) error
}

// Router resolves the actor of each command and hands it to the message engine.
type Router struct {
	actors   ActorResolver
	messages MessageHandler
	tracer   trace.Tracer
	log      *zap.Logger
}

func NewRouter(actors ActorResolver, messages MessageHandler, log *zap.Logger) *Router {
	return &Router{
		actors:   actors,
		messages: messages,
		tracer:   otel.Tracer("keeper/commands"),
		log:      log,
	}
}

// HandleDelivery processes one queue delivery. Failures are logged and counted, never returned,
// so the consumer acks every message.
func (r *Router) HandleDelivery(ctx context.Context, routingKey string, payload []byte) {
	cmd, err := Decode(routingKey, payload)
	if err != nil {
		action := string(ActionFromRoutingKey(routingKey))
		if errors.Is(err, ErrUnknownAction) {
			r.log.Warn("ignoring unknown command", zap.String("routing_key", routingKey))
			observability.IncCommand(action, "unknown")
			return
		}
		r.log.Error("malformed command", zap.String("routing_key", routingKey), zap.Error(err))
		observability.IncCommand(action, "invalid")
		return
	}

	if err := r.Dispatch(ctx, cmd); err != nil {
		r.log.Error("command failed", zap.String("action", string(cmd.Action())), zap.Error(err))
		observability.IncCommand(string(cmd.Action()), "failed")
		return
	}
	observability.IncCommand(string(cmd.Action()), "ok")
}

// Dispatch runs a decoded command on behalf of the user behind its token.
func (r *Router) Dispatch(ctx context.Context, cmd Command) (err error) {
	ctx, span := r.tracer.Start(ctx, "command."+string(cmd.Action()),
		trace.WithAttributes(attribute.String("command.action", string(cmd.Action()))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	actor, err := r.actors.Resolve(ctx, cmd.token())
	if err != nil {
		return fmt.Errorf("resolve actor: %w", err)
	}
	span.SetAttributes(attribute.String("command.actor", actor.Username))

	switch c := cmd.(type) {
	case NewMessage:
		_, err = r.messages.SendMessage(ctx, actor, c.RoomID, c.Content, c.ReplyToID)
	case EditMessage:
		err = r.messages.EditMessage(ctx, actor, c.MessageID, c.Content)
	case DeleteMessage:
		err = r.messages.DeleteMessage(ctx, actor, c.MessageID)
	case TogglePin:
		_, err = r.messages.TogglePin(ctx, actor, c.MessageID)
	case ToggleReaction:
		_, err = r.messages.ToggleReaction(ctx, actor, c.MessageID, c.Emoji)
	case MarkSeen:
		err = r.messages.MarkSeen(ctx, actor, c.RoomID, c.LastMessageID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action())
	}
	return err
}
