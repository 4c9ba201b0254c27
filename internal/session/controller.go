// Package session binds the directory, the registry and the message store to
// one signed-in user and derives the view a client renders.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/samber/lo"
)

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	default:
		return "unauthenticated"
	}
}

type Directory interface {
	EnsureSelf(ctx context.Context) (*models.UserRecord, error)
}

type Registry interface {
	EnsureConversationWith(ctx context.Context, selfID, otherEmail string) (*models.Conversation, error)
	SubscribeForUser(ctx context.Context, selfID string, onChange func([]*models.Conversation), onError func(error)) (cancel func())
}

type Messages interface {
	Append(ctx context.Context, conversationID, senderID, text string) (*models.Message, error)
	Subscribe(ctx context.Context, conversationID string, onChange func([]*models.Message), onError func(error)) (cancel func())
}

// Controller is the per-user state machine. All state is owned by the Run
// goroutine; the exported methods only enqueue events.
type Controller struct {
	dir      Directory
	registry Registry
	messages Messages
	renderer Renderer
	baseLog  *slog.Logger
	log      *slog.Logger
	inbox    *mailbox

	runCtx        context.Context
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	state         State
	identity      auth.Identity
	self          *models.UserRecord
	conversations []*models.Conversation
	rows          []*models.Message
	selectedID    string
	pendingSelect string
	draft         string
	busyNew       bool
	busySend      bool
	errText       string

	convCancel func()
	msgCancel  func()
	authGen    uint64
	msgGen     uint64
}

func NewController(dir Directory, registry Registry, messages Messages, renderer Renderer, log *slog.Logger) *Controller {
	log = log.With(slog.String(logging.ComponentField, "session"))
	return &Controller{
		dir:      dir,
		registry: registry,
		messages: messages,
		renderer: renderer,
		baseLog:  log,
		log:      log,
		inbox:    newMailbox(),
	}
}

// Run processes events until ctx is cancelled. Every live subscription is
// cancelled before it returns.
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	defer c.teardown()
	c.render()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.inbox.signal:
			for _, ev := range c.inbox.drain() {
				ev()
			}
			c.render()
		}
	}
}

func (c *Controller) SignIn(id auth.Identity) { c.inbox.post(func() { c.signIn(id) }) }
func (c *Controller) SignOut()                { c.inbox.post(c.signOut) }
func (c *Controller) Select(conversationID string) {
	c.inbox.post(func() { c.selectConversation(conversationID) })
}
func (c *Controller) StartChat(email string) { c.inbox.post(func() { c.startChat(email) }) }
func (c *Controller) Send(text string)       { c.inbox.post(func() { c.send(text) }) }
func (c *Controller) SetDraft(text string)   { c.inbox.post(func() { c.draft = text }) }

func (c *Controller) signIn(id auth.Identity) {
	if c.state != StateUnauthenticated {
		c.signOut()
	}
	c.state = StateAuthenticating
	c.identity = id
	c.authGen++
	c.sessionCtx, c.sessionCancel = context.WithCancel(auth.WithIdentity(c.runCtx, id))
	c.log = c.baseLog.With(slog.String(logging.UserIDField, id.ID))

	gen, ctx := c.authGen, c.sessionCtx
	go func() {
		self, err := c.dir.EnsureSelf(ctx)
		c.inbox.post(func() { c.selfEnsured(gen, self, err) })
	}()
}

// selfEnsured moves to Ready whether or not the directory write succeeded.
func (c *Controller) selfEnsured(gen uint64, self *models.UserRecord, err error) {
	if gen != c.authGen || c.state != StateAuthenticating {
		return
	}
	if err != nil {
		c.log.Warn("failed to ensure directory entry", slog.String(logging.ErrorMsgField, err.Error()))
	}
	c.self = self
	c.state = StateReady

	c.convCancel = c.registry.SubscribeForUser(c.sessionCtx, c.identity.ID,
		func(convs []*models.Conversation) {
			c.inbox.post(func() { c.conversationsChanged(gen, convs) })
		},
		func(err error) {
			c.inbox.post(func() { c.conversationsFailed(gen, err) })
		})

	if c.pendingSelect != "" {
		id := c.pendingSelect
		c.pendingSelect = ""
		c.selectConversation(id)
	}
}

func (c *Controller) conversationsChanged(gen uint64, convs []*models.Conversation) {
	if gen != c.authGen {
		return
	}
	c.conversations = convs
	if c.selectedID == "" && len(convs) > 0 {
		c.selectConversation(convs[0].ID)
	}
}

func (c *Controller) conversationsFailed(gen uint64, err error) {
	if gen != c.authGen {
		return
	}
	c.log.Warn("conversation subscription failed", slog.String(logging.ErrorMsgField, err.Error()))
	c.conversations = nil
}

// selectConversation replaces the message subscription. The previous one is
// cancelled first and its late updates are dropped by generation.
func (c *Controller) selectConversation(id string) {
	switch c.state {
	case StateUnauthenticated:
		return
	case StateAuthenticating:
		c.pendingSelect = id
		return
	}
	if id == "" || (id == c.selectedID && c.msgCancel != nil) {
		return
	}
	c.cancelMessages()
	c.msgGen++
	c.selectedID = id
	c.rows = nil

	gen := c.msgGen
	c.msgCancel = c.messages.Subscribe(c.sessionCtx, id,
		func(msgs []*models.Message) {
			c.inbox.post(func() { c.messagesChanged(gen, msgs) })
		},
		func(err error) {
			c.inbox.post(func() { c.messagesFailed(gen, err) })
		})
}

func (c *Controller) messagesChanged(gen uint64, msgs []*models.Message) {
	if gen != c.msgGen {
		return
	}
	c.rows = msgs
}

func (c *Controller) messagesFailed(gen uint64, err error) {
	if gen != c.msgGen {
		return
	}
	c.log.Warn("message subscription failed",
		slog.String(logging.ConversationIDField, c.selectedID),
		slog.String(logging.ErrorMsgField, err.Error()))
	c.rows = nil
	if apperrors.IsTerminal(err) {
		// The watch has ended; drop it so the conversation can be selected again.
		c.cancelMessages()
	}
}

func (c *Controller) startChat(email string) {
	if c.state != StateReady {
		c.errText = errorText(apperrors.ErrUnauthenticated)
		return
	}
	if c.busyNew {
		return
	}
	c.busyNew = true
	c.errText = ""

	gen, ctx, selfID := c.authGen, c.sessionCtx, c.identity.ID
	go func() {
		conv, err := c.registry.EnsureConversationWith(ctx, selfID, email)
		c.inbox.post(func() { c.chatStarted(gen, conv, err) })
	}()
}

func (c *Controller) chatStarted(gen uint64, conv *models.Conversation, err error) {
	if gen != c.authGen {
		return
	}
	c.busyNew = false
	if err != nil {
		c.errText = errorText(err)
		return
	}
	if _, found := lo.Find(c.conversations, func(existing *models.Conversation) bool {
		return existing.ID == conv.ID
	}); !found {
		c.conversations = append([]*models.Conversation{conv}, c.conversations...)
	}
	c.selectConversation(conv.ID)
}

func (c *Controller) send(text string) {
	if c.state != StateReady {
		c.errText = errorText(apperrors.ErrUnauthenticated)
		return
	}
	if c.selectedID == "" || c.busySend {
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	c.busySend = true
	c.errText = ""
	c.draft = ""

	gen, ctx, selfID, convID := c.authGen, c.sessionCtx, c.identity.ID, c.selectedID
	go func() {
		_, err := c.messages.Append(ctx, convID, selfID, text)
		c.inbox.post(func() { c.sent(gen, text, err) })
	}()
}

// sent restores the draft on failure so the user can resubmit.
func (c *Controller) sent(gen uint64, text string, err error) {
	if gen != c.authGen {
		return
	}
	c.busySend = false
	if err != nil {
		c.log.Warn("failed to send message", slog.String(logging.ErrorMsgField, err.Error()))
		c.draft = text
		c.errText = errorText(err)
	}
}

func (c *Controller) signOut() {
	c.teardown()
	c.authGen++
	c.state = StateUnauthenticated
	c.identity = auth.Identity{}
	c.self = nil
	c.conversations = nil
	c.rows = nil
	c.selectedID = ""
	c.pendingSelect = ""
	c.draft = ""
	c.busyNew = false
	c.busySend = false
	c.errText = ""
}

func (c *Controller) cancelMessages() {
	if c.msgCancel != nil {
		c.msgCancel()
		c.msgCancel = nil
	}
}

func (c *Controller) teardown() {
	c.cancelMessages()
	if c.convCancel != nil {
		c.convCancel()
		c.convCancel = nil
	}
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCancel = nil
	}
}

func (c *Controller) render() {
	if c.renderer != nil {
		c.renderer.Render(c.view())
	}
}

func (c *Controller) view() View {
	selfID := c.identity.ID
	v := View{
		State:         c.state.String(),
		Conversations: conversationRows(c.conversations, selfID, c.selectedID),
		SelectedID:    c.selectedID,
		Messages:      messageRows(c.rows, selfID),
		Draft:         c.draft,
		BusyNew:       c.busyNew,
		BusySend:      c.busySend,
		Err:           c.errText,
	}
	if c.state != StateUnauthenticated {
		info := models.MemberInfo{
			ID:          selfID,
			Email:       c.identity.Email,
			DisplayName: c.identity.DisplayName,
			PhotoURL:    c.identity.PhotoURL,
		}
		if c.self != nil {
			info = c.self.Info()
		}
		v.Self = &Peer{
			ID:        info.ID,
			Name:      lo.CoalesceOrEmpty(info.DisplayName, info.Email, unknownPeerName),
			Email:     info.Email,
			AvatarURL: info.PhotoURL,
		}
	}
	if conv, found := lo.Find(c.conversations, func(conv *models.Conversation) bool {
		return conv.ID == c.selectedID
	}); found {
		peer := peerOf(conv, selfID)
		v.Peer = &peer
	}
	return v
}

// errorText is the user-visible alert for a failed action.
func errorText(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "No user found with that email."
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return "You need to sign in first."
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return "You can't start a chat with yourself."
	case errors.Is(err, apperrors.ErrAuthorizationDenied):
		return "You don't have access to that conversation."
	default:
		return "Something went wrong. Please try again."
	}
}
