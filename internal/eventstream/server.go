// Package eventstream serves the daemon's ingress: newline-delimited JSON
// signals on a unix socket. Each decoded signal is posted onto the dispatch
// loop, which keeps the notification core single-threaded. The package also
// tracks the UI observation state the registry consults when deciding
// whether an event is already on screen.
package eventstream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/commtray/commtrayd/internal/audio"
	"github.com/commtray/commtrayd/internal/contacts"
	"github.com/commtray/commtrayd/internal/dispatch"
	"github.com/commtray/commtrayd/internal/domain"
	"github.com/commtray/commtrayd/internal/logging"
	"github.com/commtray/commtrayd/internal/notifier"
	"github.com/commtray/commtrayd/internal/ports"
	"github.com/commtray/commtrayd/internal/telephony"
)

// maxLineBytes bounds one wire signal; MMS subjects and attachment lists
// stay far below this.
const maxLineBytes = 256 * 1024

// Signal kinds accepted on the wire.
const (
	kindEvent               = "event"
	kindClass0              = "class0"
	kindDismiss             = "dismiss"
	kindInboxObserved       = "inbox_observed"
	kindCallHistoryObserved = "call_history_observed"
	kindConversations       = "conversations"
	kindContactChanged      = "contact_changed"
	kindContactInfoChanged  = "contact_info_changed"
	kindChatName            = "chat_name"
	kindAccountRemoved      = "account_removed"
	kindMessageWaiting      = "mwi"
	kindModems              = "modems"
	kindCueFinished         = "cue_finished"
)

type wireContext struct {
	ChannelTargetID string          `json:"channel_target_id,omitempty"`
	ChatType        domain.ChatType `json:"chat_type,omitempty"`
	Details         string          `json:"details,omitempty"`
	ChatName        string          `json:"chat_name,omitempty"`
}

type wireConversation struct {
	Account  string          `json:"account"`
	Remote   string          `json:"remote"`
	ChatType domain.ChatType `json:"chat_type,omitempty"`
}

type wireContact struct {
	Account  string `json:"account,omitempty"`
	Remote   string `json:"remote"`
	Name     string `json:"name"`
	Resolved bool   `json:"resolved"`
}

// envelope is one wire signal. Only the fields for its kind are set.
type envelope struct {
	Kind string `json:"kind"`

	Event   *domain.Event `json:"event,omitempty"`
	Context wireContext   `json:"context,omitempty"`

	ID uint32 `json:"id,omitempty"`

	Observed      bool   `json:"observed,omitempty"`
	FilterAccount string `json:"filter_account,omitempty"`

	Conversations []wireConversation `json:"conversations,omitempty"`
	Contacts      []wireContact      `json:"contacts,omitempty"`

	Account    string             `json:"account,omitempty"`
	Target     string             `json:"target,omitempty"`
	Name       string             `json:"name,omitempty"`
	EventTypes []domain.EventType `json:"event_types,omitempty"`

	Modem   string   `json:"modem,omitempty"`
	Waiting bool     `json:"waiting,omitempty"`
	Count   int      `json:"count,omitempty"`
	Mailbox string   `json:"mailbox,omitempty"`
	Paths   []string `json:"paths,omitempty"`
}

// observedState tracks which views the UI reports as active. It is only
// touched from the dispatch loop.
type observedState struct {
	inboxObserved      bool
	inboxFilterAccount string
	conversations      []ports.Conversation
}

func (s *observedState) InboxObserved() bool        { return s.inboxObserved }
func (s *observedState) InboxFilterAccount() string { return s.inboxFilterAccount }
func (s *observedState) ObservedConversations() []ports.Conversation {
	return s.conversations
}

// Dismisser closes a published notification on the user's behalf.
type Dismisser interface {
	Dismiss(id uint32) error
}

// Server decodes wire signals and routes them to the core.
type Server struct {
	loop      *dispatch.Loop
	registry  *notifier.Registry
	watcher   *telephony.Watcher
	player    *audio.Player
	directory *contacts.Directory
	dismisser Dismisser
	observed  *observedState
	log       logging.Logger
}

// NewServer creates the ingress server. The returned ObservedState must be
// handed to the registry so both sides share one view of the UI state.
func NewServer(loop *dispatch.Loop, watcher *telephony.Watcher, player *audio.Player, directory *contacts.Directory, dismisser Dismisser, log logging.Logger) (*Server, ports.ObservedState) {
	observed := &observedState{}
	return &Server{
		loop:      loop,
		watcher:   watcher,
		player:    player,
		directory: directory,
		dismisser: dismisser,
		observed:  observed,
		log:       log.With("component", "eventstream"),
	}, observed
}

// SetRegistry wires the registry. Must be called before Serve; the
// registry itself needs the server's observed state at construction.
func (s *Server) SetRegistry(registry *notifier.Registry) {
	s.registry = registry
}

// Serve accepts connections until the context is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		go s.readConn(conn)
	}
}

func (s *Server) readConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			s.log.Warn("discarding malformed signal", "error", err)
			continue
		}
		s.dispatch(env)
	}
	if err := scanner.Err(); err != nil {
		s.log.Debug("connection read ended", "error", err)
	}
}

// dispatch posts the signal's handler onto the dispatch loop.
func (s *Server) dispatch(env envelope) {
	switch env.Kind {
	case kindEvent:
		if env.Event == nil {
			s.log.Warn("event signal without event payload")
			return
		}
		event := *env.Event
		ctx := showContext(env.Context)
		s.loop.Post(func() { s.registry.Show(event, ctx) })

	case kindClass0:
		if env.Event == nil {
			s.log.Warn("class0 signal without event payload")
			return
		}
		event := *env.Event
		s.loop.Post(func() { s.registry.ShowClass0(event) })

	case kindDismiss:
		id := env.ID
		s.loop.Post(func() {
			if err := s.dismisser.Dismiss(id); err != nil {
				s.log.Warn("dismiss failed", "id", id, "error", err)
			}
		})

	case kindInboxObserved:
		observed, filter := env.Observed, env.FilterAccount
		s.loop.Post(func() {
			s.observed.inboxObserved = observed
			s.observed.inboxFilterAccount = filter
			s.registry.OnInboxObserved()
		})

	case kindCallHistoryObserved:
		observed := env.Observed
		s.loop.Post(func() { s.registry.OnCallHistoryObserved(observed) })

	case kindConversations:
		conversations := make([]ports.Conversation, 0, len(env.Conversations))
		for _, conv := range env.Conversations {
			conversations = append(conversations, ports.Conversation{
				Recipient: domain.NewRecipient(conv.Account, conv.Remote),
				ChatType:  chatTypeOrDefault(conv.ChatType),
			})
		}
		s.loop.Post(func() {
			s.observed.conversations = conversations
			s.registry.OnObservedConversationsChanged(conversations)
		})

	case kindContactChanged, kindContactInfoChanged:
		resolutions := s.applyContacts(env.Contacts)
		info := env.Kind == kindContactInfoChanged
		s.loop.Post(func() {
			if info {
				s.registry.OnContactInfoChanged(resolutions)
			} else {
				s.registry.OnContactChanged(resolutions)
			}
		})

	case kindChatName:
		recipient := domain.NewRecipient(env.Account, env.Target)
		name := env.Name
		s.loop.Post(func() { s.registry.OnChatNameChanged(recipient, name) })

	case kindAccountRemoved:
		account, types := env.Account, env.EventTypes
		s.loop.Post(func() { s.registry.RemoveByAccount(account, types) })

	case kindMessageWaiting:
		state := ports.MessageWaitingState{
			ModemPath:     env.Modem,
			Waiting:       env.Waiting,
			MessageCount:  env.Count,
			MailboxNumber: env.Mailbox,
		}
		s.loop.Post(func() { s.watcher.OnMessageWaitingChanged(state) })

	case kindModems:
		paths := env.Paths
		s.loop.Post(func() { s.watcher.OnModemsChanged(paths) })

	case kindCueFinished:
		id := env.ID
		s.loop.Post(func() { s.player.OnEventFinished(id) })

	default:
		s.log.Warn("discarding signal of unknown kind", "kind", env.Kind)
	}
}

// applyContacts updates the contact directory and converts wire contacts
// into resolutions for the registry.
func (s *Server) applyContacts(wire []wireContact) []ports.Resolution {
	resolutions := make([]ports.Resolution, 0, len(wire))
	for _, c := range wire {
		if c.Resolved && c.Name != "" {
			if err := s.directory.Put(c.Account, c.Remote, c.Name); err != nil {
				s.log.Warn("failed to update contact directory", "remote", c.Remote, "error", err)
			}
		} else if !c.Resolved {
			if err := s.directory.Remove(c.Account, c.Remote); err != nil {
				s.log.Warn("failed to remove contact directory entry", "remote", c.Remote, "error", err)
			}
		}
		resolutions = append(resolutions, ports.Resolution{
			Recipient: domain.NewRecipient(c.Account, c.Remote),
			Name:      c.Name,
			Resolved:  c.Resolved,
		})
	}
	return resolutions
}

func showContext(ctx wireContext) notifier.ShowContext {
	return notifier.ShowContext{
		ChannelTargetID: ctx.ChannelTargetID,
		ChatType:        chatTypeOrDefault(ctx.ChatType),
		Details:         ctx.Details,
		ChatName:        ctx.ChatName,
	}
}

func chatTypeOrDefault(t domain.ChatType) domain.ChatType {
	if !t.IsValid() {
		return domain.ChatTypeP2P
	}
	return t
}
