package devserver

import (
	"context"

	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	ID       string
	Name     string
	JoinCode string
	Reply    chan *Room
}

type GetRoom struct {
	ID    string
	Reply chan *Room
}

// ResolveCode looks a room up by its join code.
type ResolveCode struct {
	Code  string
	Reply chan *Room
}

type RemoveRoom struct{ ID string }

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (ResolveCode) isHubMsg() {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub is the registry actor for live rooms, keyed by session id.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*Room
	byCode map[string]*Room
	log    *zap.SugaredLogger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.SugaredLogger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*Room),
		byCode: make(map[string]*Room),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if r := h.rooms[msg.ID]; r != nil {
					msg.Reply <- r
					break
				}
				r := NewRoom(h.ctx, msg.ID, msg.Name, msg.JoinCode, h.log)
				h.rooms[msg.ID] = r
				h.byCode[msg.JoinCode] = r
				msg.Reply <- r

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // May be nil

			case ResolveCode:
				msg.Reply <- h.byCode[msg.Code]

			case RemoveRoom:
				if r := h.rooms[msg.ID]; r != nil {
					r.Inbox() <- Shutdown{}
				}
				delete(h.rooms, msg.ID)

			case ShutdownHub:
				for _, r := range h.rooms {
					r.Inbox() <- Shutdown{}
				}
				clear(h.rooms)
				clear(h.byCode)
				h.cancel()
			}
		}
	}
}
