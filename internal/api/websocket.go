package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"exchange-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTopics are the bus events streamed to websocket clients.
var wsTopics = []events.Event{
	events.EventForexTick,
	events.EventStockTick,
	events.EventOrderPartiallyFilled,
	events.EventOrderFilled,
	events.EventBetSettled,
}

type wsMessage struct {
	Event   events.Event `json:"event"`
	Payload any          `json:"payload"`
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	merged := make(chan wsMessage, 256)
	done := make(chan struct{})
	defer close(done)

	for _, topic := range wsTopics {
		stream, unsub := s.Bus.Subscribe(topic, 100)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for payload := range stream {
				select {
				case merged <- wsMessage{Event: topic, Payload: payload}:
				case <-done:
					return
				default:
					// drop if the client is slow; keep the bus drained
				}
			}
		}(topic, stream)
	}

	for msg := range merged {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
