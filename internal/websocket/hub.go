package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/yourusername/storefront-api/internal/domain/entity"
)

// OrderEvent — сообщение живой ленты заказов админ-панели.
type OrderEvent struct {
	Event     string        `json:"event"`
	Timestamp string        `json:"timestamp"`
	Order     *entity.Order `json:"order"`
}

// Hub держит активные подключения админ-ленты и рассылает события заказов.
// Реализует service.OrderNotifier.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run обрабатывает регистрацию клиентов и рассылку. Запускается одной
// горутиной из main.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("[WebSocket] admin feed connected: user ID=%d conn=%s (total %d)",
				client.UserID, client.ConnectionID, len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[WebSocket] admin feed disconnected: conn=%s (total %d)",
					client.ConnectionID, len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Медленный клиент: буфер переполнен, отключаем
					delete(h.clients, client)
					close(client.send)
					log.Printf("[WebSocket] dropping slow client conn=%s", client.ConnectionID)
				}
			}
		}
	}
}

// Register добавляет подключение в ленту.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// NotifyOrderEvent рассылает событие заказа всем подключенным администраторам.
// Вызывается из сервисного слоя синхронно; рассылка не блокирует вызывающего.
func (h *Hub) NotifyOrderEvent(event string, order *entity.Order) {
	payload, err := json.Marshal(OrderEvent{
		Event:     event,
		Timestamp: time.Now().Format(time.RFC3339),
		Order:     order,
	})
	if err != nil {
		log.Printf("[WebSocket] failed to marshal order event: %v", err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		log.Printf("[WebSocket] broadcast buffer full, dropping event %q for order #%d", event, order.ID)
	}
}
