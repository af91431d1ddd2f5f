package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/storefront-api/internal/websocket"
)

// WSHandler обрабатывает WebSocket подключения живой ленты заказов
type WSHandler struct {
	hub            *websocket.Hub
	allowedOrigins []string
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(hub *websocket.Hub, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
	}
}

func (h *WSHandler) upgrader() gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Пустой Origin - не браузерный клиент (curl, мониторинг), разрешаем
			if origin == "" {
				return true
			}

			// Список разрешенных origin синхронизирован с CORS в main.go
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}

			log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
			return false
		},
	}
}

// HandleOrderFeed подключает администратора к ленте событий заказов.
// Маршрут защищен RequireAuth + AdminOnly, user_id уже в контексте.
func (h *WSHandler) HandleOrderFeed(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] error upgrading connection for user ID=%d: %v", userID, err)
		return
	}

	client := websocket.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
