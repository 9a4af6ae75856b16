package wsgateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/notify"
)

const writeTimeout = 10 * time.Second

var (
	channelGlob   = notify.ChannelFor("*")
	channelPrefix = notify.ChannelFor("")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway bridges Redis Pub/Sub session-event channels to a Hub of
// websocket clients. Run subscribes once per process; ServeHTTP is mounted
// per dashboard websocket endpoint.
type Gateway struct {
	redis  *redis.Client
	hub    *Hub
	logger *logging.Logger
}

// New builds a Gateway over an already-configured Redis client.
func New(client *redis.Client, logger *logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{redis: client, hub: NewHub(), logger: logger}
}

// Run subscribes to every tenant's event channel and forwards each message
// to that tenant's websocket room until ctx is cancelled. Intended to run
// as a single long-lived goroutine for the process's lifetime.
func (g *Gateway) Run(ctx context.Context) error {
	pubsub := g.redis.PSubscribe(ctx, channelGlob)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			tenantID := strings.TrimPrefix(msg.Channel, channelPrefix)
			g.hub.Broadcast(tenantID, []byte(msg.Payload))
		}
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection under the tenant id carried on the X-Tenant-ID header,
// matching the header internal/httpapi reads it from.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		http.Error(w, "X-Tenant-ID header required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{tenantID: tenantID, send: make(chan []byte, clientSendBuffer)}
	g.hub.Register(client)

	go g.writePump(conn, client)
	g.readPump(conn, client)
}

// readPump blocks until the client disconnects; dashboard clients never
// send application messages, so anything read is discarded.
func (g *Gateway) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		g.hub.Unregister(client)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) writePump(conn *websocket.Conn, client *Client) {
	defer conn.Close()
	for message := range client.send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, []byte{})
}
