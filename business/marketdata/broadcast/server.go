package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/cryptofeed/internal/apperror"
	"github.com/fd1az/cryptofeed/internal/logger"
)

const meterName = "github.com/fd1az/cryptofeed/business/marketdata/broadcast"

// welcomeMessage is the fixed greeting every client receives on accept.
const welcomeMessage = "connected to cryptofeed market data broadcast"

type welcomeEnvelope struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Server serves the downstream market-data WebSocket: one connection per
// client, each with its own cursor into the shared Bus.
type Server struct {
	bus *Bus
	log logger.LoggerInterface

	httpServer *http.Server

	connectedGauge metric.Int64UpDownCounter
	lagCounter     metric.Int64Counter
	framesSent     metric.Int64Counter
}

// NewServer builds a broadcast Server bound to addr, draining bus for every
// connected client.
func NewServer(addr string, bus *Bus, log logger.LoggerInterface) *Server {
	s := &Server{bus: bus, log: log}
	s.initMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/", s.handleWS)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) initMetrics() {
	meter := otel.Meter(meterName)
	s.connectedGauge, _ = meter.Int64UpDownCounter(
		"broadcast_connected_clients",
		metric.WithDescription("Number of currently connected broadcast clients"),
		metric.WithUnit("{client}"),
	)
	s.lagCounter, _ = meter.Int64Counter(
		"broadcast_lag_events_total",
		metric.WithDescription("Total lag notifications sent to slow consumers"),
		metric.WithUnit("{event}"),
	)
	s.framesSent, _ = meter.Int64Counter(
		"broadcast_frames_sent_total",
		metric.WithDescription("Total JSON text frames sent to broadcast clients"),
		metric.WithUnit("{frame}"),
	)
}

// ListenAndServe blocks serving the downstream WebSocket until ctx is
// cancelled or the server fails to start.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleWS is the serving loop per client: accept, send a welcome
// envelope, then spawn a writer task draining the bus and a reader task
// consuming incoming ping/close frames. Either task's exit terminates the
// other and closes the socket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	clientID := uuid.New().String()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if s.connectedGauge != nil {
		s.connectedGauge.Add(ctx, 1)
		defer s.connectedGauge.Add(ctx, -1)
	}

	welcome, _ := json.Marshal(welcomeEnvelope{
		Type:      "welcome",
		Message:   welcomeMessage,
		Timestamp: time.Now(),
	})
	if err := conn.Write(ctx, websocket.MessageText, welcome); err != nil {
		conn.Close(websocket.StatusInternalError, "welcome write failed")
		return
	}

	cursor := s.bus.NewConsumer()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		s.writeLoop(ctx, clientID, conn, cursor)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		s.readLoop(ctx, conn)
	}()

	wg.Wait()
	conn.Close(websocket.StatusNormalClosure, "server closing connection")
}

// writeLoop drains the client's cursor and serializes each event as a JSON
// text frame. A lag Item is not forwarded to the client as an event; it is
// only recorded in metrics and logged, matching the non-fatal broadcast-lag
// error class — disconnection is reserved for true socket failures.
func (s *Server) writeLoop(ctx context.Context, clientID string, conn *websocket.Conn, cursor *Cursor) {
	for {
		item, err := cursor.Next(ctx)
		if err != nil {
			return
		}
		if item.Skipped > 0 {
			if s.lagCounter != nil {
				s.lagCounter.Add(ctx, 1)
			}
			if s.log != nil {
				s.log.Warn(ctx, "broadcast: consumer lagging",
					"client", clientID, "skipped", item.Skipped,
					"error", apperror.New(apperror.CodeBroadcastLag,
						apperror.WithContext(clientID)).Error())
			}
			continue
		}

		payload, err := json.Marshal(toEnvelope(item.Event))
		if err != nil {
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			return
		}
		if s.framesSent != nil {
			s.framesSent.Add(ctx, 1)
		}
	}
}

// readLoop only exists to detect the client closing the connection or
// sending an unexpected frame; this service never accepts input on this
// socket beyond the transport's own ping/pong and close handling.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
