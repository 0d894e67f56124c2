package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sastik/logserver/internal/broadcast"
	"github.com/sastik/logserver/internal/logging"
	"github.com/sastik/logserver/internal/record"
)

const wsReadTimeout = 90 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // CORS is enforced at the HTTP layer; the control protocol has no session state to steal
}

// controlMessage is a subscriber-originated message on the ws/logs wire
// protocol (spec.md §4.7).
type controlMessage struct {
	Action  string            `json:"action"`
	Filters map[string]string `json:"filters"`
}

func filterFromControl(cm controlMessage) record.Filter {
	return record.Filter{
		CorrelationID: cm.Filters["correlation_id"],
		APIName:       cm.Filters["api_name"],
		ServiceName:   cm.Filters["service_name"],
		LogLevel:      cm.Filters["log_level"],
		SessionID:     cm.Filters["session_id"],
		HasError:      cm.Filters["has_error"],
	}
}

// handleWSLogs streams live records (optionally filtered) plus the stats
// heartbeat to one subscriber.
func (s *Server) handleWSLogs(w http.ResponseWriter, r *http.Request) {
	s.serveSubscriber(w, r, record.Filter{})
}

// handleWSLiveStats streams only the stats heartbeat, which bypasses the
// predicate entirely — the sentinel filter below just guarantees no
// individual record ever matches for this connection.
func (s *Server) handleWSLiveStats(w http.ResponseWriter, r *http.Request) {
	s.serveSubscriber(w, r, record.Filter{CorrelationID: "__stats_only__"})
}

func (s *Server) serveSubscriber(w http.ResponseWriter, r *http.Request, initial record.Filter) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.KVErr(err))
		return
	}
	defer conn.Close()

	writeMtx := make(chan struct{}, 1)
	writeMtx <- struct{}{}

	sink := func(msg broadcast.Message) error {
		<-writeMtx
		defer func() { writeMtx <- struct{}{} }()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(msg)
	}

	id := s.bcast.Subscribe(sink, initial)
	defer s.bcast.Unsubscribe(id)

	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		var cm controlMessage
		if err := conn.ReadJSON(&cm); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read error", logging.KVErr(err))
			}
			return
		}

		switch cm.Action {
		case "subscribe":
			s.bcast.SetFilter(id, filterFromControl(cm))
		case "unsubscribe":
			s.bcast.ClearFilter(id)
		case "ping":
			<-writeMtx
			err := conn.WriteJSON(map[string]string{"type": "pong"})
			writeMtx <- struct{}{}
			if err != nil {
				return
			}
		case "request_stats":
			s.bcast.RequestStats(id)
		}
	}
}
