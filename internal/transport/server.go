package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// peer - подключенный оркестратор.
type peer struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed bool
}

// Server - сторона страницы. Одновременно обслуживает одного собеседника:
// новое подключение вытесняет предыдущее.
type Server struct {
	handler Handler
	log     *zap.Logger

	mu   sync.Mutex
	peer *peer
	wg   sync.WaitGroup
}

func NewServer(handler Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{handler: handler, log: log.Named("transport")}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Не удалось открыть WebSocket", zap.Error(err))
		return
	}

	p := &peer{id: uuid.NewString(), conn: conn, send: make(chan []byte, 64)}

	s.mu.Lock()
	old := s.peer
	s.peer = p
	if old != nil {
		s.closePeerLocked(old)
	}
	s.mu.Unlock()

	s.log.Info("Оркестратор подключился", zap.String("peer_id", p.id))

	s.wg.Add(2)
	go s.writePump(p)
	go s.readPump(p)

	if s.handler != nil {
		s.handler.HandleState(StateConnected, nil)
	}
}

func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer != nil
}

// Send ставит сообщение в очередь отправки текущему собеседнику.
func (s *Server) Send(t MessageType, payload any) error {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil || s.peer.closed {
		return &ChannelError{Op: "отправка", Err: ErrNotConnected}
	}
	select {
	case s.peer.send <- raw:
		return nil
	default:
		return &ChannelError{Op: "отправка", Err: ErrSendBufferFull}
	}
}

// Close отключает собеседника и ждёт завершения горутин.
func (s *Server) Close() {
	s.mu.Lock()
	if s.peer != nil {
		s.closePeerLocked(s.peer)
		s.peer = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) closePeerLocked(p *peer) {
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
}

func (s *Server) drop(p *peer) {
	s.mu.Lock()
	current := s.peer == p
	if current {
		s.peer = nil
	}
	s.closePeerLocked(p)
	s.mu.Unlock()

	if current {
		s.log.Info("Оркестратор отключился", zap.String("peer_id", p.id))
		if s.handler != nil {
			s.handler.HandleState(StateDisconnected, nil)
		}
	}
}

func (s *Server) readPump(p *peer) {
	defer s.wg.Done()
	defer func() {
		s.drop(p)
		p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Ошибка чтения из канала", zap.Error(err))
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.log.Warn("Некорректное сообщение канала", zap.Error(err))
			continue
		}
		if s.handler != nil {
			s.handler.HandleMessage(env)
		}
	}
}

// writePump отправляет по одному сообщению на кадр: склейка кадров ломает JSON.
func (s *Server) writePump(p *peer) {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
