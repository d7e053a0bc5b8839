package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"leadlag/internal/domain"
)

// DefaultStreamURL is the Binance combined stream endpoint.
const DefaultStreamURL = "wss://stream.binance.com:9443/stream"

// KlineUpdate is one live candle update for a symbol. Closed marks the
// final update for that minute; open candles keep mutating until then.
type KlineUpdate struct {
	Symbol string
	Candle domain.Candle
	Closed bool
}

// StreamConfig configures kline stream behavior.
type StreamConfig struct {
	// URL is the combined stream endpoint.
	URL string
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages. The server pings
	// every few minutes, so reads never stall on a healthy connection.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
	// OnReconnect is called after each successful reconnect. May be nil.
	OnReconnect func()
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:               DefaultStreamURL,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       3 * time.Minute,
		WriteTimeout:      10 * time.Second,
	}
}

// KlineStream consumes 1-minute kline updates for a fixed symbol set
// over a single combined websocket connection, reconnecting with
// exponential backoff on failure.
type KlineStream struct {
	config  StreamConfig
	symbols []string
	logger  zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	updates chan KlineUpdate
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewKlineStream creates a stream for the given symbols and connects.
// Symbol order does not matter; duplicates are ignored by the server.
func NewKlineStream(ctx context.Context, symbols []string, config *StreamConfig, logger zerolog.Logger) (*KlineStream, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to stream")
	}

	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &KlineStream{
		config:  cfg,
		symbols: symbols,
		logger:  logger.With().Str("component", "kline_stream").Logger(),
		updates: make(chan KlineUpdate, 1024),
		done:    make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

// Updates returns the channel of live candle updates. The channel is
// closed when the stream shuts down.
func (s *KlineStream) Updates() <-chan KlineUpdate {
	return s.updates
}

// Close shuts the stream down and closes the updates channel.
func (s *KlineStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.updates)
	return nil
}

// streamURL builds the combined stream URL with one kline_1m stream per
// symbol. Stream names are lowercase.
func (s *KlineStream) streamURL() string {
	names := make([]string, len(s.symbols))
	for i, symbol := range s.symbols {
		names[i] = strings.ToLower(symbol) + "@kline_" + klineInterval
	}
	return s.config.URL + "?streams=" + strings.Join(names, "/")
}

func (s *KlineStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	// Binance pings first; answering keeps the connection open.
	conn.SetPingHandler(func(appData string) error {
		s.connMu.Lock()
		defer s.connMu.Unlock()
		if s.conn == nil {
			return nil
		}
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		return s.conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	s.conn = conn
	return nil
}

// readLoop reads messages and dispatches updates, reconnecting with
// exponential backoff on connection errors.
func (s *KlineStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.waitOrDone(reconnectDelay) {
				return
			}
			reconnectDelay = s.nextDelay(reconnectDelay)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := s.connect(ctx)
			cancel()
			if err != nil {
				s.logger.Warn().Err(err).Msg("reconnect failed")
				continue
			}
			s.logger.Info().Msg("reconnected")
			if s.config.OnReconnect != nil {
				s.config.OnReconnect()
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Warn().Err(err).Msg("read failed, reconnecting")

			s.connMu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()
			continue
		}

		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

func (s *KlineStream) waitOrDone(d time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(d):
		return true
	}
}

func (s *KlineStream) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > s.config.MaxReconnectDelay {
		d = s.config.MaxReconnectDelay
	}
	return d
}

// handleMessage parses one combined-stream payload and forwards it.
// Malformed payloads are logged and dropped.
func (s *KlineStream) handleMessage(message []byte) {
	var envelope struct {
		Stream string `json:"stream"`
		Data   struct {
			Symbol string `json:"s"`
			Kline  struct {
				OpenTime int64  `json:"t"`
				Open     string `json:"o"`
				High     string `json:"h"`
				Low      string `json:"l"`
				Close    string `json:"c"`
				Volume   string `json:"v"`
				Closed   bool   `json:"x"`
			} `json:"k"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("unparseable stream payload")
		return
	}
	if envelope.Data.Symbol == "" {
		return
	}

	k := envelope.Data.Kline
	candle := domain.Candle{OpenTime: k.OpenTime}
	fields := []struct {
		raw string
		dst *float64
	}{
		{k.Open, &candle.Open},
		{k.High, &candle.High},
		{k.Low, &candle.Low},
		{k.Close, &candle.Close},
		{k.Volume, &candle.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			s.logger.Warn().Str("symbol", envelope.Data.Symbol).Err(err).Msg("bad kline field")
			return
		}
		*f.dst = v
	}

	select {
	case s.updates <- KlineUpdate{Symbol: envelope.Data.Symbol, Candle: candle, Closed: k.Closed}:
	case <-s.done:
	}
}
