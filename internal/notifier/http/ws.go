package http

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"golang.org/x/net/websocket"

	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/identsync"
	"github.com/retrade/authmesh/pkg/slogx"
)

// HandshakeTimeout bounds how long a client may take to send CONNECT.
const HandshakeTimeout = 10 * time.Second

// StompHandler serves STOMP 1.2 over WebSocket. The session is authenticated
// by the ACCESS token in the CONNECT frame and ends when that token expires.
type StompHandler struct {
	Access *authn.Verifier
	Cache  IdentityCache
}

func (h *StompHandler) Handler() http.Handler {
	return websocket.Server{
		// Browsers send Origin; the token in CONNECT is what authenticates.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.serve,
	}
}

func (h *StompHandler) serve(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	ctx := conn.Request().Context()
	log := slogx.FromContext(ctx)

	_ = conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	id, err := authn.StompHandshake(ctx, h.Access, conn)
	if err != nil {
		log.Info("stomp session rejected", "error", err)
		return
	}

	if _, err := h.Cache.Upsert(ctx, identsync.AccountIdentity{
		AccountID: id.Subject,
		Username:  id.Username,
		UpdatedAt: time.Now(),
	}); err != nil {
		log.Warn("seed identity cache", "account_id", id.Subject, "error", err)
	}

	// No frame is accepted past the token's expiry plus the verifier's
	// leeway; the client reconnects with a fresh ACCESS token.
	if !id.ExpiresAt.IsZero() {
		_ = conn.SetReadDeadline(id.ExpiresAt.Add(h.Access.Leeway()))
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	log.Info("stomp session opened", "account_id", id.Subject, "sid", id.SessionID)
	err = h.session(conn)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		log.Info("stomp session closed", "account_id", id.Subject)
	case isTimeout(err):
		log.Info("stomp session expired", "account_id", id.Subject)
	default:
		log.Warn("stomp session failed", "account_id", id.Subject, "error", err)
	}
}

// session answers frames until DISCONNECT or a read error. Subscriptions are
// tracked so UNSUBSCRIBE of an unknown id is reported.
func (h *StompHandler) session(rw io.ReadWriter) error {
	reader := frame.NewReader(rw)
	writer := frame.NewWriter(rw)
	subs := make(map[string]string)

	for {
		f, err := reader.Read()
		if err != nil {
			return err
		}
		if f == nil {
			continue
		}

		switch f.Command {
		case frame.SUBSCRIBE:
			subs[f.Header.Get(frame.Id)] = f.Header.Get(frame.Destination)
		case frame.UNSUBSCRIBE:
			subID := f.Header.Get(frame.Id)
			if _, ok := subs[subID]; !ok {
				return writer.Write(errorFrame("unknown subscription " + subID))
			}
			delete(subs, subID)
		case frame.DISCONNECT:
			if receipt := f.Header.Get(frame.Receipt); receipt != "" {
				return writer.Write(frame.New(frame.RECEIPT, frame.ReceiptId, receipt))
			}
			return nil
		case frame.SEND, frame.ACK, frame.NACK, frame.BEGIN, frame.COMMIT, frame.ABORT:
		default:
			return writer.Write(errorFrame("unexpected " + f.Command))
		}

		if receipt := f.Header.Get(frame.Receipt); receipt != "" {
			if err := writer.Write(frame.New(frame.RECEIPT, frame.ReceiptId, receipt)); err != nil {
				return err
			}
		}
	}
}

func errorFrame(msg string) *frame.Frame {
	f := frame.New(frame.ERROR, frame.Message, msg)
	f.Body = []byte(msg)
	return f
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
