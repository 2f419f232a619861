package authn

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-stomp/stomp/v3/frame"
)

// ErrNotConnectFrame is returned when a STOMP session does not open with
// CONNECT or STOMP.
var ErrNotConnectFrame = errors.New("authn: first STOMP frame must be CONNECT")

// StompHandshake reads the opening frame from rw, authenticates it and
// answers CONNECTED or ERROR. On error the caller closes the connection.
func StompHandshake(ctx context.Context, v *Verifier, rw io.ReadWriter) (Identity, error) {
	reader := frame.NewReader(rw)
	writer := frame.NewWriter(rw)

	var f *frame.Frame
	for f == nil {
		var err error
		// A nil frame is a heart-beat.
		if f, err = reader.Read(); err != nil {
			return Identity{}, fmt.Errorf("authn: read STOMP frame: %w", err)
		}
	}

	if f.Command != frame.CONNECT && f.Command != frame.STOMP {
		_ = writer.Write(stompError())
		return Identity{}, ErrNotConnectFrame
	}

	id, err := v.Authenticate(ctx, StompSource(f))
	if err != nil {
		_ = writer.Write(stompError())
		return Identity{}, err
	}

	connected := frame.New(frame.CONNECTED,
		frame.Version, "1.2",
		frame.HeartBeat, "0,0",
		"user-name", id.Username,
	)
	if err := writer.Write(connected); err != nil {
		return Identity{}, fmt.Errorf("authn: write CONNECTED: %w", err)
	}
	return id, nil
}

func stompError() *frame.Frame {
	f := frame.New(frame.ERROR, frame.Message, "unauthorized")
	f.Body = []byte("unauthorized")
	return f
}
