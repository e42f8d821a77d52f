package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/transcript-workbench/internal/api"
	"github.com/airenas/transcript-workbench/internal/session"
	"github.com/gorilla/websocket"
)

type data struct {
	t   int
	msg []byte
}

// WsConn is the part of a websocket connection used by the recording loop
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
}

// handleRecording reads the recording protocol until the connection closes:
// a START_RECORDING text event (plain or JSON with format), binary audio chunks,
// a STOP_RECORDING text event. On stop the audio is uploaded as a new job.
// A capture left unfinished is dropped
func handleRecording(ctx context.Context, conn WsConn, ctrl *session.Controller, saver SessionManager) {
	readCh := readWebSocket(ctx, conn)
	defer ctrl.CancelRecording()
	for {
		var d data
		var ok bool
		select {
		case <-ctx.Done():
			goapp.Log.Info().Msg("context canceled")
			return
		case d, ok = <-readCh:
			if !ok {
				goapp.Log.Info().Msg("channel closed")
				return
			}
		}
		res := processRecording(ctx, ctrl, &d)
		if res == nil {
			continue
		}
		if err := saver.Save(ctx, ctrl); err != nil {
			goapp.Log.Error().Err(err).Str("session", ctrl.ID()).Msg("save session")
		}
		if err := conn.WriteJSON(res); err != nil {
			goapp.Log.Error().Err(err).Msg("write error")
			return
		}
	}
}

// processRecording handles one frame, returns a reply or nil
func processRecording(ctx context.Context, ctrl *session.Controller, d *data) *api.EventMsg {
	if d.t == websocket.BinaryMessage {
		if err := ctrl.AddAudio(d.msg); err != nil {
			return &api.EventMsg{Event: api.EventError, Error: err.Error()}
		}
		return nil
	}
	if d.t != websocket.TextMessage {
		return nil
	}
	goapp.Log.Debug().Str("msg", string(d.msg)).Send()
	ev, err := decodeEvent(d.msg)
	if err != nil {
		return &api.EventMsg{Event: api.EventError, Error: err.Error()}
	}
	switch ev.Event {
	case api.EventStartRecording:
		if err := ctrl.StartRecording(ev.Format); err != nil {
			return &api.EventMsg{Event: api.EventError, Error: err.Error()}
		}
		return &api.EventMsg{Event: api.EventRecording}
	case api.EventStopRecording:
		id, err := ctrl.StopRecording(ctx)
		if err != nil {
			return &api.EventMsg{Event: api.EventError, Error: err.Error()}
		}
		return &api.EventMsg{Event: api.EventUploaded, TranscriptID: id}
	}
	return &api.EventMsg{Event: api.EventError, Error: fmt.Sprintf("unknown event '%s'", ev.Event)}
}

func decodeEvent(msg []byte) (*api.EventMsg, error) {
	s := strings.TrimSpace(string(msg))
	if !strings.HasPrefix(s, "{") {
		return &api.EventMsg{Event: s}, nil
	}
	res := &api.EventMsg{}
	if err := json.Unmarshal([]byte(s), res); err != nil {
		return nil, fmt.Errorf("can't decode event: %w", err)
	}
	return res, nil
}

func readWebSocket(ctx context.Context, in WsConn) <-chan data {
	resCh := make(chan data)
	go func() {
		defer close(resCh)
		defer goapp.Log.Debug().Msg("read routine ended")
		for {
			mType, message, err := in.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure,
					websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
					goapp.Log.Info().Msg("connection closed")
					return
				}
				goapp.Log.Error().Err(err).Send()
				return
			}
			msg := data{t: mType, msg: message}

			select {
			case resCh <- msg:
			case <-ctx.Done():
				return
			case <-time.After(time.Minute):
				goapp.Log.Warn().Msg("reader stalled")
				return
			}
		}
	}()
	return resCh
}
