package handlers

import (
	"context"

	"github.com/airenas/go-app/pkg/goapp"
)

// Handler transforms a raw transcript text
type Handler interface {
	Process(context.Context, string) (string, error)
}

// ListHandler passes text through a list of handlers,
// a failing handler is skipped
type ListHandler struct {
	handlers []Handler
}

func NewListHandler() (*ListHandler, error) {
	res := &ListHandler{}
	return res, nil
}

func (sp *ListHandler) Process(ctx context.Context, data string) (string, error) {
	dataCopy := data
	for i, h := range sp.handlers {
		goapp.Log.Debug().Int("handler", i).Msg("Processing")
		if dataNew, err := h.Process(ctx, dataCopy); err != nil {
			goapp.Log.Error().Err(err).Int("handler", i).Msg("Can't process")
		} else {
			dataCopy = dataNew
		}
	}
	return dataCopy, nil
}

func (sp *ListHandler) Add(h Handler) {
	sp.handlers = append(sp.handlers, h)
}
