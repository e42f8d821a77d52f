package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/gorilla/websocket"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/transcript-workbench/internal/session"
	"github.com/airenas/transcript-workbench/internal/view"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SessionCookie keeps the UI session id
const SessionCookie = "tw_session"

// SessionManager provides UI sessions
type SessionManager interface {
	Get(ctx context.Context, id string) (*session.Controller, error)
	Save(ctx context.Context, c *session.Controller) error
}

// Data keeps data required for service work
type Data struct {
	Port      int
	Manager   SessionManager
	BodyLimit string
	Ctx       context.Context
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) (<-chan struct{}, error) {
	goapp.Log.Info().Msgf("Starting workbench service at %d", data.Port)
	if err := validate(data); err != nil {
		return nil, err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 5 * time.Minute
	e.Server.WriteTimeout = 5 * time.Minute

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	res := make(chan struct{}, 1)
	go func() {
		defer close(res)
		if err := gracehttp.Serve(e.Server); err != nil {
			goapp.Log.Error().Err(err).Msg("can't start web server")
		}
		goapp.Log.Info().Msg("exit http routine")
	}()
	return res, nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("workbench", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	if data.BodyLimit != "" {
		e.Use(middleware.BodyLimit(data.BodyLimit))
	}
	promMdlw.Use(e)

	e.GET("/", page(data))
	e.GET("/live", live(data))
	e.GET("/ui/state", withSession(data, state))
	e.GET("/ui/jobs", withSession(data, loadJobs))
	e.POST("/ui/jobs/:id/select", withSession(data, selectJob))
	e.POST("/ui/upload", withSession(data, upload))
	e.POST("/ui/quick", withSession(data, quick))
	e.POST("/ui/improve", withSession(data, improve))
	e.POST("/ui/sentences/:index", withSession(data, editSentence))
	e.POST("/ui/save", withSession(data, save))
	e.POST("/ui/manuscript", withSession(data, manuscript))
	e.GET("/ui/ws/record", record(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func validate(data *Data) error {
	if data.Manager == nil {
		return fmt.Errorf("no session manager")
	}
	if data.Ctx == nil {
		return fmt.Errorf("no context")
	}
	return nil
}

func page(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ctrl, err := getSession(c, data)
		if err != nil {
			return err
		}
		if err := ctrl.LoadJobs(c.Request().Context()); err != nil {
			goapp.Log.Warn().Err(err).Str("session", ctrl.ID()).Msg("load jobs")
		}
		res, err := view.Page(ctrl.State())
		if err != nil {
			goapp.Log.Error().Err(err).Msg("render page")
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.HTML(http.StatusOK, string(res))
	}
}

type sessionFunc func(echo.Context, *session.Controller) error

// withSession runs f on the caller's session and responds with the rendered panels.
// Operation errors are already shown inline in the panels, only *echo.HTTPError fails the request
func withSession(data *Data, f sessionFunc) func(echo.Context) error {
	return func(c echo.Context) error {
		ctrl, err := getSession(c, data)
		if err != nil {
			return err
		}
		if err := f(c, ctrl); err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				return he
			}
			goapp.Log.Warn().Err(err).Str("session", ctrl.ID()).Str("path", c.Path()).Send()
		}
		if c.Request().Method != http.MethodGet {
			if err := data.Manager.Save(c.Request().Context(), ctrl); err != nil {
				goapp.Log.Error().Err(err).Str("session", ctrl.ID()).Msg("save session")
			}
		}
		return writePanels(c, ctrl)
	}
}

func getSession(c echo.Context, data *Data) (*session.Controller, error) {
	id := ""
	if ck, err := c.Cookie(SessionCookie); err == nil {
		id = ck.Value
	}
	res, err := data.Manager.Get(c.Request().Context(), id)
	if err != nil {
		goapp.Log.Error().Err(err).Msg("get session")
		return nil, echo.NewHTTPError(http.StatusInternalServerError)
	}
	if res.ID() != id {
		c.SetCookie(&http.Cookie{Name: SessionCookie, Value: res.ID(), Path: "/", HttpOnly: true,
			SameSite: http.SameSiteLaxMode})
	}
	return res, nil
}

func writePanels(c echo.Context, ctrl *session.Controller) error {
	res, err := view.Render(ctrl.State())
	if err != nil {
		goapp.Log.Error().Err(err).Msg("render panels")
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, res)
}

func state(c echo.Context, ctrl *session.Controller) error {
	return nil
}

func loadJobs(c echo.Context, ctrl *session.Controller) error {
	return ctrl.LoadJobs(c.Request().Context())
}

func selectJob(c echo.Context, ctrl *session.Controller) error {
	if err := ctrl.SelectJob(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func upload(c echo.Context, ctrl *session.Controller) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no file")
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	_, err = ctrl.Upload(c.Request().Context(), fh.Filename, f, fh.Size)
	return err
}

func quick(c echo.Context, ctrl *session.Controller) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no file")
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return ctrl.TranscribeOnce(c.Request().Context(), fh.Filename, f, fh.Size)
}

func improve(c echo.Context, ctrl *session.Controller) error {
	return ctrl.Improve(c.Request().Context())
}

func editSentence(c echo.Context, ctrl *session.Controller) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "wrong index")
	}
	if err := ctrl.EditSentence(index, c.FormValue("text")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func save(c echo.Context, ctrl *session.Controller) error {
	if markup := c.FormValue("markup"); markup != "" {
		if err := ctrl.ReplaceSentences(markup); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return ctrl.Save(c.Request().Context())
}

func manuscript(c echo.Context, ctrl *session.Controller) error {
	return ctrl.GenerateManuscript(c.Request().Context(), c.FormValue("topic"))
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

func record(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ctrl, err := getSession(c, data)
		if err != nil {
			return err
		}
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		handleRecording(data.Ctx, ws, ctrl, data.Manager)
		return nil
	}
}
