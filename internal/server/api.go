package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"hope/internal/pianobar"
)

// maxInfoBytes bounds request bodies; pianobar's info blocks are a few KiB.
const maxInfoBytes = 1 << 20

// API handles HTTP inspection endpoints.
type API struct {
	recorder *Recorder
	consumer Consumer
	logger   logrus.Ext1FieldLogger
}

// NewAPI creates a new API handler. Events submitted over HTTP go to
// consumer, the same one the socket server feeds.
func NewAPI(recorder *Recorder, consumer Consumer, logger logrus.Ext1FieldLogger) *API {
	return &API{
		recorder: recorder,
		consumer: consumer,
		logger:   logger.WithField("component", "http"),
	}
}

// Health reports liveness and how many events were recorded.
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status:   "ok",
		Received: a.recorder.Received(),
	})
}

// EventCmds lists the known eventcmds.
func (a *API) EventCmds(c *gin.Context) {
	c.JSON(http.StatusOK, EventCmdsResponse{EventCmds: pianobar.EventCmds()})
}

// Latest returns the most recent event of every eventcmd seen so far.
func (a *API) Latest(c *gin.Context) {
	latest := a.recorder.Latest()
	if len(latest) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no events received"})
		return
	}
	c.JSON(http.StatusOK, LatestResponse{Events: latest})
}

// LatestFor returns the most recent event for one eventcmd.
func (a *API) LatestFor(c *gin.Context) {
	cmd, err := pianobar.ParseEventCmd(c.Param("eventcmd"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	ev, ok := a.recorder.Last(cmd)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no " + cmd.String() + " events received"})
		return
	}
	c.JSON(http.StatusOK, ev)
}

// ParseInfo parses a text/plain info block and echoes the result.
func (a *API) ParseInfo(c *gin.Context) {
	info, err := pianobar.ReadInfo(http.MaxBytesReader(c.Writer, c.Request.Body, maxInfoBytes))
	if err != nil {
		c.JSON(infoErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Submit classifies the path's eventcmd, parses the body as info and hands
// the event to the consumer.
func (a *API) Submit(c *gin.Context) {
	cmd, err := pianobar.ParseEventCmd(c.Param("eventcmd"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	info, err := pianobar.ReadInfo(http.MaxBytesReader(c.Writer, c.Request.Body, maxInfoBytes))
	if err != nil {
		c.JSON(infoErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}

	a.logger.Debugf("Submitted %s eventcmd over HTTP", cmd)
	if err := a.consumer.Consume(c.Request.Context(), pianobar.NewEvent(cmd, info)); err != nil {
		a.logger.WithError(err).Error("Consumer failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{Status: "accepted", EventCmd: cmd})
}

func infoErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
