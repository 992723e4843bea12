// Package classify serves the roast classifier page and JSON API
package classify

import (
	"errors"
	"net/http"
	"strings"

	"roast-api/internal/acquire"
	"roast-api/internal/classifier"
	"roast-api/internal/ctx"
	"roast-api/internal/metrics"
	"roast-api/internal/render"
	"roast-api/internal/shared"

	"github.com/labstack/echo/v4"
)

const pageTemplate = "page.html"

type ClassifyManager struct {
	Client *classifier.Client
}

func NewClassifyManager(client *classifier.Client) (*ClassifyManager, error) {
	if client == nil {
		return nil, errors.New("classify: nil classifier client")
	}
	return &ClassifyManager{Client: client}, nil
}

// Index renders the empty upload page.
func (m *ClassifyManager) Index(cc echo.Context) error {
	return cc.Render(http.StatusOK, pageTemplate, render.View{})
}

// ClassifyPage handles the upload form and renders the result page.
func (m *ClassifyManager) ClassifyPage(cc echo.Context) error {
	c := cc.(*ctx.Context)

	img, err := m.acquireMultipart(c)
	if err != nil {
		c.LogValues.AddError(err)
		if errors.Is(err, shared.ErrNoImage) {
			return c.Render(http.StatusBadRequest, pageTemplate, render.View{})
		}
		status, body := errorResponse(err)
		return c.Render(status, pageTemplate, render.View{Error: body.Error})
	}

	res, payload, err := m.classify(c, img)
	if err != nil {
		status, body := errorResponse(err)
		var f *classifier.Failure
		retryable := errors.As(err, &f) && f.Retryable()
		return c.Render(status, pageTemplate, render.View{
			Error:     body.Error,
			Reason:    body.Reason,
			Retryable: retryable,
		})
	}

	return c.Render(http.StatusOK, pageTemplate, render.NewView(res, payload, string(img.Source)))
}

// ClassifyAPI accepts either a multipart form or a raw image body and
// answers with JSON.
func (m *ClassifyManager) ClassifyAPI(cc echo.Context) error {
	c := cc.(*ctx.Context)

	var img *acquire.Image
	var err error
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		img, err = m.acquireMultipart(c)
	} else {
		img, err = acquire.FromBody(contentType, c.Request().Body)
	}
	if err != nil {
		c.LogValues.AddError(err)
		status, body := errorResponse(err)
		return c.JSON(status, body)
	}

	res, _, err := m.classify(c, img)
	if err != nil {
		status, body := errorResponse(err)
		return c.JSON(status, body)
	}
	return c.JSON(http.StatusOK, render.NewAPIResponse(res))
}

func (m *ClassifyManager) acquireMultipart(c *ctx.Context) (*acquire.Image, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.Join(shared.ErrInvalidForm, err)
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			c.Log.Warnw("Failed to remove multipart temp files", "error", err)
		}
	}()
	return acquire.FromMultipart(form)
}

// classify runs one prediction for img and records what happened on the
// request log values.
func (m *ClassifyManager) classify(c *ctx.Context, img *acquire.Image) (*classifier.Result, []byte, error) {
	c.LogValues.ImageSource = string(img.Source)
	c.LogValues.ImageFormat = img.Format
	metrics.ImageSources.WithLabelValues(string(img.Source)).Inc()

	client := m.Client.WithLogger(c.Log)

	payload, err := client.Encode(img.Image)
	if err != nil {
		err = &classifier.Failure{Reason: classifier.ReasonEncode, Err: err}
		metrics.PredictionCount.WithLabelValues(string(classifier.ReasonEncode)).Inc()
		c.LogValues.FailureReason = string(classifier.ReasonEncode)
		c.LogValues.AddError(err)
		return nil, nil, err
	}
	c.LogValues.PayloadBytes = len(payload)

	res, err := client.Predict(c.Request().Context(), payload)
	if err != nil {
		c.LogValues.FailureReason = string(classifier.ReasonOf(err))
		c.LogValues.AddError(err)
		return nil, nil, err
	}
	c.LogValues.TopLabel = res.Top.Label
	return res, payload, nil
}

// errorResponse maps an error to the status and body the user sees.
func errorResponse(err error) (int, shared.ErrorResponse) {
	var f *classifier.Failure
	if errors.As(err, &f) {
		switch {
		case f.Reason == classifier.ReasonEncode:
			return http.StatusInternalServerError, shared.ErrorResponse{Error: "failed to encode image", Reason: string(f.Reason)}
		case f.Timeout():
			return http.StatusGatewayTimeout, shared.ErrorResponse{Error: "classification service timed out", Reason: string(f.Reason)}
		default:
			return http.StatusBadGateway, shared.ErrorResponse{Error: f.Error(), Reason: string(f.Reason)}
		}
	}

	var rerr *shared.RequestError
	if errors.As(err, &rerr) {
		return rerr.StatusCode, shared.ErrorResponse{Error: rerr.Err.Error()}
	}
	return http.StatusInternalServerError, shared.ErrorResponse{Error: shared.ErrInternalServerError.Err.Error()}
}
