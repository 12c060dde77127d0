package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/chrismeller/mj/internal/model"
	"github.com/chrismeller/mj/internal/service/clients"
	echo "github.com/labstack/echo/v4"
)

// ClientService is the part of clients.Service the handlers use.
type ClientService interface {
	Create(ctx context.Context, fields model.Fields) (*model.Client, error)
	Get(ctx context.Context, id int64) (*model.Client, error)
	Search(ctx context.Context, email *string) ([]model.Client, error)
}

var _ ClientService = (*clients.Service)(nil)

func searchClientsHandler(svc ClientService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var email *string
		if c.QueryParams().Has("email") {
			v := c.QueryParam("email")
			email = &v
		}

		list, err := svc.Search(c.Request().Context(), email)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, list)
	}
}

func getClientHandler(svc ClientService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return clientNotFound(c)
		}

		client, err := svc.Get(c.Request().Context(), id)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		if client == nil {
			return clientNotFound(c)
		}
		return c.JSON(http.StatusOK, client)
	}
}

func createClientHandler(svc ClientService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body map[string]json.RawMessage
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil || body == nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		fields := make(model.Fields, len(body))
		for k, raw := range body {
			fields[k] = stringify(raw)
		}

		client, err := svc.Create(c.Request().Context(), fields)
		if err != nil {
			var verr *clients.ValidationError
			if errors.As(err, &verr) {
				return c.JSON(http.StatusBadRequest, map[string][]string{"validationErrors": verr.Messages})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, client)
	}
}

func clientNotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": "client not found"})
}

// stringify flattens one submitted JSON value to the string stored for it: strings as-is,
// null as "", everything else as its compact JSON text.
func stringify(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
