package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// sonicSerializer swaps Echo's encoding/json serializer for sonic.
type sonicSerializer struct {
	api sonic.API
}

func newSonicSerializer() *sonicSerializer {
	return &sonicSerializer{api: sonic.ConfigStd}
}

func (s *sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := s.api.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (s *sonicSerializer) Deserialize(c echo.Context, i any) error {
	err := s.api.NewDecoder(c.Request().Body).Decode(i)
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("malformed JSON: %v", err)).SetInternal(err)
}
