// Package echo holds the diagnostic modules mounted under /test.
package echo

import (
	"log/slog"
	"net/http"

	"endpointhub/internal/api"
	"endpointhub/internal/pipeline"
	"endpointhub/internal/registry"
)

const Prefix = "/test"

type echoResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// Modules returns the modules of the /test group.
func Modules() []registry.Module {
	return []registry.Module{
		registry.Func(registry.Descriptor{
			Name:        "Echo",
			Method:      http.MethodGet,
			Path:        "/echo?msg=hello",
			Category:    "Testing",
			Description: "Returns the msg query parameter unchanged.",
			Params: []registry.Param{
				{Name: "msg", Type: registry.ParamString, Required: true, Description: "Text to echo back"},
			},
		}, handleEcho),
	}
}

func handleEcho(w http.ResponseWriter, r *http.Request, logger *slog.Logger) error {
	msg := pipeline.ParamsFromContext(r.Context()).String("msg")
	logger.Debug("echo", "length", len(msg))
	api.WriteJSON(w, http.StatusOK, echoResponse{Status: "success", Msg: msg})
	return nil
}
