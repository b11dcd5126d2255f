package swap

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"solswap/pkg/config"
)

// maxBodyBytes bounds the request body read by Handler.
const maxBodyBytes = 1 << 20

// Handler adapts an Executor to net/http. Settings are resolved from the
// source on every request.
type Handler struct {
	executor *Executor
	source   config.Source
	logger   *zap.Logger
}

// NewHandler creates a Handler serving executor.
func NewHandler(executor *Executor, source config.Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{executor: executor, source: source, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Method == http.MethodPost && r.Body != nil {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			h.logger.Warn("read request body", zap.Error(err))
			invalidJSON(err).Serialize(w)
			return
		}
		body = raw
	}

	resp := h.executor.Handle(r.Context(), h.source.Settings(), Invocation{
		Method: r.Method,
		Body:   body,
	})
	resp.Write(w)
}
