package httpapi

import (
	"net/http"

	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// statusFor отображает вид ошибки ядра на HTTP-код.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidTransition:
		return http.StatusConflict
	case domain.KindNoAddress:
		return http.StatusUnprocessableEntity
	case domain.KindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError отдаёт клиенту вид и пользовательское сообщение. Детали хранилища уходят только в лог.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"component": "httpapi",
			"method":    r.Method,
			"path":      r.URL.Path,
		}).WithError(err).Error("request failed")
	}

	code := string(kind)
	if code == "" {
		code = "internal"
	}
	resp := errorResponse{Error: code, Message: domain.UserMessage(err)}
	if kind == domain.KindValidation {
		// текст валидации не содержит деталей хранилища
		resp.Detail = err.Error()
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{Error: string(domain.KindValidation), Message: msg})
}
