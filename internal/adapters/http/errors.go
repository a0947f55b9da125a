package http

import "github.com/gofiber/fiber/v2"

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// ValidationIssue is one entry of a 422 response on the /soil endpoint.
// The shape matches what existing map clients already parse.
type ValidationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// errUnprocessable returns a 422 {"detail": [...]} response.
func errUnprocessable(c *fiber.Ctx, issues []ValidationIssue) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": issues})
}

// errBadGateway returns a 502 {"detail": "..."} response.
func errBadGateway(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"detail": detail})
}
