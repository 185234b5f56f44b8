package types

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
	// Redirect is the client route the SPA should navigate to, set on auth and not-found errors.
	Redirect string `json:"redirect,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

// Client routes used as redirect targets.
const (
	RouteAuth      = "/auth"
	RouteHome      = "/"
	RouteTutorials = "/tutorials"
)
