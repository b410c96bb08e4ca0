package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	DocURL     string
}

const docBase = "https://shiny.posit.co/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Initialization Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryInit,
		Message:  "Client already started",
		Detail:   "Start was called more than once on the same client.",
		DocURL:   docBase + "E100",
	},
	"E101": {
		Category:   CategoryInit,
		Message:    "Initialization failed",
		Detail:     "The client could not complete its startup sequence.",
		Suggestion: "Check the server URL and that the application is running",
		DocURL:     docBase + "E101",
	},
	"E102": {
		Category: CategoryInit,
		Message:  "Initial input values could not be read",
		Detail:   "One or more bound inputs failed to report a value during startup.",
		DocURL:   docBase + "E102",
	},

	// ============================================
	// Protocol Errors (E200-E209)
	// ============================================

	"E200": {
		Category: CategoryProtocol,
		Message:  "Malformed message",
		Detail:   "A message from the server could not be decoded and was skipped.",
		DocURL:   docBase + "E200",
	},
	"E201": {
		Category: CategoryProtocol,
		Message:  "Unknown message type",
		Detail:   "The server sent a message type this client does not understand. It was skipped.",
		DocURL:   docBase + "E201",
	},
	"E202": {
		Category:   CategoryProtocol,
		Message:    "Protocol version mismatch",
		Detail:     "The server speaks an incompatible protocol version.",
		Suggestion: "Upgrade the client to match the server",
		DocURL:     docBase + "E202",
	},

	// ============================================
	// Transport Errors (E210-E229)
	// ============================================

	"E210": {
		Category: CategoryTransport,
		Message:  "Connection failed",
		Detail:   "The connection to the server could not be established.",
		DocURL:   docBase + "E210",
	},
	"E211": {
		Category:   CategoryTransport,
		Message:    "Reconnection attempts exhausted",
		Suggestion: "Reload the page to start a new session",
		DocURL:     docBase + "E211",
	},
	"E212": {
		Category: CategoryTransport,
		Message:  "Session closed by server",
		DocURL:   docBase + "E212",
	},

	// ============================================
	// Dependency Errors (E300-E319)
	// ============================================

	"E300": {
		Category: CategoryDependency,
		Message:  "Dependency load failed",
		Detail:   "A script or stylesheet required by rendered content could not be loaded. It will be retried the next time it is requested.",
		DocURL:   docBase + "E300",
	},
	"E301": {
		Category: CategoryDependency,
		Message:  "Dependency version conflict",
		Detail:   "A dependency was requested at a different version than the one already loaded. The loaded version is kept.",
		DocURL:   docBase + "E301",
	},
	"E302": {
		Category: CategoryDependency,
		Message:  "Unsupported resource URL",
		Detail:   "No fetcher is registered for the resource URL scheme.",
		DocURL:   docBase + "E302",
	},

	// ============================================
	// Binding Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategoryBinding,
		Message:  "Input value could not be read",
		DocURL:   docBase + "E400",
	},
	"E401": {
		Category: CategoryBinding,
		Message:  "Output render failed",
		Detail:   "The output adapter failed to apply a server value. The element shows an error state.",
		DocURL:   docBase + "E401",
	},
	"E402": {
		Category: CategoryBinding,
		Message:  "Duplicate binding name",
		DocURL:   docBase + "E402",
	},

	// ============================================
	// Config Errors (E500-E519)
	// ============================================

	"E500": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Suggestion: "Check shiny.json or shiny.yaml for syntax errors",
		DocURL:     docBase + "E500",
	},
	"E501": {
		Category: CategoryConfig,
		Message:  "Invalid environment override",
		DocURL:   docBase + "E501",
	},

	// ============================================
	// CLI Errors (E600-E619)
	// ============================================

	"E600": {
		Category:   CategoryCLI,
		Message:    "Missing server URL",
		Suggestion: "Pass --url or set SHINY_URL",
		DocURL:     docBase + "E600",
	},
}

// GetAllCodes returns all registered error codes in ascending order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
