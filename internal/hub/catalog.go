package hub

import "time"

// TypeConfig is one process-wide catalog entry describing the defaults
// and requirements of an IntegrationType (spec §3).
type TypeConfig struct {
	Type           IntegrationType
	DefaultPort    *int
	HealthPath     string
	HealthTimeout  time.Duration
	RequiredFields []string
}

func intPtr(v int) *int { return &v }

// Catalog is the process-wide constant type table. It is never mutated
// after process start.
var Catalog = map[IntegrationType]TypeConfig{
	TypeWebUI: {
		Type:           TypeWebUI,
		DefaultPort:    intPtr(3000),
		HealthPath:     "/",
		HealthTimeout:  5 * time.Second,
		RequiredFields: []string{"apiUrl"},
	},
	TypeDevelopmentTool: {
		Type:           TypeDevelopmentTool,
		DefaultPort:    intPtr(4000),
		HealthPath:     "/health",
		HealthTimeout:  5 * time.Second,
		RequiredFields: []string{"apiUrl"},
	},
	TypeAPIService: {
		Type:           TypeAPIService,
		DefaultPort:    intPtr(5000),
		HealthPath:     "/health",
		HealthTimeout:  5 * time.Second,
		RequiredFields: []string{"apiUrl"},
	},
	TypeDatabase: {
		Type:           TypeDatabase,
		DefaultPort:    nil,
		HealthPath:     "",
		HealthTimeout:  3 * time.Second,
		RequiredFields: []string{"connectionString"},
	},
	TypeMessageQueue: {
		Type:           TypeMessageQueue,
		DefaultPort:    nil,
		HealthPath:     "",
		HealthTimeout:  3 * time.Second,
		RequiredFields: []string{"brokerUrl"},
	},
	TypeOpenAPI: {
		Type:           TypeOpenAPI,
		DefaultPort:    intPtr(6000),
		HealthPath:     "/health",
		HealthTimeout:  5 * time.Second,
		RequiredFields: []string{"apiUrl", "document"},
	},
	TypeWebhook: {
		Type:           TypeWebhook,
		DefaultPort:    nil,
		HealthPath:     "",
		HealthTimeout:  5 * time.Second,
		RequiredFields: []string{"url"},
	},
	TypePlugin: {
		Type:           TypePlugin,
		DefaultPort:    nil,
		HealthPath:     "",
		HealthTimeout:  5 * time.Second,
		RequiredFields: []string{"source"},
	},
}

// LookupType returns the catalog entry for typ, or false if typ is not a
// recognized IntegrationType.
func LookupType(typ IntegrationType) (TypeConfig, bool) {
	tc, ok := Catalog[typ]
	return tc, ok
}
