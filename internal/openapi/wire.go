// Package openapi implements the openapi integration type's
// type-specific initialization (spec §4.1): extract the endpoint set
// from the supplied OpenAPI document and store it on the record.
package openapi

import (
	"context"
	"fmt"

	"integrationhub/internal/hub"
)

// allowedMethods is the path x method cross-product restriction spec
// §4.1 names for endpoint extraction.
var allowedMethods = map[string]bool{
	"get":    true,
	"post":   true,
	"put":    true,
	"delete": true,
	"patch":  true,
}

// registrar is the narrow slice of Registry WireInitializer needs.
type registrar interface {
	SetInitializer(typ hub.IntegrationType, fn func(ctx context.Context, record *hub.Integration) (hub.Handle, error))
}

// WireInitializer registers the openapi type's initializer on r: it
// parses record.Config()["document"] and calls SetEndpoints with the
// extracted (path, method) pairs.
func WireInitializer(r registrar) {
	r.SetInitializer(hub.TypeOpenAPI, func(ctx context.Context, record *hub.Integration) (hub.Handle, error) {
		endpoints, err := endpointsFromConfig(record.Config())
		if err != nil {
			return nil, fmt.Errorf("extracting openapi endpoints: %w", err)
		}
		record.SetEndpoints(endpoints)
		return hub.NoopHandle{}, nil
	})
}

// endpointsFromConfig reads cfg["document"], an already-decoded OpenAPI
// document (map[string]interface{} with a "paths" object, the shape
// encoding/json or gopkg.in/yaml.v3 produce for OpenAPI JSON/YAML
// documents), and returns the path x method cross-product restricted to
// allowedMethods. A missing or malformed document yields no endpoints
// rather than an error. (At registration a missing document never gets
// here: the catalog lists it as a required field.)
func endpointsFromConfig(cfg map[string]interface{}) ([]hub.OpenAPIEndpoint, error) {
	doc, ok := cfg["document"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	paths, ok := doc["paths"].(map[string]interface{})
	if !ok {
		return nil, nil
	}

	var endpoints []hub.OpenAPIEndpoint
	for path, raw := range paths {
		methods, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		for method := range methods {
			if !allowedMethods[method] {
				continue
			}
			endpoints = append(endpoints, hub.OpenAPIEndpoint{Path: path, Method: method})
		}
	}
	return endpoints, nil
}
