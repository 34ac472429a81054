// Package discover builds OpenRPC documents.
//
// The data types mirror the OpenRPC 1.2.6 object model. Generate turns a
// list of method descriptors into a Document, deriving parameter and result
// schemas from Go types with a fresh schema.Generator:
//
//	doc := discover.Generate(discover.Info{Title: "Math", Version: "1.0.0"}, methods,
//	    discover.WithServers(discover.Server{Name: "prod", URL: "https://api.example.com/rpc"}),
//	)
//
// Security schemes are published under components.x-securitySchemes and a
// method's requirements under x-security.
package discover
