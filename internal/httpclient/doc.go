// Package httpclient provides the HTTP plumbing used by the REST driver.
//
// # Request Building
//
// [NewRequestBuilder] validates the base URL and static headers once; each
// call to Build then only substitutes the identifier into the route template:
//
//	builder, err := httpclient.NewRequestBuilder("http://localhost:8080", "/api/users/{{id}}", nil)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx, 42) // GET http://localhost:8080/api/users/42
//
// # HTTP Client
//
// [NewClient] creates a client whose transport keeps enough idle connections
// for every worker, so connection reuse stays transparent to the driver:
//
//	client := httpclient.NewClient(0, workers)
//	resp, err := client.Do(req)
package httpclient
