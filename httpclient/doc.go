// Package httpclient provides a typed Go client for consuming the collection
// REST API.
//
// Create a client with:
//
//	client, err := httpclient.New("http://localhost:8080/api/collect")
//	if err != nil {
//	   panic(err)
//	}
//
// Then upload files and query quota:
//
//	// Query workspace usage
//	quota, err := client.Quota(ctx, "workspace")
//
// The client satisfies the Transport interface consumed by the uploader.
package httpclient
