// Package hubble submits analytics event batches to the Hubble collection API.
//
// A batch is posted as a single JSON object to <host>/batch, optionally
// gzip-compressed, authenticated with a write key. A response with status
// 200 is handed back to the caller untouched; every other status becomes an
// *APIError carrying the HTTP status and the server's code and message.
//
// # Usage
//
// Build one pooled HTTP client and one Client at startup and reuse them:
//
//	client := hubble.NewClient(hubble.NewHTTPClient(), logger)
//
//	resp, err := client.Post(ctx, writeKey, hubble.Batch{
//	    "batch":  events,
//	    "sentAt": time.Now(),
//	}, hubble.WithGzip(true))
//	if err != nil {
//	    var apiErr *hubble.APIError
//	    if errors.As(err, &apiErr) {
//	        // apiErr.Status, apiErr.Code, apiErr.Message
//	    }
//	    return err
//	}
//	defer resp.Body.Close()
//
// Post never retries. Callers own any retry policy.
//
// # Serialization
//
// Batches are encoded with an Encoder. Values that encoding/json cannot
// represent the way the API expects (time.Time, Date) are rewritten by a
// per-type Transformer while encoding. Additional types can be registered
// with Encoder.Register.
//
// # Version
//
// Current version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package hubble
